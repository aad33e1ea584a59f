package dag

import (
	"sort"

	"envkit/internal/source"
)

type UnitID uint32

// Dep is one with'ed unit, named by the unit providing it.
type Dep struct {
	Name string
	Span source.Span
}

// UnitMeta describes a loaded unit and the units it withs.
type UnitMeta struct {
	Name string
	Span source.Span
	Deps []Dep
}

type UnitIndex struct {
	NameToID map[string]UnitID
	IDToName []string
}

// BuildIndex collects unit and dependency names, sorts them and hands out
// IDs in that order.
func BuildIndex(metas []UnitMeta) UnitIndex {
	uniq := make(map[string]struct{}, len(metas))
	for _, meta := range metas {
		if meta.Name != "" {
			uniq[meta.Name] = struct{}{}
		}
		for _, dep := range meta.Deps {
			if dep.Name == "" {
				continue
			}
			uniq[dep.Name] = struct{}{}
		}
	}

	names := make([]string, 0, len(uniq))
	for name := range uniq {
		names = append(names, name)
	}
	sort.Strings(names)

	nameToID := make(map[string]UnitID, len(names))
	for i, name := range names {
		nameToID[name] = UnitID(i)
	}

	return UnitIndex{
		NameToID: nameToID,
		IDToName: names,
	}
}
