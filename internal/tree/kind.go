package tree

import (
	"fmt"

	"fortio.org/safecast"
)

// Kind is a node variant tag. The set of kinds is closed per grammar and
// declared once through a KindSet.
type Kind uint16

// KindInvalid is never assigned to a node.
const KindInvalid Kind = 0

// KindInfo describes one variant.
type KindInfo struct {
	Name string
	// Base is the parent variant in the grammar's hierarchy (KindInvalid for roots).
	Base     Kind
	Abstract bool
}

// KindSet is the closed set of node kinds of one grammar.
type KindSet struct {
	infos  []KindInfo
	byName map[string]Kind
}

// NewKindSet creates an empty set with KindInvalid reserved.
func NewKindSet() *KindSet {
	return &KindSet{
		infos:  []KindInfo{{Name: "<invalid>"}},
		byName: make(map[string]Kind),
	}
}

// Define registers a concrete kind deriving from base.
func (ks *KindSet) Define(name string, base Kind) Kind {
	return ks.define(KindInfo{Name: name, Base: base})
}

// DefineAbstract registers a kind that only serves as a base.
func (ks *KindSet) DefineAbstract(name string, base Kind) Kind {
	return ks.define(KindInfo{Name: name, Base: base, Abstract: true})
}

func (ks *KindSet) define(info KindInfo) Kind {
	if _, dup := ks.byName[info.Name]; dup {
		panic(fmt.Sprintf("tree: kind %q defined twice", info.Name))
	}
	if int(info.Base) >= len(ks.infos) {
		panic(fmt.Sprintf("tree: kind %q derives from unknown base %d", info.Name, info.Base))
	}
	n, err := safecast.Conv[uint16](len(ks.infos))
	if err != nil {
		panic(fmt.Errorf("kind set overflow: %w", err))
	}
	k := Kind(n)
	ks.infos = append(ks.infos, info)
	ks.byName[info.Name] = k
	return k
}

// Len reports the number of kinds including KindInvalid. Per-kind tables are
// sized with it.
func (ks *KindSet) Len() int { return len(ks.infos) }

// Info returns the description of k.
func (ks *KindSet) Info(k Kind) KindInfo {
	if int(k) >= len(ks.infos) {
		return ks.infos[KindInvalid]
	}
	return ks.infos[k]
}

// Name returns the name of k.
func (ks *KindSet) Name(k Kind) string { return ks.Info(k).Name }

// ByName finds a kind by its name.
func (ks *KindSet) ByName(name string) (Kind, bool) {
	k, ok := ks.byName[name]
	return k, ok
}

// IsA reports whether k is base or derives from it.
func (ks *KindSet) IsA(k, base Kind) bool {
	for k != KindInvalid {
		if k == base {
			return true
		}
		k = ks.Info(k).Base
	}
	return false
}
