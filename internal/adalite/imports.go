package adalite

import (
	"strings"

	"envkit/internal/source"
	"envkit/internal/tree"
)

// Import is one name of a with clause.
type Import struct {
	// Name is the lower-cased qualified name.
	Name string
	Span source.Span
}

// SpecFile returns the file holding the specification of a library unit.
func SpecFile(qualifiedName string) string {
	return strings.ReplaceAll(strings.ToLower(qualifiedName), ".", "-") + SpecExt
}

// Imports lists the with clauses of the library item of t in source order.
// Unlike the population dependencies it does not add parent units.
func (l *Language) Imports(t *tree.Tree) []Import {
	root := t.Get(t.Root)
	if root == nil {
		return nil
	}
	var out []Import
	for _, c := range root.Children {
		item := t.Get(c)
		if item == nil {
			continue
		}
		if item.Kind == l.Kinds.Subunit {
			if body := t.Get(t.Child(item.ID, 1)); body != nil {
				item = body
			}
		}
		for _, cc := range item.Children {
			clause := t.Get(cc)
			if clause == nil || clause.Kind != l.Kinds.WithClause {
				continue
			}
			for _, nc := range clause.Children {
				if n := t.Get(nc); n != nil && n.Text != "" {
					out = append(out, Import{Name: strings.ToLower(n.Text), Span: n.Span})
				}
			}
		}
	}
	return out
}
