package lexenv

import (
	"envkit/internal/source"
	"envkit/internal/tree"
)

// Metadata is an open key/value bag attached to an association. It filters
// visibility at lookup time and never participates in ownership.
type Metadata map[string]any

// Bool returns the boolean stored under key, false when absent.
func (m Metadata) Bool(key string) bool {
	v, _ := m[key].(bool)
	return v
}

// String returns the string stored under key, "" when absent.
func (m Metadata) String(key string) string {
	v, _ := m[key].(string)
	return v
}

// Association binds a symbol to a declaration node.
type Association struct {
	Symbol source.StringID
	Node   tree.NodeID
	// Unit that contributed the association; it is stripped when the unit is
	// disposed, whatever environment it lives in.
	Unit tree.UnitID
	Meta Metadata
}

// Dep builds an association for dynamic environment resolvers. Dynamic
// associations live in the field cache, not in a symbol table, so they carry
// no owning unit.
func Dep(symbol source.StringID, node tree.NodeID, meta Metadata) Association {
	return Association{Symbol: symbol, Node: node, Meta: meta}
}

// Filter decides whether an association is visible to a lookup.
type Filter func(Association) bool

// MetaEquals keeps associations whose metadata key equals value.
func MetaEquals(key string, value any) Filter {
	return func(a Association) bool { return a.Meta[key] == value }
}

// MetaAbsentOrFalse drops associations flagged with key (e.g. "private").
func MetaAbsentOrFalse(key string) Filter {
	return func(a Association) bool { return !a.Meta.Bool(key) }
}

// AllOf combines filters; nil filters are ignored.
func AllOf(filters ...Filter) Filter {
	return func(a Association) bool {
		for _, f := range filters {
			if f != nil && !f(a) {
				return false
			}
		}
		return true
	}
}
