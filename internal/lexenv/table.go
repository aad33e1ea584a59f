package lexenv

import (
	"envkit/internal/source"
	"envkit/internal/tree"
)

type assocKey struct {
	symbol source.StringID
	node   tree.NodeID
}

// SymbolTable maps interned symbols to associations, preserving insertion
// order per symbol.
type SymbolTable struct {
	entries []Association
	index   map[source.StringID][]int
	seen    map[assocKey]struct{}
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		index: make(map[source.StringID][]int),
		seen:  make(map[assocKey]struct{}),
	}
}

// Add appends a. Duplicate (symbol, node) pairs are ignored and reported as
// false.
func (t *SymbolTable) Add(a Association) bool {
	key := assocKey{symbol: a.Symbol, node: a.Node}
	if _, dup := t.seen[key]; dup {
		return false
	}
	t.seen[key] = struct{}{}
	t.index[a.Symbol] = append(t.index[a.Symbol], len(t.entries))
	t.entries = append(t.entries, a)
	return true
}

// Get returns the associations of symbol in declaration order.
func (t *SymbolTable) Get(symbol source.StringID) []Association {
	if t == nil {
		return nil
	}
	positions := t.index[symbol]
	if len(positions) == 0 {
		return nil
	}
	out := make([]Association, len(positions))
	for i, pos := range positions {
		out[i] = t.entries[pos]
	}
	return out
}

// All returns every association in insertion order.
func (t *SymbolTable) All() []Association {
	if t == nil {
		return nil
	}
	out := make([]Association, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len reports the number of associations.
func (t *SymbolTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Clone returns an independent copy of the table.
func (t *SymbolTable) Clone() *SymbolTable {
	c := NewSymbolTable()
	if t == nil {
		return c
	}
	for _, a := range t.entries {
		c.Add(a)
	}
	return c
}

// RemoveUnit drops the associations contributed by unit and returns how many
// were removed. Relative order of the remaining ones is kept.
func (t *SymbolTable) RemoveUnit(unit tree.UnitID) int {
	if t == nil {
		return 0
	}
	kept := make([]Association, 0, len(t.entries))
	for _, a := range t.entries {
		if a.Unit != unit {
			kept = append(kept, a)
		}
	}
	removed := len(t.entries) - len(kept)
	if removed == 0 {
		return 0
	}
	t.entries = t.entries[:0]
	clear(t.index)
	clear(t.seen)
	for _, a := range kept {
		t.Add(a)
	}
	return removed
}
