package tree

import "envkit/internal/source"

// Unit is an analysis unit: the ownership boundary for a parsed tree and for
// everything population derives from it.
type Unit struct {
	ID   UnitID
	Name string
	File source.FileID
	Tree *Tree
	// Generation is bumped on every reparse.
	Generation uint32
	// Deps lists qualified names the unit depends on (with-clauses).
	Deps []string
}

// Root returns the root node ID of the current tree.
func (u *Unit) Root() NodeID {
	if u == nil || u.Tree == nil {
		return NoNodeID
	}
	return u.Tree.Root
}
