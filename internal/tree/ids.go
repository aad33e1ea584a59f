package tree

import "fmt"

// TreeID identifies one parse result. Every (re)parse allocates a fresh tree so
// node identities of a stale tree never alias nodes of its replacement.
type TreeID uint32

// NoTreeID marks the absence of a tree.
const NoTreeID TreeID = 0

// UnitID identifies an analysis unit. It survives reparses.
type UnitID uint32

// NoUnitID marks the absence of a unit.
const NoUnitID UnitID = 0

// IsValid reports whether the unit ID refers to an allocated unit.
func (id UnitID) IsValid() bool { return id != NoUnitID }

// NodeID addresses a node inside a tree arena.
type NodeID struct {
	Tree  TreeID
	Index uint32
}

// NoNodeID marks the absence of a node reference.
var NoNodeID = NodeID{}

// IsValid reports whether the node ID refers to an allocated node.
func (id NodeID) IsValid() bool { return id.Tree != NoTreeID && id.Index != 0 }

func (id NodeID) String() string {
	if !id.IsValid() {
		return "node(none)"
	}
	return fmt.Sprintf("node(%d#%d)", id.Tree, id.Index)
}
