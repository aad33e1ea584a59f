package tree

import (
	"errors"
	"fmt"
)

// Validate walks the arena checking that parent/child links form a tree: every
// non-root node has exactly one parent which lists it as a child, and no node
// is reachable twice from the root.
func (t *Tree) Validate() error {
	var errs []error
	if !t.Root.IsValid() && t.Len() > 0 {
		errs = append(errs, fmt.Errorf("tree %d has nodes but no root", t.ID))
	}
	for idx := 1; idx < len(t.nodes); idx++ {
		n := &t.nodes[idx]
		if n.Kind == KindInvalid {
			errs = append(errs, fmt.Errorf("%s has invalid kind", n.ID))
		}
		if n.ID == t.Root {
			if n.Parent.IsValid() {
				errs = append(errs, fmt.Errorf("root %s has parent %s", n.ID, n.Parent))
			}
			continue
		}
		parent := t.Get(n.Parent)
		if parent == nil {
			errs = append(errs, fmt.Errorf("%s has invalid parent %s", n.ID, n.Parent))
			continue
		}
		count := 0
		for _, child := range parent.Children {
			if child == n.ID {
				count++
			}
		}
		if count != 1 {
			errs = append(errs, fmt.Errorf("%s listed %d times by parent %s", n.ID, count, n.Parent))
		}
	}
	seen := make(map[NodeID]bool, len(t.nodes))
	t.Walk(t.Root, func(n *Node) bool {
		if seen[n.ID] {
			errs = append(errs, fmt.Errorf("%s reachable twice", n.ID))
			return false
		}
		seen[n.ID] = true
		return true
	})
	return errors.Join(errs...)
}
