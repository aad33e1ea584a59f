package ple

import (
	"slices"
	"strings"

	"envkit/internal/tree"
)

// QualifiedName joins the declared names of id and of every enclosing node
// that can define a named environment. Anonymous nodes have no qualified
// name.
func (s *Spec) QualifiedName(t *tree.Tree, id tree.NodeID) string {
	n := t.Get(id)
	if n == nil || s.DeclName == nil {
		return ""
	}
	own := s.DeclName(t, n)
	if own == "" {
		return ""
	}
	parts := []string{own}
	for p := t.Get(n.Parent); p != nil; p = t.Get(p.Parent) {
		if s.CanDefineNamedEnv != nil && !s.CanDefineNamedEnv(t, p) {
			continue
		}
		if name := s.DeclName(t, p); name != "" {
			parts = append(parts, name)
		}
	}
	slices.Reverse(parts)
	return strings.Join(parts, ".")
}
