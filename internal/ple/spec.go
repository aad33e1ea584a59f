package ple

import (
	"envkit/internal/lexenv"
	"envkit/internal/tree"
)

// NextPart is the slot a completion (body, subunit) fills in the environment
// of the declaration it completes.
const NextPart = "__nextpart"

// EnvAction describes the environment a node introduces for its descendants.
type EnvAction struct {
	Transitive bool
	// ParentName, when set, replaces the syntactic parent with the environment
	// registered under that qualified name.
	ParentName string
	// Dynamic environments get their associations from a resolver.
	Dynamic bool
	// Named registers the environment under the node's qualified name. Nodes
	// rejected by Spec.CanDefineNamedEnv never register.
	Named bool
}

// Decl is one association a node contributes.
type Decl struct {
	Symbol string
	// Node is the declaration the symbol resolves to; defaults to the visited
	// node.
	Node tree.NodeID
	Meta lexenv.Metadata
	// Own adds the association to the environment the node introduces
	// instead of the one it is visible in.
	Own bool
	// Dest adds the association to the environment(s) registered under this
	// qualified name; the association lives in the registry and follows the
	// named environment across reparses.
	Dest string
}

// Visit gives hooks access to the node being populated.
type Visit struct {
	Tree *tree.Tree
	Node *tree.Node
	Unit *tree.Unit
	// QualifiedName returns the dot-joined qualified name of a node of Tree.
	QualifiedName func(id tree.NodeID) string
}

// KindSpec holds the population hooks of one node kind. Nil hooks do nothing.
type KindSpec struct {
	AddEnv   func(v Visit) (EnvAction, bool)
	AddToEnv func(v Visit) []Decl
	// Reference lists qualified names of environments whose local contents
	// become visible in the environment the node is visible in.
	Reference func(v Visit) []string
	// Defer visits the node after its siblings.
	Defer bool
}

// Candidate describes an environment considered as a named parent.
type Candidate struct {
	Env   lexenv.EnvID
	Owner tree.NodeID
	Kind  tree.Kind
	Unit  tree.UnitID
}

// ParentPolicy picks the named parent of req among candidates and returns its
// index, or -1 when none fits.
type ParentPolicy func(req Candidate, candidates []Candidate) int

// FirstCandidate is the default policy: registration order wins.
func FirstCandidate(_ Candidate, candidates []Candidate) int {
	if len(candidates) == 0 {
		return -1
	}
	return 0
}

// Spec is the per-grammar environment specification.
type Spec struct {
	Kinds *tree.KindSet
	// CanDefineNamedEnv reports whether n may register a named environment.
	CanDefineNamedEnv func(t *tree.Tree, n *tree.Node) bool
	// DeclName returns the declared name of n ("" for anonymous nodes). Names
	// of library-level units may be dotted.
	DeclName func(t *tree.Tree, n *tree.Node) string
	// ParentPolicy breaks ties between environments sharing a name.
	ParentPolicy ParentPolicy
	// WithDeps lists the qualified names a tree depends on.
	WithDeps func(t *tree.Tree) []string

	byKind []KindSpec
	set    []bool
}

// NewSpec creates an empty specification over kinds.
func NewSpec(kinds *tree.KindSet) *Spec {
	return &Spec{
		Kinds:        kinds,
		ParentPolicy: FirstCandidate,
		byKind:       make([]KindSpec, kinds.Len()),
		set:          make([]bool, kinds.Len()),
	}
}

// On installs the hooks of kind. Kinds derived from it inherit them unless
// they have hooks of their own.
func (s *Spec) On(kind tree.Kind, ks KindSpec) *Spec {
	if int(kind) >= len(s.byKind) {
		grown := make([]KindSpec, s.Kinds.Len())
		copy(grown, s.byKind)
		s.byKind = grown
		set := make([]bool, s.Kinds.Len())
		copy(set, s.set)
		s.set = set
	}
	s.byKind[kind] = ks
	s.set[kind] = true
	return s
}

// For returns the hooks that apply to kind, walking up the variant hierarchy.
func (s *Spec) For(kind tree.Kind) KindSpec {
	for k := kind; k != tree.KindInvalid; k = s.Kinds.Info(k).Base {
		if int(k) < len(s.set) && s.set[k] {
			return s.byKind[k]
		}
	}
	return KindSpec{}
}

// Deps returns the dependencies of t, nil when the grammar has none.
func (s *Spec) Deps(t *tree.Tree) []string {
	if s.WithDeps == nil || t == nil {
		return nil
	}
	return s.WithDeps(t)
}
