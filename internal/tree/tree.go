package tree

import (
	"fmt"

	"fortio.org/safecast"

	"envkit/internal/source"
)

// Node is a syntax-tree element. Children are owned by the node; Parent is a
// back-reference.
type Node struct {
	ID       NodeID
	Kind     Kind
	Parent   NodeID
	Children []NodeID
	Unit     UnitID
	Span     source.Span
	Range    source.Range
	// Text is the token text for leaves (identifiers, literals).
	Text string
}

// Tree is the node arena of one parse. It is immutable once Finish returns.
type Tree struct {
	ID    TreeID
	Unit  UnitID
	Kinds *KindSet
	Root  NodeID
	nodes []Node
}

// Get returns the node or nil if id does not belong to this tree.
func (t *Tree) Get(id NodeID) *Node {
	if t == nil || id.Tree != t.ID || id.Index == 0 || int(id.Index) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id.Index]
}

// Len reports the number of nodes excluding the sentinel.
func (t *Tree) Len() int { return len(t.nodes) - 1 }

// Walk visits the subtree rooted at id in pre-order. Returning false from fn
// skips the children of the visited node.
func (t *Tree) Walk(id NodeID, fn func(n *Node) bool) {
	n := t.Get(id)
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		t.Walk(child, fn)
	}
}

// Child returns the i-th child of id, or NoNodeID.
func (t *Tree) Child(id NodeID, i int) NodeID {
	n := t.Get(id)
	if n == nil || i < 0 || i >= len(n.Children) {
		return NoNodeID
	}
	return n.Children[i]
}

// Builder appends nodes to a tree under construction.
type Builder struct {
	tree *Tree
}

// NewBuilder starts a tree for unit.
func NewBuilder(id TreeID, unit UnitID, kinds *KindSet) *Builder {
	return &Builder{tree: &Tree{
		ID:    id,
		Unit:  unit,
		Kinds: kinds,
		nodes: make([]Node, 1, 64), // index 0 reserved for NoNodeID
	}}
}

// Add allocates a node of kind under parent (NoNodeID for the root).
func (b *Builder) Add(kind Kind, parent NodeID, span source.Span, text string) NodeID {
	if kind == KindInvalid {
		panic("tree: cannot add a node of invalid kind")
	}
	idx, err := safecast.Conv[uint32](len(b.tree.nodes))
	if err != nil {
		panic(fmt.Errorf("node arena overflow: %w", err))
	}
	id := NodeID{Tree: b.tree.ID, Index: idx}
	b.tree.nodes = append(b.tree.nodes, Node{
		ID:     id,
		Kind:   kind,
		Parent: parent,
		Unit:   b.tree.Unit,
		Span:   span,
		Text:   text,
	})
	if parent.IsValid() {
		p := b.tree.Get(parent)
		if p == nil {
			panic(fmt.Sprintf("tree: parent %s not in tree %d", parent, b.tree.ID))
		}
		p.Children = append(p.Children, id)
	} else if !b.tree.Root.IsValid() {
		b.tree.Root = id
	}
	return id
}

// SetSpan updates the span of a node once its extent is known.
func (b *Builder) SetSpan(id NodeID, span source.Span) {
	if n := b.tree.Get(id); n != nil {
		n.Span = span
	}
}

// Node gives access to a node under construction.
func (b *Builder) Node(id NodeID) *Node { return b.tree.Get(id) }

// Finish resolves byte spans into line/column ranges and returns the tree.
// fs may be nil when spans are irrelevant (hand-built trees in tests).
func (b *Builder) Finish(fs *source.FileSet) *Tree {
	if fs != nil {
		for i := 1; i < len(b.tree.nodes); i++ {
			n := &b.tree.nodes[i]
			n.Range = fs.Resolve(n.Span)
		}
	}
	t := b.tree
	b.tree = nil
	return t
}

// SetRange overrides the resolved range of a node (hand-built trees).
func (b *Builder) SetRange(id NodeID, r source.Range) {
	if n := b.tree.Get(id); n != nil {
		n.Range = r
	}
}
