package lexenv

import (
	"slices"
	"testing"

	"envkit/internal/source"
	"envkit/internal/tree"
)

type fakeHooks struct {
	ensured []string
	dynamic map[EnvID][]Association
	ranges  map[tree.NodeID]source.Range
	// prefer picks a candidate by position; -1 rejects all
	prefer int
}

func (h *fakeHooks) EnsureNamed(name string) { h.ensured = append(h.ensured, name) }

func (h *fakeHooks) DynamicAssociations(env EnvID) []Association { return h.dynamic[env] }

func (h *fakeHooks) SelectParent(env EnvID, candidates []EnvID) EnvID {
	if h.prefer < 0 || h.prefer >= len(candidates) {
		return NoEnvID
	}
	return candidates[h.prefer]
}

func (h *fakeHooks) NodeRange(node tree.NodeID) source.Range { return h.ranges[node] }

func nodes(as []Association) []tree.NodeID {
	out := make([]tree.NodeID, len(as))
	for i, a := range as {
		out[i] = a.Node
	}
	return out
}

func newLookuper() (Lookuper, *fakeHooks) {
	h := &fakeHooks{dynamic: map[EnvID][]Association{}, ranges: map[tree.NodeID]source.Range{}}
	return Lookuper{Store: NewStore(), Named: NewRegistry(), Hooks: h}, h
}

func TestLookupInnermostFirst(t *testing.T) {
	l, _ := newLookuper()
	s := l.Store
	outer := s.Create(EnvSpec{Unit: 1, Parent: s.Root(), Transitive: true})
	inner := s.Create(EnvSpec{Unit: 1, Parent: outer, Transitive: true})
	s.Add(s.Root(), 1, nid(1), 1, nil)
	s.Add(outer, 1, nid(2), 1, nil)
	s.Add(inner, 1, nid(3), 1, nil)
	s.Add(inner, 1, nid(4), 1, nil)

	got := nodes(l.Get(inner, 1, LookupOptions{}))
	want := []tree.NodeID{nid(3), nid(4), nid(2), nid(1)}
	if !slices.Equal(got, want) {
		t.Fatalf("Get = %v, want %v", got, want)
	}
	if first, n, ok := l.GetFirst(inner, 1, LookupOptions{}); !ok || n != 2 || first.Node != nid(3) {
		t.Fatalf("GetFirst = %v, %d, %v", first.Node, n, ok)
	}
	// outer declarations are shadowed, not ambiguous
	if first, n, ok := l.GetFirst(outer, 1, LookupOptions{}); !ok || n != 1 || first.Node != nid(2) {
		t.Fatalf("GetFirst(outer) = %v, %d, %v", first.Node, n, ok)
	}
	if _, _, ok := l.GetFirst(inner, 2, LookupOptions{}); ok {
		t.Fatal("absent symbol must not be found")
	}
}

func TestLookupNonTransitiveAndLocal(t *testing.T) {
	l, _ := newLookuper()
	s := l.Store
	outer := s.Create(EnvSpec{Unit: 1, Parent: s.Root(), Transitive: true})
	closed := s.Create(EnvSpec{Unit: 1, Parent: outer})
	open := s.Create(EnvSpec{Unit: 1, Parent: outer, Transitive: true})
	s.Add(outer, 1, nid(1), 1, nil)

	if got := l.Get(closed, 1, LookupOptions{}); len(got) != 0 {
		t.Fatalf("non-transitive env leaked %v", nodes(got))
	}
	if got := l.Get(open, 1, LookupOptions{Local: true}); len(got) != 0 {
		t.Fatalf("local lookup leaked %v", nodes(got))
	}
	if got := l.Get(open, 1, LookupOptions{}); len(got) != 1 {
		t.Fatalf("transitive lookup = %v", nodes(got))
	}
}

func TestLookupCyclicNamedParents(t *testing.T) {
	l, _ := newLookuper()
	s := l.Store
	a := s.Create(EnvSpec{Unit: 1, ParentName: "B", Transitive: true})
	b := s.Create(EnvSpec{Unit: 2, ParentName: "A", Transitive: true})
	s.SetName(a, "A")
	s.SetName(b, "B")
	l.Named.Register("A", a, 1)
	l.Named.Register("B", b, 2)
	s.AddRef(a, b)
	s.Add(a, 1, nid(1), 1, nil)
	s.Add(b, 1, nid(2), 2, nil)

	got := nodes(l.Get(a, 1, LookupOptions{}))
	if !slices.Equal(got, []tree.NodeID{nid(1), nid(2)}) {
		t.Fatalf("Get = %v", got)
	}
}

func TestLookupForeignEntriesReadOncePerName(t *testing.T) {
	l, _ := newLookuper()
	s := l.Store
	decl := s.Create(EnvSpec{Unit: 1, Parent: s.Root(), Transitive: true})
	body := s.Create(EnvSpec{Unit: 2, ParentName: "Foo", Transitive: true})
	s.SetName(decl, "Foo")
	s.SetName(body, "Foo")
	l.Named.Register("Foo", decl, 1)
	l.Named.Register("Foo", body, 2)
	next := source.StringID(5)
	l.Named.AddForeign("Foo", Association{Symbol: next, Node: nid(9), Unit: 3})

	got := nodes(l.Get(body, next, LookupOptions{}))
	if !slices.Equal(got, []tree.NodeID{nid(9)}) {
		t.Fatalf("Get(__nextpart) = %v", got)
	}
}

func TestLookupUnresolvedParentFallsBackToRoot(t *testing.T) {
	l, h := newLookuper()
	s := l.Store
	env := s.Create(EnvSpec{Unit: 1, ParentName: "Missing", Transitive: true})
	s.Add(s.Root(), 1, nid(1), 0, nil)

	if got := l.ResolveParent(env); got != s.Root() {
		t.Fatalf("ResolveParent = %d, want root", got)
	}
	if got := l.Get(env, 1, LookupOptions{}); len(got) != 1 {
		t.Fatalf("Get = %v", nodes(got))
	}
	if !slices.Contains(h.ensured, "Missing") {
		t.Fatal("EnsureNamed must run before a named parent is resolved")
	}

	// a rejecting policy also falls back to the root
	other := s.Create(EnvSpec{Unit: 2, Parent: s.Root()})
	l.Named.Register("Missing", other, 2)
	h.prefer = -1
	if got := l.ResolveParent(env); got != s.Root() {
		t.Fatalf("ResolveParent with rejecting policy = %d", got)
	}
	h.prefer = 0
	if got := l.ResolveParent(env); got != other {
		t.Fatalf("ResolveParent = %d, want %d", got, other)
	}
}

func TestLookupDynamicAndFilter(t *testing.T) {
	l, h := newLookuper()
	s := l.Store
	dyn := s.Create(EnvSpec{Unit: 1, Parent: s.Root(), Transitive: true, Dynamic: true})
	s.Add(dyn, 1, nid(1), 1, Metadata{"private": true})
	h.dynamic[dyn] = []Association{Dep(1, nid(2), nil), Dep(2, nid(3), nil)}

	got := nodes(l.Get(dyn, 1, LookupOptions{}))
	if !slices.Equal(got, []tree.NodeID{nid(1), nid(2)}) {
		t.Fatalf("Get = %v", got)
	}
	got = nodes(l.Get(dyn, 1, LookupOptions{Filter: MetaAbsentOrFalse("private")}))
	if !slices.Equal(got, []tree.NodeID{nid(2)}) {
		t.Fatalf("filtered Get = %v", got)
	}
}

func TestLookupSequential(t *testing.T) {
	l, h := newLookuper()
	s := l.Store
	env := s.Create(EnvSpec{Unit: 1, Parent: s.Root(), Transitive: true})
	s.Add(env, 1, nid(1), 1, nil)
	s.Add(env, 1, nid(2), 1, nil)
	s.Add(env, 1, nid(3), 2, nil)
	h.ranges[nid(1)] = source.Range{Start: source.Point{Line: 1, Column: 1}, End: source.Point{Line: 1, Column: 10}}
	h.ranges[nid(2)] = source.Range{Start: source.Point{Line: 5, Column: 1}, End: source.Point{Line: 5, Column: 10}}

	pos := &Position{Unit: 1, At: source.Point{Line: 3, Column: 4}}
	got := nodes(l.Get(env, 1, LookupOptions{Sequential: pos}))
	// other units are never hidden
	if !slices.Equal(got, []tree.NodeID{nid(1), nid(3)}) {
		t.Fatalf("sequential Get = %v", got)
	}
}
