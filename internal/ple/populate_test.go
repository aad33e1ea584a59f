package ple

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"envkit/internal/lexenv"
	"envkit/internal/source"
	"envkit/internal/tree"
)

type testGrammar struct {
	ks                        *tree.KindSet
	root, pkg, body, obj, use tree.Kind
	late                      tree.Kind
	spec                      *Spec
}

func newTestGrammar() *testGrammar {
	g := &testGrammar{ks: tree.NewKindSet()}
	g.root = g.ks.Define("Root", tree.KindInvalid)
	g.pkg = g.ks.Define("Pkg", tree.KindInvalid)
	g.body = g.ks.Define("Body", tree.KindInvalid)
	g.obj = g.ks.Define("Obj", tree.KindInvalid)
	g.late = g.ks.Define("LateObj", g.obj)
	g.use = g.ks.Define("Use", tree.KindInvalid)

	named := func(_ *tree.Tree, n *tree.Node) bool { return n.Kind == g.pkg || n.Kind == g.body }
	declare := func(v Visit) []Decl { return []Decl{{Symbol: v.Node.Text}} }

	g.spec = NewSpec(g.ks)
	g.spec.CanDefineNamedEnv = named
	g.spec.DeclName = func(_ *tree.Tree, n *tree.Node) string {
		if n.Kind == g.root || n.Kind == g.use {
			return ""
		}
		return n.Text
	}
	g.spec.On(g.pkg, KindSpec{
		AddEnv:   func(Visit) (EnvAction, bool) { return EnvAction{Transitive: true, Named: true}, true },
		AddToEnv: declare,
	})
	g.spec.On(g.body, KindSpec{
		AddEnv: func(v Visit) (EnvAction, bool) {
			return EnvAction{Transitive: true, Named: true, ParentName: v.QualifiedName(v.Node.ID)}, true
		},
		AddToEnv: func(v Visit) []Decl {
			return []Decl{{Symbol: NextPart, Dest: v.QualifiedName(v.Node.ID)}}
		},
	})
	g.spec.On(g.obj, KindSpec{AddToEnv: declare})
	g.spec.On(g.late, KindSpec{AddToEnv: declare, Defer: true})
	g.spec.On(g.use, KindSpec{Reference: func(v Visit) []string { return []string{v.Node.Text} }})
	return g
}

type nodeSpec struct {
	kind     tree.Kind
	text     string
	children []nodeSpec
}

func (g *testGrammar) unit(id tree.UnitID, name string, top ...nodeSpec) (*tree.Unit, map[string]tree.NodeID) {
	b := tree.NewBuilder(tree.TreeID(id), id, g.ks)
	ids := make(map[string]tree.NodeID)
	var add func(parent tree.NodeID, ns nodeSpec)
	add = func(parent tree.NodeID, ns nodeSpec) {
		n := b.Add(ns.kind, parent, source.Span{}, ns.text)
		key := g.ks.Name(ns.kind) + ":" + ns.text
		if _, dup := ids[key]; dup {
			key = fmt.Sprintf("%s#%d", key, n.Index)
		}
		ids[key] = n
		for _, c := range ns.children {
			add(n, c)
		}
	}
	root := b.Add(g.root, tree.NoNodeID, source.Span{}, "")
	for _, ns := range top {
		add(root, ns)
	}
	return &tree.Unit{ID: id, Name: name, Tree: b.Finish(nil)}, ids
}

type fixture struct {
	g     *testGrammar
	strs  *source.Interner
	store *lexenv.Store
	named *lexenv.Registry
	pop   *Populator
}

func newFixture() *fixture {
	g := newTestGrammar()
	f := &fixture{g: g, strs: source.NewInterner(), store: lexenv.NewStore(), named: lexenv.NewRegistry()}
	f.pop = NewPopulator(g.spec, f.store, f.named, f.strs)
	return f
}

func (f *fixture) lookuper() lexenv.Lookuper {
	return lexenv.Lookuper{Store: f.store, Named: f.named}
}

func (f *fixture) get(env lexenv.EnvID, name string) []tree.NodeID {
	var out []tree.NodeID
	for _, a := range f.lookuper().Get(env, f.strs.Intern(name), lexenv.LookupOptions{}) {
		out = append(out, a.Node)
	}
	return out
}

func (f *fixture) childrenEnv(t *testing.T, node tree.NodeID) lexenv.EnvID {
	t.Helper()
	env, ok := f.store.ChildrenEnvOf(node)
	if !ok {
		t.Fatalf("%s introduces no env", node)
	}
	return env
}

func TestDeclarationOrder(t *testing.T) {
	f := newFixture()
	g := f.g
	u, ids := g.unit(1, "p", nodeSpec{g.pkg, "P", []nodeSpec{{g.obj, "a", nil}, {g.obj, "b", nil}, {g.obj, "a", nil}}})
	if _, err := f.pop.PopulateBatch(context.Background(), []*tree.Unit{u}, 1); err != nil {
		t.Fatal(err)
	}
	env := f.childrenEnv(t, ids["Pkg:P"])
	got := f.get(env, "a")
	if len(got) != 2 || got[0] != ids["Obj:a"] || got[1].Index <= got[0].Index {
		t.Fatalf("get(a) = %v", got)
	}
	// P itself is declared in the root env
	if got := f.get(f.store.Root(), "P"); !slices.Equal(got, []tree.NodeID{ids["Pkg:P"]}) {
		t.Fatalf("get(P) = %v", got)
	}
}

func TestDeferredChildrenVisitedLast(t *testing.T) {
	f := newFixture()
	g := f.g
	u, ids := g.unit(1, "p", nodeSpec{g.pkg, "P", []nodeSpec{{g.late, "A", nil}, {g.obj, "B", nil}}})
	if _, err := f.pop.PopulateUnit(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	all := f.store.LocalTable(f.childrenEnv(t, ids["Pkg:P"])).All()
	if len(all) != 2 || all[0].Node != ids["Obj:B"] || all[1].Node != ids["LateObj:A"] {
		t.Fatalf("order = %+v", all)
	}
}

func TestNextPartPairing(t *testing.T) {
	f := newFixture()
	g := f.g
	spec, sids := g.unit(1, "p.ads", nodeSpec{g.pkg, "P", []nodeSpec{{g.obj, "X", nil}}})
	body, bids := g.unit(2, "p.adb", nodeSpec{g.body, "P", []nodeSpec{{g.obj, "Y", nil}}})

	res, err := f.pop.PopulateBatch(context.Background(), []*tree.Unit{body, spec}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Link.Resolved != 1 || len(res.Link.Unresolved) != 0 {
		t.Fatalf("link = %+v", res.Link)
	}
	declEnv := f.childrenEnv(t, sids["Pkg:P"])
	if got := f.get(declEnv, NextPart); !slices.Equal(got, []tree.NodeID{bids["Body:P"]}) {
		t.Fatalf("__nextpart = %v", got)
	}
	bodyEnv := f.childrenEnv(t, bids["Body:P"])
	if got := f.get(bodyEnv, "X"); !slices.Equal(got, []tree.NodeID{sids["Obj:X"]}) {
		t.Fatalf("X from body = %v", got)
	}
	if env, ok := f.store.NodeEnvOf(bids["Body:P"]); !ok || env != declEnv {
		t.Fatalf("node env of body = %d, %v", env, ok)
	}
}

func TestUnresolvedLinkRetried(t *testing.T) {
	f := newFixture()
	g := f.g
	body, bids := g.unit(2, "p.adb", nodeSpec{g.body, "P", nil})
	res, err := f.pop.PopulateBatch(context.Background(), []*tree.Unit{body}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Link.Unresolved) != 1 || res.Link.Unresolved[0].Name != "P" {
		t.Fatalf("unresolved = %+v", res.Link.Unresolved)
	}
	bodyEnv := f.childrenEnv(t, bids["Body:P"])
	if e, _ := f.store.Env(bodyEnv); !e.Unresolved {
		t.Fatal("env must be flagged unresolved")
	}
	if got := f.lookuper().ResolveParent(bodyEnv); got != f.store.Root() {
		t.Fatalf("effective parent = %d, want root", got)
	}
	if names := f.pop.UnresolvedNames(); !slices.Equal(names, []string{"P"}) {
		t.Fatalf("names = %v", names)
	}

	spec, _ := g.unit(1, "p.ads", nodeSpec{g.pkg, "P", nil})
	res, err = f.pop.PopulateBatch(context.Background(), []*tree.Unit{spec}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Link.Resolved != 1 || len(f.pop.Unresolved()) != 0 {
		t.Fatalf("retry = %+v", res.Link)
	}
	if e, _ := f.store.Env(bodyEnv); e.Unresolved {
		t.Fatal("flag must clear once resolved")
	}

	f.pop.ForgetUnit(2)
	if res := f.pop.Link(context.Background()); res.Resolved != 0 {
		t.Fatalf("forgotten links relinked: %+v", res)
	}
}

func TestUseClauseReference(t *testing.T) {
	f := newFixture()
	g := f.g
	lib, lids := g.unit(1, "q.ads", nodeSpec{g.pkg, "Q", []nodeSpec{{g.obj, "V", nil}}})
	user, uids := g.unit(2, "p.ads", nodeSpec{g.pkg, "P", []nodeSpec{{g.use, "Q", nil}, {g.obj, "W", nil}}})
	if _, err := f.pop.PopulateBatch(context.Background(), []*tree.Unit{lib, user}, 2); err != nil {
		t.Fatal(err)
	}
	env := f.childrenEnv(t, uids["Pkg:P"])
	if got := f.get(env, "V"); !slices.Equal(got, []tree.NodeID{lids["Obj:V"]}) {
		t.Fatalf("V through use = %v", got)
	}
}

func TestQualifiedName(t *testing.T) {
	g := newTestGrammar()
	u, ids := g.unit(1, "p", nodeSpec{g.pkg, "P", []nodeSpec{{g.pkg, "Inner", []nodeSpec{{g.obj, "X", nil}}}}})
	tests := []struct {
		node string
		want string
	}{
		{"Pkg:P", "P"},
		{"Pkg:Inner", "P.Inner"},
		{"Obj:X", "P.Inner.X"},
	}
	for _, tt := range tests {
		t.Run(tt.node, func(t *testing.T) {
			if got := g.spec.QualifiedName(u.Tree, ids[tt.node]); got != tt.want {
				t.Fatalf("QualifiedName = %q, want %q", got, tt.want)
			}
		})
	}
	if got := g.spec.QualifiedName(u.Tree, u.Tree.Root); got != "" {
		t.Fatalf("anonymous root has name %q", got)
	}
}

func TestParallelBatch(t *testing.T) {
	f := newFixture()
	g := f.g
	var units []*tree.Unit
	for i := 1; i <= 32; i++ {
		u, _ := g.unit(tree.UnitID(i), fmt.Sprintf("u%d", i), nodeSpec{g.pkg, fmt.Sprintf("P%d", i), []nodeSpec{{g.obj, "X", nil}}})
		units = append(units, u)
	}
	res, err := f.pop.PopulateBatch(context.Background(), units, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Units) != 32 {
		t.Fatalf("results = %d", len(res.Units))
	}
	if n := len(f.named.Names()); n != 32 {
		t.Fatalf("registered names = %d", n)
	}
	if _, err := f.pop.PopulateBatch(context.Background(), []*tree.Unit{{ID: 99, Name: "empty"}}, 0); err == nil {
		t.Fatal("a unit without a tree must fail")
	}
}

func TestPolicyRejectsAll(t *testing.T) {
	f := newFixture()
	g := f.g
	g.spec.ParentPolicy = func(Candidate, []Candidate) int { return -1 }
	spec, _ := g.unit(1, "p.ads", nodeSpec{g.pkg, "P", nil})
	body, _ := g.unit(2, "p.adb", nodeSpec{g.body, "P", nil})
	res, err := f.pop.PopulateBatch(context.Background(), []*tree.Unit{spec, body}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Link.Unresolved) != 1 {
		t.Fatalf("link = %+v", res.Link)
	}
}
