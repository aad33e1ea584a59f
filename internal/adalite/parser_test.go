package adalite

import (
	"testing"

	"envkit/internal/diag"
	"envkit/internal/source"
	"envkit/internal/testkit"
	"envkit/internal/tree"
)

func parseString(t *testing.T, name, src string) (*Kinds, *tree.Tree, *diag.Bag) {
	t.Helper()
	k := NewKinds()
	fs := source.NewFileSet()
	f := fs.Get(fs.AddVirtual(name, []byte(src)))
	bag := diag.NewBag(20)
	res := Parse(k, fs, f, 1, 1, diag.BagReporter{Bag: bag})
	if err := res.Tree.Validate(); err != nil {
		t.Fatalf("invalid tree: %v", err)
	}
	if res.Clean != (bag.Len() == 0) {
		t.Fatalf("Clean = %v with %d diagnostics", res.Clean, bag.Len())
	}
	if res.Clean {
		if err := testkit.CheckSpanInvariants(res.Tree, fs); err != nil {
			t.Fatalf("span invariants: %v", err)
		}
	}
	return k, res.Tree, bag
}

// shape renders the kinds of a subtree in pre-order.
func shape(k *Kinds, t *tree.Tree, id tree.NodeID) []string {
	var out []string
	t.Walk(id, func(n *tree.Node) bool {
		out = append(out, k.Set.Name(n.Kind))
		return true
	})
	return out
}

func childKinds(k *Kinds, t *tree.Tree, id tree.NodeID) []string {
	var out []string
	for _, c := range t.Get(id).Children {
		out = append(out, k.Set.Name(t.Get(c).Kind))
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParsePackageSpec(t *testing.T) {
	k, tr, bag := parseString(t, "foo.ads", `
with Bar;
package Foo is
   X, Y : Integer := 1;
   procedure P (A : in Integer; B : out Integer);
   function F return Integer;
private
   Z : constant Integer := 2;
end Foo;
`)
	if bag.Len() != 0 {
		t.Fatalf("diagnostics: %s", diag.FormatShortDiagnostics(bag.Items(), nil, false))
	}
	root := tr.Get(tr.Root)
	if root.Kind != k.CompilationUnit || len(root.Children) != 1 {
		t.Fatalf("root = %s with %d children", k.Set.Name(root.Kind), len(root.Children))
	}
	pkg := root.Children[0]
	if got, want := childKinds(k, tr, pkg), []string{"defining_name", "with_clause", "decl_part", "private_part"}; !equal(got, want) {
		t.Fatalf("package children = %v, want %v", got, want)
	}
	decls := tr.Child(pkg, 2)
	if got, want := childKinds(k, tr, decls), []string{"object_decl", "subp_decl", "subp_decl"}; !equal(got, want) {
		t.Fatalf("decl part = %v, want %v", got, want)
	}
	obj := tr.Get(tr.Child(decls, 0))
	if got, want := childKinds(k, tr, obj.ID), []string{"defining_name", "defining_name", "type_ref", "int_literal"}; !equal(got, want) {
		t.Fatalf("object decl = %v, want %v", got, want)
	}
	proc := tr.Child(decls, 1)
	params := tr.Get(tr.Child(proc, 2))
	if params.Kind != k.ParamSpec || params.Text != "out" {
		t.Fatalf("second param = %s %q", k.Set.Name(params.Kind), params.Text)
	}
	priv := tr.Get(tr.Child(tr.Child(pkg, 3), 0))
	if priv.Text != "constant" {
		t.Fatalf("private object text = %q", priv.Text)
	}
}

func TestParseBodiesAndStubs(t *testing.T) {
	k, tr, bag := parseString(t, "foo.adb", `
package body Foo is
   procedure Q is separate;
   package body Inner is separate;
   procedure P (A : Integer; B : out Integer) is
      T : Integer;
   begin
      T := A + 1 * 2;
      Q;
      B := F (T, X => 2);
   end P;
begin
   null;
end Foo;
`)
	if bag.Len() != 0 {
		t.Fatalf("diagnostics: %s", diag.FormatShortDiagnostics(bag.Items(), nil, false))
	}
	body := tr.Child(tr.Root, 0)
	if got, want := childKinds(k, tr, body), []string{"defining_name", "decl_part", "handled_stmts"}; !equal(got, want) {
		t.Fatalf("body children = %v, want %v", got, want)
	}
	decls := tr.Child(body, 1)
	if got, want := childKinds(k, tr, decls), []string{"subp_body_stub", "package_body_stub", "subp_body"}; !equal(got, want) {
		t.Fatalf("decls = %v, want %v", got, want)
	}
	stmts := tr.Child(tr.Child(decls, 2), 4)
	want := []string{
		"handled_stmts",
		"assign_stmt", "identifier", "bin_op", "bin_op", "identifier", "int_literal", "int_literal",
		"call_stmt", "call_expr", "identifier",
		"assign_stmt", "identifier", "call_expr", "identifier",
		"param_assoc", "identifier",
		"param_assoc", "identifier", "int_literal",
	}
	if got := shape(k, tr, stmts); !equal(got, want) {
		t.Fatalf("statements =\n%v\nwant\n%v", got, want)
	}
}

func TestParseSubunit(t *testing.T) {
	k, tr, bag := parseString(t, "foo-q.adb", `
separate (Foo)
procedure Q is
begin
   null;
end Q;
`)
	if bag.Len() != 0 {
		t.Fatalf("diagnostics: %v", bag.Items())
	}
	sub := tr.Get(tr.Child(tr.Root, 0))
	if sub.Kind != k.Subunit {
		t.Fatalf("item = %s", k.Set.Name(sub.Kind))
	}
	if got, want := childKinds(k, tr, sub.ID), []string{"identifier", "subp_body"}; !equal(got, want) {
		t.Fatalf("subunit children = %v, want %v", got, want)
	}
}

func TestParseRecoversFromErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diag.Code
	}{
		{"missing semicolon", "package Foo is\n X : Integer\nend Foo;", diag.SynExpectSemicolon},
		{"end name mismatch", "package Foo is\nend Bar;", diag.SynEndNameMismatch},
		{"bad statement", "procedure P is\nbegin\n := 1;\nend P;", diag.SynUnexpectedToken},
		{"truncated", "package Foo is\n X : Integer;", diag.SynUnexpectedEOF},
		{"no unit", "X : Integer;", diag.SynUnexpectedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, bag := parseString(t, "bad.adb", tt.src)
			if len(bag.WithCode(tt.code)) == 0 {
				t.Fatalf("missing %s in %v", tt.code.ID(), bag.Items())
			}
		})
	}
}

func TestParseRanges(t *testing.T) {
	_, tr, _ := parseString(t, "p.adb", "procedure P is\n   X : Integer;\nbegin\n   null;\nend P;\n")
	body := tr.Get(tr.Child(tr.Root, 0))
	if body.Range.Start != (source.Point{Line: 1, Column: 1}) || body.Range.End != (source.Point{Line: 5, Column: 7}) {
		t.Fatalf("body range = %s", body.Range)
	}
	obj := tr.Get(tr.Child(tr.Child(body.ID, 1), 0))
	if obj.Range.Start != (source.Point{Line: 2, Column: 4}) {
		t.Fatalf("object range = %s", obj.Range)
	}
}

func TestImports(t *testing.T) {
	k, tr, _ := parseString(t, "main.adb", "with Foo.Bar, Util;\nuse Util;\nwith Log;\nprocedure Main is\nbegin\n   null;\nend Main;\n")
	l := &Language{Kinds: k}
	got := l.Imports(tr)
	var names []string
	for _, imp := range got {
		names = append(names, imp.Name)
	}
	if want := []string{"foo.bar", "util", "log"}; !equal(names, want) {
		t.Fatalf("imports = %v, want %v", names, want)
	}
	if got[0].Span.Start != 5 || got[0].Span.End != 12 {
		t.Fatalf("span of foo.bar = %v", got[0].Span)
	}
	if SpecFile("Foo.Bar") != "foo-bar.ads" {
		t.Fatalf("SpecFile = %q", SpecFile("Foo.Bar"))
	}
}
