package adalite

import (
	"strings"

	"envkit/internal/lexenv"
	"envkit/internal/ple"
	"envkit/internal/tree"
)

// Metadata keys attached to adalite associations.
const (
	MetaKind     = "kind"
	MetaPrivate  = "private"
	MetaConstant = "constant"
	MetaMode     = "mode"
	MetaFormal   = "formal"
)

// Language bundles the kinds and environment specification of adalite.
type Language struct {
	Kinds *Kinds
	Spec  *ple.Spec
}

// NewLanguage builds the adalite kinds and environment specification.
func NewLanguage() *Language {
	k := NewKinds()
	l := &Language{Kinds: k, Spec: ple.NewSpec(k.Set)}
	s := l.Spec
	s.DeclName = l.declName
	s.CanDefineNamedEnv = func(_ *tree.Tree, n *tree.Node) bool { return l.canDefineNamedEnv(n.Kind) }
	s.ParentPolicy = l.parentPolicy
	s.WithDeps = l.withDeps

	s.On(k.PackageDecl, ple.KindSpec{AddEnv: l.packageDeclEnv, AddToEnv: l.packageDeclName})
	s.On(k.PackageBody, ple.KindSpec{AddEnv: l.bodyEnv, AddToEnv: l.nextPart})
	s.On(k.PackageBodyStub, ple.KindSpec{AddEnv: namedEnv})
	s.On(k.SubpDecl, ple.KindSpec{AddEnv: namedEnv, AddToEnv: l.subpName})
	s.On(k.SubpStub, ple.KindSpec{AddEnv: namedEnv, AddToEnv: l.subpName})
	s.On(k.SubpBody, ple.KindSpec{AddEnv: l.subpBodyEnv, AddToEnv: l.subpBodyDecls})
	s.On(k.ObjectDecl, ple.KindSpec{AddToEnv: l.objectNames})
	s.On(k.ParamSpec, ple.KindSpec{AddToEnv: l.paramNames})
	s.On(k.UseClause, ple.KindSpec{Reference: l.usedPackages})
	s.On(k.CallExpr, ple.KindSpec{AddEnv: func(ple.Visit) (ple.EnvAction, bool) {
		return ple.EnvAction{Dynamic: true}, true
	}})
	return l
}

func (l *Language) canDefineNamedEnv(kind tree.Kind) bool {
	k := l.Kinds
	switch kind {
	case k.PackageDecl, k.PackageBody, k.PackageBodyStub, k.Subunit:
		return true
	}
	return k.Set.IsA(kind, k.SubpBase)
}

// declName is the lower-cased declared name: Ada names are case
// insensitive and qualified names key the registry.
func (l *Language) declName(t *tree.Tree, n *tree.Node) string {
	k := l.Kinds
	switch {
	case n.Kind == k.Subunit:
		if c := t.Get(t.Child(n.ID, 0)); c != nil && k.Set.IsA(c.Kind, k.Name) {
			return strings.ToLower(c.Text)
		}
	case k.Set.IsA(n.Kind, k.BasicDecl):
		if c := t.Get(t.Child(n.ID, 0)); c != nil && c.Kind == k.DefiningName {
			return strings.ToLower(c.Text)
		}
	}
	return ""
}

func (l *Language) parentKind(v ple.Visit) tree.Kind {
	if p := v.Tree.Get(v.Node.Parent); p != nil {
		return p.Kind
	}
	return tree.KindInvalid
}

func (l *Language) isLibraryItem(v ple.Visit) bool {
	return l.parentKind(v) == l.Kinds.CompilationUnit
}

func (l *Language) isSubunitBody(v ple.Visit) bool {
	return l.parentKind(v) == l.Kinds.Subunit
}

func (l *Language) isPrivate(v ple.Visit) bool {
	return l.parentKind(v) == l.Kinds.PrivatePart
}

// splitName returns the parent prefix and the simple name of a possibly
// dotted name.
func splitName(name string) (prefix, simple string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func (l *Language) definingNames(v ple.Visit) []*tree.Node {
	var out []*tree.Node
	for _, c := range v.Node.Children {
		if n := v.Tree.Get(c); n != nil && n.Kind == l.Kinds.DefiningName {
			out = append(out, n)
		}
	}
	return out
}

func namedEnv(ple.Visit) (ple.EnvAction, bool) {
	return ple.EnvAction{Transitive: true, Named: true}, true
}

// packageDeclEnv parents a child library package (Foo.Bar) to its parent
// package through the registry.
func (l *Language) packageDeclEnv(v ple.Visit) (ple.EnvAction, bool) {
	act := ple.EnvAction{Transitive: true, Named: true}
	if l.isLibraryItem(v) {
		if prefix, _ := splitName(v.QualifiedName(v.Node.ID)); prefix != "" {
			act.ParentName = prefix
		}
	}
	return act, true
}

// packageDeclName declares nested packages in their enclosing scope and
// child packages in their parent package. Library-level names are reached
// through the registry instead.
func (l *Language) packageDeclName(v ple.Visit) []ple.Decl {
	names := l.definingNames(v)
	if len(names) == 0 {
		return nil
	}
	meta := lexenv.Metadata{MetaKind: "package", MetaPrivate: l.isPrivate(v)}
	if !l.isLibraryItem(v) {
		return []ple.Decl{{Symbol: names[0].Text, Node: names[0].ID, Meta: meta}}
	}
	prefix, simple := splitName(names[0].Text)
	if prefix == "" {
		return nil
	}
	return []ple.Decl{{Symbol: simple, Node: names[0].ID, Meta: meta, Dest: strings.ToLower(prefix)}}
}

// bodyEnv parents a package body to the declaration it completes.
func (l *Language) bodyEnv(v ple.Visit) (ple.EnvAction, bool) {
	return ple.EnvAction{Transitive: true, Named: true, ParentName: v.QualifiedName(v.Node.ID)}, true
}

// nextPart records a body as the completion of the entity of the same
// qualified name.
func (l *Language) nextPart(v ple.Visit) []ple.Decl {
	fqn := v.QualifiedName(v.Node.ID)
	if fqn == "" {
		return nil
	}
	return []ple.Decl{{Symbol: ple.NextPart, Node: v.Node.ID, Dest: fqn, Meta: lexenv.Metadata{MetaKind: "body"}}}
}

func (l *Language) subpName(v ple.Visit) []ple.Decl {
	names := l.definingNames(v)
	if len(names) == 0 || l.isLibraryItem(v) {
		return nil
	}
	meta := lexenv.Metadata{MetaKind: "subprogram", MetaPrivate: l.isPrivate(v)}
	return []ple.Decl{{Symbol: names[0].Text, Node: names[0].ID, Meta: meta}}
}

// subpBodyEnv parents a separate body to its stub through the registry;
// other bodies nest syntactically.
func (l *Language) subpBodyEnv(v ple.Visit) (ple.EnvAction, bool) {
	act := ple.EnvAction{Transitive: true, Named: true}
	if l.isSubunitBody(v) {
		act.ParentName = v.QualifiedName(v.Node.ID)
	}
	return act, true
}

// subpBodyDecls declares the body unless its stub already did, and fills
// the completion slot of its declaration.
func (l *Language) subpBodyDecls(v ple.Visit) []ple.Decl {
	var out []ple.Decl
	if !l.isSubunitBody(v) {
		out = l.subpName(v)
	}
	return append(out, l.nextPart(v)...)
}

func (l *Language) objectNames(v ple.Visit) []ple.Decl {
	names := l.definingNames(v)
	out := make([]ple.Decl, 0, len(names))
	for _, n := range names {
		out = append(out, ple.Decl{Symbol: n.Text, Node: n.ID, Meta: lexenv.Metadata{
			MetaKind:     "object",
			MetaConstant: v.Node.Text == "constant",
			MetaPrivate:  l.isPrivate(v),
		}})
	}
	return out
}

func (l *Language) paramNames(v ple.Visit) []ple.Decl {
	names := l.definingNames(v)
	out := make([]ple.Decl, 0, len(names))
	for _, n := range names {
		out = append(out, ple.Decl{Symbol: n.Text, Node: n.ID, Meta: lexenv.Metadata{
			MetaKind: "param",
			MetaMode: v.Node.Text,
		}})
	}
	return out
}

func (l *Language) usedPackages(v ple.Visit) []string {
	var out []string
	for _, c := range v.Node.Children {
		if n := v.Tree.Get(c); n != nil && l.Kinds.Set.IsA(n.Kind, l.Kinds.Name) {
			out = append(out, strings.ToLower(n.Text))
		}
	}
	return out
}

// parentPolicy: package bodies attach to their package declaration (or
// stub), separate subprogram bodies to their stub (or declaration), child
// packages to their parent package. Bodies never parent bodies.
func (l *Language) parentPolicy(req ple.Candidate, candidates []ple.Candidate) int {
	k := l.Kinds
	var prefer []tree.Kind
	switch req.Kind {
	case k.PackageBody:
		prefer = []tree.Kind{k.PackageDecl, k.PackageBodyStub}
	case k.SubpBody:
		prefer = []tree.Kind{k.SubpStub, k.SubpDecl}
	case k.PackageDecl:
		prefer = []tree.Kind{k.PackageDecl}
	default:
		return ple.FirstCandidate(req, candidates)
	}
	for _, kind := range prefer {
		for i, c := range candidates {
			if c.Kind == kind {
				return i
			}
		}
	}
	return -1
}

// withDeps lists the with'ed units, their parents, the parent of a child
// unit and the parent of a subunit.
func (l *Language) withDeps(t *tree.Tree) []string {
	k := l.Kinds
	seen := make(map[string]struct{})
	var deps []string
	add := func(name string) {
		name = strings.ToLower(name)
		for name != "" {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				deps = append(deps, name)
			}
			name, _ = splitName(name)
		}
	}
	root := t.Get(t.Root)
	if root == nil {
		return nil
	}
	for _, c := range root.Children {
		item := t.Get(c)
		if item == nil {
			continue
		}
		if item.Kind == k.Subunit {
			if name := t.Get(t.Child(item.ID, 0)); name != nil {
				add(name.Text)
			}
			if body := t.Get(t.Child(item.ID, 1)); body != nil {
				item = body
			}
		} else if def := t.Get(t.Child(item.ID, 0)); def != nil && def.Kind == k.DefiningName {
			if prefix, _ := splitName(def.Text); prefix != "" {
				add(prefix)
			}
		}
		for _, cc := range item.Children {
			clause := t.Get(cc)
			if clause == nil || clause.Kind != k.WithClause {
				continue
			}
			for _, nc := range clause.Children {
				if n := t.Get(nc); n != nil {
					add(n.Text)
				}
			}
		}
	}
	return deps
}
