package adalite

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"envkit/internal/engine"
	"envkit/internal/lexenv"
	"envkit/internal/tree"
)

// Field names the adalite grammar registers.
const (
	FieldReferencedDecl   = "referenced-decl"
	FieldDesignatedFormal = "designated-formal"
)

var (
	// ErrUnresolved is returned for names without a visible declaration.
	ErrUnresolved = errors.New("unresolved name")
	// ErrNotPackage is returned when a dotted name selects from a non-package.
	ErrNotPackage = errors.New("prefix does not denote a package")
	// ErrNotCallable is returned when a call names something that is not a
	// subprogram.
	ErrNotCallable = errors.New("name does not denote a subprogram")
)

var predefinedTypes = map[string]struct{}{
	"integer":   {},
	"natural":   {},
	"positive":  {},
	"boolean":   {},
	"character": {},
	"string":    {},
	"float":     {},
}

// IsPredefinedType reports whether name is one of the built-in type names.
func IsPredefinedType(name string) bool {
	_, ok := predefinedTypes[strings.ToLower(name)]
	return ok
}

// EnvFor returns the environment a name is resolved in. Expressions inside
// call arguments resolve in the environment of the outermost call, not in
// the dynamic environment of the call that holds them.
func (l *Language) EnvFor(ctx context.Context, e *engine.Engine, ref tree.NodeID) (lexenv.EnvID, error) {
	t := e.Tree(ref)
	if t == nil {
		return lexenv.NoEnvID, fmt.Errorf("env of %s: %w", ref, engine.ErrStaleNode)
	}
	k := l.Kinds
	at := ref
	for n := t.Get(t.Get(ref).Parent); n != nil; n = t.Get(n.Parent) {
		if !k.Set.IsA(n.Kind, k.Expr) && n.Kind != k.ParamAssoc {
			break
		}
		if n.Kind == k.CallExpr {
			at = n.ID
		}
	}
	return e.NodeEnv(ctx, at)
}

func (l *Language) nameParts(t *tree.Tree, n *tree.Node) []*tree.Node {
	if n.Kind == l.Kinds.Identifier {
		return []*tree.Node{n}
	}
	var parts []*tree.Node
	for _, c := range n.Children {
		if cn := t.Get(c); cn != nil {
			parts = append(parts, cn)
		}
	}
	return parts
}

// ResolveName returns the defining name a simple or dotted name designates.
// The first component is looked up from the name's environment with
// sequential visibility, falling back to library units; further components
// are selected from the named environments of the package denoted so far,
// private declarations excluded.
func (l *Language) ResolveName(ctx context.Context, e *engine.Engine, name tree.NodeID) (tree.NodeID, error) {
	t := e.Tree(name)
	n := t.Get(name)
	if n == nil {
		return tree.NoNodeID, fmt.Errorf("resolve %s: %w", name, engine.ErrStaleNode)
	}
	if !l.Kinds.Set.IsA(n.Kind, l.Kinds.Name) {
		return tree.NoNodeID, fmt.Errorf("resolve %s: not a name", name)
	}
	parts := l.nameParts(t, n)
	if len(parts) == 0 {
		return tree.NoNodeID, fmt.Errorf("resolve %s: %w", name, ErrUnresolved)
	}
	env, err := l.EnvFor(ctx, e, name)
	if err != nil {
		return tree.NoNodeID, err
	}

	first := parts[0]
	opts := lexenv.LookupOptions{Sequential: &lexenv.Position{Unit: n.Unit, At: first.Range.Start}}
	var (
		target tree.NodeID
		scope  string
	)
	if a, ok := e.GetFirst(ctx, env, first.Text, opts, first.ID); ok {
		target = a.Node
	} else if unit := strings.ToLower(first.Text); len(e.NamedEnvs(ctx, unit)) > 0 {
		scope = unit
	} else {
		return tree.NoNodeID, fmt.Errorf("%w: %s", ErrUnresolved, first.Text)
	}

	for _, part := range parts[1:] {
		if scope == "" {
			if scope, err = l.packageScope(ctx, e, target); err != nil {
				return tree.NoNodeID, err
			}
		}
		found := false
		public := lexenv.LookupOptions{Local: true, Filter: func(a lexenv.Association) bool {
			return !a.Meta.Bool(MetaPrivate)
		}}
		for _, env := range l.scopeEnvs(ctx, e, scope) {
			if a, ok := e.GetFirst(ctx, env, part.Text, public, part.ID); ok {
				target, found = a.Node, true
				break
			}
		}
		if !found {
			if child := scope + "." + strings.ToLower(part.Text); len(e.NamedEnvs(ctx, child)) > 0 {
				target, scope = tree.NoNodeID, child
				continue
			}
			return tree.NoNodeID, fmt.Errorf("%w: %s.%s", ErrUnresolved, scope, part.Text)
		}
		scope = ""
	}
	if !target.IsValid() {
		return l.unitName(ctx, e, scope)
	}
	return target, nil
}

// scopeEnvs returns the environments registered under scope, package
// declarations first, so selections see the visible part before a body.
func (l *Language) scopeEnvs(ctx context.Context, e *engine.Engine, scope string) []lexenv.EnvID {
	envs := e.NamedEnvs(ctx, scope)
	isDecl := func(env lexenv.EnvID) bool {
		snap, ok := e.Store().Env(env)
		if !ok {
			return false
		}
		n := e.Node(snap.Owner)
		return n != nil && n.Kind == l.Kinds.PackageDecl
	}
	slices.SortStableFunc(envs, func(a, b lexenv.EnvID) int {
		switch da, db := isDecl(a), isDecl(b); {
		case da && !db:
			return -1
		case db && !da:
			return 1
		}
		return 0
	})
	return envs
}

// packageScope returns the qualified name of the package target declares.
func (l *Language) packageScope(ctx context.Context, e *engine.Engine, target tree.NodeID) (string, error) {
	def := e.Node(target)
	if def == nil {
		return "", fmt.Errorf("select from %s: %w", target, engine.ErrStaleNode)
	}
	decl := e.Node(def.Parent)
	if decl == nil || decl.Kind != l.Kinds.PackageDecl {
		return "", fmt.Errorf("%w: %s", ErrNotPackage, def.Text)
	}
	return e.QualifiedName(ctx, decl.ID), nil
}

// unitName returns the defining name of the package declaration registered
// under qualifiedName.
func (l *Language) unitName(ctx context.Context, e *engine.Engine, qualifiedName string) (tree.NodeID, error) {
	for _, env := range e.NamedEnvs(ctx, qualifiedName) {
		snap, ok := e.Store().Env(env)
		if !ok {
			continue
		}
		owner := e.Node(snap.Owner)
		if owner == nil || owner.Kind != l.Kinds.PackageDecl {
			continue
		}
		if t := e.Tree(owner.ID); t != nil {
			return t.Child(owner.ID, 0), nil
		}
	}
	return tree.NoNodeID, fmt.Errorf("%w: %s", ErrUnresolved, qualifiedName)
}

// DeclOf returns the declaration a defining name belongs to.
func (l *Language) DeclOf(e *engine.Engine, def tree.NodeID) *tree.Node {
	n := e.Node(def)
	if n == nil || n.Kind != l.Kinds.DefiningName {
		return nil
	}
	return e.Node(n.Parent)
}

type formal struct {
	name *tree.Node
}

func (l *Language) formals(e *engine.Engine, subp *tree.Node) []formal {
	t := e.Tree(subp.ID)
	var out []formal
	for _, c := range subp.Children {
		spec := t.Get(c)
		if spec == nil || spec.Kind != l.Kinds.ParamSpec {
			continue
		}
		for _, d := range spec.Children {
			if dn := t.Get(d); dn != nil && dn.Kind == l.Kinds.DefiningName {
				out = append(out, formal{name: dn})
			}
		}
	}
	return out
}

// resolveCall computes the dynamic environment of a call: each formal
// parameter of the called subprogram maps to the actual expression passed
// for it. A callee without a visible declaration is a resolver error.
func (l *Language) resolveCall(ctx context.Context, e *engine.Engine, call tree.NodeID) ([]lexenv.Association, error) {
	t := e.Tree(call)
	callee := t.Child(call, 0)
	def, err := l.ResolveName(ctx, e, callee)
	if err != nil {
		return nil, fmt.Errorf("callee: %w", err)
	}
	subp := l.DeclOf(e, def)
	if subp == nil || !l.Kinds.Set.IsA(subp.Kind, l.Kinds.SubpBase) {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, t.Get(callee).Text)
	}
	formals := l.formals(e, subp)

	var out []lexenv.Association
	used := make([]bool, len(formals))
	pos := 0
	for _, c := range t.Get(call).Children[1:] {
		assoc := t.Get(c)
		if assoc == nil || assoc.Kind != l.Kinds.ParamAssoc || len(assoc.Children) == 0 {
			continue
		}
		actual := assoc.Children[len(assoc.Children)-1]
		idx := -1
		if assoc.Text == "" {
			idx, pos = pos, pos+1
			if idx >= len(formals) {
				return nil, fmt.Errorf("too many arguments in call to %s (%d expected)", t.Get(callee).Text, len(formals))
			}
		} else {
			for i, f := range formals {
				if strings.EqualFold(f.name.Text, assoc.Text) {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, fmt.Errorf("%s has no parameter %q", t.Get(callee).Text, assoc.Text)
			}
		}
		if used[idx] {
			return nil, fmt.Errorf("parameter %q of %s given twice", formals[idx].name.Text, t.Get(callee).Text)
		}
		used[idx] = true
		f := formals[idx].name
		out = append(out, e.Dep(f.Text, actual, lexenv.Metadata{MetaFormal: f.ID}))
	}
	return out, nil
}

// DesignatedFormal returns the formal parameter a named association
// designates, looked up in the dynamic environment of its call.
func (l *Language) DesignatedFormal(ctx context.Context, e *engine.Engine, assoc tree.NodeID) (tree.NodeID, error) {
	n := e.Node(assoc)
	if n == nil || n.Kind != l.Kinds.ParamAssoc {
		return tree.NoNodeID, fmt.Errorf("designated formal of %s: not a parameter association", assoc)
	}
	if n.Text == "" {
		return tree.NoNodeID, nil
	}
	env, err := e.ChildrenEnv(ctx, n.Parent)
	if err != nil {
		return tree.NoNodeID, err
	}
	a, ok := e.GetFirst(ctx, env, n.Text, lexenv.LookupOptions{Local: true}, n.ID)
	if !ok {
		return tree.NoNodeID, nil
	}
	f, _ := a.Meta[MetaFormal].(tree.NodeID)
	return f, nil
}
