package adalite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"envkit/internal/diag"
	"envkit/internal/engine"
	"envkit/internal/tree"
)

// Grammar returns the engine grammar of the language: its kinds, its
// environment specification, the call resolver and the derived fields.
func (l *Language) Grammar() engine.Grammar {
	k := l.Kinds
	return engine.Grammar{
		Name:  "adalite",
		Kinds: k.Set,
		Env:   l.Spec,
		Resolvers: map[tree.Kind]engine.Resolver{
			k.CallExpr: l.resolveCall,
		},
		Fields: []engine.FieldDef{
			{
				Name:     FieldReferencedDecl,
				Kinds:    []tree.Kind{k.Name},
				Memoized: true,
				Compute: func(ctx context.Context, e *engine.Engine, node tree.NodeID) (any, error) {
					def, err := l.ResolveName(ctx, e, node)
					if errors.Is(err, ErrUnresolved) {
						return tree.NoNodeID, nil
					}
					return def, err
				},
			},
			{
				Name:  FieldDesignatedFormal,
				Kinds: []tree.Kind{k.ParamAssoc},
				Compute: func(ctx context.Context, e *engine.Engine, node tree.NodeID) (any, error) {
					return l.DesignatedFormal(ctx, e, node)
				},
			},
		},
	}
}

// NewEngine creates an engine for l reading units from provider.
// Identifiers are case insensitive.
func NewEngine(cfg engine.Config, l *Language, provider engine.Provider) (*engine.Engine, error) {
	cfg.CaseInsensitive = true
	return engine.New(cfg, l.Grammar(), provider)
}

// CheckResult counts what Check looked at.
type CheckResult struct {
	Names      int
	Resolved   int
	Unresolved int
	Calls      int
}

// Check resolves every name of the unit called name and computes every call
// environment. Unresolved names and duplicate declarations are reported to
// the engine.
func (l *Language) Check(ctx context.Context, e *engine.Engine, name string) (CheckResult, error) {
	var res CheckResult
	u, err := e.Load(ctx, name)
	if err != nil {
		return res, err
	}
	k := l.Kinds
	t := u.Tree
	rep := e.Reporter()
	var walkErr error
	t.Walk(t.Root, func(n *tree.Node) bool {
		switch {
		case n.Kind == k.WithClause:
			return false
		case n.Kind == k.UseClause:
			for _, c := range n.Children {
				if cn := t.Get(c); cn != nil && len(e.NamedEnvs(ctx, strings.ToLower(cn.Text))) == 0 {
					res.Unresolved++
					diag.ReportError(rep, diag.EnvUnresolvedName, cn.Span, fmt.Sprintf("package %q is not visible", cn.Text)).Emit()
				}
			}
			return false
		case n.Kind == k.TypeRef:
			if IsPredefinedType(n.Text) {
				return false
			}
		case n.Kind == k.DeclPart || n.Kind == k.PrivatePart:
			l.checkDuplicates(t, n, rep)
		case n.Kind == k.CallExpr:
			res.Calls++
			// failures surface as resolver diagnostics
			_, _ = e.DynamicEnv(ctx, n.ID) //nolint:errcheck
		case n.Kind == k.ParamAssoc && n.Text != "":
			if _, err := e.Eval(ctx, n.ID, FieldDesignatedFormal); err != nil && walkErr == nil {
				walkErr = err
			}
			// the designator is not resolved like an ordinary name
			for _, c := range n.Children[1:] {
				l.checkSubtree(ctx, e, t, c, &res)
			}
			return false
		case k.Set.IsA(n.Kind, k.Name):
			l.checkName(ctx, e, n, &res)
			return false
		}
		return true
	})
	return res, walkErr
}

// checkSubtree resumes the walk of Check below a node it handled itself.
func (l *Language) checkSubtree(ctx context.Context, e *engine.Engine, t *tree.Tree, id tree.NodeID, res *CheckResult) {
	t.Walk(id, func(n *tree.Node) bool {
		if l.Kinds.Set.IsA(n.Kind, l.Kinds.Name) {
			l.checkName(ctx, e, n, res)
			return false
		}
		if n.Kind == l.Kinds.CallExpr {
			res.Calls++
			_, _ = e.DynamicEnv(ctx, n.ID) //nolint:errcheck
		}
		return true
	})
}

func (l *Language) checkName(ctx context.Context, e *engine.Engine, n *tree.Node, res *CheckResult) {
	res.Names++
	v, err := e.Eval(ctx, n.ID, FieldReferencedDecl)
	def, _ := v.(tree.NodeID)
	if err == nil && def.IsValid() {
		res.Resolved++
		return
	}
	res.Unresolved++
	msg := fmt.Sprintf("%q is not visible here", n.Text)
	if err != nil {
		msg = fmt.Sprintf("cannot resolve %q: %v", n.Text, err)
	}
	diag.ReportError(e.Reporter(), diag.EnvUnresolvedName, n.Span, msg).Emit()
}

// checkDuplicates reports object declarations that reuse a name of the
// same declarative part.
func (l *Language) checkDuplicates(t *tree.Tree, part *tree.Node, rep diag.Reporter) {
	seen := make(map[string]*tree.Node)
	for _, c := range part.Children {
		decl := t.Get(c)
		if decl == nil || decl.Kind != l.Kinds.ObjectDecl {
			continue
		}
		for _, d := range decl.Children {
			def := t.Get(d)
			if def == nil || def.Kind != l.Kinds.DefiningName {
				continue
			}
			key := strings.ToLower(def.Text)
			if prev, dup := seen[key]; dup {
				diag.ReportError(rep, diag.EnvDuplicateDecl, def.Span, fmt.Sprintf("%q is already declared in this scope", def.Text)).
					WithNote(prev.Span, "previous declaration").Emit()
				continue
			}
			seen[key] = def
		}
	}
}
