package engine

import (
	"context"
	"fmt"

	"envkit/internal/diag"
	"envkit/internal/lexenv"
	"envkit/internal/ple"
	"envkit/internal/source"
	"envkit/internal/tree"
)

// callHooks binds the lookup hooks to the context of one engine call.
type callHooks struct {
	e   *Engine
	ctx context.Context
}

func (h callHooks) EnsureNamed(name string) { h.e.ensureNamed(h.ctx, name) }

func (h callHooks) DynamicAssociations(env lexenv.EnvID) []lexenv.Association {
	return h.e.dynamicAssociations(h.ctx, env)
}

func (h callHooks) SelectParent(env lexenv.EnvID, candidates []lexenv.EnvID) lexenv.EnvID {
	return h.e.pop.SelectParent(env, candidates)
}

func (h callHooks) NodeRange(node tree.NodeID) source.Range {
	if n := h.e.Node(node); n != nil {
		return n.Range
	}
	return source.Range{}
}

func (e *Engine) lookuper(ctx context.Context) lexenv.Lookuper {
	return lexenv.Lookuper{Store: e.store, Named: e.named, Hooks: callHooks{e: e, ctx: ctx}}
}

// describeEnv tells the parent policy what owns env.
func (e *Engine) describeEnv(env lexenv.EnvID) ple.Candidate {
	c := ple.Candidate{Env: env}
	snap, ok := e.store.Env(env)
	if !ok {
		return c
	}
	c.Owner, c.Unit = snap.Owner, snap.Unit
	if n := e.Node(snap.Owner); n != nil {
		c.Kind = n.Kind
	}
	return c
}

// ChildrenEnv returns the environment node introduces for its descendants,
// or the nearest ancestor's. Dynamic environments are resolved eagerly so that
// resolver failures surface as diagnostics; the environment is returned
// either way.
func (e *Engine) ChildrenEnv(ctx context.Context, node tree.NodeID) (lexenv.EnvID, error) {
	ctx, release := e.enter(ctx)
	defer release()
	t := e.treeOf(node)
	if t.Get(node) == nil {
		return lexenv.NoEnvID, fmt.Errorf("children env of %s: %w", node, ErrStaleNode)
	}
	for id := node; id.IsValid(); id = t.Get(id).Parent {
		if env, ok := e.store.ChildrenEnvOf(id); ok {
			if snap, live := e.store.Env(env); live && snap.Dynamic {
				e.dynamicAssociations(ctx, env)
			}
			return env, nil
		}
	}
	return e.store.Root(), nil
}

// NodeEnv returns the environment node itself is visible in: its named-parent
// override when one was linked, else the children env of its parent.
func (e *Engine) NodeEnv(ctx context.Context, node tree.NodeID) (lexenv.EnvID, error) {
	ctx, release := e.enter(ctx)
	defer release()
	n := e.Node(node)
	if n == nil {
		return lexenv.NoEnvID, fmt.Errorf("node env of %s: %w", node, ErrStaleNode)
	}
	if env, ok := e.store.NodeEnvOf(node); ok {
		if snap, live := e.store.Env(env); live && !snap.Dead {
			return env, nil
		}
	}
	if !n.Parent.IsValid() {
		return e.store.Root(), nil
	}
	return e.ChildrenEnv(ctx, n.Parent)
}

// Get returns the declarations of name visible from env, innermost first.
func (e *Engine) Get(ctx context.Context, env lexenv.EnvID, name string, opts lexenv.LookupOptions) []lexenv.Association {
	ctx, release := e.enter(ctx)
	defer release()
	// interned even when unseen: the walk may load the unit declaring it
	symbol := e.strings.Intern(name)
	return e.lookuper(ctx).Get(env, symbol, opts)
}

// GetFirst returns the innermost declaration of name visible from env. When
// several match, the ambiguity policy decides whether a diagnostic is
// reported at from (a reference node, or NoNodeID for the env owner).
func (e *Engine) GetFirst(ctx context.Context, env lexenv.EnvID, name string, opts lexenv.LookupOptions, from tree.NodeID) (lexenv.Association, bool) {
	ctx, release := e.enter(ctx)
	defer release()
	symbol := e.strings.Intern(name)
	first, count, found := e.lookuper(ctx).GetFirst(env, symbol, opts)
	if found && count > 1 && e.cfg.Ambiguity != AmbiguityIgnore {
		e.reportAmbiguity(env, name, count, first, from)
	}
	return first, found
}

func (e *Engine) reportAmbiguity(env lexenv.EnvID, name string, count int, first lexenv.Association, from tree.NodeID) {
	at := from
	if !at.IsValid() {
		if snap, ok := e.store.Env(env); ok {
			at = snap.Owner
		}
	}
	var span source.Span
	if n := e.Node(at); n != nil {
		span = n.Span
	}
	msg := fmt.Sprintf("%q has %d declarations in the same scope; using the first", name, count)
	var b *diag.ReportBuilder
	if e.cfg.Ambiguity == AmbiguityError {
		b = diag.ReportError(e.reporter, diag.EnvAmbiguousLookup, span, msg)
	} else {
		b = diag.ReportWarning(e.reporter, diag.EnvAmbiguousLookup, span, msg)
	}
	if n := e.Node(first.Node); n != nil {
		b.WithNote(n.Span, "selected declaration")
	}
	b.Emit()
}

// Resolve looks up the identifier text of ref from the environment ref is
// visible in. Declarations of ref's own unit are only visible once they end
// before ref.
func (e *Engine) Resolve(ctx context.Context, ref tree.NodeID) (lexenv.Association, bool) {
	ctx, release := e.enter(ctx)
	defer release()
	n := e.Node(ref)
	if n == nil || n.Text == "" {
		return lexenv.Association{}, false
	}
	env, err := e.NodeEnv(ctx, ref)
	if err != nil {
		return lexenv.Association{}, false
	}
	opts := lexenv.LookupOptions{Sequential: &lexenv.Position{Unit: n.Unit, At: n.Range.Start}}
	return e.GetFirst(ctx, env, n.Text, opts, ref)
}

// Dep builds an association for dynamic environment resolvers.
func (e *Engine) Dep(symbol string, node tree.NodeID, meta lexenv.Metadata) lexenv.Association {
	return lexenv.Dep(e.strings.Intern(symbol), node, meta)
}

// NamedEnvs returns the live environments registered under qualifiedName,
// loading the units that contribute to it first.
func (e *Engine) NamedEnvs(ctx context.Context, qualifiedName string) []lexenv.EnvID {
	ctx, release := e.enter(ctx)
	defer release()
	e.ensureNamed(ctx, qualifiedName)
	var out []lexenv.EnvID
	for _, id := range e.named.Lookup(qualifiedName) {
		if snap, ok := e.store.Env(id); ok && !snap.Dead {
			out = append(out, id)
		}
	}
	return out
}

// Reporter returns the reporter front-ends use for their own diagnostics.
// Diagnostics reported against a unit's file are dropped when the unit is
// reparsed or disposed.
func (e *Engine) Reporter() diag.Reporter { return e.reporter }
