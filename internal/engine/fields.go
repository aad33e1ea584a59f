package engine

import (
	"context"
	"errors"
	"fmt"

	"envkit/internal/diag"
	"envkit/internal/lexenv"
	"envkit/internal/memo"
	"envkit/internal/trace"
	"envkit/internal/tree"
)

// Eval evaluates the field called name on node. Memoized fields go through
// the cache; a cyclic evaluation fails with an error matching memo.ErrCycle.
func (e *Engine) Eval(ctx context.Context, node tree.NodeID, name string) (any, error) {
	ctx, release := e.enter(ctx)
	defer release()
	f, ok := e.field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	n := e.Node(node)
	if n == nil {
		return nil, fmt.Errorf("eval %s of %s: %w", name, node, ErrStaleNode)
	}
	if !e.appliesTo(f.def, n.Kind) {
		return nil, fmt.Errorf("eval %s of %s: %w (%s)", name, node, ErrFieldKind, e.grammar.Kinds.Name(n.Kind))
	}
	top := memo.Depth(ctx) == 0
	v, err := e.evalField(ctx, f, n)
	if err != nil && top && errors.Is(err, memo.ErrCycle) {
		diag.ReportError(e.reporter, diag.EnvCycle, n.Span, fmt.Sprintf("field %q of %s depends on itself", name, e.grammar.Kinds.Name(n.Kind))).Emit()
	}
	return v, err
}

func (e *Engine) evalField(ctx context.Context, f *field, n *tree.Node) (any, error) {
	if !f.def.Memoized {
		return f.def.Compute(ctx, e, n.ID)
	}
	key := memo.Key{Node: n.ID, Field: f.id}
	return e.cache.GetOrCompute(ctx, key, n.Unit, func(ctx context.Context) (any, error) {
		trace.Point(trace.FromContext(ctx), trace.ScopeField, "field:"+f.def.Name, n.ID.String(), trace.CurrentSpan(ctx).SpanID)
		return f.def.Compute(ctx, e, n.ID)
	})
}

// QualifiedName returns the dot-joined qualified name of node, "" for
// anonymous or stale nodes.
func (e *Engine) QualifiedName(ctx context.Context, node tree.NodeID) string {
	v, err := e.Eval(ctx, node, fieldQualifiedName)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func computeQualifiedName(_ context.Context, e *Engine, node tree.NodeID) (any, error) {
	t := e.treeOf(node)
	if t == nil {
		return "", ErrStaleNode
	}
	return e.grammar.Env.QualifiedName(t, node), nil
}

func computeDynamicEnv(ctx context.Context, e *Engine, node tree.NodeID) (any, error) {
	n := e.Node(node)
	if n == nil {
		return nil, ErrStaleNode
	}
	resolve := e.resolverFor(n.Kind)
	if resolve == nil {
		return []lexenv.Association(nil), nil
	}
	assocs, err := resolve(ctx, e, node)
	if err != nil {
		return nil, &ResolverError{Node: node, Field: fieldDynamicEnv, Err: err}
	}
	return assocs, nil
}

// DynamicEnv returns the associations of the dynamic environment node
// introduces. Resolver failures are returned here; lookups see an empty
// environment instead.
func (e *Engine) DynamicEnv(ctx context.Context, node tree.NodeID) ([]lexenv.Association, error) {
	ctx, release := e.enter(ctx)
	defer release()
	n := e.Node(node)
	if n == nil {
		return nil, fmt.Errorf("dynamic env of %s: %w", node, ErrStaleNode)
	}
	return e.dynamicFor(ctx, n)
}

func (e *Engine) dynamicFor(ctx context.Context, n *tree.Node) ([]lexenv.Association, error) {
	f := e.fieldList[e.dynField]
	v, err := e.evalField(ctx, f, n)
	if err != nil {
		e.recordResolverError(n, err)
		return nil, err
	}
	e.clearResolverError(n.ID)
	assocs, _ := v.([]lexenv.Association)
	return assocs, nil
}

// dynamicAssociations feeds lookups: failures degrade to an empty env.
func (e *Engine) dynamicAssociations(ctx context.Context, env lexenv.EnvID) []lexenv.Association {
	snap, ok := e.store.Env(env)
	if !ok || snap.Dead || !snap.Dynamic {
		return nil
	}
	n := e.Node(snap.Owner)
	if n == nil {
		return nil
	}
	assocs, err := e.dynamicFor(ctx, n)
	if err != nil {
		return nil
	}
	return assocs
}

func (e *Engine) recordResolverError(n *tree.Node, err error) {
	code := diag.EnvResolverError
	msg := fmt.Sprintf("dynamic environment of %s: %v", e.grammar.Kinds.Name(n.Kind), err)
	var rerr *ResolverError
	if errors.As(err, &rerr) {
		msg = fmt.Sprintf("dynamic environment of %s: %v", e.grammar.Kinds.Name(n.Kind), rerr.Err)
	}
	if errors.Is(err, memo.ErrCycle) {
		code = diag.EnvCycle
	}
	d := diag.New(diag.SevError, code, n.Span, msg)
	e.resolverMu.Lock()
	_, known := e.resolverDiags[n.ID]
	e.resolverDiags[n.ID] = d
	e.resolverMu.Unlock()
	if !known {
		e.log.WithField("node", n.ID.String()).WithError(err).Debug("dynamic environment failed")
	}
}

func (e *Engine) clearResolverError(node tree.NodeID) {
	e.resolverMu.Lock()
	defer e.resolverMu.Unlock()
	delete(e.resolverDiags, node)
}

func (e *Engine) forgetResolverDiags(t tree.TreeID) {
	e.resolverMu.Lock()
	defer e.resolverMu.Unlock()
	for node := range e.resolverDiags {
		if node.Tree == t {
			delete(e.resolverDiags, node)
		}
	}
}
