package testkit

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"fortio.org/safecast"

	"envkit/internal/engine"
	"envkit/internal/source"
	"envkit/internal/tree"
)

// CheckSpanInvariants runs a minimal set of span invariants on a parsed tree:
// 1) parent/child links form a tree
// 2) every node span points into the root's file and lies within its content
// 3) the root span covers every node span
// 4) every resolved range agrees with the byte span
func CheckSpanInvariants(t *tree.Tree, fs *source.FileSet) error {
	if t == nil || fs == nil {
		return fmt.Errorf("nil tree or file set")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	root := t.Get(t.Root)
	if root == nil {
		return fmt.Errorf("tree %d has no root", t.ID)
	}
	sf := fs.Get(root.Span.File)
	if sf == nil {
		return fmt.Errorf("root span points to unknown file %d", root.Span.File)
	}
	lenContent, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}

	var errs []error
	t.Walk(t.Root, func(n *tree.Node) bool {
		sp := n.Span
		switch {
		case sp.File != sf.ID:
			errs = append(errs, fmt.Errorf("%s span file mismatch: got=%d want=%d", n.ID, sp.File, sf.ID))
		case sp.End < sp.Start:
			errs = append(errs, fmt.Errorf("%s span is inverted: %v", n.ID, sp))
		case sp.End > lenContent:
			errs = append(errs, fmt.Errorf("%s span end beyond content: %d > %d", n.ID, sp.End, lenContent))
		case !root.Span.ContainsSpan(sp):
			errs = append(errs, fmt.Errorf("%s span %v is outside root span %v", n.ID, sp, root.Span))
		}
		if want := fs.Resolve(sp); n.Range != want {
			errs = append(errs, fmt.Errorf("%s range %s does not match span (want %s)", n.ID, n.Range, want))
		}
		return true
	})
	return errors.Join(errs...)
}

// CheckEnvInvariants verifies the live environment graph of e:
// 1) static parents and referenced environments are live
// 2) every named environment is registered under its name
// 3) every local association points to a node of a current tree
func CheckEnvInvariants(ctx context.Context, e *engine.Engine) error {
	store := e.Store()
	var errs []error
	for _, id := range store.Live() {
		env, ok := store.Env(id)
		if !ok {
			continue
		}
		if env.ParentName == "" && env.Parent.IsValid() {
			if p, ok := store.Env(env.Parent); !ok || p.Dead {
				errs = append(errs, fmt.Errorf("env %d: parent %d is not live", id, env.Parent))
			}
		}
		for _, ref := range env.Refs {
			if r, ok := store.Env(ref); !ok || r.Dead {
				errs = append(errs, fmt.Errorf("env %d: referenced env %d is not live", id, ref))
			}
		}
		if env.Name != "" && !slices.Contains(e.Registry().Lookup(env.Name), id) {
			errs = append(errs, fmt.Errorf("env %d: not registered under %q", id, env.Name))
		}
		for _, a := range store.LocalTable(id).All() {
			if e.Node(a.Node) == nil {
				name, _ := e.Strings().Lookup(a.Symbol)
				errs = append(errs, fmt.Errorf("env %d: %q points to stale node %s", id, name, a.Node))
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}
