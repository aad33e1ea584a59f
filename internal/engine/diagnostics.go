package engine

import (
	"fmt"
	"slices"

	"envkit/internal/diag"
	"envkit/internal/tree"
)

// Diagnostics returns every diagnostic the engine currently stands by:
// reported ones, plus unresolved parent scopes and failing dynamic
// environments as of now. Diagnostics of reparsed or disposed units are gone.
func (e *Engine) Diagnostics() []diag.Diagnostic {
	unresolved := e.pop.Unresolved()

	e.resolverMu.Lock()
	resolver := make([]diag.Diagnostic, 0, len(e.resolverDiags))
	for node, d := range e.resolverDiags {
		if e.treeOf(node) != nil {
			resolver = append(resolver, d)
		}
	}
	e.resolverMu.Unlock()

	out := diag.NewBag(e.bag.Len() + len(unresolved) + len(resolver) + 1)
	out.Merge(e.bag)
	for _, u := range unresolved {
		d := diag.New(diag.SevWarning, diag.EnvUnresolvedScope, u.Span,
			fmt.Sprintf("parent scope %q cannot be found; names resolve from the root", u.Name))
		out.Add(d)
	}
	for _, d := range resolver {
		out.Add(d)
	}
	out.Sort()
	out.Dedup()
	return out.Items()
}

// HasErrors reports whether Diagnostics holds an error.
func (e *Engine) HasErrors() bool {
	return slices.ContainsFunc(e.Diagnostics(), func(d diag.Diagnostic) bool {
		return d.Severity >= diag.SevError
	})
}

// UnitDiagnostics filters Diagnostics down to the file of one unit.
func (e *Engine) UnitDiagnostics(u *tree.Unit) []diag.Diagnostic {
	if u == nil {
		return nil
	}
	return slices.DeleteFunc(e.Diagnostics(), func(d diag.Diagnostic) bool {
		return d.Primary.File != u.File
	})
}
