// Package diag defines the diagnostic model shared by the parser, the
// environment population pass and the lookup machinery.
//
// # Purpose
//
//   - Provide deterministic data structures for findings such as unresolved
//     parent scopes, dynamic resolver failures, cyclic field evaluation and
//     ambiguous lookups.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to storage or formatting.
//
// # Scope
//
// Package diag does not perform IO. Rendering lives in internal/diagfmt.
//
// # Emitting diagnostics
//
// Phases report through a diag.Reporter. ReportBuilder (ReportError,
// ReportWarning, ReportInfo) chains WithNote before Emit. BagReporter stores
// into a Bag; LockedReporter serialises reports from units populated in
// parallel; DedupReporter drops repeats.
//
// Recoverable engine conditions (UnresolvedScope, ResolverError,
// AmbiguousLookup) are only ever reported here, never returned as errors.
package diag
