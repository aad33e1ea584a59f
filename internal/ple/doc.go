// Package ple populates lexical environments.
//
// A grammar describes its scoping through a Spec: a table of KindSpec hooks
// indexed by node kind, plus grammar-wide predicates (which nodes define named
// environments, how a node's declared name is spelled, how to choose among
// several environments registered under one name).
//
// Population is two-phase. Phase (a), PopulateUnit, walks one unit in
// pre-order (deferred nodes after their siblings), creates environments,
// records declarations in insertion order and collects the unit's
// registrations, which are published to the registry in one step. Phase (b),
// Link, runs once all units of a batch finished phase (a) and resolves named
// parent links across units. Links that stay unresolved are reported and
// retried by every later Link.
package ple
