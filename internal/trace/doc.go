// Package trace records what the environment engine is doing: loading and
// parsing units, the two population phases, dynamic environment resolution
// and lookups.
//
// # Usage
//
//	envkit check --trace=- --trace-level=detail src/
//
// # Tracers
//
//   - Nop: zero overhead when tracing is disabled
//   - StreamTracer: writes every event as it happens (text, NDJSON or Chrome)
//   - RingTracer: keeps the last N events in memory for post-mortem dumps
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// Every event carries a Scope. The configured Level decides which scopes are
// emitted:
//
//   - LevelPhase: ScopeDriver and ScopePass (load, populate, resolve)
//   - LevelDetail: adds ScopeUnit (one unit's phase a / phase b)
//   - LevelDebug: adds ScopeField (memoized field evaluations, lookups)
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "populate", 0)
//	defer span.End("")
package trace
