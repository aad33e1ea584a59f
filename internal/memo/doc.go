// Package memo implements the lazy/memoized field cache.
//
// Every derived value of the engine (dynamic environment contents, qualified
// names, user-declared memoized fields) goes through Cache.GetOrCompute,
// keyed by (node, field). An entry moves Unset -> InProgress -> Value|Error
// and stays there until the unit owning the node is invalidated.
//
// The logical call stack travels in the context.Context handed to compute
// functions. Requesting a key that is already on the caller's stack is a
// cycle: the request fails with a *CycleError without running the compute
// function again, and the outer evaluation of that key is stored as an Error
// whatever it returns, as is every evaluation between the two requests.
//
// Requests for the same key coming from different stacks share a single
// computation; unrelated keys evaluate concurrently. Each running computation
// records the stack that owns it and the flight that stack is waiting for, so
// two stacks waiting on each other are reported as a cycle instead of
// blocking forever. A stack is one goroutine of evaluation: compute functions
// that fan out must not evaluate fields from the spawned goroutines.
//
// Invalidation drops the entries of one unit and bumps a global epoch. Entries
// computed under an older epoch are recomputed on their next request, which
// covers values of other units derived from the invalidated one. A request
// made after an invalidation never joins a computation started before it.
package memo
