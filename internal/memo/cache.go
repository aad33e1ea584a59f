package memo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"envkit/internal/tree"
)

// FieldID identifies a cached field.
type FieldID uint16

// Key addresses one cache entry.
type Key struct {
	Node  tree.NodeID
	Field FieldID
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Node, k.Field)
}

// State is the lifecycle state of an entry.
type State uint8

const (
	Unset State = iota
	InProgress
	Value
	Error
)

func (s State) String() string {
	switch s {
	case Unset:
		return "unset"
	case InProgress:
		return "in-progress"
	case Value:
		return "value"
	case Error:
		return "error"
	default:
		return "invalid"
	}
}

// ErrCycle is matched by every *CycleError.
var ErrCycle = errors.New("cyclic field evaluation")

// CycleError reports a reentrant request for Key. Stack lists the keys being
// evaluated on the offending call stack, outermost first.
type CycleError struct {
	Key   Key
	Stack []Key
}

func (e *CycleError) Error() string {
	if len(e.Stack) == 0 {
		return fmt.Sprintf("%v: %s", ErrCycle, e.Key)
	}
	parts := make([]string, len(e.Stack))
	for i, k := range e.Stack {
		parts[i] = k.String()
	}
	return fmt.Sprintf("%v: %s (via %s)", ErrCycle, e.Key, strings.Join(parts, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Stats counts cache activity.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Cycles        uint64
	Invalidations uint64
}

type entry struct {
	state State
	value any
	err   error
	epoch uint64
}

// flight is one running computation of a key under one epoch.
type flight struct {
	key   Key
	epoch uint64
	owner *chain
	entry *entry
	done  chan struct{}

	// guarded by Cache.mu
	cycled   bool
	finished bool

	// written before done is closed
	value any
	err   error
}

// chain is one logical evaluation stack. It runs its own computations one at
// a time and blocks only while waiting for a flight of another chain.
type chain struct {
	// guarded by Cache.mu
	waiting *flight
	at      *frame
}

type flightKey struct {
	key   Key
	epoch uint64
}

// Cache is the per-engine field cache. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	flights map[flightKey]*flight
	byUnit  map[tree.UnitID]map[Key]struct{}
	epoch   uint64
	stats   Stats
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[Key]*entry),
		flights: make(map[flightKey]*flight),
		byUnit:  make(map[tree.UnitID]map[Key]struct{}),
	}
}

// ComputeFunc evaluates a field. ctx carries the evaluation stack and must be
// passed to nested GetOrCompute calls.
type ComputeFunc func(ctx context.Context) (any, error)

// GetOrCompute returns the cached result of key, computing it at most once
// per epoch. unit is the unit owning key.Node.
//
// A request that would wait, directly or through other stacks, on a key its
// own stack is computing fails with a *CycleError instead.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, unit tree.UnitID, compute ComputeFunc) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	top := topFrame(ctx)

	c.mu.Lock()
	if f := top.find(key); f != nil {
		markFrames(top, f.flight)
		c.stats.Cycles++
		c.mu.Unlock()
		return nil, &CycleError{Key: key, Stack: Stack(ctx)}
	}
	if v, err, ok := c.doneLocked(key); ok {
		c.stats.Hits++
		c.mu.Unlock()
		return v, err
	}
	if fl := c.flights[flightKey{key, c.epoch}]; fl != nil {
		return c.joinLocked(ctx, top, fl)
	}
	fl := c.startLocked(key, unit, top)
	c.mu.Unlock()
	return c.run(ctx, fl, compute)
}

func (c *Cache) doneLocked(key Key) (any, error, bool) {
	e := c.entries[key]
	if e == nil || e.epoch != c.epoch {
		return nil, nil, false
	}
	switch e.state {
	case Value:
		return e.value, nil, true
	case Error:
		return nil, e.err, true
	}
	return nil, nil, false
}

func (c *Cache) startLocked(key Key, unit tree.UnitID, top *frame) *flight {
	c.stats.Misses++
	owner := top.chainOf()
	if owner == nil {
		owner = &chain{}
	}
	e := &entry{state: InProgress, epoch: c.epoch}
	c.entries[key] = e
	keys := c.byUnit[unit]
	if keys == nil {
		keys = make(map[Key]struct{})
		c.byUnit[unit] = keys
	}
	keys[key] = struct{}{}
	fl := &flight{key: key, epoch: c.epoch, owner: owner, entry: e, done: make(chan struct{})}
	c.flights[flightKey{key, c.epoch}] = fl
	return fl
}

// joinLocked waits for another chain's flight. It is called with c.mu held
// and releases it.
func (c *Cache) joinLocked(ctx context.Context, top *frame, fl *flight) (any, error) {
	me := top.chainOf()
	if c.waitCycleLocked(me, top, fl) {
		c.stats.Cycles++
		c.mu.Unlock()
		return nil, &CycleError{Key: fl.key, Stack: Stack(ctx)}
	}
	c.stats.Hits++
	if me != nil {
		me.waiting, me.at = fl, top
	}
	c.mu.Unlock()

	var err error
	select {
	case <-fl.done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if me != nil {
		c.mu.Lock()
		me.waiting, me.at = nil, nil
		c.mu.Unlock()
	}
	if err != nil {
		return nil, err
	}
	return fl.value, fl.err
}

// waitCycleLocked follows the wait-for edges starting at fl. When they lead
// back to me, every flight on the cycle is marked and true is returned.
func (c *Cache) waitCycleLocked(me *chain, top *frame, fl *flight) bool {
	if me == nil {
		// an empty stack computes nothing another chain could wait on
		return false
	}
	var path []*flight
	seen := make(map[*chain]struct{})
	for cur := fl; cur != nil && !cur.finished; cur = cur.owner.waiting {
		path = append(path, cur)
		if cur.owner == me {
			for _, p := range path {
				at := p.owner.at
				if p.owner == me {
					at = top
				}
				markFrames(at, p)
			}
			return true
		}
		if _, ok := seen[cur.owner]; ok {
			return false
		}
		seen[cur.owner] = struct{}{}
	}
	return false
}

// markFrames flags the flights from the top of a stack down to target.
func markFrames(top *frame, target *flight) {
	for f := top; f != nil; f = f.parent {
		f.flight.cycled = true
		if f.flight == target {
			return
		}
	}
}

func (c *Cache) run(ctx context.Context, fl *flight, compute ComputeFunc) (any, error) {
	defer func() {
		if r := recover(); r != nil {
			c.finish(ctx, fl, nil, fmt.Errorf("memo: %s: panic: %v", fl.key, r))
			panic(r)
		}
	}()
	v, err := compute(push(ctx, fl))
	return c.finish(ctx, fl, v, err)
}

func (c *Cache) finish(ctx context.Context, fl *flight, v any, err error) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fl.cycled {
		var cyc *CycleError
		if !errors.As(err, &cyc) {
			err = &CycleError{Key: fl.key, Stack: Stack(ctx)}
		}
	}
	if err != nil {
		v = nil
	}
	e := fl.entry
	if c.entries[fl.key] == e {
		switch {
		case e.epoch != c.epoch:
			// invalidated while computing: hand the result out, do not keep it
			delete(c.entries, fl.key)
		case err != nil:
			e.state, e.err = Error, err
		default:
			e.state, e.value = Value, v
		}
	}
	fk := flightKey{fl.key, fl.epoch}
	if c.flights[fk] == fl {
		delete(c.flights, fk)
	}
	fl.finished = true
	fl.value, fl.err = v, err
	close(fl.done)
	return v, err
}

// State returns the state of key under the current epoch.
func (c *Cache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil || e.epoch != c.epoch {
		return Unset
	}
	return e.state
}

// InvalidateUnit drops every entry keyed by a node of unit and bumps the
// epoch so values derived from it elsewhere are recomputed.
func (c *Cache) InvalidateUnit(unit tree.UnitID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for key := range c.byUnit[unit] {
		if _, ok := c.entries[key]; ok {
			delete(c.entries, key)
			dropped++
		}
	}
	delete(c.byUnit, unit)
	c.epoch++
	c.stats.Invalidations++
	c.sweepLocked()
	return dropped
}

// sweepLocked forgets entries of older epochs; they can never be served again.
func (c *Cache) sweepLocked() {
	for key, e := range c.entries {
		if e.epoch != c.epoch && e.state != InProgress {
			delete(c.entries, key)
		}
	}
}

// Epoch returns the current invalidation epoch.
func (c *Cache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Get is a typed wrapper around GetOrCompute.
func Get[T any](ctx context.Context, c *Cache, key Key, unit tree.UnitID, compute func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.GetOrCompute(ctx, key, unit, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("memo: %s holds %T, want %T", key, v, zero)
	}
	return typed, nil
}
