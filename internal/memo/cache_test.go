package memo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"envkit/internal/tree"
)

func key(i uint32, f FieldID) Key {
	return Key{Node: tree.NodeID{Tree: 1, Index: i}, Field: f}
}

func TestGetOrComputeRunsOnce(t *testing.T) {
	c := NewCache()
	var calls atomic.Int32
	compute := func(context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	}
	for range 3 {
		v, err := c.GetOrCompute(context.Background(), key(1, 0), 1, compute)
		if err != nil || v != "v" {
			t.Fatalf("got (%v, %v)", v, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("compute ran %d times", calls.Load())
	}
	if st := c.Stats(); st.Hits != 2 || st.Misses != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if c.State(key(1, 0)) != Value {
		t.Fatalf("state = %s", c.State(key(1, 0)))
	}
}

func TestErrorsAreCached(t *testing.T) {
	c := NewCache()
	boom := errors.New("boom")
	var calls int
	compute := func(context.Context) (any, error) {
		calls++
		return nil, boom
	}
	for range 2 {
		if _, err := c.GetOrCompute(context.Background(), key(1, 0), 1, compute); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
	}
	if calls != 1 || c.State(key(1, 0)) != Error {
		t.Fatalf("calls = %d, state = %s", calls, c.State(key(1, 0)))
	}
}

func TestSelfCycle(t *testing.T) {
	c := NewCache()
	k := key(1, 0)
	var inner error
	var compute ComputeFunc
	compute = func(ctx context.Context) (any, error) {
		_, inner = c.GetOrCompute(ctx, k, 1, compute)
		// swallowing the cycle must not turn the outer result into a value
		return 42, nil
	}
	_, err := c.GetOrCompute(context.Background(), k, 1, compute)

	var cyc *CycleError
	if !errors.As(inner, &cyc) || cyc.Key != k {
		t.Fatalf("inner err = %v", inner)
	}
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("outer err = %v, want cycle", err)
	}
	if c.State(k) != Error {
		t.Fatalf("state = %s, want error", c.State(k))
	}
	if _, err := c.GetOrCompute(context.Background(), k, 1, compute); !errors.Is(err, ErrCycle) {
		t.Fatalf("cached err = %v", err)
	}
}

func TestTransitiveCycleReportsStack(t *testing.T) {
	c := NewCache()
	a, b := key(1, 0), key(2, 0)
	var fa, fb ComputeFunc
	fa = func(ctx context.Context) (any, error) { return c.GetOrCompute(ctx, b, 1, fb) }
	fb = func(ctx context.Context) (any, error) { return c.GetOrCompute(ctx, a, 1, fa) }

	_, err := c.GetOrCompute(context.Background(), a, 1, fa)
	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("err = %v", err)
	}
	if len(cyc.Stack) != 2 || cyc.Stack[0] != a || cyc.Stack[1] != b {
		t.Fatalf("stack = %v", cyc.Stack)
	}
	if c.State(a) != Error || c.State(b) != Error {
		t.Fatalf("states = %s/%s", c.State(a), c.State(b))
	}
}

func TestCycleMarksIntermediateFields(t *testing.T) {
	c := NewCache()
	a, b := key(1, 0), key(2, 0)
	var fa, fb ComputeFunc
	// both fields swallow the failure of their dependency
	fa = func(ctx context.Context) (any, error) {
		c.GetOrCompute(ctx, b, 1, fb)
		return "a", nil
	}
	fb = func(ctx context.Context) (any, error) {
		c.GetOrCompute(ctx, a, 1, fa)
		return "b", nil
	}

	if _, err := c.GetOrCompute(context.Background(), a, 1, fa); !errors.Is(err, ErrCycle) {
		t.Fatalf("err = %v, want cycle", err)
	}
	if c.State(a) != Error || c.State(b) != Error {
		t.Fatalf("states = %s/%s, want error/error", c.State(a), c.State(b))
	}
	if _, err := c.GetOrCompute(context.Background(), b, 1, fb); !errors.Is(err, ErrCycle) {
		t.Fatalf("cached b = %v", err)
	}
}

func TestCycleAcrossGoroutines(t *testing.T) {
	c := NewCache()
	a, b := key(1, 0), key(2, 0)
	var started sync.WaitGroup
	started.Add(2)
	both := make(chan struct{})
	go func() {
		started.Wait()
		close(both)
	}()
	dependOn := func(other Key) ComputeFunc {
		return func(ctx context.Context) (any, error) {
			started.Done()
			<-both
			// the inner failure is swallowed on purpose
			c.GetOrCompute(ctx, other, 1, func(context.Context) (any, error) {
				t.Error("a key owned by the other goroutine was computed twice")
				return nil, nil
			})
			return 1, nil
		}
	}

	errs := make(chan error, 2)
	go func() {
		_, err := c.GetOrCompute(context.Background(), a, 1, dependOn(b))
		errs <- err
	}()
	go func() {
		_, err := c.GetOrCompute(context.Background(), b, 1, dependOn(a))
		errs <- err
	}()
	for range 2 {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrCycle) {
				t.Fatalf("err = %v, want cycle", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("mutually dependent fields blocked each other")
		}
	}
	if c.State(a) != Error || c.State(b) != Error {
		t.Fatalf("states = %s/%s", c.State(a), c.State(b))
	}
}

func TestJoinedRequestHonorsCancel(t *testing.T) {
	c := NewCache()
	release := make(chan struct{})
	started := make(chan struct{})
	go c.GetOrCompute(context.Background(), key(1, 0), 1, func(context.Context) (any, error) {
		close(started)
		<-release
		return 1, nil
	})
	<-started
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.GetOrCompute(ctx, key(1, 0), 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	close(release)
}

func TestConcurrentRequestsShareComputation(t *testing.T) {
	c := NewCache()
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}
	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.GetOrCompute(context.Background(), key(1, 0), 1, compute)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if calls.Load() != 1 {
		t.Fatalf("compute ran %d times", calls.Load())
	}
	for i, r := range results {
		if r != 7 {
			t.Fatalf("result %d = %v", i, r)
		}
	}
}

func TestInvalidateUnit(t *testing.T) {
	c := NewCache()
	var calls int
	compute := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}
	c.GetOrCompute(context.Background(), key(1, 0), 1, compute)
	c.GetOrCompute(context.Background(), key(2, 0), 2, compute)

	epoch := c.Epoch()
	if n := c.InvalidateUnit(1); n != 1 {
		t.Fatalf("dropped %d entries", n)
	}
	if c.Epoch() != epoch+1 {
		t.Fatal("epoch must advance")
	}
	if c.State(key(1, 0)) != Unset || c.State(key(2, 0)) != Unset {
		t.Fatal("entries of the old epoch must read as unset")
	}
	v, _ := c.GetOrCompute(context.Background(), key(1, 0), 1, compute)
	if v != 3 {
		t.Fatalf("recomputed value = %v, want 3", v)
	}
}

func TestRequestAfterInvalidateDoesNotJoinStaleComputation(t *testing.T) {
	c := NewCache()
	k := key(1, 0)
	started := make(chan struct{})
	release := make(chan struct{})
	old := make(chan any, 1)
	go func() {
		v, _ := c.GetOrCompute(context.Background(), k, 1, func(context.Context) (any, error) {
			close(started)
			<-release
			return "old", nil
		})
		old <- v
	}()
	<-started
	c.InvalidateUnit(1)

	v, err := c.GetOrCompute(context.Background(), k, 1, func(context.Context) (any, error) {
		return "new", nil
	})
	if err != nil || v != "new" {
		t.Fatalf("after invalidate = (%v, %v), want new", v, err)
	}
	close(release)
	if v := <-old; v != "old" {
		t.Fatalf("request made before invalidate = %v", v)
	}
	// the stale computation must not overwrite the fresh entry
	v, _ = c.GetOrCompute(context.Background(), k, 1, func(context.Context) (any, error) {
		return "again", nil
	})
	if v != "new" {
		t.Fatalf("cached = %v, want new", v)
	}
}

func TestTypedGet(t *testing.T) {
	c := NewCache()
	s, err := Get(context.Background(), c, key(1, 0), 1, func(context.Context) (string, error) {
		return "Foo.Bar", nil
	})
	if err != nil || s != "Foo.Bar" {
		t.Fatalf("Get = %q, %v", s, err)
	}
	if _, err := Get(context.Background(), c, key(1, 0), 1, func(context.Context) (int, error) {
		return 0, nil
	}); err == nil {
		t.Fatal("type mismatch must fail")
	}
}

func TestStackHelpers(t *testing.T) {
	ctx := push(push(context.Background(), &flight{key: key(1, 0)}), &flight{key: key(2, 0)})
	if Depth(ctx) != 2 {
		t.Fatalf("depth = %d", Depth(ctx))
	}
	if st := Stack(ctx); st[0] != key(1, 0) || st[1] != key(2, 0) {
		t.Fatalf("stack = %v", st)
	}
	if Stack(context.Background()) != nil {
		t.Fatal("empty context has no stack")
	}
}
