package trace

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Heartbeat periodically emits liveness events carrying the number of open
// spans. A beat is marked stalled when nothing but heartbeats was traced
// since the previous one, which usually means a population waits on itself.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	stop     sync.Once
}

// StartHeartbeat starts emitting on tracer every interval. It returns nil when
// the tracer is disabled or interval is not positive; a nil Heartbeat may be
// stopped.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.run(ctx)
	return h
}

func (h *Heartbeat) run(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var beat, lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		beat++
		stalled := beat > 1 && atomic.LoadUint64(&globalSeq) == lastSeq
		ev := &Event{
			Time:   time.Now(),
			Seq:    NextSeq(),
			Kind:   KindHeartbeat,
			Scope:  ScopeDriver,
			GID:    getGoroutineID(),
			Name:   "heartbeat",
			Detail: "#" + strconv.FormatUint(beat, 10),
			Extra: map[string]string{
				"open": strconv.FormatInt(OpenSpans(), 10),
			},
		}
		if stalled {
			ev.Extra["stalled"] = "true"
		}
		h.tracer.Emit(ev)
		// sinks may renumber the event; remember the counter after it
		lastSeq = atomic.LoadUint64(&globalSeq)
	}
}

// Stop ends the heartbeat goroutine and waits for it.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.stop.Do(func() {
		h.cancel()
		<-h.done
	})
}
