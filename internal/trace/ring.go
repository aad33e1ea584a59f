package trace

import (
	"io"
	"strings"
	"sync"
)

// RingTracer keeps the most recent events in memory. It is meant to be
// dumped when a run fails or hangs.
type RingTracer struct {
	mu    sync.RWMutex
	buf   []Event
	total uint64 // events ever stored
	level Level
}

// NewRingTracer creates a ring holding up to capacity events (4096 when not
// positive).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

// Emit stores a copy of ev, overwriting the oldest event when full.
func (t *RingTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	stored := *ev
	stored.Seq = NextSeq()

	t.mu.Lock()
	t.buf[t.total%uint64(len(t.buf))] = stored
	t.total++
	t.mu.Unlock()
}

// Snapshot returns the stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	return t.Last(len(t.buf))
}

// Last returns up to n of the newest events, oldest first.
func (t *RingTracer) Last(n int) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	size := uint64(len(t.buf))
	count := min(t.total, size, uint64(max(n, 0)))
	out := make([]Event, 0, count)
	for i := t.total - count; i < t.total; i++ {
		out = append(out, t.buf[i%size])
	}
	return out
}

// Dropped reports how many events were overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if size := uint64(len(t.buf)); t.total > size {
		return t.total - size
	}
	return 0
}

// Dump writes the stored events to w. A non-empty prefix keeps only events
// whose name starts with it, e.g. "load:main.adb".
func (t *RingTracer) Dump(w io.Writer, format Format, prefix string) error {
	for _, ev := range t.Snapshot() {
		if prefix != "" && !strings.HasPrefix(ev.Name, prefix) {
			continue
		}
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error { return nil }

func (t *RingTracer) Close() error { return nil }

func (t *RingTracer) Level() Level { return t.level }

func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
