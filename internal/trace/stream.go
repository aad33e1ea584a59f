package trace

import (
	"bufio"
	"io"
	"sync"
)

// StreamTracer writes events to a buffered writer as they arrive. The buffer
// is flushed on Flush, on Close and after every heartbeat, so a hung run
// still shows its last events.
type StreamTracer struct {
	mu     sync.Mutex
	out    io.Writer
	bw     *bufio.Writer
	level  Level
	format Format
	count  int
	closed bool
}

// NewStreamTracer creates a StreamTracer writing to w.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	t := &StreamTracer{out: w, bw: bufio.NewWriter(w), level: level, format: format}
	if format == FormatChrome {
		_, _ = t.bw.WriteString("{\"traceEvents\":[\n") //nolint:errcheck
	}
	return t
}

// Emit formats and buffers ev. Write errors are dropped: tracing never fails
// a run.
func (t *StreamTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	ev.Seq = NextSeq()
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.format == FormatChrome && t.count > 0 {
		_, _ = t.bw.WriteString(",\n") //nolint:errcheck
	}
	t.count++
	_, _ = t.bw.Write(data) //nolint:errcheck
	if ev.Kind == KindHeartbeat {
		_ = t.bw.Flush() //nolint:errcheck
	}
}

// Flush writes buffered events, then flushes the underlying writer when it
// supports it.
func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked()
}

func (t *StreamTracer) flushLocked() error {
	if err := t.bw.Flush(); err != nil {
		return err
	}
	if f, ok := t.out.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close terminates the Chrome document, flushes and closes the writer if it
// is an io.Closer. Later events are dropped.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.format == FormatChrome {
		_, _ = t.bw.WriteString("\n]}\n") //nolint:errcheck
	}
	if err := t.flushLocked(); err != nil {
		return err
	}
	if c, ok := t.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level { return t.level }

func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
