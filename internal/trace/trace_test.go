package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLevelShouldEmit(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeUnit, false},
		{LevelDetail, ScopeUnit, true},
		{LevelDetail, ScopeField, false},
		{LevelDebug, ScopeField, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Fatalf("ParseLevel = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRingTracerWraps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d"} {
		r.Emit(&Event{Kind: KindPoint, Scope: ScopeUnit, Name: name})
	}
	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].Name != "b" || snap[2].Name != "d" {
		t.Fatalf("snapshot = %+v", snap)
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText, ""); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 3 {
		t.Fatalf("dump = %q", buf.String())
	}
	if r.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", r.Dropped())
	}
	if last := r.Last(2); len(last) != 2 || last[0].Name != "c" {
		t.Fatalf("last = %+v", last)
	}
	buf.Reset()
	if err := r.Dump(&buf, FormatText, "d"); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("filtered dump = %q", buf.String())
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatNDJSON)
	ctx := WithTracer(context.Background(), tr)
	ctx, span := Start(ctx, ScopePass, "populate")
	_, child := Start(ctx, ScopeUnit, "unit:Foo")
	child.WithExtra("envs", "3").End("")
	// filtered by level
	Point(tr, ScopeField, "field:fqn", "", span.ID())
	span.End("ok")
	if buf.Len() != 0 {
		t.Fatalf("events must stay buffered until Flush, got %q", buf.String())
	}
	if err := tr.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev["name"] != "unit:Foo" || ev["kind"] != "end" {
		t.Fatalf("event = %v", ev)
	}
	if ev["parent_id"] != float64(span.ID()) {
		t.Fatalf("parent_id = %v, want %d", ev["parent_id"], span.ID())
	}
}

func TestNewWithLevelOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("New = %v, %v", tr, err)
	}
	_, span := Start(WithTracer(context.Background(), tr), ScopeDriver, "check")
	if span.End("") != 0 {
		t.Fatal("nop span must report zero duration")
	}
}

func TestMultiTracerRing(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf, Format: FormatChrome})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := tr.(*MultiTracer)
	if !ok || m.Ring() == nil {
		t.Fatalf("expected multi tracer with ring, got %T", tr)
	}
	Begin(tr, ScopeDriver, "check", 0).End("")
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("chrome output: %v\n%s", err, buf.String())
	}
	if len(doc.TraceEvents) != 2 || len(m.Ring().Snapshot()) != 2 {
		t.Fatalf("events = %d/%d", len(doc.TraceEvents), len(m.Ring().Snapshot()))
	}
}

func TestSpanEndIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatText)
	before := OpenSpans()
	span := Begin(tr, ScopeUnit, "load:main.adb", 0)
	if OpenSpans() != before+1 {
		t.Fatalf("open spans = %d, want %d", OpenSpans(), before+1)
	}
	span.End("")
	span.End("again")
	if OpenSpans() != before {
		t.Fatalf("open spans = %d after End, want %d", OpenSpans(), before)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("got %d lines: %q", n, buf.String())
	}
}

func TestWithTracerKeepsSpan(t *testing.T) {
	ring := NewRingTracer(8, LevelDebug)
	ctx := WithSpanContext(context.Background(), SpanContext{SpanID: 42})
	ctx = WithTracer(ctx, ring)
	if CurrentSpan(ctx).SpanID != 42 || FromContext(ctx) != Tracer(ring) {
		t.Fatalf("context lost tracer or span")
	}
	if FromContext(context.Background()) != Nop {
		t.Fatal("empty context must yield Nop")
	}
}

func TestHeartbeatEmits(t *testing.T) {
	ring := NewRingTracer(64, LevelPhase)
	h := StartHeartbeat(ring, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for len(ring.Snapshot()) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	beats := ring.Snapshot()
	if len(beats) < 3 {
		t.Fatalf("got %d heartbeats", len(beats))
	}
	if beats[0].Kind != KindHeartbeat || beats[0].Extra["open"] == "" {
		t.Fatalf("unexpected event %+v", beats[0])
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Fatal("disabled tracer must not start a heartbeat")
	}
	var nilBeat *Heartbeat
	nilBeat.Stop()
}
