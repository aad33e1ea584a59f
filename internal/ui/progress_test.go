package ui

import (
	"strings"
	"testing"

	"envkit/internal/pipeline"
)

func TestProgressModelTracksUnits(t *testing.T) {
	m := NewProgressModel("check", []string{"a.ads"}, nil).(*progressModel)
	m.Update(eventMsg(pipeline.Event{Unit: "b.adb", Stage: pipeline.StageLoad, Status: pipeline.StatusQueued}))
	m.Update(eventMsg(pipeline.Event{Unit: "a.ads", Stage: pipeline.StageCheck, Status: pipeline.StatusDone}))
	m.Update(eventMsg(pipeline.Event{Stage: pipeline.StageDeps, Status: pipeline.StatusWorking}))

	if len(m.items) != 2 {
		t.Fatalf("items = %+v", m.items)
	}
	if m.items[0].status != "done" || m.items[1].status != "queued" {
		t.Fatalf("statuses = %+v", m.items)
	}
	if m.stageLabel != "ordering" {
		t.Fatalf("stage label = %q", m.stageLabel)
	}
	if got := m.percent(); got != 0.5 {
		t.Fatalf("percent = %v", got)
	}
	view := m.View()
	if !strings.Contains(view, "check (ordering)") || !strings.Contains(view, "b.adb") {
		t.Fatalf("view:\n%s", view)
	}

	m.Update(doneMsg{})
	if !m.done || !strings.Contains(m.View(), "done: check") {
		t.Fatalf("done view:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short.adb", 20, "short.adb"},
		{"a-very-long-unit-name.adb", 10, "a-very-..."},
		{"abcdef", 3, "abc"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
