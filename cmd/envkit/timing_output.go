package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"envkit/internal/observ"
	"envkit/internal/pipeline"
)

// printStageTimings renders the pipeline stages and the engine phases as a
// table. Engine phases are listed only when a timer recorded them.
func printStageTimings(out io.Writer, timings pipeline.Timings, report observ.Report, colored bool) {
	if out == nil {
		return
	}
	t := table.New().Border(lipgloss.NormalBorder()).Headers("phase", "ms", "note")
	if colored {
		header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
		t = t.StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return lipgloss.NewStyle()
		})
	}
	for _, stage := range []pipeline.Stage{pipeline.StageLoad, pipeline.StageCheck, pipeline.StageDeps} {
		if timings.Has(stage) {
			t.Row(string(stage), fmt.Sprintf("%.1f", toMillis(timings.Duration(stage))), "")
		}
	}
	for _, phase := range report.Phases {
		t.Row("engine/"+phase.Name, fmt.Sprintf("%.1f", phase.DurationMS), phase.Note)
	}
	total := timings.Sum(pipeline.StageLoad, pipeline.StageCheck, pipeline.StageDeps)
	t.Row("total", fmt.Sprintf("%.1f", toMillis(total)), "")
	fmt.Fprintln(out, t.Render())
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
