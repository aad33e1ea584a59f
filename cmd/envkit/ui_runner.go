package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"envkit/internal/pipeline"
	"envkit/internal/ui"
)

// progressView decides whether check shows the progress view. value is the
// --ui flag; auto turns the view on for pretty output on a terminal.
func progressView(value, format string, tty bool) (bool, error) {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "", "auto":
		return tty && format == "pretty", nil
	case "on":
		if format != "pretty" {
			return false, fmt.Errorf("--ui=on needs --format pretty, got %q", format)
		}
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

type checkOutcome struct {
	result pipeline.CheckResult
	err    error
}

func runCheckWithUI(ctx context.Context, title string, units []string, req *pipeline.CheckRequest) (pipeline.CheckResult, error) {
	if req == nil {
		return pipeline.CheckResult{}, fmt.Errorf("missing check request")
	}
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = pipeline.ChannelSink{Ch: events}
		res, err := pipeline.Check(ctx, &reqCopy)
		outcomeCh <- checkOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, units, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// the model stops reading when the program fails
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
