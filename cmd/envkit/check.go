package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"envkit/internal/diag"
	"envkit/internal/diagfmt"
	"envkit/internal/pipeline"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [file.ads|file.adb|directory]...",
	Short: "Resolve every name of adalite sources",
	Long: `Load adalite sources, build their lexical environments, resolve every name
and compute every call environment. With no arguments the current directory
(or the project described by envkit.toml) is checked.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().String("ui", "off", "show a progress view (auto|on|off)")
	checkCmd.Flags().Bool("no-warnings", false, "ignore warnings in diagnostics")
	checkCmd.Flags().String("min-severity", "info", "lowest severity shown (info|warning|error)")
	checkCmd.Flags().Bool("warnings-as-errors", false, "treat warnings as errors")
	checkCmd.Flags().Bool("with-notes", true, "include diagnostic notes in output")
	checkCmd.Flags().Int("context", 1, "source lines shown above each diagnostic")
	checkCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
}

// runCheck executes the "check" command. It returns an error when the run
// could not complete or when the diagnostics hold an error.
func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	tty := isTerminal(os.Stdout) && os.Getenv("TERM") != "dumb"
	showProgress, err := progressView(uiValue, format, tty)
	if err != nil {
		return err
	}
	noWarnings, err := cmd.Flags().GetBool("no-warnings")
	if err != nil {
		return fmt.Errorf("failed to get no-warnings flag: %w", err)
	}
	warningsAsErrors, err := cmd.Flags().GetBool("warnings-as-errors")
	if err != nil {
		return fmt.Errorf("failed to get warnings-as-errors flag: %w", err)
	}
	if noWarnings && warningsAsErrors {
		return fmt.Errorf("no-warnings and warnings-as-errors flags cannot be used together")
	}
	minValue, err := cmd.Flags().GetString("min-severity")
	if err != nil {
		return fmt.Errorf("failed to get min-severity flag: %w", err)
	}
	minSeverity, err := diag.ParseSeverity(minValue)
	if err != nil {
		return err
	}
	if noWarnings {
		minSeverity = max(minSeverity, diag.SevError)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	contextLines, err := cmd.Flags().GetInt("context")
	if err != nil {
		return fmt.Errorf("failed to get context flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}

	ws, err := openWorkspace(cmd, args)
	if err != nil {
		return err
	}
	defer ws.cleanup()

	req := &pipeline.CheckRequest{
		Engine: ws.engine,
		Lang:   ws.lang,
		Units:  ws.units,
		Jobs:   ws.cfg.Jobs,
		Logger: ws.logger,
	}
	var res pipeline.CheckResult
	if showProgress {
		res, err = runCheckWithUI(cmd.Context(), "envkit check", ws.units, req)
	} else {
		res, err = pipeline.Check(cmd.Context(), req)
	}
	if err != nil {
		return err
	}

	diags := diag.AtLeast(ws.engine.Diagnostics(), minSeverity)
	pathMode := diagfmt.PathModeRelative
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		opts := diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         pathMode,
			BaseDir:          ws.baseDir,
			IncludeNotes:     withNotes,
		}
		if err := diagfmt.JSON(out, diags, ws.engine.Files(), opts); err != nil {
			return err
		}
	default:
		opts := diagfmt.PrettyOpts{
			Color:     ws.color,
			Context:   int8(min(max(contextLines, 0), 8)), //nolint:gosec // clamped above
			PathMode:  pathMode,
			BaseDir:   ws.baseDir,
			ShowNotes: withNotes,
		}
		diagfmt.Pretty(out, diags, ws.engine.Files(), opts)
		if len(diags) > 0 {
			fmt.Fprintln(out)
		}
		printSummary(cmd, res, diags, ws.color)
	}
	if ws.timer != nil {
		printStageTimings(cmd.ErrOrStderr(), res.Timings, ws.timer.Report(), ws.color)
	}

	errorsCount, warnings := countSeverities(diags)
	switch {
	case res.LoadErr != nil:
		return res.LoadErr
	case errorsCount > 0:
		return fmt.Errorf("%d error(s)", errorsCount)
	case warningsAsErrors && warnings > 0:
		return fmt.Errorf("%d warning(s) treated as errors", warnings)
	}
	return nil
}

func printSummary(cmd *cobra.Command, res pipeline.CheckResult, diags []diag.Diagnostic, colored bool) {
	var names, resolved, unresolved, calls int
	for _, u := range res.Units {
		names += u.Result.Names
		resolved += u.Result.Resolved
		unresolved += u.Result.Unresolved
		calls += u.Result.Calls
	}
	errorsCount, warnings := countSeverities(diags)

	status := color.New(color.FgGreen, color.Bold)
	if errorsCount > 0 {
		status = color.New(color.FgRed, color.Bold)
	}
	if colored {
		status.EnableColor()
	} else {
		status.DisableColor()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d unit(s): %d of %d name(s) resolved, %d unresolved, %d call(s); %d error(s), %d warning(s)\n",
		status.Sprint("checked"), len(res.Units), resolved, names, unresolved, calls, errorsCount, warnings)
	if len(res.Cycles) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "with cycle: %s\n", strings.Join(res.Cycles, ", "))
	}
}

func countSeverities(diags []diag.Diagnostic) (errorsCount, warnings int) {
	for _, d := range diags {
		switch {
		case d.Severity >= diag.SevError:
			errorsCount++
		case d.Severity == diag.SevWarning:
			warnings++
		}
	}
	return errorsCount, warnings
}
