package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"envkit/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "envkit",
	Short:         "Lexical environment and name resolution toolkit",
	Long:          `envkit loads adalite sources, builds their lexical environments and resolves every name`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// main registers subcommands and persistent flags, then executes the root
// command. A failing command exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(envsCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 0, "maximum number of diagnostics to keep (0 = manifest or default)")
	rootCmd.PersistentFlags().Int("jobs", 0, "max parallel workers (0 = manifest or one per unit)")
	rootCmd.PersistentFlags().String("ambiguity", "", "policy for ambiguous lookups (ignore|warn|error)")
	rootCmd.PersistentFlags().String("manifest", "", "path to envkit.toml (default: discovered from the source path)")
	rootCmd.PersistentFlags().Bool("debug", false, "log engine activity to stderr")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "ring buffer capacity for ring trace mode")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit a heartbeat trace event at this interval (0 disables)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to this file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
