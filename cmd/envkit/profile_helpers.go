package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"envkit/internal/prof"
)

// setupProfiling starts the profilers requested by the persistent flags. The
// returned stop function is safe to call more than once.
func setupProfiling(cmd *cobra.Command, ws *workspace) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	var cfg prof.Config
	var err error
	if cfg.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if cfg.Mem, err = flags.GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if cfg.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !cfg.Enabled() {
		return func() {}, nil
	}
	session, err := prof.Start(cfg)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := session.Stop(); err != nil {
			ws.logger.WithError(err).Warn("failed to write profiles")
		}
	}, nil
}
