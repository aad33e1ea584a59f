package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"envkit/internal/adalite"
	"envkit/internal/engine"
	"envkit/internal/observ"
	"envkit/internal/project"
)

// workspace is everything a command needs to analyse a set of sources.
type workspace struct {
	lang     *adalite.Language
	engine   *engine.Engine
	manifest *project.Manifest
	dirs     []string
	// units named on the command line; empty means every provided unit
	units   []string
	baseDir string
	cfg     engine.Config
	timer   *observ.Timer
	logger  *log.Logger
	color   bool
	cleanup func()
}

// openWorkspace resolves the source directories for paths (files or
// directories, default "."), loads the project manifest and builds an
// engine over them.
func openWorkspace(cmd *cobra.Command, paths []string) (*workspace, error) {
	flags := cmd.Root().PersistentFlags()
	ws := &workspace{logger: newLogger(cmd), cleanup: func() {}}

	var err error
	if ws.color, err = colorEnabled(cmd); err != nil {
		return nil, err
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}
	var dirs []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			dirs = append(dirs, p)
			continue
		}
		if !adalite.IsSourceFile(p) {
			return nil, fmt.Errorf("%s: not an adalite source (.ads or .adb)", p)
		}
		dirs = append(dirs, filepath.Dir(p))
		ws.units = append(ws.units, filepath.Base(p))
	}

	manifestPath, err := flags.GetString("manifest")
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest flag: %w", err)
	}
	if manifestPath != "" {
		if ws.manifest, err = project.Load(manifestPath); err != nil {
			return nil, err
		}
	} else if m, ok, err := project.Discover(dirs[0]); err != nil {
		return nil, err
	} else if ok {
		ws.manifest = m
	}

	ws.baseDir = dirs[0]
	if ws.manifest != nil {
		ws.baseDir = ws.manifest.Root
		// project sources are searched before the directories of the paths
		sources, err := ws.manifest.SourceDirs()
		if err != nil {
			return nil, err
		}
		dirs = append(sources, dirs...)
		ws.logger.WithFields(log.Fields{
			"manifest": ws.manifest.Path,
			"project":  ws.manifest.Config.Project.Name,
		}).Debug("project manifest loaded")
	}
	ws.dirs = dedupDirs(dirs)

	if err := ws.configure(cmd); err != nil {
		return nil, err
	}
	tracer, cleanup, err := setupTracing(cmd, ws.manifest)
	if err != nil {
		return nil, err
	}
	ws.cfg.Tracer = tracer
	stopProfiling, err := setupProfiling(cmd, ws)
	if err != nil {
		cleanup()
		return nil, err
	}
	ws.cleanup = func() {
		stopProfiling()
		cleanup()
	}

	ws.lang = adalite.NewLanguage()
	ws.engine, err = adalite.NewEngine(ws.cfg, ws.lang, adalite.NewDirProvider(ws.lang, ws.dirs...))
	if err != nil {
		ws.cleanup()
		return nil, err
	}
	ws.logger.WithField("dirs", strings.Join(ws.dirs, ",")).Debug("workspace ready")
	return ws, nil
}

// configure builds the engine configuration: defaults, then the manifest,
// then flags set on the command line.
func (ws *workspace) configure(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	ws.cfg.Logger = ws.logger
	if ws.manifest != nil {
		if err := ws.manifest.Config.Engine.Apply(&ws.cfg); err != nil {
			return fmt.Errorf("%s: %w", ws.manifest.Path, err)
		}
	}
	if flags.Changed("jobs") {
		jobs, err := flags.GetInt("jobs")
		if err != nil {
			return fmt.Errorf("failed to get jobs flag: %w", err)
		}
		ws.cfg.Jobs = jobs
	}
	if flags.Changed("max-diagnostics") {
		maxDiagnostics, err := flags.GetInt("max-diagnostics")
		if err != nil {
			return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
		}
		ws.cfg.MaxDiagnostics = maxDiagnostics
	}
	if flags.Changed("ambiguity") {
		value, err := flags.GetString("ambiguity")
		if err != nil {
			return fmt.Errorf("failed to get ambiguity flag: %w", err)
		}
		if ws.cfg.Ambiguity, err = engine.ParseAmbiguity(value); err != nil {
			return err
		}
	}
	showTimings, err := flags.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	if showTimings {
		ws.timer = observ.NewTimer()
		ws.cfg.Timer = ws.timer
	}
	return nil
}

func dedupDirs(dirs []string) []string {
	seen := make(map[string]struct{}, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		key := filepath.Clean(d)
		if abs, err := filepath.Abs(d); err == nil {
			key = abs
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}

func newLogger(cmd *cobra.Command) *log.Logger {
	logger := log.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(log.WarnLevel)
	if debug, err := cmd.Root().PersistentFlags().GetBool("debug"); err == nil && debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func colorEnabled(cmd *cobra.Command) (bool, error) {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "always":
		return true, nil
	case "off", "never":
		return false, nil
	case "", "auto":
		return isTerminal(os.Stdout) && os.Getenv("NO_COLOR") == "", nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}
