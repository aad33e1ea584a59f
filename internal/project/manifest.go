package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"envkit/internal/engine"
	"envkit/internal/trace"
)

var (
	// ErrProjectSectionMissing indicates that [project] is missing.
	ErrProjectSectionMissing = errors.New("missing [project]")
	// ErrProjectNameMissing indicates that [project].name is missing.
	ErrProjectNameMissing = errors.New("missing [project].name")
)

// Manifest is a parsed envkit.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

type Config struct {
	Project ProjectSection `toml:"project"`
	Engine  EngineSection  `toml:"engine"`
	Trace   TraceSection   `toml:"trace"`
}

type ProjectSection struct {
	Name string `toml:"name"`
	// Root is the directory source paths are relative to; defaults to the
	// manifest directory.
	Root    string   `toml:"root"`
	Sources []string `toml:"sources"`
}

type EngineSection struct {
	Jobs            int    `toml:"jobs"`
	Ambiguity       string `toml:"ambiguity"`
	CaseInsensitive *bool  `toml:"case_insensitive"`
	MaxDiagnostics  int    `toml:"max_diagnostics"`
}

type TraceSection struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
}

// Load parses and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("project") {
		return nil, fmt.Errorf("%s: %w", path, ErrProjectSectionMissing)
	}
	if !meta.IsDefined("project", "name") || strings.TrimSpace(cfg.Project.Name) == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrProjectNameMissing)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Manifest{Path: path, Root: filepath.Dir(path), Config: cfg}, nil
}

// ManifestName is the file name of a project manifest.
const ManifestName = "envkit.toml"

// Discover finds and loads the manifest governing startDir: the nearest
// envkit.toml in startDir or one of its ancestors. ok is false when there is
// none.
func Discover(startDir string) (m *Manifest, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %q: %w", startDir, err)
	}
	for {
		path := filepath.Join(dir, ManifestName)
		info, statErr := os.Stat(path)
		switch {
		case statErr == nil && info.Mode().IsRegular():
			m, err = Load(path)
			return m, true, err
		case statErr != nil && !errors.Is(statErr, os.ErrNotExist):
			return nil, false, fmt.Errorf("stat %q: %w", path, statErr)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, false, nil
		}
		dir = parent
	}
}

func (c Config) validate() error {
	if c.Engine.Jobs < 0 {
		return fmt.Errorf("[engine].jobs must not be negative, got %d", c.Engine.Jobs)
	}
	if c.Engine.MaxDiagnostics < 0 {
		return fmt.Errorf("[engine].max_diagnostics must not be negative, got %d", c.Engine.MaxDiagnostics)
	}
	if _, err := engine.ParseAmbiguity(c.Engine.Ambiguity); err != nil {
		return fmt.Errorf("[engine].ambiguity: %w", err)
	}
	if c.Trace.Level != "" {
		if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
			return fmt.Errorf("[trace].level: %w", err)
		}
	}
	if c.Trace.Mode != "" {
		if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
			return fmt.Errorf("[trace].mode: %w", err)
		}
	}
	return nil
}

// SourceDirs returns the absolute source directories of the project. With no
// sources listed the project root itself is the only one.
func (m *Manifest) SourceDirs() ([]string, error) {
	root := m.Root
	if r := strings.TrimSpace(m.Config.Project.Root); r != "" {
		root = filepath.Join(m.Root, filepath.FromSlash(r))
	}
	sources := m.Config.Project.Sources
	if len(sources) == 0 {
		sources = []string{"."}
	}
	dirs := make([]string, 0, len(sources))
	for _, s := range sources {
		dir := filepath.Join(root, filepath.FromSlash(s))
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("%s: source directory %q: %w", m.Path, s, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s: source %q is not a directory", m.Path, s)
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// Apply copies the [engine] settings into cfg. Zero values leave cfg as is.
func (s EngineSection) Apply(cfg *engine.Config) error {
	if s.Jobs > 0 {
		cfg.Jobs = s.Jobs
	}
	if s.MaxDiagnostics > 0 {
		cfg.MaxDiagnostics = s.MaxDiagnostics
	}
	if s.Ambiguity != "" {
		policy, err := engine.ParseAmbiguity(s.Ambiguity)
		if err != nil {
			return err
		}
		cfg.Ambiguity = policy
	}
	if s.CaseInsensitive != nil {
		cfg.CaseInsensitive = *s.CaseInsensitive
	}
	return nil
}
