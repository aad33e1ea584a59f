package diagfmt

import (
	"os"
	"path/filepath"
	"strings"

	"envkit/internal/source"
)

func formatPath(f *source.File, mode PathMode, baseDir string) string {
	if f == nil {
		return "<unknown>"
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(f.Path); err == nil {
			return filepath.ToSlash(abs)
		}
		return f.Path
	case PathModeRelative:
		if baseDir == "" {
			baseDir, _ = os.Getwd() //nolint:errcheck // falls back to the raw path
		}
		abs, err := filepath.Abs(f.Path)
		if err != nil || baseDir == "" {
			return f.Path
		}
		rel, err := filepath.Rel(baseDir, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			return f.Path
		}
		return filepath.ToSlash(rel)
	case PathModeBasename:
		return f.BaseName()
	default:
		if filepath.IsAbs(f.Path) {
			return f.BaseName()
		}
		return f.Path
	}
}
