package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"envkit/internal/engine"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src", "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := writeManifest(t, dir, `
[project]
name = "demo"
root = "src"
sources = [".", "lib"]

[engine]
jobs = 4
ambiguity = "error"
case_insensitive = false
max_diagnostics = 20

[trace]
level = "phase"
mode = "ring"
`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Root != dir || m.Config.Project.Name != "demo" {
		t.Fatalf("manifest = %+v", m)
	}
	dirs, err := m.SourceDirs()
	if err != nil {
		t.Fatalf("SourceDirs: %v", err)
	}
	want := []string{filepath.Join(dir, "src"), filepath.Join(dir, "src", "lib")}
	if len(dirs) != 2 || dirs[0] != want[0] || dirs[1] != want[1] {
		t.Fatalf("SourceDirs = %v, want %v", dirs, want)
	}

	cfg := engine.Config{CaseInsensitive: true, Jobs: 1}
	if err := m.Config.Engine.Apply(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Jobs != 4 || cfg.Ambiguity != engine.AmbiguityError || cfg.CaseInsensitive || cfg.MaxDiagnostics != 20 {
		t.Fatalf("engine config = %+v", cfg)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		err  error
	}{
		{"no project", "[engine]\njobs = 1\n", "", ErrProjectSectionMissing},
		{"no name", "[project]\nroot = \".\"\n", "", ErrProjectNameMissing},
		{"blank name", "[project]\nname = \"  \"\n", "", ErrProjectNameMissing},
		{"bad toml", "[project\n", "failed to parse TOML", nil},
		{"unknown key", "[project]\nname = \"x\"\nmain = \"y\"\n", "unknown keys: project.main", nil},
		{"bad ambiguity", "[project]\nname = \"x\"\n[engine]\nambiguity = \"loud\"\n", "[engine].ambiguity", nil},
		{"negative jobs", "[project]\nname = \"x\"\n[engine]\njobs = -1\n", "[engine].jobs", nil},
		{"bad level", "[project]\nname = \"x\"\n[trace]\nlevel = \"chatty\"\n", "[trace].level", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tt.body)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load succeeded")
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"up\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	m, ok, err := Discover(nested)
	if err != nil || !ok {
		t.Fatalf("Discover = %v, %v", ok, err)
	}
	if m.Config.Project.Name != "up" {
		t.Fatalf("name = %q", m.Config.Project.Name)
	}
	if m.Root != root {
		t.Fatalf("root = %q, want %q", m.Root, root)
	}
	dirs, err := m.SourceDirs()
	if err != nil || len(dirs) != 1 || dirs[0] != root {
		t.Fatalf("SourceDirs = %v, %v", dirs, err)
	}
}

func TestDiscoverSkipsManifestDirectory(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"outer\"\n")
	nested := filepath.Join(root, "sub")
	if err := os.MkdirAll(filepath.Join(nested, ManifestName), 0o755); err != nil {
		t.Fatal(err)
	}
	m, ok, err := Discover(nested)
	if err != nil || !ok || m.Config.Project.Name != "outer" {
		t.Fatalf("Discover = %+v, %v, %v", m, ok, err)
	}
}

func TestSourceDirsMissing(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(writeManifest(t, dir, "[project]\nname = \"x\"\nsources = [\"nope\"]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.SourceDirs(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v", err)
	}
}
