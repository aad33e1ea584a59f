package pipeline

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"envkit/internal/adalite"
	"envkit/internal/diag"
	"envkit/internal/engine"
	"envkit/internal/project"
)

func TestCheckDemoProject(t *testing.T) {
	m, err := project.Load(filepath.Join("..", "..", "testdata", "demo", "envkit.toml"))
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	dirs, err := m.SourceDirs()
	if err != nil {
		t.Fatalf("source dirs: %v", err)
	}
	var cfg engine.Config
	if err := m.Config.Engine.Apply(&cfg); err != nil {
		t.Fatalf("apply engine config: %v", err)
	}
	lang := adalite.NewLanguage()
	e, err := adalite.NewEngine(cfg, lang, adalite.NewDirProvider(lang, dirs...))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	res, err := Check(context.Background(), &CheckRequest{Engine: e, Lang: lang, Jobs: 3})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.LoadErr != nil {
		t.Fatalf("load: %v", res.LoadErr)
	}
	if len(res.Units) != 5 {
		t.Fatalf("checked %d units, want 5", len(res.Units))
	}
	pos := func(name string) int {
		i := slices.Index(res.Order, name)
		if i < 0 {
			t.Fatalf("%s missing from order %v", name, res.Order)
		}
		return i
	}
	if !(pos("counters.ads") < pos("counters-report.ads") && pos("counters-report.ads") < pos("main.adb")) {
		t.Fatalf("order = %v", res.Order)
	}

	ds := e.Diagnostics()
	if n := countCode(ds, diag.EnvUnresolvedName); n != 1 {
		t.Fatalf("unresolved diagnostics = %d, want 1: %+v", n, ds)
	}
	for _, u := range res.Units {
		if u.Err != nil {
			t.Fatalf("%s: %v", u.Name, u.Err)
		}
		if u.Name != "main.adb" && u.Result.Unresolved != 0 {
			t.Fatalf("%s: %+v", u.Name, u.Result)
		}
	}
}
