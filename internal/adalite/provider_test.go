package adalite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"envkit/internal/engine"
)

func TestFileNames(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"foo", []string{"foo.ads", "foo.adb"}},
		{"Foo.Bar", []string{"foo-bar.ads", "foo-bar.adb", "foo.ads", "foo.adb"}},
		{"a.b.c", []string{"a-b-c.ads", "a-b-c.adb", "a-b.ads", "a-b.adb", "a.ads", "a.adb"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FileNames(tt.name)
			if len(got) != len(tt.want) || (len(got) > 0 && !slices.Equal(got, tt.want)) {
				t.Fatalf("FileNames(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestMemProviderUnitsFor(t *testing.T) {
	p := NewMemProvider(NewLanguage(), project)
	if got := p.UnitsFor("foo.q"); !slices.Equal(got, []string{"foo-q.adb", "foo.ads", "foo.adb"}) {
		t.Fatalf("UnitsFor(foo.q) = %v", got)
	}
	if got := p.UnitsFor("bar"); len(got) != 0 {
		t.Fatalf("UnitsFor(bar) = %v", got)
	}
	p.Remove("foo-q.adb")
	if got := p.UnitsFor("foo.q"); len(got) != 2 {
		t.Fatalf("UnitsFor after Remove = %v", got)
	}
}

func TestDirProvider(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	write := func(dir, name, src string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write(first, "util.ads", "package Util is\n   Limit : Integer := 10;\nend Util;\n")
	write(second, "util.ads", "package Util is\nend Util;\n")
	write(second, "app.adb", "with Util;\nprocedure App is\n   N : Integer := Util.Limit;\nbegin\n   null;\nend App;\n")
	write(second, "notes.txt", "ignored")

	lang := NewLanguage()
	p := NewDirProvider(lang, first, second)
	if got := p.Names(); !slices.Equal(got, []string{"app.adb", "util.ads"}) {
		t.Fatalf("Names = %v", got)
	}
	e, err := NewEngine(engine.Config{}, lang, p)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	res, err := lang.Check(ctx, e, "app.adb")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Unresolved != 0 || res.Resolved != 1 {
		t.Fatalf("Check = %+v, diagnostics %v", res, e.Diagnostics())
	}
	if e.HasErrors() {
		t.Fatalf("unexpected errors: %v", e.Diagnostics())
	}
	if _, err := e.Load(ctx, "missing.adb"); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Load(missing) err = %v", err)
	}
}
