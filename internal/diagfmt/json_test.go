package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"envkit/internal/diag"
	"envkit/internal/source"
)

func TestJSONBasic(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("main.adb", []byte("procedure Main is\nbegin\n   X := 1;\nend Main;\n"))

	d := diag.New(diag.SevError, diag.EnvUnresolvedName, source.Span{File: fileID, Start: 27, End: 28}, `"X" is not visible here`)
	d = d.WithNote(source.Span{File: fileID, Start: 10, End: 14}, "enclosing subprogram")

	var buf bytes.Buffer
	opts := JSONOpts{IncludePositions: true, PathMode: PathModeBasename, IncludeNotes: true}
	if err := JSON(&buf, []diag.Diagnostic{d}, fs, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Invalid JSON output: %v\nOutput: %s", err, buf.String())
	}
	if output.Count != 1 || output.Total != 1 {
		t.Fatalf("count = %d, total = %d", output.Count, output.Total)
	}
	got := output.Diagnostics[0]
	if got.Severity != "ERROR" || got.Code != "ENV3006" || got.Title != "Unresolved name" {
		t.Errorf("header = %+v", got)
	}
	loc := got.Location
	if loc.File != "main.adb" || loc.StartLine != 3 || loc.StartCol != 4 || loc.EndCol != 5 {
		t.Errorf("location = %+v", loc)
	}
	if len(got.Notes) != 1 || got.Notes[0].Location.StartLine != 1 || got.Notes[0].Location.StartCol != 11 {
		t.Errorf("notes = %+v", got.Notes)
	}
}

func TestJSONWithoutPositions(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("a.ads", []byte("package A is\nend A;\n"))
	d := diag.New(diag.SevWarning, diag.EnvAmbiguousLookup, source.Span{File: fileID, Start: 8, End: 9}, "ambiguous")
	d = d.WithNote(source.Span{File: fileID, Start: 0, End: 7}, "hidden")

	out := BuildDiagnosticsOutput([]diag.Diagnostic{d}, fs, JSONOpts{PathMode: PathModeBasename})
	loc := out.Diagnostics[0].Location
	if loc.StartLine != 0 || loc.StartCol != 0 || loc.StartByte != 8 || loc.EndByte != 9 {
		t.Errorf("location = %+v", loc)
	}
	if len(out.Diagnostics[0].Notes) != 0 {
		t.Errorf("notes included without IncludeNotes")
	}
}

func TestJSONMaxLimit(t *testing.T) {
	fs := source.NewFileSet()
	var diags []diag.Diagnostic
	for range 5 {
		diags = append(diags, diag.New(diag.SevError, diag.EnvCycle, source.Span{}, "cycle"))
	}
	out := BuildDiagnosticsOutput(diags, fs, JSONOpts{Max: 3})
	if out.Count != 3 || out.Total != 5 {
		t.Fatalf("count = %d, total = %d", out.Count, out.Total)
	}
	if out.Diagnostics[0].Location.File != "" {
		t.Fatalf("fileless diagnostic got a file: %q", out.Diagnostics[0].Location.File)
	}
}

func TestJSONPathModes(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("/work/project/src/util.ads", []byte("package Util is\nend Util;\n"))
	d := diag.New(diag.SevInfo, diag.EnvInfo, source.Span{File: fileID, Start: 0, End: 7}, "info")

	tests := []struct {
		mode PathMode
		base string
		want string
	}{
		{PathModeAbsolute, "", "/work/project/src/util.ads"},
		{PathModeRelative, "/work/project", "src/util.ads"},
		{PathModeBasename, "", "util.ads"},
		{PathModeAuto, "", "util.ads"},
	}
	for _, tt := range tests {
		out := BuildDiagnosticsOutput([]diag.Diagnostic{d}, fs, JSONOpts{PathMode: tt.mode, BaseDir: tt.base})
		if got := out.Diagnostics[0].Location.File; got != tt.want {
			t.Errorf("mode %d: file = %q, want %q", tt.mode, got, tt.want)
		}
	}
}
