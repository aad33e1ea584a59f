package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"envkit/internal/diag"
	"envkit/internal/source"
)

func TestPathModes(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("/home/user/project/src/main.adb", []byte("procedure Main is\nbegin\n   Missing;\nend Main;\n"))
	diags := []diag.Diagnostic{
		diag.New(diag.SevError, diag.EnvUnresolvedName, source.Span{File: fileID, Start: 27, End: 34}, `"Missing" is not visible here`),
	}

	tests := []struct {
		name     string
		mode     PathMode
		contains string
	}{
		{"Absolute path", PathModeAbsolute, "/home/user/project/src/main.adb:3:4"},
		{"Relative path", PathModeRelative, "src/main.adb:3:4"},
		{"Basename only", PathModeBasename, "main.adb:3:4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, diags, fs, PrettyOpts{Context: 1, PathMode: tt.mode, BaseDir: "/home/user/project"})
			output := buf.String()
			for _, want := range []string{tt.contains, "ERROR", "ENV3006", "is not visible here"} {
				if !strings.Contains(output, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, output)
				}
			}
		})
	}
}

func TestPrettyExcerpt(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("main.adb", []byte("procedure Main is\nbegin\n\tX := Missing;\nend Main;\n"))
	d := diag.New(diag.SevWarning, diag.EnvUnresolvedName, source.Span{File: fileID, Start: 30, End: 37}, "unresolved")

	var buf bytes.Buffer
	Pretty(&buf, []diag.Diagnostic{d}, fs, PrettyOpts{Context: 1, PathMode: PathModeBasename})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{
		"main.adb:3:7: WARNING ENV3006: unresolved",
		"2 | begin",
		"3 |     X := Missing;",
		"  |          ^~~~~~~",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestPrettyWideRunes(t *testing.T) {
	fs := source.NewFileSet()
	src := "S : String := \"日本\" & Y;\n"
	fileID := fs.AddVirtual("w.adb", []byte(src))
	start := uint32(strings.Index(src, "Y")) //nolint:gosec // small test input
	d := diag.New(diag.SevError, diag.EnvUnresolvedName, source.Span{File: fileID, Start: start, End: start + 1}, "unresolved")

	var buf bytes.Buffer
	Pretty(&buf, []diag.Diagnostic{d}, fs, PrettyOpts{PathMode: PathModeBasename})
	lines := strings.Split(buf.String(), "\n")
	// 19 ASCII columns plus two wide runes
	if lines[2] != "  | "+strings.Repeat(" ", 23)+"^" {
		t.Fatalf("caret line = %q", lines[2])
	}
}

func TestPrettyNotes(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("dup.adb", []byte("procedure Dup is\n   V : Integer;\n   V : Integer;\nbegin\n   null;\nend Dup;\n"))
	d := diag.New(diag.SevError, diag.EnvDuplicateDecl, source.Span{File: fileID, Start: 36, End: 37}, `"V" is already declared in this scope`)
	d = d.WithNote(source.Span{File: fileID, Start: 20, End: 21}, "previous declaration")
	fileless := diag.New(diag.SevWarning, diag.EnvMissingUnit, source.Span{}, "no source")

	var buf bytes.Buffer
	Pretty(&buf, []diag.Diagnostic{d, fileless}, fs, PrettyOpts{PathMode: PathModeBasename, ShowNotes: true})
	output := buf.String()
	if !strings.Contains(output, "note: dup.adb:2:4: previous declaration") {
		t.Fatalf("expected note with location, got:\n%s", output)
	}
	if !strings.Contains(output, "WARNING ENV3005: no source") {
		t.Fatalf("expected fileless diagnostic, got:\n%s", output)
	}
}

func TestPrettyColor(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("c.adb", []byte("X;\n"))
	d := diag.New(diag.SevError, diag.EnvUnresolvedName, source.Span{File: fileID, Start: 0, End: 1}, "unresolved")

	var plain, colored bytes.Buffer
	Pretty(&plain, []diag.Diagnostic{d}, fs, PrettyOpts{PathMode: PathModeBasename})
	Pretty(&colored, []diag.Diagnostic{d}, fs, PrettyOpts{Color: true, PathMode: PathModeBasename})
	if strings.Contains(plain.String(), "\x1b[") {
		t.Fatalf("escape codes without color:\n%q", plain.String())
	}
	if !strings.Contains(colored.String(), "\x1b[") {
		t.Fatalf("no escape codes with color:\n%q", colored.String())
	}
}
