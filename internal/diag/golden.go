package diag

import (
	"fmt"
	"strings"

	"envkit/internal/source"
)

// FormatShortDiagnostics renders diagnostics one per line as
// `path:line:col: SEVERITY ID: message`, in the order given. Notes follow on
// indented lines when includeNotes is set.
func FormatShortDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, d := range diags {
		sb.WriteString(formatLocation(d.Primary, fs))
		fmt.Fprintf(&sb, ": %s %s: %s\n", d.Severity, d.Code.ID(), d.Message)
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(&sb, "  note: %s: %s\n", formatLocation(n.Span, fs), n.Msg)
		}
	}
	return sb.String()
}

func formatLocation(sp source.Span, fs *source.FileSet) string {
	if fs == nil {
		return sp.String()
	}
	f := fs.Get(sp.File)
	if f == nil {
		return sp.String()
	}
	r := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", f.Path, r.Start.Line, r.Start.Column)
}
