package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"envkit/internal/diag"
	"envkit/internal/source"
)

const tabWidth = 4

type palette struct {
	err, warn, info, code, caret, gutter, note *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan, color.Bold),
		code:   color.New(color.Faint),
		caret:  color.New(color.FgMagenta, color.Bold),
		gutter: color.New(color.FgBlue),
		note:   color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.code, p.caret, p.gutter, p.note} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Для каждой печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes.
// Диагностики без файла печатаются одной строкой.
func Pretty(w io.Writer, diags []diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for i, d := range diags {
		if i > 0 {
			fmt.Fprintln(w)
		}
		sev := p.severity(d.Severity).Sprint(d.Severity.String())
		code := p.code.Sprint(d.Code.ID())
		f := fs.Get(d.Primary.File)
		if f == nil {
			fmt.Fprintf(w, "%s %s: %s\n", sev, code, d.Message)
			continue
		}
		r := fs.Resolve(d.Primary)
		fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n", formatPath(f, opts.PathMode, opts.BaseDir), r.Start.Line, r.Start.Column, sev, code, d.Message)
		writeExcerpt(w, f, r, int(opts.Context), p)

		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			nf := fs.Get(n.Span.File)
			if nf == nil {
				fmt.Fprintf(w, "  %s %s\n", p.note.Sprint("note:"), n.Msg)
				continue
			}
			nr := fs.Resolve(n.Span)
			fmt.Fprintf(w, "  %s %s:%d:%d: %s\n", p.note.Sprint("note:"), formatPath(nf, opts.PathMode, opts.BaseDir), nr.Start.Line, nr.Start.Column, n.Msg)
		}
	}
}

func writeExcerpt(w io.Writer, f *source.File, r source.Range, context int, p palette) {
	if !r.Start.IsValid() {
		return
	}
	last := r.Start.Line
	first := last
	for ; context > 0 && first > 1; context-- {
		first--
	}
	width := len(strconv.FormatUint(uint64(last), 10))
	for line := first; line <= last; line++ {
		fmt.Fprintf(w, "%s %s\n", p.gutter.Sprintf("%*d |", width, line), expandTabs(f.GetLine(line)))
	}

	raw := f.GetLine(r.Start.Line)
	startCol := int(r.Start.Column) - 1
	endCol := len(raw)
	if r.End.Line == r.Start.Line {
		endCol = int(r.End.Column) - 1
	}
	startCol = min(max(startCol, 0), len(raw))
	endCol = min(max(endCol, startCol), len(raw))

	pad := runewidth.StringWidth(expandTabs(raw[:startCol]))
	span := runewidth.StringWidth(expandTabs(raw[startCol:endCol]))
	marker := "^"
	if span > 1 {
		marker += strings.Repeat("~", span-1)
	}
	fmt.Fprintf(w, "%s %s%s\n", p.gutter.Sprintf("%*s |", width, ""), strings.Repeat(" ", pad), p.caret.Sprint(marker))
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}
