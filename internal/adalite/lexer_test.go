package adalite

import (
	"testing"

	"envkit/internal/diag"
	"envkit/internal/source"
)

func lexAll(t *testing.T, src string) ([]Token, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	f := fs.Get(fs.AddVirtual("test.adb", []byte(src)))
	bag := diag.NewBag(10)
	lx := NewLexer(f, diag.BagReporter{Bag: bag})
	var toks []Token
	for {
		tok := lx.Next()
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks, bag
		}
	}
}

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []TokenKind
	}{
		{"keywords are case insensitive", "PACKAGE Body is", []TokenKind{KwPackage, KwBody, KwIs, TokEOF}},
		{"assign and arrow", "X := Y => 1", []TokenKind{TokIdent, TokAssign, TokIdent, TokArrow, TokInt, TokEOF}},
		{"comment skipped", "a -- comment\n- b", []TokenKind{TokIdent, TokMinus, TokIdent, TokEOF}},
		{"dotted", "Foo.Bar;", []TokenKind{TokIdent, TokDot, TokIdent, TokSemicolon, TokEOF}},
		{"string with quote", `"a""b" & c`, []TokenKind{TokString, TokAmp, TokIdent, TokEOF}},
		{"underscored number", "1_000", []TokenKind{TokInt, TokEOF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, bag := lexAll(t, tt.src)
			got := kinds(toks)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("token %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
			if bag.Len() != 0 {
				t.Fatalf("unexpected diagnostics: %v", bag.Items())
			}
		})
	}
}

func TestLexerSpans(t *testing.T) {
	toks, _ := lexAll(t, "with Foo;")
	if toks[1].Text != "Foo" || toks[1].Span.Start != 5 || toks[1].Span.End != 8 {
		t.Fatalf("ident token = %+v", toks[1])
	}
}

func TestLexerReportsUnknownCharacter(t *testing.T) {
	toks, bag := lexAll(t, "a # b")
	if got := kinds(toks); len(got) != 3 {
		t.Fatalf("tokens = %v", got)
	}
	items := bag.Items()
	if len(items) != 1 || items[0].Code != diag.LexUnknownChar {
		t.Fatalf("diagnostics = %v", items)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	_, bag := lexAll(t, "\"abc\nx")
	if bag.Len() != 1 {
		t.Fatalf("expected one diagnostic, got %v", bag.Items())
	}
}
