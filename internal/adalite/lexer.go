package adalite

import (
	"fmt"

	"fortio.org/safecast"

	"envkit/internal/diag"
	"envkit/internal/source"
)

// cursor is a byte position inside a file.
type cursor struct {
	file  *source.File
	off   uint32
	limit uint32
}

func newCursor(f *source.File) cursor {
	limit, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("len file content overflow: %w", err))
	}
	return cursor{file: f, limit: limit}
}

func (c *cursor) eof() bool { return c.off >= c.limit }

func (c *cursor) peek() byte {
	if c.eof() {
		return 0
	}
	return c.file.Content[c.off]
}

func (c *cursor) peek2() (b0, b1 byte, ok bool) {
	if c.off+1 >= c.limit {
		return 0, 0, false
	}
	return c.file.Content[c.off], c.file.Content[c.off+1], true
}

func (c *cursor) bump() byte {
	if c.eof() {
		return 0
	}
	b := c.file.Content[c.off]
	c.off++
	return b
}

func (c *cursor) eat(b byte) bool {
	if !c.eof() && c.file.Content[c.off] == b {
		c.off++
		return true
	}
	return false
}

func (c *cursor) spanFrom(start uint32) source.Span {
	return source.Span{File: c.file.ID, Start: start, End: c.off}
}

// Lexer turns a file into tokens. Comments (-- to end of line) and
// whitespace are skipped. After EOF it keeps returning EOF.
type Lexer struct {
	cur      cursor
	reporter diag.Reporter
}

// NewLexer creates a lexer over f. reporter may be nil.
func NewLexer(f *source.File, reporter diag.Reporter) *Lexer {
	return &Lexer{cur: newCursor(f), reporter: reporter}
}

// Next returns the next significant token.
func (lx *Lexer) Next() Token {
	for {
		lx.skipTrivia()
		if lx.cur.eof() {
			return Token{Kind: TokEOF, Span: lx.cur.spanFrom(lx.cur.off)}
		}
		start := lx.cur.off
		ch := lx.cur.peek()
		switch {
		case isIdentStart(ch):
			return lx.scanIdent(start)
		case isDigit(ch):
			return lx.scanNumber(start)
		case ch == '"':
			return lx.scanString(start)
		}
		if tok, ok := lx.scanPunct(start); ok {
			return tok
		}
		lx.cur.bump()
		lx.report(diag.LexUnknownChar, lx.cur.spanFrom(start), fmt.Sprintf("unknown character %q", ch))
	}
}

func (lx *Lexer) skipTrivia() {
	for !lx.cur.eof() {
		switch ch := lx.cur.peek(); {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f':
			lx.cur.bump()
		case ch == '-':
			if b0, b1, ok := lx.cur.peek2(); !ok || b0 != '-' || b1 != '-' {
				return
			}
			for !lx.cur.eof() && lx.cur.peek() != '\n' {
				lx.cur.bump()
			}
		default:
			return
		}
	}
}

func (lx *Lexer) scanIdent(start uint32) Token {
	for !lx.cur.eof() && isIdentContinue(lx.cur.peek()) {
		lx.cur.bump()
	}
	sp := lx.cur.spanFrom(start)
	text := string(lx.cur.file.Content[sp.Start:sp.End])
	return Token{Kind: lookupKeyword(text), Span: sp, Text: text}
}

func (lx *Lexer) scanNumber(start uint32) Token {
	for !lx.cur.eof() && (isDigit(lx.cur.peek()) || lx.cur.peek() == '_') {
		lx.cur.bump()
	}
	if !lx.cur.eof() && isIdentStart(lx.cur.peek()) {
		for !lx.cur.eof() && isIdentContinue(lx.cur.peek()) {
			lx.cur.bump()
		}
		lx.report(diag.LexBadNumber, lx.cur.spanFrom(start), "malformed integer literal")
	}
	sp := lx.cur.spanFrom(start)
	return Token{Kind: TokInt, Span: sp, Text: string(lx.cur.file.Content[sp.Start:sp.End])}
}

// scanString reads a "..." literal; "" inside the literal stands for one
// quote.
func (lx *Lexer) scanString(start uint32) Token {
	lx.cur.bump()
	for {
		if lx.cur.eof() || lx.cur.peek() == '\n' {
			lx.report(diag.LexUnknownChar, lx.cur.spanFrom(start), "unterminated string literal")
			break
		}
		if lx.cur.bump() == '"' {
			if !lx.cur.eat('"') {
				break
			}
		}
	}
	sp := lx.cur.spanFrom(start)
	return Token{Kind: TokString, Span: sp, Text: string(lx.cur.file.Content[sp.Start:sp.End])}
}

func (lx *Lexer) scanPunct(start uint32) (Token, bool) {
	var kind TokenKind
	switch lx.cur.bump() {
	case '(':
		kind = TokLParen
	case ')':
		kind = TokRParen
	case ';':
		kind = TokSemicolon
	case ',':
		kind = TokComma
	case '.':
		kind = TokDot
	case '+':
		kind = TokPlus
	case '-':
		kind = TokMinus
	case '*':
		kind = TokStar
	case '/':
		kind = TokSlash
	case '&':
		kind = TokAmp
	case '<':
		kind = TokLt
	case '>':
		kind = TokGt
	case ':':
		kind = TokColon
		if lx.cur.eat('=') {
			kind = TokAssign
		}
	case '=':
		kind = TokEq
		if lx.cur.eat('>') {
			kind = TokArrow
		}
	default:
		lx.cur.off = start
		return Token{}, false
	}
	sp := lx.cur.spanFrom(start)
	return Token{Kind: kind, Span: sp, Text: string(lx.cur.file.Content[sp.Start:sp.End])}, true
}

func (lx *Lexer) report(code diag.Code, sp source.Span, msg string) {
	if lx.reporter != nil {
		diag.ReportError(lx.reporter, code, sp, msg).Emit()
	}
}

func isIdentStart(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func isIdentContinue(b byte) bool {
	return isIdentStart(b) || isDigit(b) || b == '_'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
