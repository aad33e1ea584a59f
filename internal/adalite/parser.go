package adalite

import (
	"fmt"
	"strings"

	"envkit/internal/diag"
	"envkit/internal/source"
	"envkit/internal/tree"
)

// Parser builds the tree of one compilation unit. Syntax errors are
// reported and parsing resumes at the next ';', so a tree is always
// produced.
type Parser struct {
	lx    *Lexer
	k     *Kinds
	b     *tree.Builder
	file  source.FileID
	tok   Token
	prev  Token
	next  *Token
	rep   diag.Reporter
	clean bool
}

// ParseResult is a parsed compilation unit.
type ParseResult struct {
	Tree *tree.Tree
	// Clean is false when syntax errors were reported.
	Clean bool
}

// Parse parses f into a tree identified by id for unit.
func Parse(k *Kinds, fs *source.FileSet, f *source.File, id tree.TreeID, unit tree.UnitID, reporter diag.Reporter) ParseResult {
	p := &Parser{
		lx:    NewLexer(f, reporter),
		k:     k,
		b:     tree.NewBuilder(id, unit, k.Set),
		file:  f.ID,
		rep:   reporter,
		clean: true,
	}
	p.advance()
	p.compilationUnit()
	return ParseResult{Tree: p.b.Finish(fs), Clean: p.clean}
}

func (p *Parser) advance() Token {
	prev := p.tok
	p.prev = prev
	if p.next != nil {
		p.tok = *p.next
		p.next = nil
	} else {
		p.tok = p.lx.Next()
	}
	return prev
}

func (p *Parser) peek() Token {
	if p.next == nil {
		t := p.lx.Next()
		p.next = &t
	}
	return *p.next
}

func (p *Parser) at(kind TokenKind) bool { return p.tok.Kind == kind }

func (p *Parser) accept(kind TokenKind) bool {
	if p.at(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(kind TokenKind) (Token, bool) {
	if p.at(kind) {
		return p.advance(), true
	}
	code := diag.SynUnexpectedToken
	switch {
	case p.at(TokEOF):
		code = diag.SynUnexpectedEOF
	case kind == TokIdent:
		code = diag.SynExpectIdentifier
	case kind == TokSemicolon:
		code = diag.SynExpectSemicolon
	}
	p.errorf(code, p.tok.Span, "expected %s, found %s", kind, p.describe(p.tok))
	return p.tok, false
}

func (p *Parser) describe(t Token) string {
	if t.Kind == TokIdent || t.Kind == TokInt {
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	}
	return t.Kind.String()
}

func (p *Parser) errorf(code diag.Code, sp source.Span, format string, args ...any) {
	p.clean = false
	if p.rep != nil {
		diag.ReportError(p.rep, code, sp, fmt.Sprintf(format, args...)).Emit()
	}
}

// sync skips to the token after the next ';' (or to a token that starts a
// declaration or ends a block).
func (p *Parser) sync() {
	for !p.at(TokEOF) {
		switch p.tok.Kind {
		case TokSemicolon:
			p.advance()
			return
		case KwEnd, KwBegin, KwPrivate, KwProcedure, KwFunction, KwPackage:
			return
		}
		p.advance()
	}
}

func (p *Parser) endSemicolon() {
	if _, ok := p.expect(TokSemicolon); !ok {
		p.sync()
	}
}

func (p *Parser) add(kind tree.Kind, parent tree.NodeID, sp source.Span, text string) tree.NodeID {
	return p.b.Add(kind, parent, sp, text)
}

// close extends the span of id to the previous token.
func (p *Parser) close(id tree.NodeID, end source.Span) {
	if n := p.b.Node(id); n != nil {
		p.b.SetSpan(id, n.Span.Cover(end))
	}
}

type contextClause struct {
	kind  tree.Kind
	span  source.Span
	names []qualName
}

type qualName struct {
	parts []Token
}

func (q qualName) text() string {
	parts := make([]string, len(q.parts))
	for i, t := range q.parts {
		parts[i] = t.Text
	}
	return strings.Join(parts, ".")
}

func (q qualName) span() source.Span {
	if len(q.parts) == 0 {
		return source.Span{}
	}
	return q.parts[0].Span.Cover(q.parts[len(q.parts)-1].Span)
}

func (p *Parser) compilationUnit() {
	root := p.add(p.k.CompilationUnit, tree.NoNodeID, p.tok.Span, "")
	var clauses []contextClause
	for p.at(KwWith) || p.at(KwUse) {
		clauses = append(clauses, p.contextClause())
	}
	var item tree.NodeID
	switch {
	case p.at(KwSeparate):
		item = p.subunit(root, clauses)
	case p.at(KwPackage) || p.at(KwProcedure) || p.at(KwFunction):
		item = p.basicDecl(root, clauses)
	default:
		p.errorf(diag.SynUnexpectedToken, p.tok.Span, "expected a library unit, found %s", p.describe(p.tok))
	}
	if item.IsValid() {
		p.close(root, p.b.Node(item).Span)
	}
	if !p.at(TokEOF) {
		p.errorf(diag.SynUnexpectedToken, p.tok.Span, "unexpected %s after the library unit", p.describe(p.tok))
	}
}

func (p *Parser) contextClause() contextClause {
	kw := p.advance()
	c := contextClause{kind: p.k.WithClause, span: kw.Span}
	if kw.Kind == KwUse {
		c.kind = p.k.UseClause
	}
	for {
		q, ok := p.qualifiedName()
		if !ok {
			p.sync()
			return c
		}
		c.names = append(c.names, q)
		if !p.accept(TokComma) {
			break
		}
	}
	c.span = c.span.Cover(p.tok.Span)
	p.endSemicolon()
	return c
}

func (p *Parser) emitClauses(parent tree.NodeID, clauses []contextClause) {
	for _, c := range clauses {
		id := p.add(c.kind, parent, c.span, "")
		for _, q := range c.names {
			p.nameNode(id, q)
		}
	}
}

func (p *Parser) qualifiedName() (qualName, bool) {
	var q qualName
	t, ok := p.expect(TokIdent)
	if !ok {
		return q, false
	}
	q.parts = append(q.parts, t)
	for p.at(TokDot) {
		p.advance()
		t, ok = p.expect(TokIdent)
		if !ok {
			return q, false
		}
		q.parts = append(q.parts, t)
	}
	return q, true
}

// nameNode materializes q as an identifier or a dotted name.
func (p *Parser) nameNode(parent tree.NodeID, q qualName) tree.NodeID {
	if len(q.parts) == 1 {
		return p.add(p.k.Identifier, parent, q.parts[0].Span, q.parts[0].Text)
	}
	id := p.add(p.k.DottedName, parent, q.span(), q.text())
	for _, t := range q.parts {
		p.add(p.k.Identifier, id, t.Span, t.Text)
	}
	return id
}

func (p *Parser) subunit(parent tree.NodeID, clauses []contextClause) tree.NodeID {
	kw := p.advance()
	id := p.add(p.k.Subunit, parent, kw.Span, "")
	p.expect(TokLParen)
	if q, ok := p.qualifiedName(); ok {
		p.nameNode(id, q)
	}
	p.expect(TokRParen)
	if !p.at(KwPackage) && !p.at(KwProcedure) && !p.at(KwFunction) {
		p.errorf(diag.SynUnexpectedToken, p.tok.Span, "expected a proper body, found %s", p.describe(p.tok))
		return id
	}
	body := p.basicDecl(id, clauses)
	p.close(id, p.b.Node(body).Span)
	return id
}

// basicDecl parses a package or subprogram declaration, body or stub.
// clauses are attached to library-level items.
func (p *Parser) basicDecl(parent tree.NodeID, clauses []contextClause) tree.NodeID {
	if p.at(KwPackage) {
		return p.packageItem(parent, clauses)
	}
	return p.subprogram(parent, clauses)
}

func (p *Parser) packageItem(parent tree.NodeID, clauses []contextClause) tree.NodeID {
	kw := p.advance()
	kind := p.k.PackageDecl
	if p.accept(KwBody) {
		kind = p.k.PackageBody
	}
	id := p.add(kind, parent, kw.Span, "")
	q, ok := p.qualifiedName()
	if !ok {
		p.sync()
		return id
	}
	p.add(p.k.DefiningName, id, q.span(), q.text())
	p.emitClauses(id, clauses)
	p.expect(KwIs)

	if kind == p.k.PackageBody && p.at(KwSeparate) {
		p.advance()
		p.b.Node(id).Kind = p.k.PackageBodyStub
		p.close(id, p.tok.Span)
		p.endSemicolon()
		return id
	}

	p.declPart(id, p.k.DeclPart)
	if kind == p.k.PackageDecl && p.at(KwPrivate) {
		p.advance()
		p.declPart(id, p.k.PrivatePart)
	}
	if kind == p.k.PackageBody && p.at(KwBegin) {
		p.advance()
		p.stmts(id)
	}
	p.end(id, q.text())
	return id
}

func (p *Parser) subprogram(parent tree.NodeID, clauses []contextClause) tree.NodeID {
	kw := p.advance()
	id := p.add(p.k.SubpDecl, parent, kw.Span, "")
	name, ok := p.expect(TokIdent)
	if !ok {
		p.sync()
		return id
	}
	p.add(p.k.DefiningName, id, name.Span, name.Text)
	p.emitClauses(id, clauses)
	if p.at(TokLParen) {
		p.params(id)
	}
	if kw.Kind == KwFunction {
		if _, ok := p.expect(KwReturn); ok {
			p.typeRef(id)
		}
	}
	if !p.accept(KwIs) {
		p.close(id, p.tok.Span)
		p.endSemicolon()
		return id
	}
	if p.accept(KwSeparate) {
		p.b.Node(id).Kind = p.k.SubpStub
		p.close(id, p.tok.Span)
		p.endSemicolon()
		return id
	}
	p.b.Node(id).Kind = p.k.SubpBody
	p.declPart(id, p.k.DeclPart)
	if _, ok := p.expect(KwBegin); ok {
		p.stmts(id)
	}
	p.end(id, name.Text)
	return id
}

// end parses "end [name];" closing the construct id named name.
func (p *Parser) end(id tree.NodeID, name string) {
	if _, ok := p.expect(KwEnd); !ok {
		p.sync()
		return
	}
	if p.at(TokIdent) {
		q, _ := p.qualifiedName()
		if got := q.text(); !strings.EqualFold(got, name) {
			p.errorf(diag.SynEndNameMismatch, q.span(), "end name %q does not match %q", got, name)
		}
	}
	p.close(id, p.tok.Span)
	p.endSemicolon()
}

func (p *Parser) declPart(parent tree.NodeID, kind tree.Kind) {
	part := p.add(kind, parent, p.tok.Span, "")
	for {
		start := p.tok.Span.Start
		switch p.tok.Kind {
		case KwPackage, KwProcedure, KwFunction:
			p.basicDecl(part, nil)
		case KwUse:
			c := p.contextClause()
			p.emitClauses(part, []contextClause{c})
		case TokIdent:
			p.objectDecl(part)
		default:
			return
		}
		p.close(part, p.prev.Span)
		if p.tok.Span.Start == start && !p.at(TokEOF) {
			p.advance()
		}
	}
}

func (p *Parser) objectDecl(parent tree.NodeID) {
	id := p.add(p.k.ObjectDecl, parent, p.tok.Span, "")
	for {
		t, ok := p.expect(TokIdent)
		if !ok {
			p.sync()
			return
		}
		p.add(p.k.DefiningName, id, t.Span, t.Text)
		if !p.accept(TokComma) {
			break
		}
	}
	if _, ok := p.expect(TokColon); !ok {
		p.sync()
		return
	}
	if p.accept(KwConstant) {
		p.b.Node(id).Text = "constant"
	}
	p.typeRef(id)
	if p.accept(TokAssign) {
		p.expr(id)
	}
	p.close(id, p.tok.Span)
	p.endSemicolon()
}

func (p *Parser) params(parent tree.NodeID) {
	p.advance()
	for {
		spec := p.add(p.k.ParamSpec, parent, p.tok.Span, "in")
		for {
			t, ok := p.expect(TokIdent)
			if !ok {
				p.sync()
				return
			}
			p.add(p.k.DefiningName, spec, t.Span, t.Text)
			if !p.accept(TokComma) {
				break
			}
		}
		p.expect(TokColon)
		mode := ""
		if p.accept(KwIn) {
			mode = "in"
		}
		if p.accept(KwOut) {
			mode += " out"
		}
		if mode != "" {
			p.b.Node(spec).Text = strings.TrimSpace(mode)
		}
		p.typeRef(spec)
		p.close(spec, p.tok.Span)
		if !p.accept(TokSemicolon) {
			break
		}
	}
	p.expect(TokRParen)
}

func (p *Parser) typeRef(parent tree.NodeID) {
	q, ok := p.qualifiedName()
	if !ok {
		return
	}
	id := p.add(p.k.TypeRef, parent, q.span(), q.text())
	p.nameNode(id, q)
}

func (p *Parser) stmts(parent tree.NodeID) {
	block := p.add(p.k.Stmts, parent, p.tok.Span, "")
	for !p.at(KwEnd) && !p.at(TokEOF) {
		start := p.tok.Span.Start
		p.stmt(block)
		p.close(block, p.prev.Span)
		if p.tok.Span.Start == start {
			p.advance()
		}
	}
}

func (p *Parser) stmt(parent tree.NodeID) {
	switch p.tok.Kind {
	case KwNull:
		t := p.advance()
		p.add(p.k.NullStmt, parent, t.Span, "")
		p.endSemicolon()
	case KwReturn:
		t := p.advance()
		id := p.add(p.k.ReturnStmt, parent, t.Span, "")
		if !p.at(TokSemicolon) {
			p.expr(id)
		}
		p.close(id, p.tok.Span)
		p.endSemicolon()
	case TokIdent:
		q, ok := p.qualifiedName()
		if !ok {
			p.sync()
			return
		}
		if p.accept(TokAssign) {
			id := p.add(p.k.AssignStmt, parent, q.span(), "")
			p.nameNode(id, q)
			p.expr(id)
			p.close(id, p.tok.Span)
			p.endSemicolon()
			return
		}
		id := p.add(p.k.CallStmt, parent, q.span(), "")
		call := p.add(p.k.CallExpr, id, q.span(), q.text())
		p.nameNode(call, q)
		if p.at(TokLParen) {
			p.args(call)
		}
		p.close(id, p.b.Node(call).Span)
		p.endSemicolon()
	default:
		p.errorf(diag.SynUnexpectedToken, p.tok.Span, "expected a statement, found %s", p.describe(p.tok))
		p.sync()
	}
}

func (p *Parser) args(call tree.NodeID) {
	p.advance()
	for {
		assoc := p.add(p.k.ParamAssoc, call, p.tok.Span, "")
		if p.at(TokIdent) && p.peek().Kind == TokArrow {
			t := p.advance()
			p.advance()
			p.b.Node(assoc).Text = t.Text
			p.add(p.k.Identifier, assoc, t.Span, t.Text)
		}
		p.expr(assoc)
		p.close(assoc, p.tok.Span)
		if !p.accept(TokComma) {
			break
		}
	}
	p.close(call, p.tok.Span)
	p.expect(TokRParen)
}

// expr parses a left-associative chain of binary operators.
func (p *Parser) expr(parent tree.NodeID) tree.NodeID {
	left := p.primary(parent)
	for isBinOp(p.tok.Kind) {
		op := p.advance()
		bin := p.wrap(parent, left, op)
		right := p.primary(bin)
		p.close(bin, p.b.Node(right).Span)
		left = bin
	}
	return left
}

func isBinOp(k TokenKind) bool {
	switch k {
	case TokPlus, TokMinus, TokStar, TokSlash, TokAmp, TokEq, TokLt, TokGt:
		return true
	}
	return false
}

// wrap replaces left, the last child of parent, with a binary operator node
// holding it.
func (p *Parser) wrap(parent, left tree.NodeID, op Token) tree.NodeID {
	pn := p.b.Node(parent)
	pn.Children = pn.Children[:len(pn.Children)-1]
	ln := p.b.Node(left)
	bin := p.add(p.k.BinOp, parent, ln.Span, op.Text)
	ln.Parent = bin
	bn := p.b.Node(bin)
	bn.Children = append(bn.Children, left)
	return bin
}

func (p *Parser) primary(parent tree.NodeID) tree.NodeID {
	switch p.tok.Kind {
	case TokInt:
		t := p.advance()
		return p.add(p.k.IntLiteral, parent, t.Span, t.Text)
	case TokString:
		t := p.advance()
		return p.add(p.k.StringLiteral, parent, t.Span, t.Text)
	case TokLParen:
		p.advance()
		id := p.expr(parent)
		p.expect(TokRParen)
		return id
	case TokIdent:
		q, _ := p.qualifiedName()
		if !p.at(TokLParen) {
			return p.nameNode(parent, q)
		}
		call := p.add(p.k.CallExpr, parent, q.span(), q.text())
		p.nameNode(call, q)
		p.args(call)
		return call
	}
	p.errorf(diag.SynUnexpectedToken, p.tok.Span, "expected an expression, found %s", p.describe(p.tok))
	return p.add(p.k.ErrorExpr, parent, p.tok.Span, "")
}
