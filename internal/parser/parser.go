// Package parser implements PL/0's recursive-descent parser with
// panic-mode error recovery (spec.md §4.2). Like the teacher's parser
// (nilan/parser), it keeps one token of lookahead over the token
// stream and never raises an exception for a syntax error: every entry
// point returns a best-effort AST, recording failures into a shared
// diag.Bag and resynchronizing at a fixed anchor set instead of
// unwinding the call stack.
package parser

import (
	"github.com/hdz0318/pl0/internal/ast"
	"github.com/hdz0318/pl0/internal/diag"
	"github.com/hdz0318/pl0/internal/lexer"
	"github.com/hdz0318/pl0/internal/token"
)

// anchors is the fixed synchronizing set spec.md §4.2 names: statement
// starters and block terminators. Every non-terminal that panics
// recovers by discarding tokens until one of these (or EOF) is next.
var anchors = map[token.Kind]bool{
	token.SEMICOLON: true,
	token.END:       true,
	token.DOT:       true,
	token.VAR:       true,
	token.CONST:     true,
	token.PROCEDURE: true,
	token.BEGIN:     true,
	token.IF:        true,
	token.WHILE:     true,
	token.CALL:      true,
	token.READ:      true,
	token.WRITE:     true,
	token.EOF:       true,
}

// Parser consumes a Lexer's token stream and builds an *ast.Program.
type Parser struct {
	lex   *lexer.Lexer
	cur   token.Token
	diags *diag.Bag
}

// New creates a Parser reading from lex and reporting into diags.
func New(lex *lexer.Lexer, diags *diag.Bag) *Parser {
	p := &Parser{lex: lex, diags: diags}
	p.cur = p.lex.Next()
	return p
}

func (p *Parser) advance() token.Token {
	prev := p.cur
	p.cur = p.lex.Next()
	return prev
}

func (p *Parser) check(k token.Kind) bool {
	return p.cur.Kind == k
}

// expect consumes the current token if it matches k, returning it.
// Otherwise it records a ParseExpectedToken diagnostic and
// synchronizes to the next anchor, returning the zero Token.
func (p *Parser) expect(k token.Kind, what string) (token.Token, bool) {
	if p.check(k) {
		return p.advance(), true
	}
	p.diags.Errorf(diag.ParseExpectedToken, p.cur.Pos, "expected %s, found %s", what, p.cur.Kind)
	p.synchronize()
	return token.Token{}, false
}

// expectSemicolon handles the specific "missing semicolon between
// statements" recovery policy from spec.md §4.2: if the semicolon is
// absent, a ParseMissingSemicolon diagnostic is recorded at the
// offending token and parsing continues as though a semicolon had been
// inserted there — no tokens are discarded.
func (p *Parser) expectSemicolon() {
	if p.check(token.SEMICOLON) {
		p.advance()
		return
	}
	p.diags.Errorf(diag.ParseMissingSemicolon, p.cur.Pos, "missing ';' before %s", p.cur.Kind)
}

func (p *Parser) synchronize() {
	for !anchors[p.cur.Kind] {
		p.advance()
	}
}

// Parse parses a full program and returns its AST. The AST is always
// complete and usable for diagnostics/printing even when the bag holds
// errors (spec.md §4.2: "always returns a best-effort partial AST").
func (p *Parser) Parse() *ast.Program {
	startPos := p.cur.Pos
	if !p.check(token.PROGRAM) {
		p.diags.Errorf(diag.ParseExpectedToken, p.cur.Pos, "expected 'program', found %s", p.cur.Kind)
	} else {
		p.advance()
	}

	name := "?"
	if tok, ok := p.expect(token.IDENT, "program name"); ok {
		name = tok.Lexeme
	}

	p.expectSemicolon()

	block := p.parseBlock()

	if p.check(token.DOT) {
		p.advance()
	} else {
		p.diags.Errorf(diag.ParseMissingDot, p.cur.Pos, "missing terminating '.'")
	}

	return &ast.Program{Pos: startPos, Name: name, Block: block}
}

// parseBlock parses [const-decl] [var-decl] {proc-decl} body.
func (p *Parser) parseBlock() *ast.Block {
	pos := p.cur.Pos
	block := &ast.Block{Pos: pos}

	if p.check(token.CONST) {
		p.parseConstDecl(block)
	}
	if p.check(token.VAR) {
		p.parseVarDecl(block)
	}
	for p.check(token.PROCEDURE) {
		block.Procs = append(block.Procs, p.parseProcDecl())
	}

	block.Body = p.parseStatement()
	return block
}

// parseConstDecl parses `const id = num {, id = num} ;`. A malformed
// entry is skipped to the next ';' or block-starter per spec.md §4.2;
// entries already accepted before the failure remain in block.Consts.
func (p *Parser) parseConstDecl(block *ast.Block) {
	p.advance() // consume 'const'
	for {
		namePos := p.cur.Pos
		nameTok, ok := p.expect(token.IDENT, "constant name")
		if !ok {
			return
		}
		if _, ok := p.expect(token.EQ, "'='"); !ok {
			return
		}
		valPos := p.cur.Pos
		valTok, ok := p.expect(token.INT, "integer literal")
		if !ok {
			return
		}
		block.Consts = append(block.Consts, ast.ConstDecl{
			Pos:   namePos,
			Name:  nameTok.Lexeme,
			Value: valTok.Value,
		})
		_ = valPos
		if p.check(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expectSemicolon()
}

// parseVarDecl parses `var id {, id} ;`.
func (p *Parser) parseVarDecl(block *ast.Block) {
	p.advance() // consume 'var'
	for {
		namePos := p.cur.Pos
		nameTok, ok := p.expect(token.IDENT, "variable name")
		if !ok {
			return
		}
		block.Vars = append(block.Vars, ast.VarDecl{Pos: namePos, Name: nameTok.Lexeme})
		if p.check(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expectSemicolon()
}

// parseProcDecl parses `procedure id (params) ; block ;`.
func (p *Parser) parseProcDecl() *ast.Procedure {
	pos := p.cur.Pos
	p.advance() // consume 'procedure'

	name := "?"
	if tok, ok := p.expect(token.IDENT, "procedure name"); ok {
		name = tok.Lexeme
	}

	var params []string
	if p.check(token.LPAREN) {
		p.advance()
		if !p.check(token.RPAREN) {
			for {
				if tok, ok := p.expect(token.IDENT, "parameter name"); ok {
					params = append(params, tok.Lexeme)
				} else {
					break
				}
				if p.check(token.COMMA) {
					p.advance()
					continue
				}
				break
			}
		}
		p.expect(token.RPAREN, "')'")
	}

	p.expectSemicolon()
	block := p.parseBlock()
	p.expectSemicolon()

	return &ast.Procedure{Pos: pos, Name: name, Params: params, Block: block}
}

// parseStatement parses one statement, or an EmptyStmt when the
// current token starts neither a known statement form nor a recognized
// construct (an empty `begin end` body, an empty loop body as in
// `do ;`, or the slot after a `;` that directly precedes `end`).
func (p *Parser) parseStatement() ast.Stmt {
	switch p.cur.Kind {
	case token.IDENT:
		return p.parseAssign()
	case token.CALL:
		return p.parseCall()
	case token.BEGIN:
		return p.parseCompound()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.READ:
		return p.parseRead()
	case token.WRITE:
		return p.parseWrite()
	default:
		return &ast.EmptyStmt{Pos: p.cur.Pos}
	}
}

func (p *Parser) parseAssign() ast.Stmt {
	pos := p.cur.Pos
	nameTok := p.advance()
	if _, ok := p.expect(token.ASSIGN, "':='"); !ok {
		return &ast.EmptyStmt{Pos: pos}
	}
	expr := p.parseExpression()
	return &ast.AssignStmt{Pos: pos, Target: nameTok.Lexeme, Expr: expr}
}

// parseCall parses `call id [(args)]`. A syntactically malformed
// argument list still yields a CallStmt with whatever arguments parsed
// successfully; arity is checked in sema (spec.md §4.2).
func (p *Parser) parseCall() ast.Stmt {
	pos := p.cur.Pos
	p.advance() // consume 'call'
	name := "?"
	if tok, ok := p.expect(token.IDENT, "procedure name"); ok {
		name = tok.Lexeme
	}

	var args []ast.Expr
	if p.check(token.LPAREN) {
		p.advance()
		if !p.check(token.RPAREN) {
			for {
				args = append(args, p.parseExpression())
				if p.check(token.COMMA) {
					p.advance()
					continue
				}
				break
			}
		}
		p.expect(token.RPAREN, "')'")
	}
	return &ast.CallStmt{Pos: pos, Callee: name, Args: args}
}

// startsStatement reports whether k begins one of parseStatement's
// recognized forms, used by parseCompound to tell a genuinely missing
// separator (another statement follows) from the end of the compound.
func startsStatement(k token.Kind) bool {
	switch k {
	case token.IDENT, token.CALL, token.BEGIN, token.IF, token.WHILE, token.READ, token.WRITE:
		return true
	}
	return false
}

func (p *Parser) parseCompound() ast.Stmt {
	pos := p.cur.Pos
	p.advance() // consume 'begin'

	var stmts []ast.Stmt
	stmts = append(stmts, p.parseStatement())
	for {
		if p.check(token.SEMICOLON) {
			p.advance()
		} else if startsStatement(p.cur.Kind) {
			// Missing ';' between statements (spec.md §4.2): insert a
			// synthetic separator and keep parsing the next statement
			// instead of falling through to synchronize(), which would
			// otherwise discard it.
			p.diags.Errorf(diag.ParseMissingSemicolon, p.cur.Pos, "missing ';' before %s", p.cur.Kind)
		} else {
			break
		}
		stmts = append(stmts, p.parseStatement())
	}

	if p.check(token.END) {
		p.advance()
	} else {
		p.diags.Errorf(diag.ParseExpectedToken, p.cur.Pos, "expected 'end', found %s", p.cur.Kind)
		p.synchronize()
		if p.check(token.END) {
			p.advance()
		}
	}
	return &ast.CompoundStmt{Pos: pos, Stmts: stmts}
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.cur.Pos
	p.advance() // consume 'if'
	cond := p.parseCondition()
	p.expect(token.THEN, "'then'")
	thenStmt := p.parseStatement()

	var elseStmt ast.Stmt
	if p.check(token.ELSE) {
		p.advance()
		elseStmt = p.parseStatement()
	}
	return &ast.IfStmt{Pos: pos, Cond: cond, Then: thenStmt, Else: elseStmt}
}

func (p *Parser) parseWhile() ast.Stmt {
	pos := p.cur.Pos
	p.advance() // consume 'while'
	cond := p.parseCondition()
	p.expect(token.DO, "'do'")
	body := p.parseStatement()
	return &ast.WhileStmt{Pos: pos, Cond: cond, Body: body}
}

func (p *Parser) parseRead() ast.Stmt {
	pos := p.cur.Pos
	p.advance() // consume 'read'
	p.expect(token.LPAREN, "'('")

	var targets []string
	for {
		tok, ok := p.expect(token.IDENT, "variable name")
		if !ok {
			break
		}
		targets = append(targets, tok.Lexeme)
		if p.check(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RPAREN, "')'")
	return &ast.ReadStmt{Pos: pos, Targets: targets}
}

func (p *Parser) parseWrite() ast.Stmt {
	pos := p.cur.Pos
	p.advance() // consume 'write'
	p.expect(token.LPAREN, "'('")

	var exprs []ast.Expr
	exprs = append(exprs, p.parseExpression())
	for p.check(token.COMMA) {
		p.advance()
		exprs = append(exprs, p.parseExpression())
	}
	p.expect(token.RPAREN, "')'")
	return &ast.WriteStmt{Pos: pos, Exprs: exprs}
}

func (p *Parser) parseCondition() *ast.Condition {
	pos := p.cur.Pos
	if p.check(token.ODD) {
		p.advance()
		operand := p.parseExpression()
		return &ast.Condition{Pos: pos, Odd: true, Operand: operand}
	}

	left := p.parseExpression()
	if !p.cur.Kind.IsRelOp() {
		p.diags.Errorf(diag.ParseExpectedToken, p.cur.Pos, "expected a relational operator, found %s", p.cur.Kind)
		p.synchronize()
		return &ast.Condition{Pos: pos, Left: left, Op: ast.RelEQ, Right: left}
	}
	op, _ := ast.RelOpFromToken(p.cur.Kind)
	p.advance()
	right := p.parseExpression()
	return &ast.Condition{Pos: pos, Left: left, Op: op, Right: right}
}

// parseExpression parses [+|-] term {(+|-) term}.
func (p *Parser) parseExpression() ast.Expr {
	pos := p.cur.Pos
	var expr ast.Expr

	if p.check(token.PLUS) {
		p.advance()
		expr = p.parseTerm()
	} else if p.check(token.MINUS) {
		p.advance()
		operand := p.parseTerm()
		expr = &ast.UnaryExpr{Pos: pos, Negate: true, Operand: operand}
	} else {
		expr = p.parseTerm()
	}

	for p.check(token.PLUS) || p.check(token.MINUS) {
		opPos := p.cur.Pos
		op := ast.OpAdd
		if p.cur.Kind == token.MINUS {
			op = ast.OpSub
		}
		p.advance()
		right := p.parseTerm()
		expr = &ast.BinaryExpr{Pos: opPos, Op: op, Left: expr, Right: right}
	}
	return expr
}

// parseTerm parses factor {(*|/) factor}.
func (p *Parser) parseTerm() ast.Expr {
	expr := p.parseFactor()
	for p.check(token.STAR) || p.check(token.SLASH) {
		opPos := p.cur.Pos
		op := ast.OpMul
		if p.cur.Kind == token.SLASH {
			op = ast.OpDiv
		}
		p.advance()
		right := p.parseFactor()
		expr = &ast.BinaryExpr{Pos: opPos, Op: op, Left: expr, Right: right}
	}
	return expr
}

// parseFactor parses an identifier, integer literal, or parenthesized
// expression. On a completely unrecognized factor, it records a
// diagnostic and synchronizes, returning a zero NumberExpr as a
// placeholder so the caller's tree stays well-formed.
func (p *Parser) parseFactor() ast.Expr {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.IDENT:
		tok := p.advance()
		return &ast.IdentExpr{Pos: pos, Name: tok.Lexeme}
	case token.INT:
		tok := p.advance()
		return &ast.NumberExpr{Pos: pos, Value: tok.Value}
	case token.LPAREN:
		p.advance()
		inner := p.parseExpression()
		p.expect(token.RPAREN, "')'")
		return &ast.ParenExpr{Pos: pos, Inner: inner}
	default:
		p.diags.Errorf(diag.ParseUnexpectedToken, pos, "expected an identifier, integer, or '(', found %s", p.cur.Kind)
		p.synchronize()
		return &ast.NumberExpr{Pos: pos, Value: 0}
	}
}
