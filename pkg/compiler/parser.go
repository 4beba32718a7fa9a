package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent
// ---------------------------------------------------------------------------

// SyntaxError is a parse failure with its source location.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Column, e.Msg)
}

// Parser parses source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	err       *SyntaxError
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole source file. It stops at the first syntax error.
func Parse(input string) (*Program, error) {
	p := NewParser(input)
	prog := &Program{}

	for !p.curTokenIs(TokenEOF) && p.err == nil {
		if p.curTokenIs(TokenFunc) {
			if fn := p.parseFuncDecl(); fn != nil {
				prog.Funcs = append(prog.Funcs, fn)
			}
			continue
		}
		if stmt := p.parseStatement(); stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
	}

	if p.err != nil {
		return nil, p.err
	}
	return prog, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.curToken.Type == TokenError && p.err == nil {
		p.errorf("%s", p.curToken.Literal)
	}
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// expect advances past the current token if it matches, otherwise
// records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken.Type)
	return false
}

// errorf records the first parse error; later ones are noise from
// recovery and are dropped.
func (p *Parser) errorf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	p.err = &SyntaxError{
		Line:   p.curToken.Pos.Line,
		Column: p.curToken.Pos.Column,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// ---------------------------------------------------------------------------
// Declarations and statements
// ---------------------------------------------------------------------------

func (p *Parser) parseFuncDecl() *FuncDecl {
	pos := p.curToken.Pos
	p.nextToken() // consume func

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected function name, got %s", p.curToken.Type)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if !p.expect(TokenLParen) {
		return nil
	}
	var params []string
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected parameter name, got %s", p.curToken.Type)
			return nil
		}
		params = append(params, p.curToken.Literal)
		p.nextToken()
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		}
	}
	if !p.expect(TokenRParen) {
		return nil
	}

	body := p.parseBlock()
	return &FuncDecl{PosVal: pos, Name: name, Params: params, Body: body}
}

// parseBlock parses { stmt* }.
func (p *Parser) parseBlock() []Stmt {
	if !p.expect(TokenLBrace) {
		return nil
	}
	var stmts []Stmt
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) && p.err == nil {
		if p.curTokenIs(TokenFunc) {
			p.errorf("nested function declarations are not allowed")
			return nil
		}
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	p.expect(TokenRBrace)
	return stmts
}

func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenLet:
		return p.parseLet()
	case TokenPrint:
		return p.parsePrint()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenReturn:
		return p.parseReturn()
	case TokenIdentifier:
		return p.parseAssignOrCall()
	default:
		p.errorf("unexpected %s", p.curToken.Type)
		p.nextToken()
		return nil
	}
}

func (p *Parser) parseLet() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume let

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected variable name, got %s", p.curToken.Type)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if !p.expect(TokenAssign) {
		return nil
	}
	value := p.parseExpression()
	p.expect(TokenSemicolon)
	return &LetStmt{PosVal: pos, Name: name, Value: value}
}

func (p *Parser) parsePrint() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume print

	if !p.expect(TokenLParen) {
		return nil
	}
	value := p.parseExpression()
	p.expect(TokenRParen)
	p.expect(TokenSemicolon)
	return &PrintStmt{PosVal: pos, Value: value}
}

func (p *Parser) parseIf() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume if

	if !p.expect(TokenLParen) {
		return nil
	}
	cond := p.parseExpression()
	p.expect(TokenRParen)

	then := p.parseBlock()
	var els []Stmt
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		els = p.parseBlock()
	}
	return &IfStmt{PosVal: pos, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume while

	if !p.expect(TokenLParen) {
		return nil
	}
	cond := p.parseExpression()
	p.expect(TokenRParen)

	body := p.parseBlock()
	return &WhileStmt{PosVal: pos, Cond: cond, Body: body}
}

func (p *Parser) parseReturn() Stmt {
	pos := p.curToken.Pos
	p.nextToken() // consume return

	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
		return &ReturnStmt{PosVal: pos}
	}
	value := p.parseExpression()
	p.expect(TokenSemicolon)
	return &ReturnStmt{PosVal: pos, Value: value}
}

// parseAssignOrCall disambiguates `x = expr;` from `f(args);`.
func (p *Parser) parseAssignOrCall() Stmt {
	pos := p.curToken.Pos
	name := p.curToken.Literal

	if p.peekToken.Type == TokenAssign {
		p.nextToken() // consume identifier
		p.nextToken() // consume =
		value := p.parseExpression()
		p.expect(TokenSemicolon)
		return &AssignStmt{PosVal: pos, Name: name, Value: value}
	}

	if p.peekToken.Type == TokenLParen {
		call := p.parseExpression()
		p.expect(TokenSemicolon)
		return &ExprStmt{PosVal: pos, Expr: call}
	}

	p.errorf("expected = or ( after %q", name)
	p.nextToken()
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
//
// Precedence, loosest first: comparison, additive, multiplicative,
// unary, primary. All binary operators are left-associative.
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression() Expr {
	return p.parseComparison()
}

func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()
	for p.curTokenIs(TokenEq) || p.curTokenIs(TokenNe) ||
		p.curTokenIs(TokenLt) || p.curTokenIs(TokenLe) ||
		p.curTokenIs(TokenGt) || p.curTokenIs(TokenGe) {
		op := p.curToken.Type
		pos := p.curToken.Pos
		p.nextToken()
		right := p.parseAdditive()
		left = &Binary{PosVal: pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus) {
		op := p.curToken.Type
		pos := p.curToken.Pos
		p.nextToken()
		right := p.parseMultiplicative()
		left = &Binary{PosVal: pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for p.curTokenIs(TokenStar) || p.curTokenIs(TokenSlash) {
		op := p.curToken.Type
		pos := p.curToken.Pos
		p.nextToken()
		right := p.parseUnary()
		left = &Binary{PosVal: pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.curTokenIs(TokenMinus) {
		pos := p.curToken.Pos
		p.nextToken()
		operand := p.parseUnary()
		return &Unary{PosVal: pos, Op: TokenMinus, Operand: operand}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Expr {
	pos := p.curToken.Pos

	switch p.curToken.Type {
	case TokenInt:
		v, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			p.errorf("bad integer literal %q", p.curToken.Literal)
			return nil
		}
		p.nextToken()
		return &IntLit{PosVal: pos, Value: v}

	case TokenFloat:
		v, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			p.errorf("bad float literal %q", p.curToken.Literal)
			return nil
		}
		p.nextToken()
		return &FloatLit{PosVal: pos, Value: v}

	case TokenTrue:
		p.nextToken()
		return &BoolLit{PosVal: pos, Value: true}

	case TokenFalse:
		p.nextToken()
		return &BoolLit{PosVal: pos, Value: false}

	case TokenLParen:
		p.nextToken()
		inner := p.parseExpression()
		p.expect(TokenRParen)
		return inner

	case TokenIdentifier:
		name := p.curToken.Literal
		if p.peekToken.Type == TokenLParen {
			return p.parseCall(pos, name)
		}
		p.nextToken()
		return &Ident{PosVal: pos, Name: name}

	default:
		p.errorf("unexpected %s in expression", p.curToken.Type)
		p.nextToken()
		return nil
	}
}

func (p *Parser) parseCall(pos Position, name string) Expr {
	p.nextToken() // consume identifier
	p.nextToken() // consume (

	var args []Expr
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) && p.err == nil {
		args = append(args, p.parseExpression())
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		}
	}
	p.expect(TokenRParen)
	return &CallExpr{PosVal: pos, Name: name, Args: args}
}
