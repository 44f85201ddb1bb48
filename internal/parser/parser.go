// Package parser implements the GVL recursive-descent parser. It
// produces a resolved ast.Program: identifier references point at
// their declarations and every expression carries a type, so the
// transformation passes never re-derive either.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gridverify/gridverify/internal/ast"
	verr "github.com/gridverify/gridverify/internal/errors"
	"github.com/gridverify/gridverify/internal/lexer"
)

// Parser holds the token stream and resolution scopes for one parse.
type Parser struct {
	tokens []lexer.Token
	pos    int

	program *ast.Program
	scopes  []map[string]*ast.Variable
	funcs   map[string]*ast.Function
}

// Parse parses a complete GVL program from source text.
func Parse(src, filename string) (*ast.Program, error) {
	p := &Parser{
		tokens:  lexer.New(src, filename).Tokenize(),
		program: &ast.Program{},
		funcs:   map[string]*ast.Function{},
	}
	p.pushScope()
	if err := p.parseProgram(); err != nil {
		return nil, err
	}
	return p.program, nil
}

// ParseExprIn parses a single expression in the scope of a program and
// an implementation; used to validate user-supplied candidate
// invariants against the declarations they mention.
func ParseExprIn(src string, prog *ast.Program, impl *ast.Implementation) (ast.Expr, error) {
	p := &Parser{
		tokens:  lexer.New(src, "<candidate>").Tokenize(),
		program: prog,
		funcs:   map[string]*ast.Function{},
	}
	p.pushScope()
	for _, d := range prog.Decls {
		switch decl := d.(type) {
		case *ast.Variable:
			p.declare(decl)
		case *ast.Function:
			p.funcs[decl.Name] = decl
		}
	}
	if impl != nil {
		p.pushScope()
		for _, v := range impl.Params {
			p.declare(v)
		}
		for _, v := range impl.Returns {
			p.declare(v)
		}
		for _, v := range impl.Locals {
			p.declare(v)
		}
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.TokenEOF) {
		return nil, p.errorf("unexpected %s after expression", p.cur().Type)
	}
	return e, nil
}

// ===== Token plumbing =====

func (p *Parser) cur() lexer.Token { return p.tokens[p.pos] }

func (p *Parser) at(tt lexer.TokenType) bool { return p.cur().Type == tt }

func (p *Parser) next() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Type != lexer.TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) accept(tt lexer.TokenType) bool {
	if p.at(tt) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	if !p.at(tt) {
		return lexer.Token{}, p.errorf("expected %s, found %s %q", tt, p.cur().Type, p.cur().Text)
	}
	return p.next(), nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	span := p.cur().Span
	if span.IsValid() {
		msg = span.String() + ": " + msg
	}
	return verr.New(verr.CategoryInput, "PARSE", msg, nil)
}

// ===== Scopes =====

func (p *Parser) pushScope() {
	p.scopes = append(p.scopes, map[string]*ast.Variable{})
}

func (p *Parser) popScope() {
	p.scopes = p.scopes[:len(p.scopes)-1]
}

func (p *Parser) declare(v *ast.Variable) {
	p.scopes[len(p.scopes)-1][v.Name] = v
}

func (p *Parser) lookup(name string) *ast.Variable {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if v, ok := p.scopes[i][name]; ok {
			return v
		}
	}
	return nil
}

// ===== Declarations =====

func (p *Parser) parseProgram() error {
	for !p.at(lexer.TokenEOF) {
		if p.at(lexer.TokenError) {
			return p.errorf("invalid token %q", p.cur().Text)
		}
		var err error
		switch p.cur().Type {
		case lexer.TokenConst:
			err = p.parseConst()
		case lexer.TokenVar:
			err = p.parseGlobalVar()
		case lexer.TokenAxiom:
			err = p.parseAxiom()
		case lexer.TokenFunction:
			err = p.parseFunction()
		case lexer.TokenProcedure:
			err = p.parseProcedure()
		case lexer.TokenImplementation:
			err = p.parseImplementation()
		default:
			err = p.errorf("expected declaration, found %s %q", p.cur().Type, p.cur().Text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseAttributes() (ast.Attributes, error) {
	var attrs ast.Attributes
	for p.at(lexer.TokenAttrOpen) {
		p.next()
		nameTok, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		attr := ast.Attribute{Name: nameTok.Text}
		for !p.at(lexer.TokenRBrace) && !p.at(lexer.TokenEOF) {
			switch p.cur().Type {
			case lexer.TokenString:
				attr.Args = append(attr.Args, p.next().Text)
			case lexer.TokenNumber:
				n, _ := strconv.Atoi(p.next().Text)
				attr.Args = append(attr.Args, n)
			case lexer.TokenIdentifier:
				attr.Args = append(attr.Args, p.next().Text)
			case lexer.TokenComma:
				p.next()
			default:
				return nil, p.errorf("unexpected %s in attribute", p.cur().Type)
			}
		}
		if _, err := p.expect(lexer.TokenRBrace); err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

func (p *Parser) parseType() (ast.Type, error) {
	switch p.cur().Type {
	case lexer.TokenBool:
		p.next()
		return ast.TypeBool, nil
	case lexer.TokenInt:
		p.next()
		return ast.TypeInt, nil
	case lexer.TokenBv32:
		p.next()
		return ast.TypeBv32, nil
	case lexer.TokenBv64:
		p.next()
		return ast.TypeBv64, nil
	case lexer.TokenLBracket:
		p.next()
		index, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRBracket); err != nil {
			return nil, err
		}
		result, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &ast.MapType{Index: index, Result: result}, nil
	default:
		return nil, p.errorf("expected type, found %s %q", p.cur().Type, p.cur().Text)
	}
}

func (p *Parser) parseConst() error {
	start := p.next().Span // const
	attrs, err := p.parseAttributes()
	if err != nil {
		return err
	}
	p.accept(lexer.TokenUnique)
	nameTok, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenColon); err != nil {
		return err
	}
	typ, err := p.parseType()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return err
	}
	v := &ast.Variable{
		Span:  start.Union(nameTok.Span),
		Name:  nameTok.Text,
		Type:  typ,
		Kind:  ast.KindConst,
		Attrs: attrs,
	}
	v.Classify()
	p.declare(v)
	p.program.AddDecl(v)
	return nil
}

func (p *Parser) parseGlobalVar() error {
	start := p.next().Span // var
	attrs, err := p.parseAttributes()
	if err != nil {
		return err
	}
	nameTok, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenColon); err != nil {
		return err
	}
	typ, err := p.parseType()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return err
	}
	v := &ast.Variable{
		Span:  start.Union(nameTok.Span),
		Name:  nameTok.Text,
		Type:  typ,
		Kind:  ast.KindGlobal,
		Attrs: attrs,
	}
	v.Classify()
	p.declare(v)
	p.program.AddDecl(v)
	return nil
}

func (p *Parser) parseAxiom() error {
	start := p.next().Span // axiom
	attrs, err := p.parseAttributes()
	if err != nil {
		return err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return err
	}
	p.program.AddDecl(&ast.Axiom{Span: start, Attrs: attrs, Cond: cond})
	return nil
}

func (p *Parser) parseFunction() error {
	start := p.next().Span // function
	attrs, err := p.parseAttributes()
	if err != nil {
		return err
	}
	nameTok, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return err
	}
	params, err := p.parseFormals()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenColon); err != nil {
		return err
	}
	result, err := p.parseType()
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return err
	}
	f := &ast.Function{Span: start.Union(nameTok.Span), Name: nameTok.Text, Params: params, Result: result, Attrs: attrs}
	p.funcs[f.Name] = f
	p.program.AddDecl(f)
	return nil
}

// parseFormals parses "name: type, name: type" (possibly empty), used
// for function/procedure parameter lists.
func (p *Parser) parseFormals() ([]*ast.Variable, error) {
	var formals []*ast.Variable
	for p.at(lexer.TokenIdentifier) {
		nameTok := p.next()
		if _, err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		formals = append(formals, &ast.Variable{
			Span: nameTok.Span,
			Name: nameTok.Text,
			Type: typ,
			Kind: ast.KindFormal,
		})
		if !p.accept(lexer.TokenComma) {
			break
		}
	}
	return formals, nil
}

func (p *Parser) parseProcedure() error {
	start := p.next().Span // procedure
	attrs, err := p.parseAttributes()
	if err != nil {
		return err
	}
	nameTok, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return err
	}
	proc := &ast.Procedure{Span: start.Union(nameTok.Span), Name: nameTok.Text, Attrs: attrs}
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return err
	}
	if proc.Params, err = p.parseFormals(); err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return err
	}
	if p.accept(lexer.TokenReturns) {
		if _, err := p.expect(lexer.TokenLParen); err != nil {
			return err
		}
		if proc.Returns, err = p.parseFormals(); err != nil {
			return err
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return err
		}
	}
	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return err
	}

	// Contract clauses, each terminated by a semicolon. Formals are
	// in scope inside requires and ensures.
	p.pushScope()
	for _, v := range proc.Params {
		p.declare(v)
	}
	for _, v := range proc.Returns {
		p.declare(v)
	}
	for {
		free := false
		if p.at(lexer.TokenFree) {
			p.next()
			free = true
		}
		switch p.cur().Type {
		case lexer.TokenRequires, lexer.TokenEnsures:
			isRequires := p.cur().Type == lexer.TokenRequires
			clauseSpan := p.next().Span
			cond, err := p.parseExpr()
			if err != nil {
				p.popScope()
				return err
			}
			if _, err := p.expect(lexer.TokenSemicolon); err != nil {
				p.popScope()
				return err
			}
			c := &ast.Contract{Span: clauseSpan, Free: free, Cond: cond}
			if isRequires {
				proc.Requires = append(proc.Requires, c)
			} else {
				proc.Ensures = append(proc.Ensures, c)
			}
		case lexer.TokenModifies:
			if free {
				p.popScope()
				return p.errorf("free must be followed by requires or ensures")
			}
			p.next()
			for {
				m, err := p.expect(lexer.TokenIdentifier)
				if err != nil {
					p.popScope()
					return err
				}
				proc.AddModifies(m.Text)
				if !p.accept(lexer.TokenComma) {
					break
				}
			}
			if _, err := p.expect(lexer.TokenSemicolon); err != nil {
				p.popScope()
				return err
			}
		default:
			if free {
				p.popScope()
				return p.errorf("free must be followed by requires or ensures")
			}
			p.popScope()
			p.program.AddDecl(proc)
			return nil
		}
	}
}

func (p *Parser) parseImplementation() error {
	start := p.next().Span // implementation
	nameTok, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return err
	}
	impl := &ast.Implementation{Span: start.Union(nameTok.Span), Name: nameTok.Text}
	impl.Proc = p.program.Procedure(impl.Name)
	if impl.Proc == nil {
		return p.errorf("implementation %s has no matching procedure declaration", impl.Name)
	}
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return err
	}
	if impl.Params, err = p.parseFormals(); err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return err
	}
	if p.accept(lexer.TokenReturns) {
		if _, err := p.expect(lexer.TokenLParen); err != nil {
			return err
		}
		if impl.Returns, err = p.parseFormals(); err != nil {
			return err
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return err
		}
	}
	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return err
	}

	p.pushScope()
	defer p.popScope()
	for _, v := range impl.Params {
		p.declare(v)
	}
	for _, v := range impl.Returns {
		p.declare(v)
	}

	// Local declarations precede the statement list.
	for p.at(lexer.TokenVar) {
		p.next()
		attrs, err := p.parseAttributes()
		if err != nil {
			return err
		}
		nameTok, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return err
		}
		if _, err := p.expect(lexer.TokenColon); err != nil {
			return err
		}
		typ, err := p.parseType()
		if err != nil {
			return err
		}
		if _, err := p.expect(lexer.TokenSemicolon); err != nil {
			return err
		}
		v := &ast.Variable{Span: nameTok.Span, Name: nameTok.Text, Type: typ, Kind: ast.KindLocal, Attrs: attrs}
		v.Classify()
		impl.AddLocal(v)
		p.declare(v)
	}

	body, err := p.parseStmtList()
	if err != nil {
		return err
	}
	impl.Body = body
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return err
	}
	p.program.AddDecl(impl)
	return nil
}

// ===== Statements =====

// parseStmtList parses commands until the closing brace, grouping them
// into BigBlocks: each structured construct terminates the block it
// appears in.
func (p *Parser) parseStmtList() (*ast.StmtList, error) {
	list := &ast.StmtList{}
	current := &ast.BigBlock{}
	flush := func() {
		if len(current.Stmts) > 0 || current.Exit != nil {
			list.AddBlock(current)
		}
		current = &ast.BigBlock{}
	}

	for !p.at(lexer.TokenRBrace) && !p.at(lexer.TokenEOF) {
		switch p.cur().Type {
		case lexer.TokenIf:
			exit, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			current.Exit = exit
			flush()
		case lexer.TokenWhile:
			exit, err := p.parseWhile()
			if err != nil {
				return nil, err
			}
			current.Exit = exit
			flush()
		case lexer.TokenBreak:
			span := p.next().Span
			if _, err := p.expect(lexer.TokenSemicolon); err != nil {
				return nil, err
			}
			current.Exit = &ast.BreakExit{Span: span}
			flush()
		default:
			stmt, err := p.parseSimpleStmt()
			if err != nil {
				return nil, err
			}
			current.AddStmt(stmt)
		}
	}
	flush()
	if len(list.Blocks) == 0 {
		list.AddBlock(&ast.BigBlock{})
	}
	return list, nil
}

func (p *Parser) parseIf() (*ast.IfExit, error) {
	span := p.next().Span // if
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	guard, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return nil, err
	}
	then, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return nil, err
	}
	exit := &ast.IfExit{Span: span, Guard: guard, Then: then}
	if p.accept(lexer.TokenElse) {
		if p.at(lexer.TokenIf) {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			exit.ElseIf = elseIf
		} else {
			if _, err := p.expect(lexer.TokenLBrace); err != nil {
				return nil, err
			}
			els, err := p.parseStmtList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenRBrace); err != nil {
				return nil, err
			}
			exit.Else = els
		}
	}
	return exit, nil
}

func (p *Parser) parseWhile() (*ast.WhileExit, error) {
	span := p.next().Span // while
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	guard, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	exit := &ast.WhileExit{Span: span, Guard: guard}
	for p.at(lexer.TokenInvariant) {
		invSpan := p.next().Span
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenSemicolon); err != nil {
			return nil, err
		}
		exit.Invariants = append(exit.Invariants, &ast.Invariant{Span: invSpan, Cond: cond})
	}
	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return nil, err
	}
	body, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return nil, err
	}
	exit.Body = body
	return exit, nil
}

func (p *Parser) parseSimpleStmt() (ast.Stmt, error) {
	switch p.cur().Type {
	case lexer.TokenAssert, lexer.TokenAssume:
		isAssert := p.cur().Type == lexer.TokenAssert
		span := p.next().Span
		attrs, err := p.parseAttributes()
		if err != nil {
			return nil, err
		}
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenSemicolon); err != nil {
			return nil, err
		}
		if cond.Type() != nil && !cond.Type().Equals(ast.TypeBool) {
			return nil, p.errorf("assert/assume condition must be bool, found %s", cond.Type())
		}
		if isAssert {
			return &ast.AssertStmt{Span: span, Attrs: attrs, Cond: cond}, nil
		}
		return &ast.AssumeStmt{Span: span, Attrs: attrs, Cond: cond}, nil

	case lexer.TokenHavoc:
		span := p.next().Span
		var targets []*ast.IdentifierExpr
		for {
			id, err := p.parseIdentifier()
			if err != nil {
				return nil, err
			}
			targets = append(targets, id)
			if !p.accept(lexer.TokenComma) {
				break
			}
		}
		if _, err := p.expect(lexer.TokenSemicolon); err != nil {
			return nil, err
		}
		return &ast.HavocStmt{Span: span, Targets: targets}, nil

	case lexer.TokenCall:
		return p.parseCall()

	case lexer.TokenIdentifier:
		lhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		assignTok, err := p.expect(lexer.TokenAssign)
		if err != nil {
			return nil, err
		}
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenSemicolon); err != nil {
			return nil, err
		}
		if lt, rt := lhs.Type(), rhs.Type(); lt != nil && rt != nil && !lt.Equals(rt) {
			return nil, p.errorf("cannot assign %s to %s", rt, lt)
		}
		return &ast.AssignStmt{Span: assignTok.Span, LHS: lhs, RHS: rhs}, nil

	default:
		return nil, p.errorf("expected statement, found %s %q", p.cur().Type, p.cur().Text)
	}
}

func (p *Parser) parseCall() (ast.Stmt, error) {
	span := p.next().Span // call
	attrs, err := p.parseAttributes()
	if err != nil {
		return nil, err
	}
	first, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}

	stmt := &ast.CallStmt{Span: span, Attrs: attrs}
	if p.at(lexer.TokenAssign) || p.at(lexer.TokenComma) {
		// call r1, r2 := proc(args);
		firstRet := p.resolveIdent(first)
		if firstRet.Decl == nil {
			return nil, p.errorf("undeclared identifier %s", first.Text)
		}
		rets := []*ast.IdentifierExpr{firstRet}
		for p.accept(lexer.TokenComma) {
			id, err := p.parseIdentifier()
			if err != nil {
				return nil, err
			}
			rets = append(rets, id)
		}
		if _, err := p.expect(lexer.TokenAssign); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		stmt.Returns = rets
		stmt.Name = nameTok.Text
	} else {
		stmt.Name = first.Text
	}

	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	for !p.at(lexer.TokenRParen) && !p.at(lexer.TokenEOF) {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Args = append(stmt.Args, arg)
		if !p.accept(lexer.TokenComma) {
			break
		}
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenSemicolon); err != nil {
		return nil, err
	}
	stmt.Proc = p.program.Procedure(stmt.Name)
	if stmt.Proc == nil {
		return nil, p.errorf("call to undeclared procedure %s", stmt.Name)
	}
	return stmt, nil
}

// ===== Expressions =====

// Precedence climbing: implies < or < and < comparison < additive <
// multiplicative < unary < primary.

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseImplies()
}

func (p *Parser) parseImplies() (ast.Expr, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.accept(lexer.TokenImplies) {
		// Right associative.
		right, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		return ast.Binary(ast.OpImplies, left, right), nil
	}
	return left, nil
}

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(lexer.TokenOrOr) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.Binary(ast.OpOr, left, right)
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.accept(lexer.TokenAndAnd) {
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = ast.Binary(ast.OpAnd, left, right)
	}
	return left, nil
}

var comparisonOps = map[lexer.TokenType]ast.Op{
	lexer.TokenEq:  ast.OpEq,
	lexer.TokenNeq: ast.OpNeq,
	lexer.TokenLt:  ast.OpLt,
	lexer.TokenLe:  ast.OpLe,
	lexer.TokenGt:  ast.OpGt,
	lexer.TokenGe:  ast.OpGe,
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op, ok := comparisonOps[p.cur().Type]; ok {
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return ast.Binary(op, left, right), nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TokenPlus) || p.at(lexer.TokenMinus) {
		op := ast.OpAdd
		if p.next().Type == lexer.TokenMinus {
			op = ast.OpSub
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.Binary(op, left, right)
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.TokenStar) || p.at(lexer.TokenDiv) || p.at(lexer.TokenMod) {
		var op ast.Op
		switch p.next().Type {
		case lexer.TokenStar:
			op = ast.OpMul
		case lexer.TokenDiv:
			op = ast.OpDiv
		default:
			op = ast.OpMod
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.Binary(op, left, right)
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.accept(lexer.TokenNot) {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Not(operand), nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	var expr ast.Expr
	switch p.cur().Type {
	case lexer.TokenTrue:
		tok := p.next()
		expr = &ast.BoolLit{Span: tok.Span, Value: true}
	case lexer.TokenFalse:
		tok := p.next()
		expr = &ast.BoolLit{Span: tok.Span, Value: false}
	case lexer.TokenNumber:
		tok := p.next()
		val, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal %q", tok.Text)
		}
		expr = &ast.IntLit{Span: tok.Span, Value: val}
	case lexer.TokenBvNumber:
		tok := p.next()
		expr = p.bvLiteral(tok)
		if expr == nil {
			return nil, p.errorf("invalid bitvector literal %q", tok.Text)
		}
	case lexer.TokenIf:
		// (if guard then a else b)
		tok := p.next()
		guard, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenThen); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenElse); err != nil {
			return nil, err
		}
		els, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ite := ast.Ite(guard, then, els)
		ite.Span = tok.Span
		expr = ite
	case lexer.TokenLParen:
		p.next()
		if p.at(lexer.TokenForall) || p.at(lexer.TokenExists) {
			q, err := p.parseQuantifier()
			if err != nil {
				return nil, err
			}
			expr = q
		} else {
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			expr = inner
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}
	case lexer.TokenIdentifier:
		tok := p.next()
		if p.at(lexer.TokenLParen) {
			call, err := p.parseFunctionApp(tok)
			if err != nil {
				return nil, err
			}
			expr = call
		} else {
			expr = p.resolveIdent(tok)
			if expr.(*ast.IdentifierExpr).Decl == nil {
				return nil, p.errorf("undeclared identifier %s", tok.Text)
			}
		}
	default:
		return nil, p.errorf("expected expression, found %s %q", p.cur().Type, p.cur().Text)
	}

	// Map-select chain.
	for p.at(lexer.TokenLBracket) {
		open := p.next()
		index, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRBracket); err != nil {
			return nil, err
		}
		if expr.Type() != nil {
			if _, ok := expr.Type().(*ast.MapType); !ok {
				return nil, p.errorf("cannot index non-map type %s", expr.Type())
			}
		}
		expr = &ast.MapSelectExpr{Span: open.Span, Map: expr, Index: index}
	}
	return expr, nil
}

func (p *Parser) bvLiteral(tok lexer.Token) ast.Expr {
	idx := strings.Index(tok.Text, "bv")
	val, err := strconv.ParseInt(tok.Text[:idx], 10, 64)
	if err != nil {
		return nil
	}
	width, err := strconv.Atoi(tok.Text[idx+2:])
	if err != nil || (width != 32 && width != 64) {
		return nil
	}
	return &ast.IntLit{Span: tok.Span, Value: val, Width: width}
}

func (p *Parser) parseFunctionApp(nameTok lexer.Token) (ast.Expr, error) {
	fn, ok := p.funcs[nameTok.Text]
	if !ok {
		return nil, p.errorf("call of undeclared function %s", nameTok.Text)
	}
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	call := &ast.CallExpr{Span: nameTok.Span, Name: nameTok.Text, Func: fn}
	for !p.at(lexer.TokenRParen) && !p.at(lexer.TokenEOF) {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.accept(lexer.TokenComma) {
			break
		}
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	if len(call.Args) != len(fn.Params) {
		return nil, p.errorf("function %s expects %d argument(s), found %d", fn.Name, len(fn.Params), len(call.Args))
	}
	return call, nil
}

func (p *Parser) parseQuantifier() (ast.Expr, error) {
	kind := ast.Forall
	tok := p.next()
	if tok.Type == lexer.TokenExists {
		kind = ast.Exists
	}
	bound, err := p.parseFormals()
	if err != nil {
		return nil, err
	}
	if len(bound) == 0 {
		return nil, p.errorf("quantifier binds no variables")
	}
	for _, v := range bound {
		v.Kind = ast.KindBound
	}
	if _, err := p.expect(lexer.TokenColonColon); err != nil {
		return nil, err
	}
	p.pushScope()
	for _, v := range bound {
		p.declare(v)
	}
	body, err := p.parseExpr()
	p.popScope()
	if err != nil {
		return nil, err
	}
	return &ast.QuantifierExpr{Span: tok.Span, Kind: kind, Bound: bound, Body: body}, nil
}

func (p *Parser) parseIdentifier() (*ast.IdentifierExpr, error) {
	tok, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}
	id := p.resolveIdent(tok)
	if id.Decl == nil {
		return nil, p.errorf("undeclared identifier %s", tok.Text)
	}
	return id, nil
}

func (p *Parser) resolveIdent(tok lexer.Token) *ast.IdentifierExpr {
	return &ast.IdentifierExpr{Span: tok.Span, Name: tok.Text, Decl: p.lookup(tok.Text)}
}
