package parser

import (
	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/internal/token"
)

// parseStatement parses one statement. On return the current token is the
// last token of the statement.
func (p *Parser) parseStatement() ast.Stmt {
	if !p.enter() {
		return nil
	}
	defer p.leave()

	switch p.curToken.Type {
	case token.LET, token.CONST, token.VAR:
		decl := p.parseVarDecl()
		if decl == nil || !p.consumeSemicolon() {
			return nil
		}
		return decl
	case token.FUNCTION:
		decl := p.parseFuncDecl(true)
		if decl == nil {
			return nil
		}
		return decl
	case token.LBRACE:
		block := p.parseBlock()
		if block == nil {
			return nil
		}
		return block
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.DO:
		return p.parseDoWhile()
	case token.FOR:
		return p.parseFor()
	case token.RETURN:
		return p.parseReturn()
	case token.BREAK:
		return p.parseBreak()
	case token.CONTINUE:
		return p.parseContinue()
	case token.THROW:
		return p.parseThrow()
	case token.TRY:
		return p.parseTry()
	case token.SWITCH:
		return p.parseSwitch()
	case token.SEMICOLON:
		return &ast.Empty{Semicolon: p.curToken.StartPosition}
	case token.IMPORT:
		if p.peekTokenIs(token.LPAREN) || p.peekTokenIs(token.PERIOD) {
			p.setTokenError(p.curToken, "dynamic import is not supported")
			return nil
		}
		if !p.module {
			p.setTokenErrorCode(errors.E1011, p.curToken, "cannot use import statement outside a module")
			return nil
		}
		if p.blockDepth > 0 || p.funcDepth > 0 {
			p.setTokenErrorCode(errors.E1011, p.curToken, "import declarations may only appear at top level of a module")
			return nil
		}
		return p.parseImport()
	case token.EXPORT:
		if !p.module {
			p.setTokenErrorCode(errors.E1011, p.curToken, "cannot use export statement outside a module")
			return nil
		}
		if p.blockDepth > 0 || p.funcDepth > 0 {
			p.setTokenErrorCode(errors.E1011, p.curToken, "export declarations may only appear at top level of a module")
			return nil
		}
		return p.parseExport()
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseExpressionStatement() ast.Stmt {
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	if !p.consumeSemicolon() {
		return nil
	}
	return &ast.ExprStmt{X: expr}
}

// parseVarDecl parses a declaration starting at let, const or var. The
// trailing semicolon is left to the caller.
func (p *Parser) parseVarDecl() *ast.VarDecl {
	decl := &ast.VarDecl{DeclPos: p.curToken.StartPosition, Kind: p.curToken.Literal}
	for {
		if !p.expectPeek(decl.Kind+" declaration", token.IDENT) {
			return nil
		}
		d := &ast.Declarator{Name: p.newIdent(p.curToken)}
		if p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			d.Value = p.parseAssignment()
			if d.Value == nil {
				return nil
			}
		} else if decl.Kind == "const" {
			p.setTokenError(p.curToken, "missing initializer in const declaration")
			return nil
		}
		decl.Decls = append(decl.Decls, d)
		if !p.peekTokenIs(token.COMMA) {
			return decl
		}
		p.nextToken()
	}
}

// parseFuncDecl parses "function name(...) {...}". The name is optional only
// for export default declarations.
func (p *Parser) parseFuncDecl(nameRequired bool) *ast.FuncDecl {
	pos := p.curToken.StartPosition
	var name *ast.Ident
	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		name = p.newIdent(p.curToken)
	} else if nameRequired {
		p.peekError("function declaration", token.IDENT, p.peekToken)
		return nil
	}
	if !p.expectPeek("function declaration", token.LPAREN) {
		return nil
	}
	fn := p.parseFuncRest(pos, name)
	if fn == nil {
		return nil
	}
	return &ast.FuncDecl{Func: fn}
}

// parseBlock parses statements up to the matching "}". The current token
// must be "{".
func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Lbrace: p.curToken.StartPosition}
	p.blockDepth++
	defer func() { p.blockDepth-- }()
	p.nextToken()
	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.setTokenErrorCode(errors.E1001, p.curToken, "unexpected end of file (expected })")
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil || p.hadNewError() {
			return nil
		}
		block.Stmts = append(block.Stmts, stmt)
		p.nextToken()
	}
	block.Rbrace = p.curToken.StartPosition
	return block
}

// parseBody parses a statement used as the body of a control structure.
func (p *Parser) parseBody() ast.Stmt {
	if p.curTokenIs(token.LET) || p.curTokenIs(token.CONST) {
		p.setTokenError(p.curToken, "lexical declaration cannot appear in a single-statement context")
		return nil
	}
	return p.parseStatement()
}

func (p *Parser) parseParenCond(context string) ast.Expr {
	if !p.expectPeek(context, token.LPAREN) {
		return nil
	}
	p.nextToken()
	cond := p.withIn(p.parseExpression)
	if cond == nil {
		return nil
	}
	if !p.expectPeek(context, token.RPAREN) {
		return nil
	}
	return cond
}

func (p *Parser) parseIf() ast.Stmt {
	stmt := &ast.If{IfPos: p.curToken.StartPosition}
	stmt.Cond = p.parseParenCond("if statement")
	if stmt.Cond == nil {
		return nil
	}
	p.nextToken()
	stmt.Consequence = p.parseBody()
	if stmt.Consequence == nil {
		return nil
	}
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		p.nextToken()
		stmt.Alternative = p.parseBody()
		if stmt.Alternative == nil {
			return nil
		}
	}
	return stmt
}

func (p *Parser) loopBody() ast.Stmt {
	p.loopDepth++
	defer func() { p.loopDepth-- }()
	return p.parseBody()
}

func (p *Parser) parseWhile() ast.Stmt {
	stmt := &ast.While{WhilePos: p.curToken.StartPosition}
	stmt.Cond = p.parseParenCond("while statement")
	if stmt.Cond == nil {
		return nil
	}
	p.nextToken()
	stmt.Body = p.loopBody()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseDoWhile() ast.Stmt {
	stmt := &ast.DoWhile{DoPos: p.curToken.StartPosition}
	p.nextToken()
	stmt.Body = p.loopBody()
	if stmt.Body == nil {
		return nil
	}
	if !p.expectPeek("do-while statement", token.WHILE) {
		return nil
	}
	stmt.Cond = p.parseParenCond("do-while statement")
	if stmt.Cond == nil {
		return nil
	}
	stmt.Rparen = p.curToken.StartPosition
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseFor() ast.Stmt {
	forPos := p.curToken.StartPosition
	if !p.expectPeek("for statement", token.LPAREN) {
		return nil
	}
	p.nextToken()

	// for (let x of xs) / for (x in obj)
	switch {
	case p.curTokenIs(token.LET) || p.curTokenIs(token.CONST) || p.curTokenIs(token.VAR):
		if p.peekTokenIs(token.IDENT) {
			second := p.peekSecond()
			if second.Type == token.IN || (second.Type == token.IDENT && second.Literal == "of") {
				kind := p.curToken.Literal
				p.nextToken()
				return p.parseForEach(forPos, kind)
			}
		}
	case p.curTokenIs(token.IDENT):
		if p.peekTokenIs(token.IN) || p.peekIsContextual("of") {
			return p.parseForEach(forPos, "")
		}
	}

	stmt := &ast.For{ForPos: forPos}
	if !p.curTokenIs(token.SEMICOLON) {
		p.noIn = true
		if p.curTokenIs(token.LET) || p.curTokenIs(token.CONST) || p.curTokenIs(token.VAR) {
			decl := p.parseVarDecl()
			if decl != nil {
				stmt.Init = decl
			}
		} else if expr := p.parseExpression(); expr != nil {
			stmt.Init = &ast.ExprStmt{X: expr}
		}
		p.noIn = false
		if stmt.Init == nil {
			return nil
		}
		if !p.expectPeek("for statement", token.SEMICOLON) {
			return nil
		}
	}
	// current token is the first ";"
	if !p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		stmt.Cond = p.parseExpression()
		if stmt.Cond == nil {
			return nil
		}
	}
	if !p.expectPeek("for statement", token.SEMICOLON) {
		return nil
	}
	if !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		stmt.Post = p.parseExpression()
		if stmt.Post == nil {
			return nil
		}
	}
	if !p.expectPeek("for statement", token.RPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Body = p.loopBody()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

// parseForEach parses the rest of a for-of or for-in loop. The current token
// is the loop variable.
func (p *Parser) parseForEach(forPos token.Position, kind string) ast.Stmt {
	stmt := &ast.ForEach{ForPos: forPos, Kind: kind, Name: p.newIdent(p.curToken)}
	p.nextToken() // of / in
	stmt.Of = p.curTokenIs(token.IDENT)
	p.nextToken()
	if stmt.Of {
		stmt.Iter = p.parseAssignment()
	} else {
		stmt.Iter = p.parseExpression()
	}
	if stmt.Iter == nil {
		return nil
	}
	if !p.expectPeek("for statement", token.RPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Body = p.loopBody()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseReturn() ast.Stmt {
	stmt := &ast.Return{ReturnPos: p.curToken.StartPosition}
	if p.funcDepth == 0 {
		p.setTokenErrorCode(errors.E2005, p.curToken, "illegal return statement")
		return nil
	}
	if p.peekTokenIs(token.SEMICOLON) || p.peekTokenIs(token.RBRACE) ||
		p.peekTokenIs(token.EOF) || p.peekToken.NewlineBefore {
		if p.peekTokenIs(token.SEMICOLON) {
			p.nextToken()
		}
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseExpression()
	if stmt.Value == nil || !p.consumeSemicolon() {
		return nil
	}
	return stmt
}

func (p *Parser) parseBreak() ast.Stmt {
	stmt := &ast.Break{BreakPos: p.curToken.StartPosition}
	if p.loopDepth == 0 && p.switchDepth == 0 {
		p.setTokenErrorCode(errors.E2003, p.curToken, "illegal break statement")
		return nil
	}
	if !p.consumeSemicolon() {
		return nil
	}
	return stmt
}

func (p *Parser) parseContinue() ast.Stmt {
	stmt := &ast.Continue{ContinuePos: p.curToken.StartPosition}
	if p.loopDepth == 0 {
		p.setTokenErrorCode(errors.E2004, p.curToken, "illegal continue statement")
		return nil
	}
	if !p.consumeSemicolon() {
		return nil
	}
	return stmt
}

func (p *Parser) parseThrow() ast.Stmt {
	stmt := &ast.Throw{ThrowPos: p.curToken.StartPosition}
	if p.peekToken.NewlineBefore {
		p.setTokenError(p.peekToken, "illegal newline after throw")
		return nil
	}
	p.nextToken()
	stmt.Value = p.parseExpression()
	if stmt.Value == nil || !p.consumeSemicolon() {
		return nil
	}
	return stmt
}

func (p *Parser) parseTry() ast.Stmt {
	stmt := &ast.Try{TryPos: p.curToken.StartPosition}
	if !p.expectPeek("try statement", token.LBRACE) {
		return nil
	}
	if stmt.Body = p.parseBlock(); stmt.Body == nil {
		return nil
	}
	if p.peekTokenIs(token.CATCH) {
		p.nextToken()
		if p.peekTokenIs(token.LPAREN) {
			p.nextToken()
			if !p.expectPeek("catch clause", token.IDENT) {
				return nil
			}
			stmt.CatchParam = p.newIdent(p.curToken)
			if !p.expectPeek("catch clause", token.RPAREN) {
				return nil
			}
		}
		if !p.expectPeek("catch clause", token.LBRACE) {
			return nil
		}
		if stmt.Catch = p.parseBlock(); stmt.Catch == nil {
			return nil
		}
	}
	if p.peekTokenIs(token.FINALLY) {
		p.nextToken()
		if !p.expectPeek("finally clause", token.LBRACE) {
			return nil
		}
		if stmt.Finally = p.parseBlock(); stmt.Finally == nil {
			return nil
		}
	}
	if stmt.Catch == nil && stmt.Finally == nil {
		p.setTokenError(p.peekToken, "missing catch or finally after try")
		return nil
	}
	return stmt
}

func (p *Parser) parseSwitch() ast.Stmt {
	stmt := &ast.Switch{SwitchPos: p.curToken.StartPosition}
	stmt.Value = p.parseParenCond("switch statement")
	if stmt.Value == nil {
		return nil
	}
	if !p.expectPeek("switch statement", token.LBRACE) {
		return nil
	}
	p.switchDepth++
	p.blockDepth++
	defer func() {
		p.switchDepth--
		p.blockDepth--
	}()
	p.nextToken()
	hasDefault := false
	for !p.curTokenIs(token.RBRACE) {
		c := &ast.Case{CasePos: p.curToken.StartPosition}
		switch p.curToken.Type {
		case token.CASE:
			p.nextToken()
			c.Value = p.withIn(p.parseExpression)
			if c.Value == nil {
				return nil
			}
		case token.DEFAULT:
			if hasDefault {
				p.setTokenError(p.curToken, "multiple default clauses in switch statement")
				return nil
			}
			hasDefault = true
		default:
			p.noPrefixParseFnError(p.curToken)
			return nil
		}
		if !p.expectPeek("switch case", token.COLON) {
			return nil
		}
		for !p.peekTokenIs(token.CASE) && !p.peekTokenIs(token.DEFAULT) &&
			!p.peekTokenIs(token.RBRACE) {
			if p.peekTokenIs(token.EOF) {
				p.peekError("switch statement", token.RBRACE, p.peekToken)
				return nil
			}
			p.nextToken()
			s := p.parseStatement()
			if s == nil || p.hadNewError() {
				return nil
			}
			c.Body = append(c.Body, s)
		}
		stmt.Cases = append(stmt.Cases, c)
		p.nextToken()
	}
	stmt.Rbrace = p.curToken.StartPosition
	return stmt
}
