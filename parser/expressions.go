package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/internal/token"
)

// parseExpr is the Pratt loop. It parses a single expression whose operators
// all bind tighter than precedence. Comma sequences are handled by
// parseExpression.
func (p *Parser) parseExpr(precedence int) ast.Expr {
	if p.hadNewError() {
		return nil
	}
	if !p.enter() {
		return nil
	}
	defer p.leave()

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	left := prefix()
	if left == nil || p.hadNewError() {
		return nil
	}
	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		if p.noIn && p.peekTokenIs(token.IN) {
			break
		}
		// A line break before ++ or -- ends the expression.
		if (p.peekTokenIs(token.PLUS_PLUS) || p.peekTokenIs(token.MINUS_MINUS)) &&
			p.peekToken.NewlineBefore {
			break
		}
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
		if left == nil || p.hadNewError() {
			return nil
		}
	}
	return left
}

// parseAssignment parses an assignment expression, the unit used for
// initializers, arguments and array elements.
func (p *Parser) parseAssignment() ast.Expr {
	return p.parseExpr(LOWEST)
}

// parseExpression parses a full expression including comma sequences.
func (p *Parser) parseExpression() ast.Expr {
	first := p.parseAssignment()
	if first == nil {
		return nil
	}
	if !p.peekTokenIs(token.COMMA) {
		return first
	}
	seq := &ast.Sequence{Exprs: []ast.Expr{first}}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		next := p.parseAssignment()
		if next == nil {
			return nil
		}
		seq.Exprs = append(seq.Exprs, next)
	}
	return seq
}

// withIn parses with the `in` operator re-enabled, as inside brackets.
func (p *Parser) withIn(fn func() ast.Expr) ast.Expr {
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()
	return fn()
}

func (p *Parser) parseIdentOrArrow() ast.Expr {
	ident := p.newIdent(p.curToken)
	if p.peekTokenIs(token.ARROW) && !p.peekToken.NewlineBefore {
		p.nextToken() // =>
		return p.parseArrowBody(ident.NamePos, []*ast.Param{{Name: ident}})
	}
	return ident
}

func (p *Parser) parseNumber() ast.Expr {
	lit := p.curToken.Literal
	value, err := parseNumberLiteral(lit)
	if err != nil {
		p.setTokenErrorCode(errors.E1008, p.curToken, "invalid number literal %q", lit)
		return nil
	}
	return &ast.Number{ValuePos: p.curToken.StartPosition, Literal: lit, Value: value}
}

func parseNumberLiteral(lit string) (float64, error) {
	if len(lit) > 2 && lit[0] == '0' && strings.ContainsRune("xXoObB", rune(lit[1])) {
		u, err := strconv.ParseUint(lit, 0, 64)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return math.Inf(1), nil
			}
			return 0, err
		}
		return float64(u), nil
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v, nil
		}
		return 0, err
	}
	return v, nil
}

func (p *Parser) parseString() ast.Expr {
	return &ast.String{
		ValuePos: p.curToken.StartPosition,
		EndPos:   p.curToken.EndPosition,
		Value:    p.curToken.Literal,
	}
}

func (p *Parser) parseBoolean() ast.Expr {
	return &ast.Bool{ValuePos: p.curToken.StartPosition, Value: p.curTokenIs(token.TRUE)}
}

func (p *Parser) parseNull() ast.Expr {
	return &ast.Null{NullPos: p.curToken.StartPosition}
}

func (p *Parser) parseUndefined() ast.Expr {
	return &ast.Undefined{UndefinedPos: p.curToken.StartPosition}
}

func (p *Parser) parseThis() ast.Expr {
	return &ast.This{ThisPos: p.curToken.StartPosition}
}

func (p *Parser) parseArray() ast.Expr {
	lbrack := p.curToken.StartPosition
	items, ok := p.parseExprList(token.RBRACKET, "array literal")
	if !ok {
		return nil
	}
	return &ast.Array{Lbrack: lbrack, Items: items, Rbrack: p.curToken.StartPosition}
}

// parseExprList parses comma separated assignment expressions, allowing
// spread elements and a trailing comma. The current token is the opening
// delimiter; on return it is the closing one.
func (p *Parser) parseExprList(end token.Type, context string) ([]ast.Expr, bool) {
	var items []ast.Expr
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()
	for !p.peekTokenIs(end) {
		p.nextToken()
		var item ast.Expr
		if p.curTokenIs(token.SPREAD) {
			pos := p.curToken.StartPosition
			p.nextToken()
			x := p.parseAssignment()
			if x == nil {
				return nil, false
			}
			item = &ast.Spread{Ellipsis: pos, X: x}
		} else {
			item = p.parseAssignment()
			if item == nil {
				return nil, false
			}
		}
		items = append(items, item)
		if p.peekTokenIs(end) {
			break
		}
		if !p.expectPeek(context, token.COMMA) {
			return nil, false
		}
	}
	if !p.expectPeek(context, end) {
		return nil, false
	}
	return items, true
}

func (p *Parser) parseObject() ast.Expr {
	obj := &ast.Object{Lbrace: p.curToken.StartPosition}
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()
	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		prop := p.parseProperty()
		if prop == nil {
			return nil
		}
		obj.Props = append(obj.Props, prop)
		if p.peekTokenIs(token.RBRACE) {
			break
		}
		if !p.expectPeek("object literal", token.COMMA) {
			return nil
		}
	}
	if !p.expectPeek("object literal", token.RBRACE) {
		return nil
	}
	obj.Rbrace = p.curToken.StartPosition
	return obj
}

func (p *Parser) parseProperty() *ast.Property {
	prop := &ast.Property{}
	keyTok := p.curToken
	switch {
	case p.curTokenIs(token.SPREAD):
		p.nextToken()
		value := p.parseAssignment()
		if value == nil {
			return nil
		}
		return &ast.Property{Spread: true, Value: value}
	case p.curTokenIs(token.LBRACKET):
		p.nextToken()
		key := p.parseAssignment()
		if key == nil || !p.expectPeek("computed property name", token.RBRACKET) {
			return nil
		}
		prop.Key = key
		prop.Computed = true
	case p.curTokenIs(token.STRING):
		prop.Key = &ast.String{ValuePos: keyTok.StartPosition, EndPos: keyTok.EndPosition, Value: keyTok.Literal}
	case p.curTokenIs(token.NUMBER):
		value, err := parseNumberLiteral(keyTok.Literal)
		if err != nil {
			p.setTokenErrorCode(errors.E1008, keyTok, "invalid number literal %q", keyTok.Literal)
			return nil
		}
		prop.Key = &ast.String{
			ValuePos: keyTok.StartPosition,
			EndPos:   keyTok.EndPosition,
			Value:    strconv.FormatFloat(value, 'f', -1, 64),
		}
	case p.curTokenIs(token.IDENT) || token.IsKeyword(p.curToken.Type):
		prop.Key = &ast.String{ValuePos: keyTok.StartPosition, EndPos: keyTok.EndPosition, Value: keyTok.Literal}
	default:
		p.noPrefixParseFnError(keyTok)
		return nil
	}

	switch {
	case p.peekTokenIs(token.COLON):
		p.nextToken()
		p.nextToken()
		prop.Value = p.parseAssignment()
		if prop.Value == nil {
			return nil
		}
	case p.peekTokenIs(token.LPAREN):
		// method shorthand
		p.nextToken()
		fn := p.parseFuncRest(keyTok.StartPosition, nil)
		if fn == nil {
			return nil
		}
		prop.Value = fn
	case !prop.Computed && keyTok.Type == token.IDENT &&
		(p.peekTokenIs(token.COMMA) || p.peekTokenIs(token.RBRACE)):
		prop.Value = p.newIdent(keyTok)
	default:
		p.peekError("object literal", token.COLON, p.peekToken)
		return nil
	}
	return prop
}

// parseGroupedOrArrow handles "(" in prefix position, which starts either a
// parenthesized expression or an arrow function parameter list.
func (p *Parser) parseGroupedOrArrow() ast.Expr {
	if p.arrowAhead() {
		pos := p.curToken.StartPosition
		params := p.parseParams()
		if params == nil {
			return nil
		}
		if !p.expectPeek("arrow function", token.ARROW) {
			return nil
		}
		return p.parseArrowBody(pos, params)
	}
	p.nextToken()
	expr := p.withIn(p.parseExpression)
	if expr == nil {
		return nil
	}
	if !p.expectPeek("parenthesized expression", token.RPAREN) {
		return nil
	}
	return expr
}

// arrowAhead scans from the current "(" to its matching ")" and reports
// whether "=>" follows. No tokens are consumed.
func (p *Parser) arrowAhead() bool {
	if p.lexFailed {
		return false
	}
	state := p.l.SaveState()
	defer p.l.RestoreState(state)
	tok := p.peekToken
	depth := 1
	for {
		switch tok.Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			depth--
		case token.EOF, token.ILLEGAL:
			return false
		}
		if depth == 0 {
			break
		}
		var err error
		tok, err = p.l.Next()
		if err != nil {
			return false
		}
	}
	next, err := p.l.Next()
	return err == nil && next.Type == token.ARROW && !next.NewlineBefore
}

// parseParams parses a parameter list. The current token is "(" and on
// return it is ")".
func (p *Parser) parseParams() []*ast.Param {
	params := []*ast.Param{}
	seen := map[string]bool{}
	for !p.peekTokenIs(token.RPAREN) {
		rest := false
		if p.peekTokenIs(token.SPREAD) {
			p.nextToken()
			rest = true
		}
		if !p.expectPeek("parameter list", token.IDENT) {
			return nil
		}
		name := p.newIdent(p.curToken)
		if seen[name.Name] {
			p.setTokenErrorCode(errors.E2006, p.curToken, "duplicate parameter name %q", name.Name)
			return nil
		}
		seen[name.Name] = true
		param := &ast.Param{Name: name, Rest: rest}
		if !rest && p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			param.Default = p.withIn(p.parseAssignment)
			if param.Default == nil {
				return nil
			}
		}
		params = append(params, param)
		if rest {
			if !p.peekTokenIs(token.RPAREN) {
				p.setTokenError(p.peekToken, "rest parameter must be last formal parameter")
				return nil
			}
			break
		}
		if p.peekTokenIs(token.RPAREN) {
			break
		}
		if !p.expectPeek("parameter list", token.COMMA) {
			return nil
		}
	}
	if !p.expectPeek("parameter list", token.RPAREN) {
		return nil
	}
	return params
}

// parseArrowBody parses the body following "=>", which is the current token.
func (p *Parser) parseArrowBody(pos token.Position, params []*ast.Param) ast.Expr {
	fn := &ast.Func{FuncPos: pos, Params: params, Arrow: true}
	if p.peekTokenIs(token.LBRACE) {
		p.nextToken()
		body := p.parseFuncBody()
		if body == nil {
			return nil
		}
		fn.Body = body
		return fn
	}
	p.nextToken()
	saved := p.noIn
	p.noIn = false
	value := p.parseAssignment()
	p.noIn = saved
	if value == nil {
		return nil
	}
	fn.Body = &ast.Block{
		Lbrace: value.Pos(),
		Stmts:  []ast.Stmt{&ast.Return{ReturnPos: value.Pos(), Value: value}},
		Rbrace: value.End(),
	}
	return fn
}

func (p *Parser) parseFuncExpr() ast.Expr {
	pos := p.curToken.StartPosition
	var name *ast.Ident
	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		name = p.newIdent(p.curToken)
	}
	if !p.expectPeek("function", token.LPAREN) {
		return nil
	}
	fn := p.parseFuncRest(pos, name)
	if fn == nil {
		return nil
	}
	return fn
}

// parseFuncRest parses parameters and body. The current token is "(".
func (p *Parser) parseFuncRest(pos token.Position, name *ast.Ident) *ast.Func {
	params := p.parseParams()
	if params == nil {
		return nil
	}
	if !p.expectPeek("function", token.LBRACE) {
		return nil
	}
	body := p.parseFuncBody()
	if body == nil {
		return nil
	}
	return &ast.Func{FuncPos: pos, Name: name, Params: params, Body: body}
}

// parseFuncBody parses a function body block in a fresh statement context.
func (p *Parser) parseFuncBody() *ast.Block {
	savedLoop, savedSwitch, savedNoIn := p.loopDepth, p.switchDepth, p.noIn
	p.loopDepth, p.switchDepth, p.noIn = 0, 0, false
	p.funcDepth++
	defer func() {
		p.loopDepth, p.switchDepth, p.noIn = savedLoop, savedSwitch, savedNoIn
		p.funcDepth--
	}()
	return p.parseBlock()
}

func (p *Parser) parseNew() ast.Expr {
	pos := p.curToken.StartPosition
	p.nextToken()
	if !p.enter() {
		return nil
	}
	defer p.leave()
	var callee ast.Expr
	if p.curTokenIs(token.NEW) {
		callee = p.parseNew()
	} else {
		prefix := p.prefixParseFns[p.curToken.Type]
		if prefix == nil {
			p.noPrefixParseFnError(p.curToken)
			return nil
		}
		callee = prefix()
	}
	if callee == nil {
		return nil
	}
	for p.peekTokenIs(token.PERIOD) || p.peekTokenIs(token.LBRACKET) {
		p.nextToken()
		if p.curTokenIs(token.PERIOD) {
			callee = p.parseMember(callee)
		} else {
			callee = p.parseIndex(callee)
		}
		if callee == nil {
			return nil
		}
	}
	node := &ast.New{NewPos: pos, Callee: callee, EndPos: callee.End()}
	if p.peekTokenIs(token.LPAREN) {
		p.nextToken()
		args, ok := p.parseExprList(token.RPAREN, "constructor arguments")
		if !ok {
			return nil
		}
		node.Args = args
		node.EndPos = p.curToken.EndPosition
	}
	return node
}

func (p *Parser) parsePrefixExpr() ast.Expr {
	tok := p.curToken
	op := tok.Literal
	p.nextToken()
	x := p.parseExpr(PREFIX)
	if x == nil {
		return nil
	}
	return &ast.Prefix{OpPos: tok.StartPosition, Op: op, X: x}
}

func (p *Parser) parsePrefixUpdate() ast.Expr {
	tok := p.curToken
	p.nextToken()
	x := p.parseExpr(PREFIX)
	if x == nil {
		return nil
	}
	if !isSimpleTarget(x) {
		p.setTokenErrorCode(errors.E1005, tok, "invalid %s operand", tok.Literal)
		return nil
	}
	return &ast.Update{OpPos: tok.StartPosition, Op: tok.Literal, Prefix: true, X: x}
}

func (p *Parser) parsePostfix(left ast.Expr) ast.Expr {
	if !isSimpleTarget(left) {
		p.setTokenErrorCode(errors.E1005, p.curToken, "invalid %s operand", p.curToken.Literal)
		return nil
	}
	return &ast.Update{OpPos: p.curToken.StartPosition, Op: p.curToken.Literal, X: left}
}

func (p *Parser) parseInfixExpr(left ast.Expr) ast.Expr {
	tok := p.curToken
	precedence := precedences[tok.Type]
	p.nextToken()
	right := p.parseExpr(precedence)
	if right == nil {
		return nil
	}
	return &ast.Infix{X: left, OpPos: tok.StartPosition, Op: opText(tok), Y: right}
}

// parsePower parses the right-associative exponent operator.
func (p *Parser) parsePower(left ast.Expr) ast.Expr {
	tok := p.curToken
	p.nextToken()
	right := p.parseExpr(POWER - 1)
	if right == nil {
		return nil
	}
	return &ast.Infix{X: left, OpPos: tok.StartPosition, Op: "**", Y: right}
}

func (p *Parser) parseLogical(left ast.Expr) ast.Expr {
	tok := p.curToken
	precedence := precedences[tok.Type]
	p.nextToken()
	right := p.parseExpr(precedence)
	if right == nil {
		return nil
	}
	return &ast.Logical{X: left, OpPos: tok.StartPosition, Op: tok.Literal, Y: right}
}

func opText(tok token.Token) string {
	switch tok.Type {
	case token.IN:
		return "in"
	case token.INSTANCEOF:
		return "instanceof"
	}
	return tok.Literal
}

func (p *Parser) parseAssign(left ast.Expr) ast.Expr {
	tok := p.curToken
	if !isSimpleTarget(left) {
		p.setTokenErrorCode(errors.E1005, tok, "invalid assignment target")
		return nil
	}
	p.nextToken()
	value := p.parseExpr(ASSIGN - 1)
	if value == nil {
		return nil
	}
	return &ast.Assign{Target: left, OpPos: tok.StartPosition, Op: tok.Literal, Value: value}
}

func isSimpleTarget(x ast.Expr) bool {
	switch x := x.(type) {
	case *ast.Ident:
		return true
	case *ast.Member:
		return !x.Optional
	case *ast.Index:
		return !x.Optional
	}
	return false
}

func (p *Parser) parseTernary(cond ast.Expr) ast.Expr {
	question := p.curToken.StartPosition
	p.nextToken()
	ifTrue := p.withIn(p.parseAssignment)
	if ifTrue == nil {
		return nil
	}
	if !p.expectPeek("ternary expression", token.COLON) {
		return nil
	}
	p.nextToken()
	ifFalse := p.parseAssignment()
	if ifFalse == nil {
		return nil
	}
	return &ast.Ternary{Cond: cond, Question: question, IfTrue: ifTrue, IfFalse: ifFalse}
}

func (p *Parser) parseCall(fn ast.Expr) ast.Expr {
	lparen := p.curToken.StartPosition
	args, ok := p.parseExprList(token.RPAREN, "call arguments")
	if !ok {
		return nil
	}
	return &ast.Call{Fun: fn, Lparen: lparen, Args: args, Rparen: p.curToken.StartPosition}
}

func (p *Parser) parseMember(x ast.Expr) ast.Expr {
	period := p.curToken.StartPosition
	if !p.expectPeekName("property access") {
		return nil
	}
	return &ast.Member{X: x, Period: period, Name: p.newIdent(p.curToken)}
}

func (p *Parser) parseIndex(x ast.Expr) ast.Expr {
	lbrack := p.curToken.StartPosition
	p.nextToken()
	index := p.withIn(p.parseExpression)
	if index == nil {
		return nil
	}
	if !p.expectPeek("index expression", token.RBRACKET) {
		return nil
	}
	return &ast.Index{X: x, Lbrack: lbrack, Index: index, Rbrack: p.curToken.StartPosition}
}

// parseOptional handles "?." followed by a name, "[" or "(".
func (p *Parser) parseOptional(x ast.Expr) ast.Expr {
	period := p.curToken.StartPosition
	switch {
	case p.peekTokenIs(token.LPAREN):
		p.nextToken()
		call, ok := p.parseCall(x).(*ast.Call)
		if !ok || call == nil {
			return nil
		}
		call.Optional = true
		return call
	case p.peekTokenIs(token.LBRACKET):
		p.nextToken()
		idx, ok := p.parseIndex(x).(*ast.Index)
		if !ok || idx == nil {
			return nil
		}
		idx.Optional = true
		return idx
	}
	if !p.expectPeekName("optional chain") {
		return nil
	}
	return &ast.Member{X: x, Period: period, Name: p.newIdent(p.curToken), Optional: true}
}
