// Package parser is used to generate the abstract syntax tree (AST) for a program.
//
// A parser is created by calling New() with a lexer as input. The parser should
// then be used only once, by calling parser.Parse() to produce the AST.
//
// Source is parsed with one of two goals. The script goal rejects import and
// export declarations. The module goal (WithModule) accepts them at the top
// level only.
package parser

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/internal/lexer"
	"github.com/deepnoodle-ai/jsrt/internal/token"
)

type (
	prefixParseFn func() ast.Expr
	infixParseFn  func(ast.Expr) ast.Expr
)

// Parse the provided input as source code and return the AST. This is
// shorthand way to create a Lexer and Parser and then call Parse on that.
func Parse(ctx context.Context, input string, options ...Option) (*ast.Program, error) {
	var probe Parser
	for _, opt := range options {
		opt(&probe)
	}
	l := lexer.New(input)
	if probe.filename != "" {
		l.SetFilename(probe.filename)
	}
	p := New(l, options...)
	return p.Parse(ctx)
}

// Option is a configuration function for a Parser.
type Option func(*Parser)

// WithFilename sets the file name reported in errors and positions.
func WithFilename(filename string) Option {
	return func(p *Parser) {
		p.filename = filename
	}
}

// WithMaxDepth sets the maximum nesting depth for the parser.
// This prevents stack overflow on deeply nested input.
// The default is 500.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		p.maxDepth = depth
	}
}

// WithModule parses the input with the module goal.
func WithModule() Option {
	return func(p *Parser) {
		p.module = true
	}
}

// DefaultMaxDepth is the default maximum nesting depth for parsing.
const DefaultMaxDepth = 500

// MaxErrors is the maximum number of errors to collect before stopping.
const MaxErrors = 10

// Parser object
type Parser struct {
	// the Context supplied in the Parse() call
	ctx context.Context

	// l is our lexer
	l *lexer.Lexer

	prevToken token.Token
	curToken  token.Token
	peekToken token.Token

	// parsing errors collected during parsing
	errors []ParserError

	// stmtErrorCount tracks error count at start of current statement.
	stmtErrorCount int

	// lexFailed is set once the lexer reports an error. The remaining token
	// stream is unreliable so parsing stops.
	lexFailed bool

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn

	filename string
	module   bool

	depth    int
	maxDepth int

	// statement context
	blockDepth  int
	funcDepth   int
	loopDepth   int
	switchDepth int

	// noIn disables the `in` operator while parsing a for-loop initializer.
	noIn bool
}

// New returns a Parser for the program provided by the given Lexer.
func New(l *lexer.Lexer, options ...Option) *Parser {
	p := &Parser{
		l:              l,
		prefixParseFns: map[token.Type]prefixParseFn{},
		infixParseFns:  map[token.Type]infixParseFn{},
		maxDepth:       DefaultMaxDepth,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.filename != "" && l.Filename() == "" {
		l.SetFilename(p.filename)
	}

	// Prime the token pump
	p.nextToken() // makes curToken=<empty>, peekToken=token[0]
	p.nextToken() // makes curToken=token[0], peekToken=token[1]

	p.registerPrefix(token.IDENT, p.parseIdentOrArrow)
	p.registerPrefix(token.NUMBER, p.parseNumber)
	p.registerPrefix(token.STRING, p.parseString)
	p.registerPrefix(token.TRUE, p.parseBoolean)
	p.registerPrefix(token.FALSE, p.parseBoolean)
	p.registerPrefix(token.NULL, p.parseNull)
	p.registerPrefix(token.UNDEFINED, p.parseUndefined)
	p.registerPrefix(token.THIS, p.parseThis)
	p.registerPrefix(token.LBRACKET, p.parseArray)
	p.registerPrefix(token.LBRACE, p.parseObject)
	p.registerPrefix(token.LPAREN, p.parseGroupedOrArrow)
	p.registerPrefix(token.FUNCTION, p.parseFuncExpr)
	p.registerPrefix(token.NEW, p.parseNew)
	p.registerPrefix(token.BANG, p.parsePrefixExpr)
	p.registerPrefix(token.MINUS, p.parsePrefixExpr)
	p.registerPrefix(token.PLUS, p.parsePrefixExpr)
	p.registerPrefix(token.TILDE, p.parsePrefixExpr)
	p.registerPrefix(token.TYPEOF, p.parsePrefixExpr)
	p.registerPrefix(token.VOID, p.parsePrefixExpr)
	p.registerPrefix(token.DELETE, p.parsePrefixExpr)
	p.registerPrefix(token.PLUS_PLUS, p.parsePrefixUpdate)
	p.registerPrefix(token.MINUS_MINUS, p.parsePrefixUpdate)
	p.registerPrefix(token.ILLEGAL, p.illegalToken)
	p.registerPrefix(token.EOF, p.illegalToken)

	for _, t := range []token.Type{
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.MOD,
		token.EQ, token.NOT_EQ, token.STRICT_EQ, token.STRICT_NOT_EQ,
		token.LT, token.LT_EQUALS, token.GT, token.GT_EQUALS,
		token.IN, token.INSTANCEOF, token.AMPERSAND, token.BITOR, token.CARET,
		token.LT_LT, token.GT_GT, token.GT_GT_GT,
	} {
		p.registerInfix(t, p.parseInfixExpr)
	}
	p.registerInfix(token.POW, p.parsePower)
	p.registerInfix(token.AND, p.parseLogical)
	p.registerInfix(token.OR, p.parseLogical)
	p.registerInfix(token.NULLISH, p.parseLogical)
	for _, t := range []token.Type{
		token.ASSIGN, token.PLUS_EQUALS, token.MINUS_EQUALS, token.ASTERISK_EQUALS,
		token.SLASH_EQUALS, token.MOD_EQUALS, token.POW_EQUALS, token.AND_EQUALS,
		token.OR_EQUALS, token.NULLISH_EQUALS,
	} {
		p.registerInfix(t, p.parseAssign)
	}
	p.registerInfix(token.QUESTION, p.parseTernary)
	p.registerInfix(token.PLUS_PLUS, p.parsePostfix)
	p.registerInfix(token.MINUS_MINUS, p.parsePostfix)
	p.registerInfix(token.LPAREN, p.parseCall)
	p.registerInfix(token.PERIOD, p.parseMember)
	p.registerInfix(token.LBRACKET, p.parseIndex)
	p.registerInfix(token.QUESTION_DOT, p.parseOptional)
	return p
}

// nextToken moves to the next token from the lexer, updating all of
// prevToken, curToken, and peekToken.
func (p *Parser) nextToken() error {
	var err error
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	if p.lexFailed {
		p.peekToken = token.Token{Type: token.EOF, StartPosition: p.curToken.EndPosition}
		return nil
	}
	p.peekToken, err = p.l.Next()
	if err == nil {
		return nil
	}
	// All lexer errors are syntax errors and the remaining input is not
	// tokenized further.
	p.lexFailed = true
	p.addError(NewSyntaxError(ErrorOpts{
		Code:          lexErrorCode(err),
		Cause:         err,
		File:          p.l.Filename(),
		StartPosition: p.peekToken.StartPosition,
		EndPosition:   p.peekToken.EndPosition,
		SourceCode:    p.l.GetLineText(p.peekToken),
	}))
	return err
}

func lexErrorCode(err error) errors.ErrorCode {
	switch err.Error() {
	case "unterminated string literal":
		return errors.E1002
	}
	return errors.E1003
}

// Parse the program that is provided via the lexer.
// Returns the AST and any errors encountered. If there are errors, the AST
// may be partial (containing only successfully parsed statements).
func (p *Parser) Parse(ctx context.Context) (*ast.Program, error) {
	p.ctx = ctx
	program := &ast.Program{IsModule: p.module}
	for p.curToken.Type != token.EOF {
		if p.cancelled() || p.tooManyErrors() {
			break
		}
		if p.lexFailed && p.curTokenIs(token.ILLEGAL) {
			break
		}
		p.stmtErrorCount = len(p.errors)
		stmt := p.parseStatement()
		if stmt != nil && !p.hadNewError() {
			program.Stmts = append(program.Stmts, stmt)
		} else if p.hadNewError() {
			p.synchronize()
		}
		p.nextToken()
	}
	if p.hasErrors() {
		return program, NewErrors(p.errors)
	}
	return program, nil
}

func (p *Parser) registerPrefix(tokenType token.Type, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType token.Type, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

func (p *Parser) addError(err ParserError) {
	p.errors = append(p.errors, err)
}

func (p *Parser) hasErrors() bool {
	return len(p.errors) > 0
}

func (p *Parser) tooManyErrors() bool {
	return len(p.errors) >= MaxErrors
}

// hadNewError returns true if an error was added during the current statement.
func (p *Parser) hadNewError() bool {
	return len(p.errors) > p.stmtErrorCount
}

// synchronize skips tokens until a statement boundary is reached.
func (p *Parser) synchronize() {
	p.blockDepth, p.loopDepth, p.switchDepth, p.funcDepth = 0, 0, 0, 0
	p.noIn = false
	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.SEMICOLON) || p.peekTokenIs(token.EOF) {
			return
		}
		if p.peekToken.NewlineBefore {
			return
		}
		p.nextToken()
	}
}

// cancelled checks if the parsing context has been cancelled.
func (p *Parser) cancelled() bool {
	if p.ctx == nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		p.addError(NewParserError(ErrorOpts{
			ErrType: "context error",
			Message: p.ctx.Err().Error(),
		}))
		return true
	default:
		return false
	}
}

// enter increments the nesting depth, recording an error when the limit is
// exceeded. Callers must call leave when enter returns true.
func (p *Parser) enter() bool {
	p.depth++
	if p.depth > p.maxDepth {
		p.depth--
		p.setTokenErrorCode(errors.E1009, p.curToken, "maximum nesting depth exceeded")
		return false
	}
	return true
}

func (p *Parser) leave() {
	p.depth--
}

func (p *Parser) noPrefixParseFnError(t token.Token) {
	p.setTokenErrorCode(errors.E1001, t, "unexpected %s", tokenDescription(t))
}

// peekError raises an error if the next token is not the expected type.
func (p *Parser) peekError(context string, expected token.Type, got token.Token) {
	p.addError(NewParserError(ErrorOpts{
		ErrType: "syntax error",
		Code:    errors.E1001,
		Message: fmt.Sprintf("unexpected %s while parsing %s (expected %s)",
			tokenDescription(got), context, tokenTypeDescription(expected)),
		File:          p.l.Filename(),
		StartPosition: got.StartPosition,
		EndPosition:   got.EndPosition,
		SourceCode:    p.l.GetLineText(got),
	}))
}

func (p *Parser) illegalToken() ast.Expr {
	if p.lexFailed {
		return nil
	}
	p.noPrefixParseFnError(p.curToken)
	return nil
}

func (p *Parser) setTokenError(t token.Token, msg string, args ...interface{}) {
	p.setTokenErrorCode(errors.E1003, t, msg, args...)
}

func (p *Parser) setTokenErrorCode(code errors.ErrorCode, t token.Token, msg string, args ...interface{}) {
	p.addError(NewParserError(ErrorOpts{
		ErrType:       "syntax error",
		Code:          code,
		Message:       fmt.Sprintf(msg, args...),
		File:          p.l.Filename(),
		StartPosition: t.StartPosition,
		EndPosition:   t.EndPosition,
		SourceCode:    p.l.GetLineText(t),
	}))
}

func (p *Parser) newIdent(tok token.Token) *ast.Ident {
	return &ast.Ident{NamePos: tok.StartPosition, Name: tok.Literal}
}

func (p *Parser) curTokenIs(t token.Type) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.Type) bool {
	return p.peekToken.Type == t
}

// peekIsContextual reports whether the next token is the identifier word,
// for contextual keywords like "of", "as" and "from".
func (p *Parser) peekIsContextual(word string) bool {
	return p.peekToken.Type == token.IDENT && p.peekToken.Literal == word
}

// expectPeek validates if the next token is of the given type, and advances if
// it is. If it's a different type, then an error is stored.
func (p *Parser) expectPeek(context string, t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(context, t, p.peekToken)
	return false
}

// expectPeekName advances over an identifier or reserved word, which are
// both valid as property and export names.
func (p *Parser) expectPeekName(context string) bool {
	if p.peekTokenIs(token.IDENT) || token.IsKeyword(p.peekToken.Type) {
		p.nextToken()
		return true
	}
	p.peekError(context, token.IDENT, p.peekToken)
	return false
}

// peekSecond returns the token after peekToken without consuming anything.
func (p *Parser) peekSecond() token.Token {
	if p.lexFailed {
		return token.Token{Type: token.EOF}
	}
	state := p.l.SaveState()
	tok, _ := p.l.Next()
	p.l.RestoreState(state)
	return tok
}

func (p *Parser) peekPrecedence() int {
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}
	return LOWEST
}

// consumeSemicolon ends a statement, applying automatic semicolon insertion
// when the next token is on a new line, closes a block, or ends the input.
func (p *Parser) consumeSemicolon() bool {
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		return true
	}
	if p.peekTokenIs(token.RBRACE) || p.peekTokenIs(token.EOF) || p.peekToken.NewlineBefore {
		return true
	}
	p.setTokenErrorCode(errors.E1001, p.peekToken, "unexpected %s following statement",
		tokenDescription(p.peekToken))
	return false
}
