// Package lexer converts source text into a stream of tokens.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deepnoodle-ai/jsrt/internal/token"
)

// Lexer holds our object-state.
type Lexer struct {
	input     string
	file      string
	pos       int  // byte offset of ch
	nextPos   int  // byte offset after ch
	ch        rune // current character, 0 at end of input
	line      int  // 0-indexed line of ch
	lineStart int  // byte offset where the line of ch begins
	newline   bool // a line terminator was skipped before the current token
}

// State captures the lexer position so the parser can look ahead and rewind.
type State struct {
	pos       int
	nextPos   int
	ch        rune
	line      int
	lineStart int
	newline   bool
}

// New returns a Lexer for the given input.
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// SetFilename sets the filename attached to token positions.
func (l *Lexer) SetFilename(file string) {
	l.file = file
}

// Filename returns the filename attached to token positions.
func (l *Lexer) Filename() string {
	return l.file
}

// SaveState returns a snapshot of the lexer position.
func (l *Lexer) SaveState() State {
	return State{
		pos:       l.pos,
		nextPos:   l.nextPos,
		ch:        l.ch,
		line:      l.line,
		lineStart: l.lineStart,
		newline:   l.newline,
	}
}

// RestoreState rewinds the lexer to a snapshot taken with SaveState.
func (l *Lexer) RestoreState(s State) {
	l.pos = s.pos
	l.nextPos = s.nextPos
	l.ch = s.ch
	l.line = s.line
	l.lineStart = s.lineStart
	l.newline = s.newline
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.nextPos
	}
	if l.nextPos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		l.nextPos = len(l.input) + 1
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.nextPos:])
	l.ch = r
	l.pos = l.nextPos
	l.nextPos += size
}

func (l *Lexer) peekChar() rune {
	if l.nextPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.nextPos:])
	return r
}

func (l *Lexer) peekCharAt(offset int) rune {
	idx := l.nextPos
	for i := 0; i < offset; i++ {
		if idx >= len(l.input) {
			return 0
		}
		_, size := utf8.DecodeRuneInString(l.input[idx:])
		idx += size
	}
	if idx >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[idx:])
	return r
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) position() token.Position {
	return token.Position{
		Char:      l.pos,
		LineStart: l.lineStart,
		Line:      l.line,
		Column:    l.pos - l.lineStart,
		File:      l.file,
	}
}

// Next returns the next token from the input. At the end of the input an EOF
// token is returned indefinitely.
func (l *Lexer) Next() (token.Token, error) {
	l.newline = false
	if err := l.skipWhitespaceAndComments(); err != nil {
		return l.illegal(l.position(), err)
	}
	start := l.position()
	newline := l.newline
	tok, err := l.scan(start)
	tok.NewlineBefore = newline
	return tok, err
}

func (l *Lexer) scan(start token.Position) (token.Token, error) {
	if l.atEOF() {
		return token.Token{Type: token.EOF, StartPosition: start, EndPosition: start}, nil
	}
	ch := l.ch
	switch {
	case isIdentStart(ch):
		return l.readIdentifier(start), nil
	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		return l.readNumber(start)
	case ch == '"' || ch == '\'':
		return l.readString(start, ch)
	case ch == '`':
		l.readChar()
		return l.illegal(start, fmt.Errorf("template literals are not supported"))
	}
	return l.readPunctuator(start)
}

// operators lists multi-character punctuators, longest first within each
// leading character.
var operators = []struct {
	text string
	typ  token.Type
}{
	{">>>", token.GT_GT_GT},
	{"===", token.STRICT_EQ},
	{"!==", token.STRICT_NOT_EQ},
	{"**=", token.POW_EQUALS},
	{"&&=", token.AND_EQUALS},
	{"||=", token.OR_EQUALS},
	{"??=", token.NULLISH_EQUALS},
	{"...", token.SPREAD},
	{"=>", token.ARROW},
	{"==", token.EQ},
	{"!=", token.NOT_EQ},
	{"<=", token.LT_EQUALS},
	{">=", token.GT_EQUALS},
	{"<<", token.LT_LT},
	{">>", token.GT_GT},
	{"&&", token.AND},
	{"||", token.OR},
	{"??", token.NULLISH},
	{"++", token.PLUS_PLUS},
	{"--", token.MINUS_MINUS},
	{"+=", token.PLUS_EQUALS},
	{"-=", token.MINUS_EQUALS},
	{"*=", token.ASTERISK_EQUALS},
	{"/=", token.SLASH_EQUALS},
	{"%=", token.MOD_EQUALS},
	{"**", token.POW},
}

var singleChars = map[rune]token.Type{
	'=': token.ASSIGN,
	'+': token.PLUS,
	'-': token.MINUS,
	'*': token.ASTERISK,
	'/': token.SLASH,
	'%': token.MOD,
	'!': token.BANG,
	'~': token.TILDE,
	'&': token.AMPERSAND,
	'|': token.BITOR,
	'^': token.CARET,
	'<': token.LT,
	'>': token.GT,
	'?': token.QUESTION,
	',': token.COMMA,
	';': token.SEMICOLON,
	':': token.COLON,
	'.': token.PERIOD,
	'(': token.LPAREN,
	')': token.RPAREN,
	'{': token.LBRACE,
	'}': token.RBRACE,
	'[': token.LBRACKET,
	']': token.RBRACKET,
}

func (l *Lexer) readPunctuator(start token.Position) (token.Token, error) {
	rest := l.input[l.pos:]
	// "?." followed by a digit is a ternary and a number, not optional chaining
	if strings.HasPrefix(rest, "?.") && !isDigit(l.peekCharAt(1)) {
		l.readChar()
		l.readChar()
		return l.newToken(token.QUESTION_DOT, "?.", start), nil
	}
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			for range op.text {
				l.readChar()
			}
			return l.newToken(op.typ, op.text, start), nil
		}
	}
	ch := l.ch
	if typ, ok := singleChars[ch]; ok {
		l.readChar()
		return l.newToken(typ, string(ch), start), nil
	}
	l.readChar()
	return l.illegal(start, fmt.Errorf("unexpected character %q", ch))
}

func (l *Lexer) newToken(typ token.Type, literal string, start token.Position) token.Token {
	return token.Token{
		Type:          typ,
		Literal:       literal,
		StartPosition: start,
		EndPosition:   l.position(),
	}
}

func (l *Lexer) illegal(start token.Position, err error) (token.Token, error) {
	end := l.position()
	literal := ""
	if start.Char < end.Char && end.Char <= len(l.input) {
		literal = l.input[start.Char:end.Char]
	}
	return token.Token{
		Type:          token.ILLEGAL,
		Literal:       literal,
		StartPosition: start,
		EndPosition:   end,
	}, err
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for !l.atEOF() {
		switch {
		case l.ch == '\n' || l.ch == '\u2028' || l.ch == '\u2029':
			l.newline = true
			l.readChar()
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\v' ||
			l.ch == '\f' || l.ch == '\u00a0' || l.ch == '\ufeff':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			closed := false
			for !l.atEOF() {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					closed = true
					break
				}
				if l.ch == '\n' {
					l.newline = true
				}
				l.readChar()
			}
			if !closed {
				return fmt.Errorf("unterminated comment")
			}
		case l.ch == '#' && l.pos == 0 && l.peekChar() == '!':
			// hashbang line
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) readIdentifier(start token.Position) token.Token {
	begin := l.pos
	for !l.atEOF() && isIdentPart(l.ch) {
		l.readChar()
	}
	literal := l.input[begin:l.pos]
	return l.newToken(token.LookupIdentifier(literal), literal, start)
}

func (l *Lexer) readNumber(start token.Position) (token.Token, error) {
	begin := l.pos
	if l.ch == '0' && strings.ContainsRune("xXoObB", l.peekChar()) {
		l.readChar()
		l.readChar()
		digits := l.pos
		for !l.atEOF() && isHexDigit(l.ch) {
			l.readChar()
		}
		if l.pos == digits {
			return l.illegal(start, fmt.Errorf("invalid number literal %q", l.input[begin:l.pos]))
		}
	} else {
		for !l.atEOF() && isDigit(l.ch) {
			l.readChar()
		}
		if l.ch == '.' {
			l.readChar()
			for !l.atEOF() && isDigit(l.ch) {
				l.readChar()
			}
		}
		if l.ch == 'e' || l.ch == 'E' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			digits := l.pos
			for !l.atEOF() && isDigit(l.ch) {
				l.readChar()
			}
			if l.pos == digits {
				return l.illegal(start, fmt.Errorf("invalid number literal %q", l.input[begin:l.pos]))
			}
		}
	}
	if !l.atEOF() && isIdentStart(l.ch) {
		for !l.atEOF() && isIdentPart(l.ch) {
			l.readChar()
		}
		return l.illegal(start, fmt.Errorf("invalid number literal %q", l.input[begin:l.pos]))
	}
	return l.newToken(token.NUMBER, l.input[begin:l.pos], start), nil
}

// readString reads a quoted string literal. The token literal holds the
// decoded value with escape sequences processed.
func (l *Lexer) readString(start token.Position, quote rune) (token.Token, error) {
	l.readChar() // opening quote
	var b strings.Builder
	for {
		if l.atEOF() || l.ch == '\n' {
			return l.illegal(start, fmt.Errorf("unterminated string literal"))
		}
		if l.ch == quote {
			l.readChar()
			return l.newToken(token.STRING, b.String(), start), nil
		}
		if l.ch != '\\' {
			b.WriteRune(l.ch)
			l.readChar()
			continue
		}
		l.readChar() // backslash
		if l.atEOF() {
			return l.illegal(start, fmt.Errorf("unterminated string literal"))
		}
		switch l.ch {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if l.peekChar() == '\n' {
				l.readChar()
			}
		case 'x':
			r, err := l.readHexEscape(2)
			if err != nil {
				return l.illegal(start, err)
			}
			b.WriteRune(r)
			continue
		case 'u':
			r, err := l.readUnicodeEscape()
			if err != nil {
				return l.illegal(start, err)
			}
			b.WriteRune(r)
			continue
		default:
			b.WriteRune(l.ch)
		}
		l.readChar()
	}
}

// readHexEscape reads n hex digits following the current escape letter.
func (l *Lexer) readHexEscape(n int) (rune, error) {
	l.readChar() // escape letter
	begin := l.pos
	for i := 0; i < n; i++ {
		if l.atEOF() || !isHexDigit(l.ch) {
			return 0, fmt.Errorf("invalid escape sequence")
		}
		l.readChar()
	}
	v, err := strconv.ParseUint(l.input[begin:l.pos], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid escape sequence")
	}
	return rune(v), nil
}

func (l *Lexer) readUnicodeEscape() (rune, error) {
	if l.peekChar() != '{' {
		return l.readHexEscape(4)
	}
	l.readChar() // u
	l.readChar() // {
	begin := l.pos
	for !l.atEOF() && isHexDigit(l.ch) {
		l.readChar()
	}
	if l.ch != '}' || l.pos == begin {
		return 0, fmt.Errorf("invalid escape sequence")
	}
	v, err := strconv.ParseUint(l.input[begin:l.pos], 16, 32)
	l.readChar() // }
	if err != nil || v > unicode.MaxRune {
		return 0, fmt.Errorf("invalid escape sequence")
	}
	return rune(v), nil
}

// GetLineText returns the full line of source text containing the token.
func (l *Lexer) GetLineText(tok token.Token) string {
	start := tok.StartPosition.LineStart
	if start > len(l.input) {
		return ""
	}
	end := strings.IndexByte(l.input[start:], '\n')
	if end < 0 {
		return strings.TrimRight(l.input[start:], "\r")
	}
	return strings.TrimRight(l.input[start:start+end], "\r")
}

func isIdentStart(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || unicode.IsDigit(ch) || ch == '\u200c' || ch == '\u200d'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}
