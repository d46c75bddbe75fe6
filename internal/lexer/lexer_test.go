package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/jsrt/internal/token"
)

type expected struct {
	typ     token.Type
	literal string
}

func lexAll(t *testing.T, input string) []token.Token {
	t.Helper()
	l := New(input)
	var toks []token.Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func checkTokens(t *testing.T, input string, tests []expected) {
	t.Helper()
	toks := lexAll(t, input)
	require.Len(t, toks, len(tests))
	for i, tt := range tests {
		require.Equal(t, tt.typ, toks[i].Type, "tests[%d] type", i)
		require.Equal(t, tt.literal, toks[i].Literal, "tests[%d] literal", i)
	}
}

func TestOperators(t *testing.T) {
	checkTokens(t, "=== !== == != => ... ?? ?. ** **= >>> && || ++ -- += -= %", []expected{
		{token.STRICT_EQ, "==="},
		{token.STRICT_NOT_EQ, "!=="},
		{token.EQ, "=="},
		{token.NOT_EQ, "!="},
		{token.ARROW, "=>"},
		{token.SPREAD, "..."},
		{token.NULLISH, "??"},
		{token.QUESTION_DOT, "?."},
		{token.POW, "**"},
		{token.POW_EQUALS, "**="},
		{token.GT_GT_GT, ">>>"},
		{token.AND, "&&"},
		{token.OR, "||"},
		{token.PLUS_PLUS, "++"},
		{token.MINUS_MINUS, "--"},
		{token.PLUS_EQUALS, "+="},
		{token.MINUS_EQUALS, "-="},
		{token.MOD, "%"},
		{token.EOF, ""},
	})
}

func TestTernaryWithDecimal(t *testing.T) {
	checkTokens(t, "a?.5:1", []expected{
		{token.IDENT, "a"},
		{token.QUESTION, "?"},
		{token.NUMBER, ".5"},
		{token.COLON, ":"},
		{token.NUMBER, "1"},
		{token.EOF, ""},
	})
}

func TestModuleDeclarations(t *testing.T) {
	input := `import { a as b } from "./dep.js";
export default function f() { return this; }`
	checkTokens(t, input, []expected{
		{token.IMPORT, "import"},
		{token.LBRACE, "{"},
		{token.IDENT, "a"},
		{token.IDENT, "as"},
		{token.IDENT, "b"},
		{token.RBRACE, "}"},
		{token.IDENT, "from"},
		{token.STRING, "./dep.js"},
		{token.SEMICOLON, ";"},
		{token.EXPORT, "export"},
		{token.DEFAULT, "default"},
		{token.FUNCTION, "function"},
		{token.IDENT, "f"},
		{token.LPAREN, "("},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.RETURN, "return"},
		{token.THIS, "this"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.EOF, ""},
	})
}

func TestNumbers(t *testing.T) {
	checkTokens(t, "0 42 3.14 1e3 2.5E-2 0xff 0b101 0o17 .25", []expected{
		{token.NUMBER, "0"},
		{token.NUMBER, "42"},
		{token.NUMBER, "3.14"},
		{token.NUMBER, "1e3"},
		{token.NUMBER, "2.5E-2"},
		{token.NUMBER, "0xff"},
		{token.NUMBER, "0b101"},
		{token.NUMBER, "0o17"},
		{token.NUMBER, ".25"},
		{token.EOF, ""},
	})
}

func TestInvalidNumber(t *testing.T) {
	l := New("12abc")
	tok, err := l.Next()
	require.Error(t, err)
	require.Equal(t, token.ILLEGAL, tok.Type)
	require.Contains(t, err.Error(), "invalid number literal")
}

func TestStrings(t *testing.T) {
	checkTokens(t, `"a\tb" 'it\'s' "\x41B\u{1F600}" "line\
next"`, []expected{
		{token.STRING, "a\tb"},
		{token.STRING, "it's"},
		{token.STRING, "AB\U0001F600"},
		{token.STRING, "linenext"},
		{token.EOF, ""},
	})
}

func TestUnterminatedString(t *testing.T) {
	l := New(`"abc`)
	tok, err := l.Next()
	require.Error(t, err)
	require.Equal(t, token.ILLEGAL, tok.Type)
	require.Equal(t, "unterminated string literal", err.Error())
}

func TestInvalidEscape(t *testing.T) {
	l := New(`"\xZZ"`)
	_, err := l.Next()
	require.Error(t, err)
	require.Equal(t, "invalid escape sequence", err.Error())
}

func TestComments(t *testing.T) {
	checkTokens(t, "a // line\n/* block\n */ b", []expected{
		{token.IDENT, "a"},
		{token.IDENT, "b"},
		{token.EOF, ""},
	})
}

func TestUnterminatedComment(t *testing.T) {
	l := New("/* never closed")
	_, err := l.Next()
	require.Error(t, err)
	require.Equal(t, "unterminated comment", err.Error())
}

func TestHashbang(t *testing.T) {
	checkTokens(t, "#!/usr/bin/env jsrt\nx", []expected{
		{token.IDENT, "x"},
		{token.EOF, ""},
	})
}

func TestNewlineBefore(t *testing.T) {
	toks := lexAll(t, "a b\nc /*\n*/ d")
	require.False(t, toks[0].NewlineBefore)
	require.False(t, toks[1].NewlineBefore)
	require.True(t, toks[2].NewlineBefore)
	require.True(t, toks[3].NewlineBefore)
}

func TestPositions(t *testing.T) {
	l := New("let x\n  = 10")
	l.SetFilename("pos.js")
	var toks []token.Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	require.Equal(t, 0, toks[0].StartPosition.Line)
	require.Equal(t, 4, toks[1].StartPosition.Column)
	require.Equal(t, 1, toks[2].StartPosition.Line)
	require.Equal(t, 2, toks[2].StartPosition.Column)
	require.Equal(t, "pos.js", toks[3].StartPosition.File)
	require.Equal(t, 6, toks[3].EndPosition.Column)
	require.Equal(t, "  = 10", l.GetLineText(toks[3]))
}

func TestSaveRestore(t *testing.T) {
	l := New("a b c")
	first, _ := l.Next()
	require.Equal(t, "a", first.Literal)
	state := l.SaveState()
	b, _ := l.Next()
	c, _ := l.Next()
	require.Equal(t, "b", b.Literal)
	require.Equal(t, "c", c.Literal)
	l.RestoreState(state)
	again, _ := l.Next()
	require.Equal(t, "b", again.Literal)
}

func TestIllegalCharacter(t *testing.T) {
	l := New("@")
	tok, err := l.Next()
	require.Error(t, err)
	require.Equal(t, token.ILLEGAL, tok.Type)
	require.Equal(t, "@", tok.Literal)
}
