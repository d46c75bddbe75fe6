package parser

import (
	"github.com/deepnoodle-ai/jsrt/internal/lexer"
	"github.com/deepnoodle-ai/jsrt/internal/token"
)

// DetectModule reports whether source contains a top-level import or export
// declaration. It scans tokens only, tracking bracket depth, and never builds
// a syntax tree. `import(` and `import.` are expressions and do not count.
// Scanning stops at the first lexical error.
func DetectModule(source string) bool {
	l := lexer.New(source)
	depth := 0
	var prev token.Type
	for {
		tok, err := l.Next()
		if err != nil || tok.Type == token.EOF {
			return false
		}
		switch tok.Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			if depth > 0 {
				depth--
			}
		case token.EXPORT:
			if depth == 0 && prev != token.PERIOD && prev != token.QUESTION_DOT {
				return true
			}
		case token.IMPORT:
			if depth == 0 && prev != token.PERIOD && prev != token.QUESTION_DOT {
				next, err := l.Next()
				if err != nil {
					return false
				}
				if next.Type != token.LPAREN && next.Type != token.PERIOD {
					return true
				}
				tok = next
				if next.Type == token.LPAREN {
					depth++
				}
			}
		}
		prev = tok.Type
	}
}
