// Package token defines language keywords and tokens used when lexing source code.
package token

// Type describes the type of a token as a string.
type Type string

// Position points to a particular location in an input string.
type Position struct {
	Char      int    // byte offset within the file
	LineStart int    // byte offset of the start of the current line
	Line      int    // 0-indexed line number
	Column    int    // 0-indexed column number
	File      string // filename
}

// LineNumber returns the 1-indexed line number for this position in the input.
func (p Position) LineNumber() int {
	return p.Line + 1
}

// ColumnNumber returns the 1-indexed column number for this position in the input.
func (p Position) ColumnNumber() int {
	return p.Column + 1
}

// Advance returns a new Position advanced by n bytes on the same line.
func (p Position) Advance(n int) Position {
	return Position{
		Char:      p.Char + n,
		LineStart: p.LineStart,
		Line:      p.Line,
		Column:    p.Column + n,
		File:      p.File,
	}
}

// IsValid returns true if this position has been set.
func (p Position) IsValid() bool {
	return p.File != "" || p.Line > 0 || p.Column > 0 || p.Char > 0
}

// NoPos is the zero value Position, representing an invalid/unset position.
var NoPos = Position{}

// Token represents one token lexed from the input source code.
type Token struct {
	Type          Type
	Literal       string
	StartPosition Position
	EndPosition   Position
	// NewlineBefore is set when at least one line terminator separates this
	// token from the previous one. The parser uses it for automatic
	// semicolon insertion and restricted productions like `return`.
	NewlineBefore bool
}

// Token types
const (
	ILLEGAL Type = "ILLEGAL"
	EOF     Type = "EOF"

	IDENT  Type = "IDENT"
	NUMBER Type = "NUMBER"
	STRING Type = "STRING"

	// Operators
	ASSIGN          Type = "="
	PLUS            Type = "+"
	MINUS           Type = "-"
	ASTERISK        Type = "*"
	SLASH           Type = "/"
	MOD             Type = "%"
	POW             Type = "**"
	BANG            Type = "!"
	TILDE           Type = "~"
	AMPERSAND       Type = "&"
	BITOR           Type = "|"
	CARET           Type = "^"
	LT_LT           Type = "<<"
	GT_GT           Type = ">>"
	GT_GT_GT        Type = ">>>"
	PLUS_PLUS       Type = "++"
	MINUS_MINUS     Type = "--"
	PLUS_EQUALS     Type = "+="
	MINUS_EQUALS    Type = "-="
	ASTERISK_EQUALS Type = "*="
	SLASH_EQUALS    Type = "/="
	MOD_EQUALS      Type = "%="
	POW_EQUALS      Type = "**="
	AND_EQUALS      Type = "&&="
	OR_EQUALS       Type = "||="
	NULLISH_EQUALS  Type = "??="
	EQ              Type = "=="
	NOT_EQ          Type = "!="
	STRICT_EQ       Type = "==="
	STRICT_NOT_EQ   Type = "!=="
	LT              Type = "<"
	LT_EQUALS       Type = "<="
	GT              Type = ">"
	GT_EQUALS       Type = ">="
	AND             Type = "&&"
	OR              Type = "||"
	NULLISH         Type = "??"
	QUESTION        Type = "?"
	QUESTION_DOT    Type = "?."
	ARROW           Type = "=>"
	SPREAD          Type = "..."

	// Delimiters
	COMMA     Type = ","
	SEMICOLON Type = ";"
	COLON     Type = ":"
	PERIOD    Type = "."
	LPAREN    Type = "("
	RPAREN    Type = ")"
	LBRACE    Type = "{"
	RBRACE    Type = "}"
	LBRACKET  Type = "["
	RBRACKET  Type = "]"

	// Keywords
	BREAK      Type = "BREAK"
	CASE       Type = "CASE"
	CATCH      Type = "CATCH"
	CONST      Type = "CONST"
	CONTINUE   Type = "CONTINUE"
	DEFAULT    Type = "DEFAULT"
	DELETE     Type = "DELETE"
	DO         Type = "DO"
	ELSE       Type = "ELSE"
	EXPORT     Type = "EXPORT"
	FALSE      Type = "FALSE"
	FINALLY    Type = "FINALLY"
	FOR        Type = "FOR"
	FUNCTION   Type = "FUNCTION"
	IF         Type = "IF"
	IMPORT     Type = "IMPORT"
	IN         Type = "IN"
	INSTANCEOF Type = "INSTANCEOF"
	LET        Type = "LET"
	NEW        Type = "NEW"
	NULL       Type = "NULL"
	RETURN     Type = "RETURN"
	SWITCH     Type = "SWITCH"
	THIS       Type = "THIS"
	THROW      Type = "THROW"
	TRUE       Type = "TRUE"
	TRY        Type = "TRY"
	TYPEOF     Type = "TYPEOF"
	UNDEFINED  Type = "UNDEFINED"
	VAR        Type = "VAR"
	VOID       Type = "VOID"
	WHILE      Type = "WHILE"
)

// Reserved keywords
var keywords = map[string]Type{
	"break":      BREAK,
	"case":       CASE,
	"catch":      CATCH,
	"const":      CONST,
	"continue":   CONTINUE,
	"default":    DEFAULT,
	"delete":     DELETE,
	"do":         DO,
	"else":       ELSE,
	"export":     EXPORT,
	"false":      FALSE,
	"finally":    FINALLY,
	"for":        FOR,
	"function":   FUNCTION,
	"if":         IF,
	"import":     IMPORT,
	"in":         IN,
	"instanceof": INSTANCEOF,
	"let":        LET,
	"new":        NEW,
	"null":       NULL,
	"return":     RETURN,
	"switch":     SWITCH,
	"this":       THIS,
	"throw":      THROW,
	"true":       TRUE,
	"try":        TRY,
	"typeof":     TYPEOF,
	"undefined":  UNDEFINED,
	"var":        VAR,
	"void":       VOID,
	"while":      WHILE,
}

// LookupIdentifier returns the keyword type for identifier, or IDENT when
// identifier is not reserved.
func LookupIdentifier(identifier string) Type {
	if tok, ok := keywords[identifier]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword reports whether the token type is a reserved word. Reserved words
// are still valid property names after `.` and in object literal keys.
func IsKeyword(t Type) bool {
	for _, kw := range keywords {
		if kw == t {
			return true
		}
	}
	return false
}
