package errors

// ErrorCode represents a unique identifier for error types.
// Codes are organized by category:
//   - E1xxx: Parse errors
//   - E2xxx: Compile errors
//   - E3xxx: Runtime errors
//   - E4xxx: Module and bytecode loading errors
type ErrorCode string

const (
	// Parse errors (E1xxx)
	E1001 ErrorCode = "E1001" // Unexpected token
	E1002 ErrorCode = "E1002" // Unterminated string literal
	E1003 ErrorCode = "E1003" // Invalid syntax
	E1005 ErrorCode = "E1005" // Invalid assignment target
	E1008 ErrorCode = "E1008" // Invalid number literal
	E1009 ErrorCode = "E1009" // Maximum nesting depth exceeded
	E1011 ErrorCode = "E1011" // Module syntax outside a module

	// Compile errors (E2xxx)
	E2003 ErrorCode = "E2003" // Invalid break statement
	E2004 ErrorCode = "E2004" // Invalid continue statement
	E2005 ErrorCode = "E2005" // Invalid return statement
	E2006 ErrorCode = "E2006" // Duplicate declaration
	E2007 ErrorCode = "E2007" // Too many local variables
	E2008 ErrorCode = "E2008" // Too many constants
	E2011 ErrorCode = "E2011" // Assignment to constant
	E2012 ErrorCode = "E2012" // Duplicate export

	// Runtime errors (E3xxx)
	E3001 ErrorCode = "E3001" // Type error
	E3006 ErrorCode = "E3006" // Stack overflow
	E3011 ErrorCode = "E3011" // Reference error
	E3012 ErrorCode = "E3012" // Uncaught exception

	// Loading errors (E4xxx)
	E4001 ErrorCode = "E4001" // Invalid bytecode
)

// codeDescriptions maps error codes to their short descriptions.
var codeDescriptions = map[ErrorCode]string{
	E1001: "unexpected token",
	E1002: "unterminated string literal",
	E1003: "invalid syntax",
	E1005: "invalid assignment target",
	E1008: "invalid number literal",
	E1009: "maximum nesting depth exceeded",
	E1011: "module syntax outside a module",

	E2003: "invalid break statement",
	E2004: "invalid continue statement",
	E2005: "invalid return statement",
	E2006: "duplicate declaration",
	E2007: "too many local variables",
	E2008: "too many constants",
	E2011: "assignment to constant",
	E2012: "duplicate export",

	E3001: "type error",
	E3006: "stack overflow",
	E3011: "reference error",
	E3012: "uncaught exception",

	E4001: "invalid bytecode",
}

// Description returns the short description for an error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// Category returns the error category based on the code prefix.
func (c ErrorCode) Category() string {
	if len(c) < 2 {
		return "unknown"
	}
	switch c[1] {
	case '1':
		return "parse"
	case '2':
		return "compile"
	case '3':
		return "runtime"
	case '4':
		return "load"
	default:
		return "unknown"
	}
}
