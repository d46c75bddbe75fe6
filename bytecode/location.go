package bytecode

import "fmt"

// SourceLocation records where an instruction came from. Only line and
// column are stored; the filename and source text live on the Code.
type SourceLocation struct {
	Line   int `cbor:"1,keyasint"` // 1-based line number
	Column int `cbor:"2,keyasint"` // 1-based column number
}

// String returns a formatted string representation of the source location.
func (s SourceLocation) String() string {
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// IsZero returns true if the location has not been set.
func (s SourceLocation) IsZero() bool {
	return s.Line == 0 && s.Column == 0
}
