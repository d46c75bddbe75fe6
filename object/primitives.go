package object

import (
	"strconv"
	"unicode/utf16"
)

// UndefinedType is the type of the undefined value.
type UndefinedType struct{}

func (u *UndefinedType) Type() Type      { return UNDEFINED }
func (u *UndefinedType) Inspect() string { return "undefined" }
func (u *UndefinedType) Interface() any  { return nil }

// NullType is the type of the null value.
type NullType struct{}

func (n *NullType) Type() Type      { return NULL }
func (n *NullType) Inspect() string { return "null" }
func (n *NullType) Interface() any  { return nil }

// Bool is a boolean value. Only the True and False singletons exist.
type Bool struct {
	value bool
}

func (b *Bool) Type() Type     { return BOOLEAN }
func (b *Bool) Value() bool    { return b.value }
func (b *Bool) Interface() any { return b.value }

func (b *Bool) Inspect() string {
	if b.value {
		return "true"
	}
	return "false"
}

// NewBool returns the True or False singleton.
func NewBool(value bool) *Bool {
	if value {
		return True
	}
	return False
}

// Number is an IEEE-754 double.
type Number struct {
	value float64
}

func (n *Number) Type() Type          { return NUMBER }
func (n *Number) Value() float64      { return n.value }
func (n *Number) Inspect() string     { return FormatNumber(n.value) }
func (n *Number) Interface() any      { return n.value }
func (n *Number) String() string      { return FormatNumber(n.value) }
func NewNumber(value float64) *Number { return &Number{value: value} }

// String is an immutable string. The value is held as UTF-8; length and
// indexing are measured in UTF-16 code units, which are computed lazily.
// MaxStringLength bounds strings built by repeat and padding, in code units.
const MaxStringLength = 1 << 28

type String struct {
	value string
	units []uint16
	ascii bool
}

func (s *String) Type() Type      { return STRING }
func (s *String) Value() string   { return s.value }
func (s *String) Interface() any  { return s.value }
func (s *String) String() string  { return s.value }
func (s *String) Inspect() string { return strconv.Quote(s.value) }

func NewString(value string) *String {
	ascii := true
	for i := 0; i < len(value); i++ {
		if value[i] >= 0x80 {
			ascii = false
			break
		}
	}
	return &String{value: value, ascii: ascii}
}

func (s *String) isASCII() bool {
	return s.ascii
}

// Units returns the UTF-16 encoding of the string.
func (s *String) Units() []uint16 {
	if s.units == nil {
		s.units = utf16.Encode([]rune(s.value))
	}
	return s.units
}

// Len returns the length in UTF-16 code units.
func (s *String) Len() int {
	if s.isASCII() {
		return len(s.value)
	}
	return len(s.Units())
}

// At returns the single code unit string at index i.
func (s *String) At(i int) (string, bool) {
	if i < 0 || i >= s.Len() {
		return "", false
	}
	if s.isASCII() {
		return s.value[i : i+1], true
	}
	return string(utf16.Decode(s.Units()[i : i+1])), true
}

// Slice returns the substring between code unit indexes start and end,
// which must satisfy 0 <= start <= end <= Len().
func (s *String) Slice(start, end int) string {
	if s.isASCII() {
		return s.value[start:end]
	}
	return string(utf16.Decode(s.Units()[start:end]))
}

// uninitializedType marks a lexical binding in its temporal dead zone.
type uninitializedType struct{}

func (u *uninitializedType) Type() Type      { return UNINITIALIZED }
func (u *uninitializedType) Inspect() string { return "<uninitialized>" }
func (u *uninitializedType) Interface() any  { return nil }

var (
	Undefined            = &UndefinedType{}
	Null                 = &NullType{}
	True                 = &Bool{value: true}
	False                = &Bool{value: false}
	Uninitialized Object = &uninitializedType{}
	NaN                  = NewNumber(nan())
	Zero                 = NewNumber(0)
	EmptyString          = NewString("")
)

// IsNullish reports whether obj is undefined or null.
func IsNullish(obj Object) bool {
	return obj == Undefined || obj == Null
}
