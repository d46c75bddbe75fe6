package jsrt

import (
	"math"

	"github.com/deepnoodle-ai/jsrt/object"
)

// Kind is the discriminant of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindObject
	// KindException is the sentinel returned by operations that failed. The
	// failure itself is held by the Context as its pending exception.
	KindException
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBoolean:   "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindObject:    "object",
	KindException: "exception",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a script value as seen by the host. The zero Value is undefined.
type Value struct {
	kind Kind
	obj  object.Object
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{} }

// Null returns the null value.
func Null() Value { return Value{kind: KindNull, obj: object.Null} }

// True returns the boolean true.
func True() Value { return Value{kind: KindBoolean, obj: object.True} }

// False returns the boolean false.
func False() Value { return Value{kind: KindBoolean, obj: object.False} }

// Exception returns the exception sentinel. It carries no payload.
func Exception() Value { return Value{kind: KindException} }

// NewBool returns True() or False().
func NewBool(b bool) Value {
	if b {
		return True()
	}
	return False()
}

// NewNumber returns a number value.
func NewNumber(f float64) Value { return Value{kind: KindNumber, obj: object.NewNumber(f)} }

// NewInt returns a number value holding i. Integers beyond 2^53 lose
// precision.
func NewInt(i int64) Value { return NewNumber(float64(i)) }

// NewString returns a string value.
func NewString(s string) Value { return Value{kind: KindString, obj: object.NewString(s)} }

// IsException reports whether v is the exception sentinel.
func IsException(v Value) bool { return v.kind == KindException }

// wrap converts an engine object into a Value.
func wrap(obj object.Object) Value {
	switch o := obj.(type) {
	case nil, *object.UndefinedType:
		return Undefined()
	case *object.NullType:
		return Null()
	case *object.Bool:
		return NewBool(o.Value())
	case *object.Number:
		return Value{kind: KindNumber, obj: o}
	case *object.String:
		return Value{kind: KindString, obj: o}
	}
	return Value{kind: KindObject, obj: obj}
}

// engine returns the engine object behind v.
func (v Value) engine() object.Object {
	if v.obj == nil {
		return object.Undefined
	}
	return v.obj
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsBool() bool      { return v.kind == KindBoolean }
func (v Value) IsNumber() bool    { return v.kind == KindNumber }
func (v Value) IsString() bool    { return v.kind == KindString }
func (v Value) IsObject() bool    { return v.kind == KindObject }

// IsFunction reports whether v is callable.
func (v Value) IsFunction() bool {
	return v.kind == KindObject && object.IsCallable(v.obj)
}

// Bool returns the value of a boolean, or its truthiness for other kinds.
func (v Value) Bool() bool {
	if v.kind == KindException {
		return false
	}
	return object.ToBoolean(v.engine())
}

// Float64 returns the value of a number. Other kinds return NaN.
func (v Value) Float64() float64 {
	if n, ok := v.obj.(*object.Number); ok {
		return n.Value()
	}
	return math.NaN()
}

// Int64 returns the value of a number truncated toward zero. NaN and
// non-numbers return 0; infinities saturate.
func (v Value) Int64() int64 {
	f := v.Float64()
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// String returns the display form of v: strings unquoted, numbers in
// shortest form, objects as the engine inspects them.
func (v Value) String() string {
	if v.kind == KindException {
		return "[exception]"
	}
	return object.Display(v.engine())
}

// Export converts v into a Go value: nil for undefined and null, bool,
// float64, string, map[string]any for objects and []any for arrays.
// Functions export as nil.
func (v Value) Export() any {
	if v.kind == KindException {
		return nil
	}
	return v.engine().Interface()
}

// Equal reports engine strict equality. The exception sentinel equals
// only itself.
func (v Value) Equal(other Value) bool {
	if v.kind == KindException || other.kind == KindException {
		return v.kind == other.kind
	}
	return object.StrictEquals(v.engine(), other.engine())
}
