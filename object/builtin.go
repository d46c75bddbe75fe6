package object

import (
	"context"
	"fmt"
)

var _ Callable = (*Builtin)(nil) // Ensure that *Builtin implements Callable

// BuiltinFunction holds the type of a built-in function. this is the
// receiver of a method call, or undefined.
type BuiltinFunction func(ctx context.Context, this Object, args ...Object) (Object, error)

// Builtin wraps a Go function as a script function. A builtin with a
// constructor can be used with new.
type Builtin struct {
	name      string
	length    int
	fn        BuiltinFunction
	construct BuiltinFunction
	props     Props
	proto     *Dict
}

// NewBuiltin creates a builtin function. proto is normally the realm's
// Function.prototype.
func NewBuiltin(name string, length int, fn BuiltinFunction, proto *Dict) *Builtin {
	return &Builtin{name: name, length: length, fn: fn, proto: proto}
}

// WithConstructor sets the function run by new and returns the builtin.
func (b *Builtin) WithConstructor(fn BuiltinFunction) *Builtin {
	b.construct = fn
	return b
}

func (b *Builtin) Type() Type { return FUNCTION }

func (b *Builtin) Name() string { return b.name }

func (b *Builtin) Value() BuiltinFunction { return b.fn }

func (b *Builtin) Call(ctx context.Context, this Object, args ...Object) (Object, error) {
	return b.fn(ctx, this, args...)
}

// IsConstructor reports whether the builtin supports new.
func (b *Builtin) IsConstructor() bool { return b.construct != nil }

// Construct runs the builtin as a constructor.
func (b *Builtin) Construct(ctx context.Context, args ...Object) (Object, error) {
	if b.construct == nil {
		return nil, typeErrorf("%s is not a constructor", b.name)
	}
	return b.construct(ctx, Undefined, args...)
}

func (b *Builtin) Prototype() *Dict { return b.proto }

func (b *Builtin) GetOwn(key string) (Object, bool) {
	switch key {
	case "name":
		return NewString(b.name), true
	case "length":
		return NewNumber(float64(b.length)), true
	}
	return b.props.Get(key)
}

func (b *Builtin) SetOwn(key string, value Object) error {
	b.props.Set(key, value)
	return nil
}

// Set is SetOwn without the error, for building builtins from Go.
func (b *Builtin) Set(key string, value Object) { b.props.Set(key, value) }

// SetHidden defines a non-enumerable property.
func (b *Builtin) SetHidden(key string, value Object) { b.props.SetHidden(key, value) }

func (b *Builtin) DeleteOwn(key string) bool { return b.props.Delete(key) }

func (b *Builtin) OwnKeys() []string { return b.props.Keys() }

func (b *Builtin) Inspect() string {
	return fmt.Sprintf("[Function: %s]", b.name)
}

func (b *Builtin) String() string {
	return fmt.Sprintf("function %s() { [native code] }", b.name)
}

func (b *Builtin) Interface() any { return nil }
