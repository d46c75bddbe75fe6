// Package object provides the engine's heap objects: the primitive values,
// ordinary objects, arrays, functions, errors, module namespaces and the
// cells used for closures and module bindings.
//
// Host code usually type switches on an object.Object:
//
//	switch obj := obj.(type) {
//	case *object.String:
//		// do something with obj.Value()
//	case *object.Number:
//		// do something with obj.Value()
//	}
//
// Property access, conversions and operators follow JavaScript semantics
// and are provided as package functions (GetProperty, ToNumber, BinaryOp,
// ...) rather than methods, since most of them need the realm carried in
// the context.
package object

import (
	"context"
)

// Type of an object as a string.
type Type string

// Type constants. The first group matches the result of typeof, except
// that null reports NULL here.
const (
	UNDEFINED     Type = "undefined"
	NULL          Type = "null"
	BOOLEAN       Type = "boolean"
	NUMBER        Type = "number"
	STRING        Type = "string"
	OBJECT        Type = "object"
	FUNCTION      Type = "function"
	CELL          Type = "cell"
	ITERATOR      Type = "iterator"
	UNINITIALIZED Type = "uninitialized"
)

// Object is the interface that all engine values implement.
type Object interface {
	// Type of the object.
	Type() Type

	// Inspect returns a string representation of the given object.
	Inspect() string

	// Interface converts the given object to a native Go value.
	Interface() any
}

// PropertyObject is implemented by values that carry their own properties
// and a prototype link.
type PropertyObject interface {
	Object

	// GetOwn returns an own property.
	GetOwn(key string) (Object, bool)

	// SetOwn creates or updates an own property.
	SetOwn(key string, value Object) error

	// DeleteOwn removes an own property, reporting whether it existed.
	DeleteOwn(key string) bool

	// OwnKeys returns the enumerable own property keys in order.
	OwnKeys() []string

	// Prototype returns the next object on the prototype chain, or nil.
	Prototype() *Dict
}

// Callable is implemented by objects that can be invoked as functions.
// Both *Builtin and *Function implement this interface, so builtins can call
// back into script code without knowing the concrete type.
//
// For script functions, Call uses the CallFunc stored in the context by the
// VM. Builtins invoke the wrapped Go function directly.
type Callable interface {
	Object
	Call(ctx context.Context, this Object, args ...Object) (Object, error)
}

// IsCallable reports whether obj can be called.
func IsCallable(obj Object) bool {
	_, ok := obj.(Callable)
	return ok
}
