package jsrt

import (
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
)

// ErrorKind selects the constructor of a thrown error object.
type ErrorKind = errz.ErrorKind

const (
	Error          = errz.KindError
	TypeError      = errz.KindTypeError
	SyntaxError    = errz.KindSyntaxError
	ReferenceError = errz.KindReferenceError
	RangeError     = errz.KindRangeError
	InternalError  = errz.KindInternalError
)

// ThrowError creates an error object of the given kind and makes it the
// pending exception, replacing any earlier one. The message is used
// verbatim. It returns Exception().
func (c *Context) ThrowError(kind ErrorKind, message string) Value {
	defer c.enter()()
	return c.throwError(kind, message)
}

// ThrowTypeError is ThrowError(TypeError, message).
func (c *Context) ThrowTypeError(message string) Value {
	defer c.enter()()
	return c.throwError(errz.KindTypeError, message)
}

// ThrowInternalError is ThrowError(InternalError, message).
func (c *Context) ThrowInternalError(message string) Value {
	defer c.enter()()
	return c.throwError(errz.KindInternalError, message)
}

// Throw makes v the pending exception. Throwing the exception sentinel
// raises a TypeError instead.
func (c *Context) Throw(v Value) Value {
	defer c.enter()()
	if IsException(v) {
		return c.misuse("Throw")
	}
	return c.throw(v.engine())
}

func (c *Context) throwError(kind ErrorKind, message string) Value {
	obj := c.realm.NewError(kind, message)
	obj.SetHidden("stack", object.NewString(object.FormatStack(obj, nil)))
	return c.throw(obj)
}

func (c *Context) throw(obj object.Object) Value {
	if c.pending != nil {
		c.logger.Debug().Str("replaced", object.Display(c.pending)).Msg("pending exception overwritten")
	}
	c.pending = obj
	return Exception()
}

// Exception returns the pending exception and clears it. It returns Null()
// when nothing is pending.
func (c *Context) Exception() Value {
	defer c.enter()()
	if c.pending == nil {
		return Null()
	}
	v := wrap(c.pending)
	c.pending = nil
	return v
}

// HasException reports whether an exception is pending.
func (c *Context) HasException() bool {
	defer c.enter()()
	return c.pending != nil
}

// ExceptionError returns the pending exception as a *ScriptError and
// clears it. It returns nil when nothing is pending.
func (c *Context) ExceptionError() error {
	defer c.enter()()
	if c.pending == nil {
		return nil
	}
	err := c.scriptError(c.pending)
	c.pending = nil
	return err
}

func (c *Context) scriptError(obj object.Object) *ScriptError {
	err := &ScriptError{Value: wrap(obj), Message: object.Display(obj)}
	kind, ok := c.realm.ErrorKind(obj)
	if !ok {
		return err
	}
	err.IsError = true
	err.Kind = kind
	d := obj.(*object.Dict)
	if msg, ok := d.Lookup("message"); ok {
		err.Message = object.Display(msg)
	}
	if stack, ok := d.Lookup("stack"); ok {
		err.Stack = object.Display(stack)
	}
	return err
}

// ScriptError is a script exception converted to a Go error.
type ScriptError struct {
	// Value is the thrown value.
	Value Value
	// IsError is true when the thrown value is an error object. Kind and
	// Stack are only set in that case.
	IsError bool
	Kind    ErrorKind
	Message string
	Stack   string
}

func (e *ScriptError) Error() string {
	if !e.IsError {
		return "Uncaught " + e.Message
	}
	return "Uncaught " + e.Kind.String() + ": " + e.Message
}
