package object

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/jsrt/errz"
)

// ThrownError carries a script value raised with throw through Go code.
type ThrownError struct {
	Value Object
}

func (e *ThrownError) Error() string {
	return "Uncaught " + Display(e.Value)
}

// NewThrownError wraps a thrown script value.
func NewThrownError(value Object) *ThrownError {
	return &ThrownError{Value: value}
}

// ErrorValue converts a catchable Go error into the script value a catch
// clause receives. Structured errors become error objects of their kind.
// It reports false for errors scripts cannot catch.
func ErrorValue(ctx context.Context, err error) (Object, bool) {
	switch err := err.(type) {
	case *ThrownError:
		return err.Value, true
	case *errz.StructuredError:
		realm, ok := GetRealm(ctx)
		if !ok {
			return nil, false
		}
		obj := realm.NewError(err.Kind, err.Message)
		var stack []errz.StackFrame
		if err.Stack != nil {
			stack = err.Stack
		} else if fn, ok := GetStackFunc(ctx); ok {
			stack = fn()
		}
		obj.SetHidden("stack", NewString(FormatStack(obj, stack)))
		return obj, true
	}
	return nil, false
}

// FormatStack renders the stack property of an error object.
func FormatStack(err *Dict, stack []errz.StackFrame) string {
	return strings.TrimRight(errorSummary(err)+"\n"+errz.FormatStack(stack), "\n")
}

func typeErrorf(format string, args ...any) error {
	return errz.TypeErrorf(format, args...)
}

func rangeErrorf(format string, args ...any) error {
	return errz.RangeErrorf(format, args...)
}

func referenceErrorf(format string, args ...any) error {
	return errz.ReferenceErrorf(format, args...)
}

// describe names a value for error messages.
func describe(obj Object) string {
	switch obj := obj.(type) {
	case *String:
		return fmt.Sprintf("%q", obj.value)
	case *Function, *Builtin:
		return obj.Inspect()
	case *Dict:
		if obj.IsError() {
			return errorSummary(obj)
		}
		return "object"
	case *Array:
		return "array"
	}
	return obj.Inspect()
}
