package vm

import (
	"fmt"

	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
)

// describe names a value in "is not a function" style messages.
func describe(obj object.Object) string {
	switch obj := obj.(type) {
	case *object.String:
		return fmt.Sprintf("%q", obj.Value())
	case *object.Array:
		return "array"
	case *object.Dict:
		if obj.IsError() {
			return obj.Inspect()
		}
		return "object"
	case *object.Namespace:
		return "module namespace"
	case *object.Function:
		if name := obj.Name(); name != "" {
			return name
		}
	}
	return obj.Inspect()
}

func notCallable(obj object.Object) error {
	return errz.TypeErrorf("%s is not a function", describe(obj))
}

func notConstructor(obj object.Object) error {
	return errz.TypeErrorf("%s is not a constructor", describe(obj))
}

func uninitialized(name string) error {
	return errz.ReferenceErrorf("Cannot access '%s' before initialization", name)
}

// isObject reports whether a constructor result replaces the new object.
func isObject(obj object.Object) bool {
	switch obj.(type) {
	case object.PropertyObject, *object.Namespace:
		return true
	}
	return false
}

// orUndefined maps a Go nil, as found in unwritten slots, to undefined.
func orUndefined(obj object.Object) object.Object {
	if obj == nil {
		return object.Undefined
	}
	return obj
}
