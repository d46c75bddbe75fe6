package builtins

import (
	"context"

	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
)

func (b *installer) errorTypes() {
	for _, kind := range errz.Kinds() {
		b.errorConstructor(kind)
	}
	base := b.realm.ErrorPrototypes[errz.KindError]
	b.method(base, "toString", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		if _, ok := this.(object.PropertyObject); !ok {
			return nil, errz.TypeErrorf("Error.prototype.toString called on non-object")
		}
		name, err := errorField(ctx, this, "name", "Error")
		if err != nil {
			return nil, err
		}
		message, err := errorField(ctx, this, "message", "")
		if err != nil {
			return nil, err
		}
		switch {
		case name == "":
			return object.NewString(message), nil
		case message == "":
			return object.NewString(name), nil
		}
		return object.NewString(name + ": " + message), nil
	})
}

func errorField(ctx context.Context, obj object.Object, key, def string) (string, error) {
	v, err := object.GetProperty(ctx, obj, key)
	if err != nil {
		return "", err
	}
	if v == object.Undefined {
		return def, nil
	}
	return object.ToString(ctx, v)
}

// errorConstructor defines one of Error, TypeError, ... Calling it with or
// without new creates an error object whose message is the first argument.
func (b *installer) errorConstructor(kind errz.ErrorKind) {
	realm := b.realm
	create := func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		var message string
		if msg := arg(args, 0); msg != object.Undefined {
			s, err := object.ToString(ctx, msg)
			if err != nil {
				return nil, err
			}
			message = s
		}
		err := realm.NewError(kind, message)
		if opts, ok := arg(args, 1).(*object.Dict); ok {
			if cause, ok := opts.GetOwn("cause"); ok {
				err.SetHidden("cause", cause)
			}
		}
		var stack []errz.StackFrame
		if fn, ok := object.GetStackFunc(ctx); ok {
			stack = fn()
		}
		err.SetHidden("stack", object.NewString(object.FormatStack(err, stack)))
		return err, nil
	}
	b.constructor(kind.String(), 1, realm.ErrorPrototypes[kind], create, create)
}
