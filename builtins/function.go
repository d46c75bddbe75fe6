package builtins

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
)

func (b *installer) functions() {
	realm := b.realm
	proto := realm.FunctionPrototype

	unsupported := func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		return nil, errz.TypeErrorf("Code generation from strings is not supported")
	}
	b.constructor("Function", 1, proto, unsupported, unsupported)

	b.method(proto, "call", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		fn, err := callable(this)
		if err != nil {
			return nil, err
		}
		var rest []object.Object
		if len(args) > 1 {
			rest = args[1:]
		}
		return fn.Call(ctx, arg(args, 0), rest...)
	})
	b.method(proto, "apply", 2, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		fn, err := callable(this)
		if err != nil {
			return nil, err
		}
		var list []object.Object
		switch a := arg(args, 1).(type) {
		case *object.UndefinedType, *object.NullType:
		case *object.Array:
			list = append(list, a.Items()...)
		default:
			return nil, errz.TypeErrorf("CreateListFromArrayLike called on non-object")
		}
		return fn.Call(ctx, arg(args, 0), list...)
	})
	b.method(proto, "bind", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		target, err := callable(this)
		if err != nil {
			return nil, err
		}
		boundThis := arg(args, 0)
		var bound []object.Object
		if len(args) > 1 {
			bound = append(bound, args[1:]...)
		}
		join := func(args []object.Object) []object.Object {
			all := make([]object.Object, 0, len(bound)+len(args))
			all = append(all, bound...)
			return append(all, args...)
		}
		name := "bound " + functionName(target)
		fn := realm.NewBuiltin(name, 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
			return target.Call(ctx, boundThis, join(args)...)
		})
		if builtin, ok := target.(*object.Builtin); ok && builtin.IsConstructor() {
			fn.WithConstructor(func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
				return builtin.Construct(ctx, join(args)...)
			})
		}
		return fn, nil
	})
	b.method(proto, "toString", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		switch fn := this.(type) {
		case *object.Function:
			return object.NewString(fn.String()), nil
		case *object.Builtin:
			return object.NewString(fmt.Sprintf("function %s() { [native code] }", fn.Name())), nil
		}
		return nil, errz.TypeErrorf("Function.prototype.toString requires that 'this' be a Function")
	})
}

func functionName(fn object.Callable) string {
	switch fn := fn.(type) {
	case *object.Function:
		return fn.Name()
	case *object.Builtin:
		return fn.Name()
	}
	return ""
}
