package builtins

import (
	"context"

	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
)

func (b *installer) objects() {
	realm := b.realm
	proto := realm.ObjectPrototype

	create := func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		value := arg(args, 0)
		if object.IsNullish(value) {
			return realm.NewObject(), nil
		}
		return value, nil
	}
	ctor := b.constructor("Object", 1, proto, create, create)

	b.method(ctor, "keys", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		obj, err := requireObjectCoercible(arg(args, 0))
		if err != nil {
			return nil, err
		}
		keys := object.OwnKeys(obj)
		items := make([]object.Object, len(keys))
		for i, k := range keys {
			items[i] = object.NewString(k)
		}
		return realm.NewArray(items), nil
	})
	b.method(ctor, "values", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		obj, err := requireObjectCoercible(arg(args, 0))
		if err != nil {
			return nil, err
		}
		keys := object.OwnKeys(obj)
		items := make([]object.Object, len(keys))
		for i, k := range keys {
			if items[i], err = object.GetProperty(ctx, obj, k); err != nil {
				return nil, err
			}
		}
		return realm.NewArray(items), nil
	})
	b.method(ctor, "entries", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		obj, err := requireObjectCoercible(arg(args, 0))
		if err != nil {
			return nil, err
		}
		keys := object.OwnKeys(obj)
		items := make([]object.Object, len(keys))
		for i, k := range keys {
			v, err := object.GetProperty(ctx, obj, k)
			if err != nil {
				return nil, err
			}
			items[i] = realm.NewArray([]object.Object{object.NewString(k), v})
		}
		return realm.NewArray(items), nil
	})
	b.method(ctor, "assign", 2, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		target, err := requireObjectCoercible(arg(args, 0))
		if err != nil {
			return nil, err
		}
		for _, source := range args[1:] {
			if object.IsNullish(source) {
				continue
			}
			for _, k := range object.OwnKeys(source) {
				v, err := object.GetProperty(ctx, source, k)
				if err != nil {
					return nil, err
				}
				if err := object.SetProperty(ctx, target, k, v); err != nil {
					return nil, err
				}
			}
		}
		return target, nil
	})
	b.method(ctor, "fromEntries", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		iter, err := object.ValuesIterator(arg(args, 0))
		if err != nil {
			return nil, err
		}
		obj := realm.NewObject()
		for {
			entry, ok := iter.Next()
			if !ok {
				break
			}
			k, err := object.GetIndex(ctx, entry, object.Zero)
			if err != nil {
				return nil, err
			}
			key, err := object.ToPropertyKey(ctx, k)
			if err != nil {
				return nil, err
			}
			v, err := object.GetIndex(ctx, entry, object.NewNumber(1))
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		}
		return obj, nil
	})
	b.method(ctor, "create", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		switch p := arg(args, 0).(type) {
		case *object.Dict:
			return object.NewDict(p), nil
		case *object.NullType:
			return object.NewDict(nil), nil
		}
		return nil, errz.TypeErrorf("Object prototype may only be an Object or null: %s", arg(args, 0).Inspect())
	})
	b.method(ctor, "getPrototypeOf", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		obj, err := requireObjectCoercible(arg(args, 0))
		if err != nil {
			return nil, err
		}
		var p *object.Dict
		switch o := obj.(type) {
		case object.PropertyObject:
			p = o.Prototype()
		case *object.String:
			p = realm.StringPrototype
		case *object.Number:
			p = realm.NumberPrototype
		case *object.Bool:
			p = realm.BooleanPrototype
		}
		if p == nil {
			return object.Null, nil
		}
		return p, nil
	})
	b.method(ctor, "hasOwn", 2, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		obj, err := requireObjectCoercible(arg(args, 0))
		if err != nil {
			return nil, err
		}
		key, err := object.ToPropertyKey(ctx, arg(args, 1))
		if err != nil {
			return nil, err
		}
		return object.NewBool(object.HasOwnProperty(obj, key)), nil
	})

	b.method(proto, "hasOwnProperty", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		key, err := object.ToPropertyKey(ctx, arg(args, 0))
		if err != nil {
			return nil, err
		}
		return object.NewBool(object.HasOwnProperty(this, key)), nil
	})
	b.method(proto, "isPrototypeOf", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		v, ok := arg(args, 0).(object.PropertyObject)
		if !ok {
			return object.False, nil
		}
		for p := v.Prototype(); p != nil; p = p.Prototype() {
			if object.Object(p) == this {
				return object.True, nil
			}
		}
		return object.False, nil
	})
	b.method(proto, "toString", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		return object.NewString("[object " + className(this) + "]"), nil
	})
	b.method(proto, "valueOf", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		return requireObjectCoercible(this)
	})
}

func requireObjectCoercible(obj object.Object) (object.Object, error) {
	if object.IsNullish(obj) {
		return nil, errz.TypeErrorf("Cannot convert undefined or null to object")
	}
	return obj, nil
}

func className(obj object.Object) string {
	switch o := obj.(type) {
	case *object.UndefinedType:
		return "Undefined"
	case *object.NullType:
		return "Null"
	case *object.Array:
		return "Array"
	case *object.String:
		return "String"
	case *object.Number:
		return "Number"
	case *object.Bool:
		return "Boolean"
	case *object.Namespace:
		return "Module"
	case *object.Dict:
		if c := o.Class(); c != "" {
			return c
		}
	case object.Callable:
		return "Function"
	}
	return "Object"
}
