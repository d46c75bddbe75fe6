package builtins

import (
	"context"
	"slices"
	"strings"

	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
)

func (b *installer) arrays() {
	realm := b.realm
	proto := realm.ArrayPrototype

	create := func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		if len(args) == 1 {
			if n, ok := args[0].(*object.Number); ok {
				length := n.Value()
				if length < 0 || length > object.MaxArrayLength || length != float64(int(length)) {
					return nil, errz.RangeErrorf("Invalid array length")
				}
				arr := realm.NewArray(nil)
				if err := arr.SetLength(int(length)); err != nil {
					return nil, err
				}
				return arr, nil
			}
		}
		return realm.NewArray(slices.Clone(args)), nil
	}
	ctor := b.constructor("Array", 1, proto, create, create)

	b.method(ctor, "isArray", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		_, ok := arg(args, 0).(*object.Array)
		return object.NewBool(ok), nil
	})
	b.method(ctor, "of", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		return realm.NewArray(slices.Clone(args)), nil
	})
	b.method(ctor, "from", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		source := arg(args, 0)
		var mapFn object.Callable
		if fn := arg(args, 1); fn != object.Undefined {
			c, err := callable(fn)
			if err != nil {
				return nil, err
			}
			mapFn = c
		}
		var items []object.Object
		if object.IsNullish(source) {
			return nil, errz.TypeErrorf("%s is not iterable", source.Inspect())
		}
		if iter, err := object.ValuesIterator(source); err == nil {
			for {
				v, ok := iter.Next()
				if !ok {
					break
				}
				items = append(items, v)
			}
		} else {
			// Array-like objects with a length property.
			lv, err := object.GetProperty(ctx, source, "length")
			if err != nil {
				return nil, err
			}
			n, err := toIntegerOrInfinity(ctx, lv)
			if err != nil {
				return nil, err
			}
			if n > object.MaxArrayLength {
				return nil, errz.RangeErrorf("Invalid array length")
			}
			for i := 0; i < int(n); i++ {
				v, err := object.GetIndex(ctx, source, object.NewNumber(float64(i)))
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
		}
		if mapFn != nil {
			for i, v := range items {
				mapped, err := mapFn.Call(ctx, arg(args, 2), v, object.NewNumber(float64(i)))
				if err != nil {
					return nil, err
				}
				items[i] = mapped
			}
		}
		return realm.NewArray(items), nil
	})

	b.method(proto, "push", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "push")
		if err != nil {
			return nil, err
		}
		if arr.Len()+len(args) > object.MaxArrayLength {
			return nil, errz.RangeErrorf("Invalid array length")
		}
		arr.Append(args...)
		return object.NewNumber(float64(arr.Len())), nil
	})
	b.method(proto, "pop", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "pop")
		if err != nil {
			return nil, err
		}
		n := arr.Len()
		if n == 0 {
			return object.Undefined, nil
		}
		last := arr.Get(n - 1)
		arr.SetItems(arr.Items()[:n-1])
		return last, nil
	})
	b.method(proto, "shift", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "shift")
		if err != nil {
			return nil, err
		}
		if arr.Len() == 0 {
			return object.Undefined, nil
		}
		first := arr.Get(0)
		arr.SetItems(slices.Delete(arr.Items(), 0, 1))
		return first, nil
	})
	b.method(proto, "unshift", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "unshift")
		if err != nil {
			return nil, err
		}
		if arr.Len()+len(args) > object.MaxArrayLength {
			return nil, errz.RangeErrorf("Invalid array length")
		}
		arr.SetItems(slices.Insert(arr.Items(), 0, args...))
		return object.NewNumber(float64(arr.Len())), nil
	})
	b.method(proto, "slice", 2, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "slice")
		if err != nil {
			return nil, err
		}
		start, end, err := sliceBounds(ctx, args, arr.Len())
		if err != nil {
			return nil, err
		}
		if start >= end {
			return realm.NewArray(nil), nil
		}
		return realm.NewArray(slices.Clone(arr.Items()[start:end])), nil
	})
	b.method(proto, "splice", 2, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "splice")
		if err != nil {
			return nil, err
		}
		n := arr.Len()
		start, err := relativeIndex(ctx, arg(args, 0), n, 0)
		if err != nil {
			return nil, err
		}
		count := n - start
		switch {
		case len(args) == 0:
			count = 0
		case len(args) >= 2:
			c, err := toIntegerOrInfinity(ctx, args[1])
			if err != nil {
				return nil, err
			}
			count = int(max(0, min(c, float64(n-start))))
		}
		var inserted []object.Object
		if len(args) > 2 {
			inserted = args[2:]
		}
		if n-count+len(inserted) > object.MaxArrayLength {
			return nil, errz.RangeErrorf("Invalid array length")
		}
		items := arr.Items()
		removed := slices.Clone(items[start : start+count])
		arr.SetItems(slices.Replace(items, start, start+count, inserted...))
		return realm.NewArray(removed), nil
	})
	b.method(proto, "concat", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "concat")
		if err != nil {
			return nil, err
		}
		items := slices.Clone(arr.Items())
		for _, a := range args {
			if other, ok := a.(*object.Array); ok {
				items = append(items, other.Items()...)
			} else {
				items = append(items, a)
			}
		}
		if len(items) > object.MaxArrayLength {
			return nil, errz.RangeErrorf("Invalid array length")
		}
		return realm.NewArray(items), nil
	})
	b.method(proto, "join", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "join")
		if err != nil {
			return nil, err
		}
		sep := ","
		if s := arg(args, 0); s != object.Undefined {
			if sep, err = object.ToString(ctx, s); err != nil {
				return nil, err
			}
		}
		return join(ctx, arr, sep)
	})
	b.method(proto, "toString", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "toString")
		if err != nil {
			return nil, err
		}
		return join(ctx, arr, ",")
	})
	b.method(proto, "indexOf", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "indexOf")
		if err != nil {
			return nil, err
		}
		from, err := relativeIndex(ctx, arg(args, 1), arr.Len(), 0)
		if err != nil {
			return nil, err
		}
		target := arg(args, 0)
		for i := from; i < arr.Len(); i++ {
			if object.StrictEquals(arr.Get(i), target) {
				return object.NewNumber(float64(i)), nil
			}
		}
		return object.NewNumber(-1), nil
	})
	b.method(proto, "lastIndexOf", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "lastIndexOf")
		if err != nil {
			return nil, err
		}
		from := arr.Len() - 1
		if len(args) > 1 {
			f, err := toIntegerOrInfinity(ctx, args[1])
			if err != nil {
				return nil, err
			}
			if f < 0 {
				f += float64(arr.Len())
			}
			from = int(min(f, float64(arr.Len()-1)))
		}
		target := arg(args, 0)
		for i := from; i >= 0; i-- {
			if object.StrictEquals(arr.Get(i), target) {
				return object.NewNumber(float64(i)), nil
			}
		}
		return object.NewNumber(-1), nil
	})
	b.method(proto, "includes", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "includes")
		if err != nil {
			return nil, err
		}
		from, err := relativeIndex(ctx, arg(args, 1), arr.Len(), 0)
		if err != nil {
			return nil, err
		}
		target := arg(args, 0)
		for i := from; i < arr.Len(); i++ {
			if object.SameValueZero(arr.Get(i), target) {
				return object.True, nil
			}
		}
		return object.False, nil
	})
	b.method(proto, "reverse", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "reverse")
		if err != nil {
			return nil, err
		}
		slices.Reverse(arr.Items())
		return arr, nil
	})
	b.method(proto, "fill", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "fill")
		if err != nil {
			return nil, err
		}
		start, end, err := sliceBounds(ctx, args[min(1, len(args)):], arr.Len())
		if err != nil {
			return nil, err
		}
		items := arr.Items()
		for i := start; i < end; i++ {
			items[i] = arg(args, 0)
		}
		return arr, nil
	})
	b.method(proto, "sort", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "sort")
		if err != nil {
			return nil, err
		}
		var compare object.Callable
		if fn := arg(args, 0); fn != object.Undefined {
			if compare, err = callable(fn); err != nil {
				return nil, err
			}
		}
		if err := sortItems(ctx, arr, compare); err != nil {
			return nil, err
		}
		return arr, nil
	})
	b.method(proto, "flat", 0, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		arr, err := thisArray(this, "flat")
		if err != nil {
			return nil, err
		}
		depth := 1.0
		if d := arg(args, 0); d != object.Undefined {
			if depth, err = toIntegerOrInfinity(ctx, d); err != nil {
				return nil, err
			}
		}
		return realm.NewArray(flatten(nil, arr.Items(), depth)), nil
	})

	b.iterationMethods(proto)
}

// iterationMethods defines the prototype methods that take a callback
// invoked as fn(element, index, array).
func (b *installer) iterationMethods(proto *object.Dict) {
	realm := b.realm

	// each calls fn for every element until visit returns false.
	each := func(ctx context.Context, name string, this object.Object, args []object.Object, visit func(i int, v, result object.Object) bool) error {
		arr, err := thisArray(this, name)
		if err != nil {
			return err
		}
		fn, err := callable(arg(args, 0))
		if err != nil {
			return err
		}
		thisArg := arg(args, 1)
		for i := 0; i < arr.Len(); i++ {
			v := arr.Get(i)
			result, err := fn.Call(ctx, thisArg, v, object.NewNumber(float64(i)), arr)
			if err != nil {
				return err
			}
			if !visit(i, v, result) {
				break
			}
		}
		return nil
	}

	b.method(proto, "forEach", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		err := each(ctx, "forEach", this, args, func(int, object.Object, object.Object) bool { return true })
		if err != nil {
			return nil, err
		}
		return object.Undefined, nil
	})
	b.method(proto, "map", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		var items []object.Object
		err := each(ctx, "map", this, args, func(_ int, _, result object.Object) bool {
			items = append(items, result)
			return true
		})
		if err != nil {
			return nil, err
		}
		return realm.NewArray(items), nil
	})
	b.method(proto, "filter", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		var items []object.Object
		err := each(ctx, "filter", this, args, func(_ int, v, result object.Object) bool {
			if object.ToBoolean(result) {
				items = append(items, v)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		return realm.NewArray(items), nil
	})
	b.method(proto, "flatMap", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		var items []object.Object
		err := each(ctx, "flatMap", this, args, func(_ int, _, result object.Object) bool {
			items = flatten(items, []object.Object{result}, 1)
			return true
		})
		if err != nil {
			return nil, err
		}
		return realm.NewArray(items), nil
	})
	b.method(proto, "find", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		var found object.Object = object.Undefined
		err := each(ctx, "find", this, args, func(_ int, v, result object.Object) bool {
			if object.ToBoolean(result) {
				found = v
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		return found, nil
	})
	b.method(proto, "findIndex", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		index := -1
		err := each(ctx, "findIndex", this, args, func(i int, _, result object.Object) bool {
			if object.ToBoolean(result) {
				index = i
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		return object.NewNumber(float64(index)), nil
	})
	b.method(proto, "some", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		found := false
		err := each(ctx, "some", this, args, func(_ int, _, result object.Object) bool {
			found = object.ToBoolean(result)
			return !found
		})
		if err != nil {
			return nil, err
		}
		return object.NewBool(found), nil
	})
	b.method(proto, "every", 1, func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
		all := true
		err := each(ctx, "every", this, args, func(_ int, _, result object.Object) bool {
			all = object.ToBoolean(result)
			return all
		})
		if err != nil {
			return nil, err
		}
		return object.NewBool(all), nil
	})
	reduce := func(name string, reverse bool) object.BuiltinFunction {
		return func(ctx context.Context, this object.Object, args ...object.Object) (object.Object, error) {
			arr, err := thisArray(this, name)
			if err != nil {
				return nil, err
			}
			fn, err := callable(arg(args, 0))
			if err != nil {
				return nil, err
			}
			indexes := make([]int, arr.Len())
			for i := range indexes {
				indexes[i] = i
			}
			if reverse {
				slices.Reverse(indexes)
			}
			var acc object.Object
			if len(args) > 1 {
				acc = args[1]
			} else {
				if len(indexes) == 0 {
					return nil, errz.TypeErrorf("Reduce of empty array with no initial value")
				}
				acc = arr.Get(indexes[0])
				indexes = indexes[1:]
			}
			for _, i := range indexes {
				if i >= arr.Len() {
					continue
				}
				if acc, err = fn.Call(ctx, object.Undefined, acc, arr.Get(i), object.NewNumber(float64(i)), arr); err != nil {
					return nil, err
				}
			}
			return acc, nil
		}
	}
	b.method(proto, "reduce", 1, reduce("reduce", false))
	b.method(proto, "reduceRight", 1, reduce("reduceRight", true))
}

func thisArray(this object.Object, method string) (*object.Array, error) {
	arr, ok := this.(*object.Array)
	if !ok {
		return nil, errz.TypeErrorf("Array.prototype.%s called on non-array", method)
	}
	return arr, nil
}

// sliceBounds resolves the (start, end) argument pair shared by slice and
// fill.
func sliceBounds(ctx context.Context, args []object.Object, length int) (int, int, error) {
	start, err := relativeIndex(ctx, arg(args, 0), length, 0)
	if err != nil {
		return 0, 0, err
	}
	end, err := relativeIndex(ctx, arg(args, 1), length, length)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

type joinKey struct{}

// join renders the elements separated by sep. Arrays already being joined
// further up the call stack render as the empty string.
func join(ctx context.Context, arr *object.Array, sep string) (object.Object, error) {
	active, _ := ctx.Value(joinKey{}).(map[*object.Array]bool)
	if active[arr] {
		return object.EmptyString, nil
	}
	if active == nil {
		active = map[*object.Array]bool{}
		ctx = context.WithValue(ctx, joinKey{}, active)
	}
	active[arr] = true
	defer delete(active, arr)

	var sb strings.Builder
	for i := 0; i < arr.Len(); i++ {
		if i > 0 {
			sb.WriteString(sep)
		}
		v := arr.Get(i)
		if object.IsNullish(v) {
			continue
		}
		s, err := object.ToString(ctx, v)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return object.NewString(sb.String()), nil
}

// sortItems sorts in place with a stable sort. Undefined elements always
// sort to the end without being passed to compare.
func sortItems(ctx context.Context, arr *object.Array, compare object.Callable) error {
	var values, undefined []object.Object
	for _, v := range arr.Items() {
		if v == nil || v == object.Undefined {
			undefined = append(undefined, object.Undefined)
		} else {
			values = append(values, v)
		}
	}
	var sortErr error
	slices.SortStableFunc(values, func(x, y object.Object) int {
		if sortErr != nil {
			return 0
		}
		if compare != nil {
			result, err := compare.Call(ctx, object.Undefined, x, y)
			if err != nil {
				sortErr = err
				return 0
			}
			f, err := object.ToNumber(ctx, result)
			if err != nil {
				sortErr = err
				return 0
			}
			switch {
			case f < 0:
				return -1
			case f > 0:
				return 1
			}
			return 0
		}
		xs, err := toString(ctx, x)
		if err != nil {
			sortErr = err
			return 0
		}
		ys, err := toString(ctx, y)
		if err != nil {
			sortErr = err
			return 0
		}
		return object.CompareStrings(xs, ys)
	})
	if sortErr != nil {
		return sortErr
	}
	arr.SetItems(append(values, undefined...))
	return nil
}

func flatten(dst, items []object.Object, depth float64) []object.Object {
	for _, v := range items {
		if inner, ok := v.(*object.Array); ok && depth >= 1 {
			dst = flatten(dst, inner.Items(), depth-1)
			continue
		}
		dst = append(dst, v)
	}
	return dst
}
