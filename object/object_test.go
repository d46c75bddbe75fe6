package object

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/op"
)

func realmContext() (context.Context, *Realm) {
	realm := NewRealm()
	return WithRealm(context.Background(), realm), realm
}

func num(f float64) *Number { return NewNumber(f) }

func TestStrictAndLooseEquality(t *testing.T) {
	ctx, realm := realmContext()
	arr := realm.NewArray(nil)

	require.True(t, StrictEquals(num(1), num(1)))
	require.False(t, StrictEquals(NaN, NaN))
	require.True(t, SameValueZero(NaN, NaN))
	require.True(t, StrictEquals(NewString("a"), NewString("a")))
	require.False(t, StrictEquals(num(1), NewString("1")))
	require.True(t, StrictEquals(arr, arr))
	require.False(t, StrictEquals(arr, realm.NewArray(nil)))

	tests := []struct {
		a, b Object
		want bool
	}{
		{Null, Undefined, true},
		{Null, Zero, false},
		{num(1), NewString("1"), true},
		{True, num(1), true},
		{False, NewString(""), true},
		{NewString("abc"), NewString("abc"), true},
		{NaN, NaN, false},
	}
	for _, tt := range tests {
		got, err := LooseEquals(ctx, tt.a, tt.b)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "%s == %s", tt.a.Inspect(), tt.b.Inspect())
	}
}

func TestBinaryOp(t *testing.T) {
	ctx, _ := realmContext()
	tests := []struct {
		op   op.BinaryOpType
		a, b Object
		want Object
	}{
		{op.Add, num(1), num(2), num(3)},
		{op.Add, NewString("a"), num(1), NewString("a1")},
		{op.Add, num(1), Null, num(1)},
		{op.Add, True, True, num(2)},
		{op.Subtract, NewString("5"), num(2), num(3)},
		{op.Multiply, num(4), num(2.5), num(10)},
		{op.Divide, num(1), num(0), num(math.Inf(1))},
		{op.Modulo, num(-7), num(3), num(-1)},
		{op.Power, num(2), num(10), num(1024)},
		{op.LShift, num(1), num(33), num(2)},
		{op.RShift, num(-8), num(1), num(-4)},
		{op.UnsignedRShift, num(-1), num(28), num(15)},
		{op.BitwiseAnd, num(6), num(3), num(2)},
		{op.BitwiseOr, num(6), num(3), num(7)},
		{op.BitwiseXor, num(6), num(3), num(5)},
	}
	for _, tt := range tests {
		got, err := BinaryOp(ctx, tt.op, tt.a, tt.b)
		require.NoError(t, err)
		require.True(t, StrictEquals(tt.want, got), "%s %s %s = %s", tt.a.Inspect(), tt.op, tt.b.Inspect(), got.Inspect())
	}

	got, err := BinaryOp(ctx, op.Power, num(1), num(math.Inf(1)))
	require.NoError(t, err)
	require.True(t, math.IsNaN(got.(*Number).Value()))

	got, err = BinaryOp(ctx, op.Multiply, NewString("x"), num(2))
	require.NoError(t, err)
	require.True(t, math.IsNaN(got.(*Number).Value()))
}

func TestCompare(t *testing.T) {
	ctx, _ := realmContext()
	tests := []struct {
		op   op.CompareOpType
		a, b Object
		want bool
	}{
		{op.LessThan, num(1), num(2), true},
		{op.LessThan, NewString("10"), NewString("9"), true},
		{op.LessThan, NewString("10"), num(9), false},
		{op.GreaterThanOrEqual, num(2), num(2), true},
		{op.LessThan, NaN, num(1), false},
		{op.GreaterThan, NaN, num(1), false},
		{op.Equal, Null, Undefined, true},
		{op.StrictEqual, Null, Undefined, false},
		{op.NotEqual, num(1), NewString("2"), true},
		{op.StrictNotEqual, num(1), num(1), false},
	}
	for _, tt := range tests {
		got, err := Compare(ctx, tt.op, tt.a, tt.b)
		require.NoError(t, err)
		require.Equal(t, NewBool(tt.want), got, "%s %s %s", tt.a.Inspect(), tt.op, tt.b.Inspect())
	}
}

func TestObjectToPrimitiveUsesBuiltins(t *testing.T) {
	ctx, realm := realmContext()
	realm.ObjectPrototype.SetHidden("toString", realm.NewBuiltin("toString", 0,
		func(ctx context.Context, this Object, args ...Object) (Object, error) {
			return NewString("[object Object]"), nil
		}))
	got, err := BinaryOp(ctx, op.Add, NewString("x"), realm.NewObject())
	require.NoError(t, err)
	require.Equal(t, "x[object Object]", got.(*String).Value())

	_, err = ToPrimitive(ctx, NewDict(nil), "default")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Cannot convert object to primitive value")
}

func TestPropertyAccess(t *testing.T) {
	ctx, realm := realmContext()
	realm.StringPrototype.SetHidden("shout", NewString("method"))

	obj := realm.NewObject()
	require.NoError(t, SetProperty(ctx, obj, "a", num(1)))
	v, err := GetProperty(ctx, obj, "a")
	require.NoError(t, err)
	require.Equal(t, 1.0, v.(*Number).Value())

	v, err = GetProperty(ctx, obj, "missing")
	require.NoError(t, err)
	require.Equal(t, Undefined, v)

	v, err = GetProperty(ctx, NewString("héllo"), "length")
	require.NoError(t, err)
	require.Equal(t, 5.0, v.(*Number).Value())

	v, err = GetIndex(ctx, NewString("héllo"), num(1))
	require.NoError(t, err)
	require.Equal(t, "é", v.(*String).Value())

	v, err = GetProperty(ctx, NewString("x"), "shout")
	require.NoError(t, err)
	require.Equal(t, "method", v.(*String).Value())

	_, err = GetProperty(ctx, Undefined, "foo")
	require.EqualError(t, err, "TypeError: Cannot read properties of undefined (reading 'foo')")

	err = SetProperty(ctx, Null, "foo", num(1))
	require.EqualError(t, err, "TypeError: Cannot set properties of null (setting 'foo')")

	ok, err := HasProperty(ctx, obj, "a")
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := DeleteProperty(ctx, obj, "a")
	require.NoError(t, err)
	require.True(t, deleted)
	require.Empty(t, OwnKeys(obj))

	_, err = HasProperty(ctx, num(1), "a")
	require.Error(t, err)
}

func TestArray(t *testing.T) {
	ctx, realm := realmContext()
	arr := realm.NewArray([]Object{num(1), num(2)})

	require.NoError(t, SetIndex(ctx, arr, num(4), NewString("x")))
	require.Equal(t, 5, arr.Len())
	require.Equal(t, Undefined, arr.Get(3))

	v, err := GetProperty(ctx, arr, "length")
	require.NoError(t, err)
	require.Equal(t, 5.0, v.(*Number).Value())

	require.NoError(t, SetProperty(ctx, arr, "length", num(1)))
	require.Equal(t, 1, arr.Len())

	require.NoError(t, SetProperty(ctx, arr, "tag", True))
	require.Equal(t, []string{"0", "tag"}, arr.OwnKeys())

	err = SetProperty(ctx, arr, "length", num(-1))
	require.EqualError(t, err, "RangeError: Invalid array length")

	require.Equal(t, []any{1.0}, arr.Interface())
}

func TestArrayIndex(t *testing.T) {
	for key, want := range map[string]bool{"0": true, "12": true, "01": false, "-1": false, "1.5": false, "": false} {
		_, ok := ArrayIndex(key)
		require.Equal(t, want, ok, key)
	}
}

func TestPrototypeChainAndInstanceOf(t *testing.T) {
	ctx, realm := realmContext()
	ctor := realm.NewBuiltin("Thing", 0, nil)
	proto := realm.NewObject()
	proto.Set("greet", NewString("hi"))
	ctor.SetHidden("prototype", proto)

	instance := NewDict(proto)
	v, err := GetProperty(ctx, instance, "greet")
	require.NoError(t, err)
	require.Equal(t, "hi", v.(*String).Value())

	ok, err := InstanceOf(ctx, instance, ctor)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = InstanceOf(ctx, realm.NewObject(), ctor)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = InstanceOf(ctx, instance, num(1))
	require.Error(t, err)
}

func TestErrorObjects(t *testing.T) {
	realm := NewRealm()
	err := realm.NewError(errz.KindTypeError, "bad %s value")
	require.True(t, err.IsError())
	require.Equal(t, "TypeError: bad %s value", err.Inspect())

	kind, ok := realm.ErrorKind(err)
	require.True(t, ok)
	require.Equal(t, errz.KindTypeError, kind)

	_, ok = realm.ErrorKind(realm.NewObject())
	require.False(t, ok)

	// message is not enumerable
	require.Empty(t, err.OwnKeys())
	exported := err.Interface().(map[string]any)
	require.Equal(t, "TypeError", exported["name"])
	require.Equal(t, "bad %s value", exported["message"])
}

func TestErrorValue(t *testing.T) {
	ctx, realm := realmContext()
	ctx = WithStackFunc(ctx, func() []errz.StackFrame {
		return []errz.StackFrame{{Function: "f", Location: errz.SourceLocation{Filename: "a.js", Line: 1, Column: 2}}}
	})
	v, ok := ErrorValue(ctx, errz.RangeErrorf("too big"))
	require.True(t, ok)
	kind, _ := realm.ErrorKind(v)
	require.Equal(t, errz.KindRangeError, kind)
	stack, found := v.(*Dict).GetOwn("stack")
	require.True(t, found)
	require.Equal(t, "RangeError: too big\n    at f (a.js:1:2)", stack.(*String).Value())

	thrown := NewString("boom")
	v, ok = ErrorValue(ctx, NewThrownError(thrown))
	require.True(t, ok)
	require.Same(t, thrown, v)

	_, ok = ErrorValue(ctx, context.Canceled)
	require.False(t, ok)
}

func TestGlobals(t *testing.T) {
	realm := NewRealm()
	realm.DefineGlobal("console", realm.NewObject())
	realm.DefineGlobalConst("NaN", NaN)

	require.NoError(t, realm.DeclareGlobal("x", BindLet))
	_, err := realm.LoadGlobal("x")
	require.EqualError(t, err, "ReferenceError: Cannot access 'x' before initialization")
	require.NoError(t, realm.InitGlobal("x", num(1)))
	v, err := realm.LoadGlobal("x")
	require.NoError(t, err)
	require.Equal(t, 1.0, v.(*Number).Value())

	err = realm.DeclareGlobal("x", BindVar)
	require.EqualError(t, err, "SyntaxError: Identifier 'x' has already been declared")

	require.NoError(t, realm.DeclareGlobal("v", BindVar))
	require.NoError(t, realm.DeclareGlobal("v", BindVar))
	require.Error(t, realm.DeclareGlobal("v", BindConst))

	// Lexical declarations may shadow host bindings.
	require.NoError(t, realm.DeclareGlobal("console", BindConst))
	require.NoError(t, realm.InitGlobal("console", num(2)))
	err = realm.StoreGlobal("console", num(3))
	require.EqualError(t, err, "TypeError: Assignment to constant variable.")

	err = realm.StoreGlobal("NaN", num(3))
	require.Error(t, err)

	_, err = realm.LoadGlobal("nope")
	require.EqualError(t, err, "ReferenceError: nope is not defined")
	err = realm.StoreGlobal("nope", num(1))
	require.EqualError(t, err, "ReferenceError: nope is not defined")
}

func TestModuleEnvAndNamespace(t *testing.T) {
	ctx, _ := realmContext()
	env := NewModuleEnv("m.js", []string{"a", "b"}, []bool{true, false})
	require.Equal(t, Uninitialized, env.Cell(0).Value())
	require.Equal(t, Undefined, env.Cell(1).Value())

	ns := NewNamespace("m.js", map[string]*Cell{"b": env.Cell(1), "a": env.Cell(0)})
	require.Equal(t, []string{"a", "b"}, ns.Keys())

	_, err := GetProperty(ctx, ns, "a")
	require.EqualError(t, err, "ReferenceError: Cannot access 'a' before initialization")

	env.Cell(0).Set(num(7))
	v, err := GetProperty(ctx, ns, "a")
	require.NoError(t, err)
	require.Equal(t, 7.0, v.(*Number).Value())

	v, err = GetProperty(ctx, ns, "missing")
	require.NoError(t, err)
	require.Equal(t, Undefined, v)

	err = SetProperty(ctx, ns, "a", num(1))
	require.Error(t, err)

	// Importers alias the exporter's cell.
	importer := NewModuleEnv("main.js", []string{"a"}, []bool{true})
	importer.Bind(0, env.Cell(0))
	env.Cell(0).Set(num(8))
	require.Equal(t, 8.0, importer.Cell(0).Value().(*Number).Value())

	require.Equal(t, "[Module: null prototype] { a: 8, b: undefined }", ns.Inspect())
}

func TestIterators(t *testing.T) {
	realm := NewRealm()
	arr := realm.NewArray([]Object{num(1), num(2)})
	it, err := ValuesIterator(arr)
	require.NoError(t, err)
	var got []float64
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		got = append(got, v.(*Number).Value())
		if len(got) == 1 {
			arr.Append(num(3))
		}
	}
	require.Equal(t, []float64{1, 2, 3}, got)

	it, err = ValuesIterator(NewString("a😀"))
	require.NoError(t, err)
	v, _ := it.Next()
	require.Equal(t, "a", v.(*String).Value())
	v, _ = it.Next()
	require.Equal(t, "😀", v.(*String).Value())
	_, ok := it.Next()
	require.False(t, ok)

	_, err = ValuesIterator(num(1))
	require.EqualError(t, err, "TypeError: 1 is not iterable")

	proto := realm.NewObject()
	proto.Set("inherited", True)
	obj := NewDict(proto)
	obj.Set("own", True)
	obj.Set("gone", True)
	keys := KeysIterator(obj)
	k, _ := keys.Next()
	require.Equal(t, "own", k.(*String).Value())
	obj.DeleteOwn("gone")
	k, _ = keys.Next()
	require.Equal(t, "inherited", k.(*String).Value())
	_, ok = keys.Next()
	require.False(t, ok)
}

func TestFunctionCallRequiresCallFunc(t *testing.T) {
	ctx, realm := realmContext()
	b := realm.NewBuiltin("id", 1, func(ctx context.Context, this Object, args ...Object) (Object, error) {
		return args[0], nil
	})
	v, err := b.Call(ctx, Undefined, num(3))
	require.NoError(t, err)
	require.Equal(t, 3.0, v.(*Number).Value())

	_, err = b.Construct(ctx)
	require.EqualError(t, err, "TypeError: id is not a constructor")

	name, err := GetProperty(ctx, b, "name")
	require.NoError(t, err)
	require.Equal(t, "id", name.(*String).Value())
}
