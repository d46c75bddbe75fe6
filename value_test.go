package jsrt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	rt := NewRuntime(opts...)
	ctx := rt.NewContext()
	t.Cleanup(func() {
		require.NoError(t, ctx.Free())
		require.NoError(t, rt.Free())
	})
	return ctx
}

func TestConstantValues(t *testing.T) {
	require.True(t, True() == True())
	require.True(t, False() == NewBool(false))
	require.True(t, NewBool(true) == True())
	require.True(t, Null() == Null())
	require.True(t, Undefined() == Value{})
	require.True(t, Exception() == Exception())
	require.False(t, IsException(Undefined()))
	require.True(t, IsException(Exception()))

	ctx := newTestContext(t)
	require.True(t, ctx.EvalScript(`true`, "t.js") == True())
	require.True(t, ctx.EvalScript(`1 > 2`, "t.js") == False())
	require.True(t, ctx.EvalScript(`null`, "t.js") == Null())
	require.True(t, ctx.EvalScript(`undefined`, "t.js") == Undefined())
	require.True(t, ctx.EvalScript(`let x = 1`, "t.js") == Undefined())
}

func TestKinds(t *testing.T) {
	tests := []struct {
		value Value
		kind  Kind
		name  string
	}{
		{Undefined(), KindUndefined, "undefined"},
		{Null(), KindNull, "null"},
		{True(), KindBoolean, "boolean"},
		{NewNumber(1.5), KindNumber, "number"},
		{NewString("s"), KindString, "string"},
		{Exception(), KindException, "exception"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.kind, tt.value.Kind())
		require.Equal(t, tt.name, tt.value.Kind().String())
	}
	require.Equal(t, "unknown", Kind(99).String())
	require.True(t, Null().IsNull())
	require.True(t, False().IsBool())
	require.True(t, NewInt(3).IsNumber())
	require.True(t, NewString("").IsString())
	require.False(t, Undefined().IsNull())
	require.False(t, NewString("1").IsNumber())

	ctx := newTestContext(t)
	obj := ctx.EvalScript(`[1, 2]`, "t.js")
	require.True(t, obj.IsObject())
	require.False(t, obj.IsFunction())
	fn := ctx.EvalScript(`function f() {} f`, "t.js")
	require.True(t, fn.IsFunction())
}

func TestValueAccessors(t *testing.T) {
	require.Equal(t, 2.5, NewNumber(2.5).Float64())
	require.True(t, math.IsNaN(NewString("2").Float64()))
	require.Equal(t, int64(-2), NewNumber(-2.9).Int64())
	require.Equal(t, int64(0), NewNumber(math.NaN()).Int64())
	require.Equal(t, int64(math.MaxInt64), NewNumber(math.Inf(1)).Int64())
	require.Equal(t, int64(42), NewInt(42).Int64())

	require.True(t, True().Bool())
	require.False(t, NewString("").Bool())
	require.True(t, NewNumber(3).Bool())
	require.False(t, Exception().Bool())

	require.Equal(t, "hi", NewString("hi").String())
	require.Equal(t, "0.1", NewNumber(0.1).String())
	require.Equal(t, "undefined", Undefined().String())
	require.Equal(t, "[exception]", Exception().String())
}

func TestExport(t *testing.T) {
	ctx := newTestContext(t)
	v := ctx.EvalScript(`let o = {a: 1, b: [1, "x", true, null]}; o`, "t.js")
	require.Equal(t, map[string]any{
		"a": 1.0,
		"b": []any{1.0, "x", true, nil},
	}, v.Export())
	require.Nil(t, Undefined().Export())
	require.Nil(t, Null().Export())
	require.Nil(t, Exception().Export())
	require.Equal(t, "s", NewString("s").Export())
}

func TestEqual(t *testing.T) {
	require.True(t, NewNumber(1).Equal(NewInt(1)))
	require.False(t, NewNumber(math.NaN()).Equal(NewNumber(math.NaN())))
	require.True(t, NewString("a").Equal(NewString("a")))
	require.False(t, NewString("1").Equal(NewNumber(1)))
	require.True(t, Undefined().Equal(Undefined()))
	require.False(t, Undefined().Equal(Null()))
	require.True(t, Exception().Equal(Exception()))
	require.False(t, Exception().Equal(Undefined()))

	ctx := newTestContext(t)
	a := ctx.EvalScript(`var shared = {}; shared`, "t.js")
	b := ctx.EvalScript(`shared`, "t.js")
	c := ctx.EvalScript(`({})`, "t.js")
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}
