package jsrt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func scriptError(t *testing.T, ctx *Context) *ScriptError {
	t.Helper()
	err := ctx.ExceptionError()
	require.Error(t, err)
	var se *ScriptError
	require.True(t, errors.As(err, &se), "unexpected error %T", err)
	return se
}

func TestThrowHelpers(t *testing.T) {
	ctx := newTestContext(t)
	require.False(t, ctx.HasException())
	require.True(t, ctx.Exception() == Null())
	require.Nil(t, ctx.ExceptionError())

	tests := []struct {
		throw func() Value
		kind  ErrorKind
		msg   string
	}{
		{func() Value { return ctx.ThrowTypeError("bad value") }, TypeError, "bad value"},
		{func() Value { return ctx.ThrowInternalError("broken") }, InternalError, "broken"},
		{func() Value { return ctx.ThrowError(RangeError, "too big") }, RangeError, "too big"},
		{func() Value { return ctx.ThrowError(SyntaxError, "odd") }, SyntaxError, "odd"},
		{func() Value { return ctx.ThrowError(ReferenceError, "who") }, ReferenceError, "who"},
		{func() Value { return ctx.ThrowError(Error, "plain") }, Error, "plain"},
	}
	for _, tt := range tests {
		v := tt.throw()
		require.True(t, IsException(v))
		require.True(t, ctx.HasException())
		se := scriptError(t, ctx)
		require.True(t, se.IsError)
		require.Equal(t, tt.kind, se.Kind)
		require.Equal(t, tt.msg, se.Message)
		require.Equal(t, tt.kind.String()+": "+tt.msg, se.Stack)
		require.Equal(t, "Uncaught "+tt.kind.String()+": "+tt.msg, se.Error())
		require.False(t, ctx.HasException())
	}
}

func TestMessageIsVerbatim(t *testing.T) {
	ctx := newTestContext(t)
	ctx.ThrowTypeError("100% %s %d {0}")
	require.Equal(t, "100% %s %d {0}", scriptError(t, ctx).Message)
}

func TestLastThrowWins(t *testing.T) {
	ctx := newTestContext(t)
	ctx.ThrowTypeError("first")
	ctx.ThrowInternalError("second")
	se := scriptError(t, ctx)
	require.Equal(t, InternalError, se.Kind)
	require.Equal(t, "second", se.Message)
}

func TestExceptionRetrieval(t *testing.T) {
	ctx := newTestContext(t)
	ctx.ThrowTypeError("boom")
	v := ctx.Exception()
	require.True(t, v.IsObject())
	require.False(t, ctx.HasException())
	require.True(t, ctx.Exception() == Null())

	// The retrieved error object is the engine's native error.
	require.True(t, ctx.SetGlobal("err", v).IsUndefined())
	require.Equal(t, "true,boom,TypeError", ctx.EvalScript(`[err instanceof TypeError, err.message, err.name].join()`, "t.js").String())
}

func TestThrowArbitraryValues(t *testing.T) {
	ctx := newTestContext(t)
	require.True(t, IsException(ctx.Throw(NewString("oops"))))
	se := scriptError(t, ctx)
	require.False(t, se.IsError)
	require.Equal(t, "oops", se.Message)
	require.Equal(t, "Uncaught oops", se.Error())
	require.True(t, se.Value.Equal(NewString("oops")))

	ctx.Throw(NewInt(7))
	require.Equal(t, int64(7), ctx.Exception().Int64())

	// The exception sentinel cannot itself be thrown.
	require.True(t, IsException(ctx.Throw(Exception())))
	se = scriptError(t, ctx)
	require.Equal(t, TypeError, se.Kind)
}

func TestScriptExceptions(t *testing.T) {
	ctx := newTestContext(t)
	src := "function inner() {\n\tnull.x\n}\ninner()\n"
	require.True(t, IsException(ctx.EvalScript(src, "stack.js")))
	se := scriptError(t, ctx)
	require.Equal(t, TypeError, se.Kind)
	require.Equal(t, "Cannot read properties of null (reading 'x')", se.Message)
	lines := strings.Split(se.Stack, "\n")
	require.Equal(t, "TypeError: Cannot read properties of null (reading 'x')", lines[0])
	require.Contains(t, lines[1], "at inner")
	require.Contains(t, lines[1], "stack.js:2")

	require.True(t, IsException(ctx.EvalScript(`throw {code: 7}`, "t.js")))
	require.Equal(t, map[string]any{"code": 7.0}, ctx.Exception().Export())

	require.True(t, IsException(ctx.EvalScript(`let = ;`, "bad.js")))
	se = scriptError(t, ctx)
	require.Equal(t, SyntaxError, se.Kind)
}

func TestHostThrowIsCatchableAfterRethrow(t *testing.T) {
	ctx := newTestContext(t)
	ctx.ThrowError(RangeError, "host")
	ctx.SetGlobal("hostErr", ctx.Exception())
	v := ctx.EvalScript(`let r; try { throw hostErr } catch (e) { r = e.name + ":" + e.message } r`, "t.js")
	require.Equal(t, "RangeError:host", v.String())
}

func TestCatchBinding(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{`let r; try { throw 42 } catch (e) { r = e } r`, 42.0},
		{`try { null.x } catch (err) { err.name }`, "TypeError"},
		{`let out = []; for (const n of [1, 2]) { try { throw n } catch (e) { out.push(() => e) } } out.map(f => f()).join()`, "1,2"},
		{`try { throw "outer" } catch (e) { try { throw "inner" } catch (e) { } e }`, "outer"},
		{`try { throw 1 } catch { "no binding" }`, "no binding"},
	}
	for _, tt := range tests {
		ctx := newTestContext(t)
		v := ctx.EvalScript(tt.src, "catch.js")
		require.False(t, IsException(v), "%s: %v", tt.src, ctx.ExceptionError())
		require.Equal(t, tt.want, v.Export(), tt.src)
	}

	ctx := newTestContext(t)
	require.True(t, IsException(ctx.EvalScript(`try { throw 1 } catch (e) { let e = 2 }`, "dup.js")))
	require.Equal(t, SyntaxError, scriptError(t, ctx).Kind)
}

func TestNamedFunctionExpression(t *testing.T) {
	ctx := newTestContext(t)
	v := ctx.EvalScript(`const f = function g(n) { return n < 1 ? 0 : g(n - 1) + n }; f(3)`, "named.js")
	require.False(t, IsException(v), "%v", ctx.ExceptionError())
	require.Equal(t, int64(6), v.Int64())

	v = ctx.EvalScript(`(function h() { return typeof h })()`, "named.js")
	require.Equal(t, "function", v.String())

	v = ctx.EvalScript(`(function k(k) { return k })(5)`, "named.js")
	require.Equal(t, int64(5), v.Int64())
}
