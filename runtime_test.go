package jsrt

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRuntimeLifecycle(t *testing.T) {
	rt := NewRuntime()
	require.NotEmpty(t, rt.ID())
	require.NotEqual(t, rt.ID(), NewRuntime().ID())

	a := rt.NewContext()
	b := rt.NewContext()
	require.NotEqual(t, a.ID(), b.ID())
	require.Same(t, rt, a.Runtime())
	require.Equal(t, 2, rt.LiveContexts())

	err := rt.Free()
	require.ErrorIs(t, err, ErrLiveContexts)
	require.Contains(t, err.Error(), ": 2")

	// The runtime stays usable after the failed free.
	require.Equal(t, "3", a.EvalScript(`1 + 2`, "t.js").String())

	require.NoError(t, a.Free())
	require.ErrorIs(t, a.Free(), ErrContextFreed)
	require.Equal(t, 1, rt.LiveContexts())
	require.NoError(t, b.Free())

	require.NoError(t, rt.Free())
	require.ErrorIs(t, rt.Free(), ErrRuntimeFreed)
	require.PanicsWithValue(t, ErrRuntimeFreed, func() { rt.NewContext() })
}

func TestFreedContextPanics(t *testing.T) {
	rt := NewRuntime()
	ctx := rt.NewContext()
	require.NoError(t, ctx.Free())
	require.PanicsWithValue(t, ErrContextFreed, func() { ctx.EvalScript(`1`, "t.js") })
	require.PanicsWithValue(t, ErrContextFreed, func() { ctx.HasException() })
	require.PanicsWithValue(t, ErrContextFreed, func() { ctx.ThrowTypeError("x") })
	// The runtime lock is released after the panic.
	require.NoError(t, rt.Free())
}

func TestLeakedBuffers(t *testing.T) {
	rt := NewRuntime()
	ctx := rt.NewContext()
	buf, n := ctx.CompileToBytecode(`1`, "t.js")
	require.NotNil(t, buf)
	require.Positive(t, n)
	require.NoError(t, ctx.Free())

	err := rt.Free()
	require.ErrorIs(t, err, ErrLeakedBuffers)
	require.ErrorIs(t, rt.Free(), ErrRuntimeFreed)
	// The buffer can still be released.
	require.NoError(t, buf.Free())
}

func TestScriptGlobalsPersist(t *testing.T) {
	ctx := newTestContext(t)
	require.False(t, IsException(ctx.EvalScript(`let x = 40; function add(n) { return x + n }`, "a.js")))
	require.Equal(t, int64(42), ctx.EvalScript(`add(2)`, "b.js").Int64())

	// Contexts do not share globals.
	other := ctx.Runtime().NewContext()
	defer other.Free()
	require.True(t, IsException(other.EvalScript(`x`, "c.js")))
	err := other.ExceptionError().(*ScriptError)
	require.Equal(t, ReferenceError, err.Kind)
}

func TestGlobalsAndCalls(t *testing.T) {
	ctx := newTestContext(t)
	require.True(t, ctx.SetGlobal("n", NewInt(5)).IsUndefined())
	require.Equal(t, int64(10), ctx.EvalScript(`n * 2`, "t.js").Int64())

	ctx.EvalScript(`function add(a, b) { return a + b + (this === undefined ? 0 : this.bonus) }`, "t.js")
	add := ctx.Global("add")
	require.True(t, add.IsFunction())
	require.Equal(t, int64(3), ctx.Call(add, Undefined(), NewInt(1), NewInt(2)).Int64())
	bonus := ctx.EvalScript(`({bonus: 10})`, "t.js")
	require.Equal(t, int64(13), ctx.Call(add, bonus, NewInt(1), NewInt(2)).Int64())
	arr := ctx.EvalScript(`["a"]`, "t.js")
	join := ctx.EvalScript(`[].join`, "t.js")
	require.Equal(t, "a", ctx.Call(join, arr).String())

	require.True(t, IsException(ctx.Call(add, Undefined(), Exception())))
	require.Equal(t, TypeError, ctx.ExceptionError().(*ScriptError).Kind)
	require.True(t, IsException(ctx.SetGlobal("bad", Exception())))
	require.Equal(t, TypeError, ctx.ExceptionError().(*ScriptError).Kind)

	require.True(t, IsException(ctx.Global("missing")))
	err := ctx.ExceptionError().(*ScriptError)
	require.Equal(t, ReferenceError, err.Kind)
	require.Equal(t, "missing is not defined", err.Message)

	require.True(t, IsException(ctx.Call(NewInt(1), Undefined())))
	require.Equal(t, TypeError, ctx.ExceptionError().(*ScriptError).Kind)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	rt := NewRuntime(WithLogger(logger))
	ctx := rt.NewContext()
	require.NoError(t, ctx.Free())
	require.ErrorIs(t, ctx.Free(), ErrContextFreed)
	require.NoError(t, rt.Free())

	out := buf.String()
	require.Contains(t, out, `"runtime":"`+rt.ID()+`"`)
	require.Contains(t, out, `"context":"`+ctx.ID()+`"`)
	require.Contains(t, out, "context created")
	require.Contains(t, out, `"level":"error"`)
	require.Contains(t, out, "context freed twice")
	require.Contains(t, out, "runtime freed")
}

func TestInterruptHandler(t *testing.T) {
	var polls int
	ctx := newTestContext(t,
		WithInterruptInterval(10),
		WithInterruptHandler(func() bool {
			polls++
			return polls > 3
		}))
	result := ctx.EvalScript(`let i = 0; try { while (true) { i++ } } catch (e) { "caught" }`, "t.js")
	require.True(t, IsException(result))
	err := ctx.ExceptionError().(*ScriptError)
	require.Equal(t, InternalError, err.Kind)
	require.Contains(t, err.Message, "interrupted")
}

func TestCancellation(t *testing.T) {
	ctx := newTestContext(t)
	goctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx.SetContext(goctx)
	require.True(t, IsException(ctx.EvalScript(`while (true) {}`, "t.js")))
	err := ctx.ExceptionError().(*ScriptError)
	require.Equal(t, InternalError, err.Kind)
	require.Contains(t, err.Message, "context canceled")

	// Cancellation before the source is parsed is not a syntax error.
	for _, eval := range []func() Value{
		func() Value { return ctx.EvalScript(`1`, "t.js") },
		func() Value { return ctx.EvalModuleSource(`export const a = 1`, "m.js") },
	} {
		require.True(t, IsException(eval()))
		se := scriptError(t, ctx)
		require.Equal(t, InternalError, se.Kind)
		require.Equal(t, "context canceled", se.Message)
	}

	ctx.SetContext(context.Background())
	require.Equal(t, int64(1), ctx.EvalScript(`1`, "t.js").Int64())
}

func TestMaxFrameDepth(t *testing.T) {
	ctx := newTestContext(t, WithMaxFrameDepth(50))
	v := ctx.EvalScript(`let depth = 0; function f() { depth++; f() } try { f() } catch (e) { } depth`, "t.js")
	require.False(t, IsException(v))
	require.LessOrEqual(t, v.Int64(), int64(50))
}

func TestConcurrentContexts(t *testing.T) {
	rt := NewRuntime()
	var wg sync.WaitGroup
	results := make([]int64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := rt.NewContext()
			defer ctx.Free()
			src := fmt.Sprintf(`let total = 0; for (let j = 0; j <= %d; j++) { total += j } total`, i*10)
			results[i] = ctx.EvalScript(src, "t.js").Int64()
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		n := int64(i * 10)
		require.Equal(t, n*(n+1)/2, got)
	}
	require.NoError(t, rt.Free())
}
