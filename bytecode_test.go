package jsrt

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/cache"
	"github.com/deepnoodle-ai/jsrt/config"
)

func compileBuffer(t *testing.T, ctx *Context, src, filename string) *Buffer {
	t.Helper()
	buf, n := ctx.CompileToBytecode(src, filename)
	require.NotNil(t, buf, "compile failed: %v", ctx.ExceptionError())
	require.Equal(t, buf.Len(), n)
	t.Cleanup(func() { buf.Free() })
	return buf
}

func TestBytecodeRoundTrip(t *testing.T) {
	sources := []string{
		`1 + 2`,
		`let words = ["a", "b"]; words.map(w => w.toUpperCase()).join("-")`,
		`function fib(n) { return n < 2 ? n : fib(n - 1) + fib(n - 2) } fib(15)`,
		`let r; try { null.x } catch (e) { r = e.name } r`,
		`let o = {n: 1, nested: {s: "x"}}; JSON.stringify(o)`,
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			ctx := newTestContext(t)
			buf := compileBuffer(t, ctx, src, "rt.js")
			got := ctx.EvalBytecode(buf.Bytes(), buf.Len())
			require.False(t, IsException(got), "%v", ctx.ExceptionError())

			fresh := newTestContext(t)
			want := fresh.EvalAutoDetect(src, "rt.js")
			require.Equal(t, want.Export(), got.Export())
		})
	}
}

func TestBytecodeModuleRoundTrip(t *testing.T) {
	modules := map[string]string{"dep": `export const x = 2`}
	src := `import { x } from "dep"; out.push(x * 21)`

	ctx := newTestContext(t, WithModules(modules))
	buf := compileBuffer(t, ctx, src, "main.js")
	header, err := bytecode.ReadHeader(buf.Bytes())
	require.NoError(t, err)
	require.NotZero(t, header.Flags&bytecode.FlagModule)

	ctx.EvalScript(`var out = []`, "setup.js")
	require.True(t, ctx.EvalBytecode(buf.Bytes(), buf.Len()).IsUndefined())
	require.Equal(t, "42", ctx.EvalScript(`out.join()`, "check.js").String())

	fresh := newTestContext(t, WithModules(modules))
	fresh.EvalScript(`var out = []`, "setup.js")
	require.True(t, fresh.EvalAutoDetect(src, "main.js").IsUndefined())
	require.Equal(t, "42", fresh.EvalScript(`out.join()`, "check.js").String())
}

func TestBytecodeStripsSource(t *testing.T) {
	ctx := newTestContext(t)
	buf := compileBuffer(t, ctx, "// a distinctive comment\n40 + 2", "strip.js")
	require.False(t, bytes.Contains(buf.Bytes(), []byte("distinctive")))
	require.Equal(t, int64(42), ctx.EvalBytecode(buf.Bytes(), buf.Len()).Int64())
}

func TestCompileToBytecodeErrors(t *testing.T) {
	ctx := newTestContext(t)
	buf, n := ctx.CompileToBytecode(`let = ;`, "bad.js")
	require.Nil(t, buf)
	require.Zero(t, n)
	require.Equal(t, SyntaxError, scriptError(t, ctx).Kind)

	buf, n = ctx.CompileToBytecode(`import { a } from "nowhere"`, "mod.js")
	require.NotNil(t, buf, "imports are not resolved at compile time")
	require.Positive(t, n)
	require.NoError(t, buf.Free())
}

func TestEvalBytecodeRejectsBadInput(t *testing.T) {
	ctx := newTestContext(t)
	buf := compileBuffer(t, ctx, `var touched = true`, "t.js")
	data := append([]byte(nil), buf.Bytes()...)

	require.True(t, IsException(ctx.EvalBytecode(data, len(data)+1)))
	require.Equal(t, InternalError, scriptError(t, ctx).Kind)
	require.True(t, IsException(ctx.EvalBytecode(data, -1)))
	require.Equal(t, InternalError, scriptError(t, ctx).Kind)

	require.True(t, IsException(ctx.EvalBytecode(data, 10)))
	require.Equal(t, SyntaxError, scriptError(t, ctx).Kind)

	corrupt := append([]byte(nil), data...)
	corrupt[len(corrupt)-1] ^= 0xff
	require.True(t, IsException(ctx.EvalBytecode(corrupt, len(corrupt))))
	se := scriptError(t, ctx)
	require.Equal(t, SyntaxError, se.Kind)
	require.Contains(t, se.Message, "invalid bytecode")

	badMagic := append([]byte(nil), data...)
	copy(badMagic, "NOPE")
	require.True(t, IsException(ctx.EvalBytecode(badMagic, len(badMagic))))
	require.Equal(t, SyntaxError, scriptError(t, ctx).Kind)

	// Nothing ran.
	require.True(t, IsException(ctx.Global("touched")))
	require.Equal(t, ReferenceError, scriptError(t, ctx).Kind)

	// A trailing region beyond length is ignored.
	padded := append(append([]byte(nil), data...), 0, 0, 0)
	require.False(t, IsException(ctx.EvalBytecode(padded, len(data))))
	require.True(t, ctx.Global("touched").Bool())
}

func TestBufferOwnership(t *testing.T) {
	rt := NewRuntime()
	ctx := rt.NewContext()
	buf, _ := ctx.CompileToBytecode(`1`, "t.js")
	require.NotNil(t, buf)

	other := NewRuntime()
	require.ErrorIs(t, other.FreeBuffer(buf), ErrForeignBuffer)
	require.NoError(t, other.Free())

	require.NoError(t, buf.Free())
	require.Nil(t, buf.Bytes())
	require.ErrorIs(t, rt.FreeBuffer(buf), ErrBufferFreed)
	require.ErrorIs(t, buf.Free(), ErrBufferFreed)

	require.NoError(t, ctx.Free())
	require.NoError(t, rt.Free())
}

type countingAllocator struct {
	allocs, frees int
}

func (a *countingAllocator) Alloc(size int) []byte {
	a.allocs++
	return make([]byte, size, size+16)
}

func (a *countingAllocator) Free([]byte) { a.frees++ }

func TestCustomAllocator(t *testing.T) {
	alloc := &countingAllocator{}
	ctx := newTestContext(t, WithAllocator(alloc))
	buf, n := ctx.CompileToBytecode(`"allocated"`, "t.js")
	require.Equal(t, 1, alloc.allocs)
	require.Equal(t, n, len(buf.Bytes()))
	require.Equal(t, "allocated", ctx.EvalBytecode(buf.Bytes(), n).String())
	require.NoError(t, buf.Free())
	require.Equal(t, 1, alloc.frees)
}

func TestBytecodeCache(t *testing.T) {
	store := cache.NewMemory()
	ctx := newTestContext(t, WithCache(store))
	first := compileBuffer(t, ctx, `6 * 7`, "c.js")
	require.Equal(t, 1, store.Len())
	second := compileBuffer(t, ctx, `6 * 7`, "c.js")
	require.Equal(t, first.Bytes(), second.Bytes())
	require.Equal(t, 1, store.Len())

	// Unreadable entries are recompiled and replaced.
	key := cache.Key(`1 + 1`, "junk.js")
	require.NoError(t, store.Put(context.Background(), key, []byte("junk")))
	buf := compileBuffer(t, ctx, `1 + 1`, "junk.js")
	require.Equal(t, int64(2), ctx.EvalBytecode(buf.Bytes(), buf.Len()).Int64())
	data, ok, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, buf.Bytes(), data)

	// Failed compilations are not cached.
	_, n := ctx.CompileToBytecode(`let = ;`, "bad.js")
	require.Zero(t, n)
	ctx.Exception()
	require.Equal(t, 2, store.Len())
}

func TestRuntimeFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	cfg := config.Default()
	cfg.Cache = config.Cache{Backend: config.BackendSQLite, Path: path}
	rt, err := NewRuntimeFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	ctx := rt.NewContext()
	buf, _ := ctx.CompileToBytecode(`"cached"`, "cfg.js")
	require.NotNil(t, buf)
	want := append([]byte(nil), buf.Bytes()...)
	require.NoError(t, buf.Free())
	require.NoError(t, ctx.Free())
	require.NoError(t, rt.Free())

	store, err := cache.OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()
	data, ok, err := store.Get(context.Background(), cache.Key(`"cached"`, "cfg.js"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, data)

	cfg.Cache = config.Cache{Backend: config.BackendSQLite}
	_, err = NewRuntimeFromConfig(context.Background(), cfg)
	require.Error(t, err)
}
