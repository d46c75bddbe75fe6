package jsrt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/jsrt/config"
)

func TestDetectModule(t *testing.T) {
	tests := []struct {
		src    string
		module bool
	}{
		{`import x from "y"`, true},
		{`import { a } from "./a"; a()`, true},
		{`import "side-effect"`, true},
		{`export const a = 1`, true},
		{`export default function () {}`, true},
		{`let x = 1; x + 2`, false},
		{`import("dynamic")`, false},
		{`function f() { return import.meta }`, false},
		{`let s = "import x from 'y'"`, false},
		{`// export const a = 1`, false},
		{`if (true) { let exported = 1 }`, false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.module, DetectModule(tt.src), tt.src)
	}
}

func TestCompileResolveEvaluate(t *testing.T) {
	ctx := newTestContext(t, WithModules(map[string]string{
		"lib/math": `export const pi = 3; export default function double(x) { return x * 2 }`,
	}))
	h := ctx.CompileModule(`
import double, { pi } from "./math"
export const result = double(pi)
`, "lib/main")
	require.NotNil(t, h)
	require.Equal(t, "lib/main", h.Name())
	require.Equal(t, Compiled, h.State())
	require.True(t, h.Namespace().IsUndefined())

	require.True(t, ctx.ResolveModule(h).IsUndefined())
	require.Equal(t, Resolved, h.State())

	require.True(t, ctx.EvalModule(h).IsUndefined())
	require.Equal(t, Executed, h.State())
	require.Equal(t, map[string]any{"result": 6.0}, h.Namespace().Export())

	// Evaluating again is a no-op.
	require.True(t, ctx.EvalModule(h).IsUndefined())
}

func TestEvalModuleResolvesFirst(t *testing.T) {
	ctx := newTestContext(t, WithModules(map[string]string{
		"dep": `export let value = "dep"`,
	}))
	h := ctx.CompileModule(`import { value } from "dep"; export const seen = value`, "main")
	require.True(t, ctx.EvalModule(h).IsUndefined())
	require.Equal(t, map[string]any{"seen": "dep"}, h.Namespace().Export())
}

func TestCompileModuleSyntaxError(t *testing.T) {
	ctx := newTestContext(t)
	h := ctx.CompileModule(`export const = 1`, "bad")
	require.Nil(t, h)
	require.True(t, ctx.HasException())
	require.Equal(t, SyntaxError, scriptError(t, ctx).Kind)

	// Module-only syntax is rejected in scripts.
	require.True(t, IsException(ctx.EvalScript(`export const a = 1`, "s.js")))
	require.Equal(t, SyntaxError, scriptError(t, ctx).Kind)
}

func TestResolveFailureIsAtomic(t *testing.T) {
	ctx := newTestContext(t, WithModules(map[string]string{
		"dep": `export const a = 1`,
	}))
	h := ctx.CompileModule(`import { a, missing } from "dep"`, "main")
	require.NotNil(t, h)
	require.True(t, IsException(ctx.ResolveModule(h)))
	require.Equal(t, Failed, h.State())
	se := scriptError(t, ctx)
	require.Equal(t, SyntaxError, se.Kind)
	require.Equal(t, "The requested module 'dep' does not provide an export named 'missing'", se.Message)

	// A failed module fails the same way again.
	require.True(t, IsException(ctx.EvalModule(h)))
	require.Equal(t, SyntaxError, scriptError(t, ctx).Kind)
}

func TestMissingModule(t *testing.T) {
	ctx := newTestContext(t)
	h := ctx.CompileModule(`import { x } from "./nowhere"`, "main")
	require.True(t, IsException(ctx.ResolveModule(h)))
	se := scriptError(t, ctx)
	require.Equal(t, ReferenceError, se.Kind)
	require.Contains(t, se.Message, "Cannot find module './nowhere'")
}

func TestSeveralResolutionErrors(t *testing.T) {
	ctx := newTestContext(t, WithModules(map[string]string{
		"broken": `export const = 1`,
	}))
	h := ctx.CompileModule(`import "broken"; import "missing"`, "main")
	require.True(t, IsException(ctx.ResolveModule(h)))
	se := scriptError(t, ctx)
	require.Equal(t, SyntaxError, se.Kind)
	require.Contains(t, se.Message, "; ")
}

func TestCyclicModulesRunOnce(t *testing.T) {
	ctx := newTestContext(t, WithModules(map[string]string{
		"log":  `export const log = []`,
		"even": `import { log } from "log"; import { isOdd } from "odd"; log.push("even"); export function isEven(n) { return n == 0 ? true : isOdd(n - 1) }`,
		"odd":  `import { log } from "log"; import { isEven } from "even"; log.push("odd"); export function isOdd(n) { return n == 0 ? false : isEven(n - 1) }`,
	}))
	h := ctx.CompileModule(`
import { log } from "log"
import { isEven } from "even"
import { isOdd } from "odd"
log.push("main")
export const answers = [isEven(4), isOdd(4)].join()
export const order = log.join()
`, "main")
	require.True(t, ctx.EvalModule(h).IsUndefined())
	require.Equal(t, map[string]any{"answers": "true,false", "order": "odd,even,main"}, h.Namespace().Export())

	// A second root sharing the graph does not re-run it.
	again := ctx.CompileModule(`import { log } from "log"; export const n = log.length`, "again")
	require.True(t, ctx.EvalModule(again).IsUndefined())
	require.Equal(t, map[string]any{"n": 3.0}, again.Namespace().Export())
}

func TestModuleEvaluationError(t *testing.T) {
	ctx := newTestContext(t)
	h := ctx.CompileModule(`export const x = 1; throw new RangeError("module failed")`, "main")
	require.True(t, IsException(ctx.EvalModule(h)))
	require.Equal(t, Failed, h.State())
	se := scriptError(t, ctx)
	require.Equal(t, RangeError, se.Kind)
	require.Equal(t, "module failed", se.Message)
	require.Contains(t, se.Stack, "at ")
}

func TestHandleMisuse(t *testing.T) {
	ctx := newTestContext(t)
	require.True(t, IsException(ctx.ResolveModule(nil)))
	require.Equal(t, TypeError, scriptError(t, ctx).Kind)
	require.True(t, IsException(ctx.EvalModule(nil)))
	require.Equal(t, TypeError, scriptError(t, ctx).Kind)

	var missing *ModuleHandle
	require.Equal(t, "", missing.Name())
	require.Equal(t, Uncompiled, missing.State())
	require.True(t, missing.Namespace().IsUndefined())

	other := ctx.Runtime().NewContext()
	defer other.Free()
	h := other.CompileModule(`export const a = 1`, "a")
	require.NotNil(t, h)
	require.True(t, IsException(ctx.EvalModule(h)))
	se := scriptError(t, ctx)
	require.Equal(t, TypeError, se.Kind)
	require.Contains(t, se.Message, "another context")
}

func TestEvalAutoDetect(t *testing.T) {
	ctx := newTestContext(t, WithModules(map[string]string{
		"dep": `export const base = 10`,
	}))
	require.Equal(t, int64(3), ctx.EvalAutoDetect(`1 + 2`, "script.js").Int64())

	ctx.EvalScript(`var out = []`, "setup.js")
	v := ctx.EvalAutoDetect(`import { base } from "dep"; out.push(base + 1)`, "mod.js")
	require.True(t, v.IsUndefined())
	require.Equal(t, "11", ctx.EvalScript(`out.join()`, "check.js").String())

	require.True(t, IsException(ctx.EvalAutoDetect(`import { nope } from "dep"`, "bad.js")))
	require.Equal(t, SyntaxError, scriptError(t, ctx).Kind)

	require.True(t, IsException(ctx.EvalAutoDetect(`throw new TypeError("script")`, "s.js")))
	require.Equal(t, TypeError, scriptError(t, ctx).Kind)
}

func TestEvalModuleSource(t *testing.T) {
	ctx := newTestContext(t)
	// Module declarations stay out of the global scope.
	require.True(t, ctx.EvalModuleSource(`let hidden = 1`, "m.js").IsUndefined())
	require.True(t, IsException(ctx.EvalScript(`hidden`, "s.js")))
	require.Equal(t, ReferenceError, scriptError(t, ctx).Kind)
}

func TestLocalImporterFromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.js"), []byte(`export const v = "from disk"`), 0o644))
	cfg := config.Default()
	cfg.Modules.SearchPaths = []string{dir}
	ctx := newTestContext(t, WithConfig(cfg))
	h := ctx.CompileModule(`import { v } from "./lib"; export const got = v`, "main.js")
	require.True(t, ctx.EvalModule(h).IsUndefined())
	require.Equal(t, map[string]any{"got": "from disk"}, h.Namespace().Export())
}
