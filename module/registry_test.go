package module

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/jsrt/builtins"
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/importer"
	"github.com/deepnoodle-ai/jsrt/object"
	"github.com/deepnoodle-ai/jsrt/vm"
)

func newRegistry(modules map[string]string) *Registry {
	machine := vm.New(builtins.NewRealm())
	return NewRegistry(machine, WithImporter(importer.NewMapImporter(modules)))
}

func add(t *testing.T, reg *Registry, name, src string) *Record {
	t.Helper()
	unit, err := Compile(context.Background(), src, name, true)
	require.NoError(t, err)
	rec, err := reg.Add(name, unit)
	require.NoError(t, err)
	return rec
}

func export(t *testing.T, rec *Record, name string) string {
	t.Helper()
	ns := rec.Namespace()
	require.NotNil(t, ns)
	v, ok, err := ns.Get(name)
	require.NoError(t, err)
	require.True(t, ok, "no export %q", name)
	return object.Display(v)
}

func kindOf(t *testing.T, err error) errz.ErrorKind {
	t.Helper()
	var se *errz.StructuredError
	require.True(t, stderrors.As(err, &se), "expected a structured error, got %T: %v", err, err)
	return se.Kind
}

func TestResolveAndEvaluate(t *testing.T) {
	reg := newRegistry(map[string]string{
		"lib/math": `export const pi = 3; export function double(x) { return x * 2 }`,
	})
	main := add(t, reg, "lib/main", `
import { pi, double as twice } from "./math"
export const result = twice(pi)
`)
	require.Equal(t, Compiled, main.State())
	ctx := context.Background()
	require.NoError(t, reg.Resolve(ctx, main))
	require.Equal(t, Resolved, main.State())

	math, ok := reg.Get("lib/math")
	require.True(t, ok)
	require.Equal(t, Resolved, math.State())

	require.NoError(t, reg.Evaluate(ctx, main))
	require.Equal(t, Executed, main.State())
	require.Equal(t, Executed, math.State())
	require.Equal(t, "6", export(t, main, "result"))
	require.Equal(t, []string{"lib/main", "lib/math"}, reg.Names())
}

func TestEvaluationOrder(t *testing.T) {
	reg := newRegistry(map[string]string{
		"log": `export const log = []`,
		"a":   `import { log } from "log"; import "b"; log.push("a")`,
		"b":   `import { log } from "log"; import "c"; log.push("b")`,
		"c":   `import { log } from "log"; log.push("c")`,
	})
	main := add(t, reg, "main", `import { log } from "log"; import "a"; import "c"; log.push("main"); export const order = log.join()`)
	require.NoError(t, reg.Evaluate(context.Background(), main))
	require.Equal(t, "c,b,a,main", export(t, main, "order"))
}

func TestCyclicModules(t *testing.T) {
	reg := newRegistry(map[string]string{
		"even": `
import { isOdd } from "odd"
export function isEven(n) { return n == 0 ? true : isOdd(n - 1) }
export let evenRuns = 0
evenRuns++
`,
		"odd": `
import { isEven, evenRuns } from "even"
export function isOdd(n) { return n == 0 ? false : isEven(n - 1) }
export const sawEven = typeof isEven
`,
	})
	main := add(t, reg, "main", `
import { isEven, evenRuns } from "even"
import { isOdd, sawEven } from "odd"
export const answers = [isEven(10), isOdd(7), isEven(3), evenRuns, sawEven].join()
`)
	require.NoError(t, reg.Evaluate(context.Background(), main))
	require.Equal(t, "true,true,false,1,function", export(t, main, "answers"))

	// Evaluating again does not re-run any module.
	require.NoError(t, reg.Evaluate(context.Background(), main))
	even, _ := reg.Get("even")
	require.Equal(t, "1", export(t, even, "evenRuns"))
}

func TestLiveBindings(t *testing.T) {
	reg := newRegistry(map[string]string{
		"counter": `export let count = 0; export function inc() { count++ }`,
	})
	main := add(t, reg, "main", `
import { count, inc } from "counter"
inc(); inc()
export const seen = count
`)
	require.NoError(t, reg.Evaluate(context.Background(), main))
	require.Equal(t, "2", export(t, main, "seen"))
}

func TestNamespaceAndDefaultImports(t *testing.T) {
	reg := newRegistry(map[string]string{
		"shapes": `export const sides = 4; export default function area(w, h) { return w * h }`,
	})
	main := add(t, reg, "main", `
import * as shapes from "shapes"
import area from "shapes"
export const keys = Object.keys(shapes).join()
export const sameFn = shapes.default === area
export const a = area(2, shapes.sides)
`)
	require.NoError(t, reg.Evaluate(context.Background(), main))
	require.Equal(t, "default,sides", export(t, main, "keys"))
	require.Equal(t, "true", export(t, main, "sameFn"))
	require.Equal(t, "8", export(t, main, "a"))
}

func TestIndirectExports(t *testing.T) {
	reg := newRegistry(map[string]string{
		"base":  `export const value = 42; export const other = 1`,
		"mid":   `export { value as answer } from "base"; import * as base from "base"; export { base }`,
		"outer": `import { answer } from "mid"; export { answer as final }`,
	})
	main := add(t, reg, "main", `
import { final } from "outer"
import { base } from "mid"
export const got = final + base.other
`)
	require.NoError(t, reg.Evaluate(context.Background(), main))
	require.Equal(t, "43", export(t, main, "got"))
	outer, _ := reg.Get("outer")
	require.Equal(t, "42", export(t, outer, "final"))
}

func TestHoistedFunctionsAcrossCycle(t *testing.T) {
	reg := newRegistry(map[string]string{
		"a": `import { fromB } from "b"; export function fromA() { return "a" } export const viaB = fromB()`,
		"b": `import { fromA } from "a"; export function fromB() { return "b" + fromA() }`,
	})
	main := add(t, reg, "main", `import { viaB } from "a"; export const v = viaB`)
	require.NoError(t, reg.Evaluate(context.Background(), main))
	require.Equal(t, "ba", export(t, main, "v"))
}

func TestMissingExportFailsAtomically(t *testing.T) {
	reg := newRegistry(map[string]string{
		"dep":  `export const a = 1`,
		"side": `export const s = 1`,
	})
	main := add(t, reg, "main", `import { a, nope } from "dep"; import "side"`)
	err := reg.Resolve(context.Background(), main)
	require.Error(t, err)
	require.Equal(t, errz.KindSyntaxError, kindOf(t, err))
	require.Contains(t, err.Error(), "does not provide an export named 'nope'")
	require.Equal(t, Failed, main.State())
	require.Equal(t, err, main.Err())

	// Modules loaded during the failed attempt are discarded.
	_, ok := reg.Get("dep")
	require.False(t, ok)
	_, ok = reg.Get("side")
	require.False(t, ok)
	require.Nil(t, main.Env())

	// A failed record stays failed.
	require.Equal(t, err, reg.Resolve(context.Background(), main))
	require.Equal(t, err, reg.Evaluate(context.Background(), main))
}

func TestMissingModule(t *testing.T) {
	reg := newRegistry(nil)
	main := add(t, reg, "main", `import { x } from "./nowhere"`)
	err := reg.Resolve(context.Background(), main)
	require.Equal(t, errz.KindReferenceError, kindOf(t, err))
	require.Contains(t, err.Error(), "Cannot find module './nowhere'")
	require.ErrorIs(t, err, importer.ErrNotFound)

	noImporter := NewRegistry(vm.New(builtins.NewRealm()))
	main = add(t, noImporter, "main", `import "x"`)
	require.Equal(t, errz.KindReferenceError, kindOf(t, noImporter.Resolve(context.Background(), main)))
}

func TestMultipleResolutionErrors(t *testing.T) {
	reg := newRegistry(map[string]string{
		"broken": `export const = 1`,
	})
	main := add(t, reg, "main", `import "broken"; import "missing"`)
	err := reg.Resolve(context.Background(), main)
	var merr *multierror.Error
	require.True(t, stderrors.As(err, &merr))
	require.Len(t, merr.Errors, 2)
	require.Equal(t, errz.KindSyntaxError, kindOf(t, merr.Errors[0]))
	require.Equal(t, errz.KindReferenceError, kindOf(t, merr.Errors[1]))
	require.Contains(t, err.Error(), "; ")
}

func TestCircularReexport(t *testing.T) {
	reg := newRegistry(map[string]string{
		"x": `export { v } from "y"`,
		"y": `export { v } from "x"`,
	})
	main := add(t, reg, "main", `import { v } from "x"`)
	err := reg.Resolve(context.Background(), main)
	require.Equal(t, errz.KindSyntaxError, kindOf(t, err))
	require.Contains(t, err.Error(), "cycle")
}

func TestEvaluationErrorIsSticky(t *testing.T) {
	reg := newRegistry(map[string]string{
		"bad": `export const x = 1; throw new Error("boom")`,
	})
	main := add(t, reg, "main", `import { x } from "bad"; export const y = x`)
	err := reg.Evaluate(context.Background(), main)
	var thrown *object.ThrownError
	require.True(t, stderrors.As(err, &thrown))
	bad, _ := reg.Get("bad")
	require.Equal(t, Failed, bad.State())
	require.Equal(t, Resolved, main.State())

	// main never runs and later attempts see the same error.
	require.Equal(t, err, reg.Evaluate(context.Background(), main))
	_, _, getErr := main.Namespace().Get("y")
	require.Error(t, getErr)
}

func TestRegisteredModulesAreReused(t *testing.T) {
	reg := newRegistry(nil)
	shared := add(t, reg, "shared", `export let hits = 0; export function hit() { return ++hits }`)
	a := add(t, reg, "a", `import { hit } from "shared"; export const v = hit()`)
	b := add(t, reg, "b", `import { hit } from "shared"; export const v = hit()`)
	ctx := context.Background()
	require.NoError(t, reg.Evaluate(ctx, a))
	require.NoError(t, reg.Evaluate(ctx, b))
	require.Equal(t, "1", export(t, a, "v"))
	require.Equal(t, "2", export(t, b, "v"))
	require.Equal(t, "2", export(t, shared, "hits"))
}

func TestAddRejectsScripts(t *testing.T) {
	unit, err := Compile(context.Background(), `1 + 1`, "s.js", false)
	require.NoError(t, err)
	_, err = newRegistry(nil).Add("s", unit)
	require.Error(t, err)
}

func TestCompileSyntaxError(t *testing.T) {
	_, err := Compile(context.Background(), `let = ;`, "bad.js", true)
	require.Error(t, err)
	var se *errz.StructuredError
	require.True(t, stderrors.As(err, &se))
	require.Equal(t, errz.KindSyntaxError, se.Kind)
	require.Equal(t, "bad.js", se.Location.Filename)
	require.Equal(t, 1, se.Location.Line)
	require.NotNil(t, se.Cause)

	_, err = Compile(context.Background(), `const a = 1; a = 2`, "c.js", false)
	require.Equal(t, errz.KindSyntaxError, kindOf(t, err))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "resolved", Resolved.String())
	require.Equal(t, "failed", Failed.String())
	require.Equal(t, "State(9)", State(9).String())
}
