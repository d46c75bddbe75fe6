package vm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/jsrt/builtins"
	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/compiler"
	"github.com/deepnoodle-ai/jsrt/object"
	"github.com/deepnoodle-ai/jsrt/parser"
)

func compile(t *testing.T, src string, module bool) *bytecode.Unit {
	t.Helper()
	opts := []parser.Option{parser.WithFilename("test.js")}
	if module {
		opts = append(opts, parser.WithModule())
	}
	program, err := parser.Parse(context.Background(), src, opts...)
	require.NoError(t, err)
	unit, err := compiler.Compile(program, &compiler.Config{Filename: "test.js", Source: src})
	require.NoError(t, err)
	return unit
}

func run(ctx context.Context, t *testing.T, src string, opts ...Option) (object.Object, error) {
	t.Helper()
	machine := New(builtins.NewRealm(), opts...)
	return machine.RunScript(ctx, compile(t, src, false))
}

func eval(t *testing.T, src string) string {
	t.Helper()
	result, err := run(context.Background(), t, src)
	require.NoError(t, err)
	return object.Display(result)
}

type testCase struct {
	src  string
	want string
}

func runTests(t *testing.T, tests []testCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			require.Equal(t, tt.want, eval(t, tt.src))
		})
	}
}

func TestArithmetic(t *testing.T) {
	runTests(t, []testCase{
		{`1 + 2 * 3`, "7"},
		{`(1 + 2) * 3`, "9"},
		{`7 % 3 + 2 ** 3`, "9"},
		{`10 / 4`, "2.5"},
		{`1 / 0`, "Infinity"},
		{`0 / 0`, "NaN"},
		{`-(3)`, "-3"},
		{`+"4" + 1`, "5"},
		{`"4" * "2"`, "8"},
		{`"a" + 1 + 2`, "a12"},
		{`1 + 2 + "a"`, "3a"},
		{`5 & 3 | 8 ^ 1`, "9"},
		{`~5`, "-6"},
		{`1 << 4 >> 2`, "4"},
		{`-16 >>> 28`, "15"},
		{`0.1 + 0.2`, "0.30000000000000004"},
		{`1e21 + 1`, "1e+21"},
	})
}

func TestComparison(t *testing.T) {
	runTests(t, []testCase{
		{`1 < 2`, "true"},
		{`"a" < "b"`, "true"},
		{`"10" < "9"`, "true"},
		{`"10" < 9`, "false"},
		{`null == undefined`, "true"},
		{`null === undefined`, "false"},
		{`"1" == 1`, "true"},
		{`"1" === 1`, "false"},
		{`NaN == NaN`, "false"},
		{`NaN != NaN`, "true"},
		{`let o = {}; o === o`, "true"},
		{`({}) == ({})`, "false"},
		{`undefined < 1`, "false"},
		{`"a" in {a: 1}`, "true"},
		{`"push" in []`, "true"},
		{`[] instanceof Array`, "true"},
		{`({}) instanceof Array`, "false"},
	})
}

func TestTypeof(t *testing.T) {
	runTests(t, []testCase{
		{`typeof 1`, "number"},
		{`typeof "s"`, "string"},
		{`typeof true`, "boolean"},
		{`typeof undefined`, "undefined"},
		{`typeof null`, "object"},
		{`typeof {}`, "object"},
		{`typeof []`, "object"},
		{`typeof function() {}`, "function"},
		{`typeof Math.max`, "function"},
		{`typeof notDeclaredAnywhere`, "undefined"},
	})
}

func TestLogicalOperators(t *testing.T) {
	runTests(t, []testCase{
		{`0 || "x"`, "x"},
		{`1 && "y"`, "y"},
		{`null ?? "d"`, "d"},
		{`0 ?? "d"`, "0"},
		{`!0`, "true"},
		{`!!"s"`, "true"},
		{`let n = 0; false && n++; n`, "0"},
		{`let a = null; a ||= 5; a`, "5"},
		{`let b = 1; b &&= 7; b`, "7"},
		{`let c; c ??= 3; c`, "3"},
		{`true ? "y" : "n"`, "y"},
	})
}

func TestVariables(t *testing.T) {
	runTests(t, []testCase{
		{`let x = 1; x = x + 1; x`, "2"},
		{`var v = 1; var v = 2; v`, "2"},
		{`let x = 1; { let x = 2; } x`, "1"},
		{`let x = 5; x += 2; x *= 3; x`, "21"},
		{`let i = 0; i++; ++i; i--; i`, "1"},
		{`let i = 5; let j = i++; j * 10 + i`, "56"},
		{`function f() { var a = 1; if (true) { var a = 2; } return a; } f()`, "2"},
		{`function f() { return typeof hoisted; var hoisted = 1; } f()`, "undefined"},
		{`let a = 1, b = 2; a + b`, "3"},
		{`let s = (1, 2, 3); s`, "3"},
	})
}

func TestTemporalDeadZone(t *testing.T) {
	for _, src := range []string{
		`x; let x = 1;`,
		`function f() { return y; } f(); const y = 2;`,
		`function g() { z = 1; let z; } g()`,
	} {
		kind, msg := thrownKind(t, src)
		require.Equal(t, "ReferenceError", kind, src)
		require.Contains(t, msg, "before initialization", src)
	}
}

func TestConstAssignmentAcrossScripts(t *testing.T) {
	ctx := context.Background()
	machine := New(builtins.NewRealm())
	_, err := machine.RunScript(ctx, compile(t, `const c = 1;`, false))
	require.NoError(t, err)
	_, err = machine.RunScript(ctx, compile(t, `c = 2`, false))
	kind, msg := errorKind(t, machine.Realm(), err)
	require.Equal(t, "TypeError", kind)
	require.Equal(t, "Assignment to constant variable.", msg)
}

func TestUndefinedVariable(t *testing.T) {
	kind, msg := thrownKind(t, `missing + 1`)
	require.Equal(t, "ReferenceError", kind)
	require.Equal(t, "missing is not defined", msg)

	kind, _ = thrownKind(t, `alsoMissing = 1`)
	require.Equal(t, "ReferenceError", kind)
}

func TestControlFlow(t *testing.T) {
	runTests(t, []testCase{
		{`let x = 20; if (x > 10) { x = 99 } x`, "99"},
		{`let x = 5; let y; if (x > 10) { y = 1 } else if (x > 3) { y = 2 } else { y = 3 } y`, "2"},
		{`let i = 0, s = 0; while (i < 5) { s += i; i++ } s`, "10"},
		{`let i = 0; do { i++ } while (i < 3); i`, "3"},
		{`let s = 0; for (let i = 0; i < 10; i++) { if (i == 2) continue; if (i == 5) break; s += i } s`, "8"},
		{`let out = []; for (const v of [1, 2, 3]) out.push(v * 2); out.join()`, "2,4,6"},
		{`let out = []; for (const c of "héy") out.push(c); out.join("|")`, "h|é|y"},
		{`let keys = []; for (const k in {a: 1, b: 2}) keys.push(k); keys.join()`, "a,b"},
		{`let keys = []; for (const k in [7, 8]) keys.push(k); keys.join()`, "0,1"},
		{`let o = {a: 1, b: 2}; let keys = []; for (const k in o) { delete o.b; keys.push(k) } keys.join()`, "a"},
		{`let s = 0; for (;;) { s++; if (s > 3) break } s`, "4"},
	})
}

func TestSwitch(t *testing.T) {
	runTests(t, []testCase{
		{`function f(x) { switch (x) { case 1: return "one"; case "1": return "str"; default: return "other" } } f(1) + f("1") + f(2)`, "onestrother"},
		{`let out = ""; switch (2) { case 1: out += "a"; case 2: out += "b"; case 3: out += "c"; break; case 4: out += "d" } out`, "bc"},
		{`let out = ""; switch (9) { default: out += "d"; case 1: out += "a" } out`, "da"},
	})
}

func TestFunctions(t *testing.T) {
	runTests(t, []testCase{
		{`function add(a, b) { return a + b } add(2, 3)`, "5"},
		{`function f(a, b) { return b } String(f(1))`, "undefined"},
		{`function f(a, b = a * 2) { return a + b } f(3)`, "9"},
		{`function f(a, ...rest) { return rest.length } f(1, 2, 3)`, "2"},
		{`function f(...all) { return all.join() } f(...[1, 2], 3)`, "1,2,3"},
		{`const sq = x => x * x; sq(7)`, "49"},
		{`const f = (a, b) => { return a - b }; f(5, 2)`, "3"},
		{`function f() {} String(f())`, "undefined"},
		{`function fact(n) { return n <= 1 ? 1 : n * fact(n - 1) } fact(10)`, "3628800"},
		{`const fib = function inner(n) { return n < 2 ? n : inner(n - 1) + inner(n - 2) }; fib(15)`, "610"},
		{`hoisted(); function hoisted() { return "ok" } hoisted()`, "ok"},
		{`function f() {} f.name + f.length`, "f0"},
		{`const g = (a, b) => 1; g.name + g.length`, "g2"},
	})
}

func TestClosures(t *testing.T) {
	runTests(t, []testCase{
		{`function counter() { let n = 0; return () => ++n } let c = counter(); c(); c(); c()`, "3"},
		{`function mk() { let v = 1; const get = () => v; v = 2; return get } mk()()`, "2"},
		{`let fns = []; for (let i = 0; i < 3; i++) fns.push(() => i); fns.map(f => f()).join()`, "0,1,2"},
		{`let fns = []; for (var i = 0; i < 3; i++) fns.push(() => i); fns.map(f => f()).join()`, "3,3,3"},
		{`let fns = []; for (const x of [1, 2]) fns.push(() => x); fns.map(f => f()).join()`, "1,2"},
		{`function outer() { let a = 1; function mid() { return function() { return a++ } } return mid() } let f = outer(); f(); f()`, "2"},
	})
}

func TestThis(t *testing.T) {
	runTests(t, []testCase{
		{`let o = {v: 4, get() { return this.v }}; o.get()`, "4"},
		{`let o = {v: 4, get() { return this.v }}; o["get"]()`, "4"},
		{`let o = {v: 1, f() { return [1].map(() => this.v) }}; o.f()[0]`, "1"},
		{`function f() { return this } String(f())`, "undefined"},
		{`String(this)`, "undefined"},
		{`"abc".toUpperCase()`, "ABC"},
		{`(5).toFixed(1)`, "5.0"},
	})
}

func TestObjectsAndArrays(t *testing.T) {
	runTests(t, []testCase{
		{`let o = {a: 1, "b c": 2, [1 + 1]: 3}; o.a + o["b c"] + o[2]`, "6"},
		{`let k = "x"; let o = {k, [k]: 5}; o.k + o.x`, "x5"},
		{`let o = {a: 1}; o.b = 2; Object.keys(o).join()`, "a,b"},
		{`let o = {a: 1}; delete o.a; "a" in o`, "false"},
		{`let o = {...{a: 1, b: 2}, b: 3}; o.a + o.b`, "4"},
		{`let a = [1, 2]; a[5] = 6; a.length`, "6"},
		{`let a = [1, 2, 3]; a.length = 1; a.join()`, "1"},
		{`[...[1, 2], ...["x"], 3].join()`, "1,2,x,3"},
		{`[..."hi"].join("-")`, "h-i"},
		{`let o = {n: {m: 5}}; o.n.m`, "5"},
		{`let o = {}; String(o.missing)`, "undefined"},
		{`let a = []; a.x = 1; a.x`, "1"},
		{`({a: 1}).a`, "1"},
	})
}

func TestOptionalChaining(t *testing.T) {
	runTests(t, []testCase{
		{`let o = null; String(o?.a)`, "undefined"},
		{`let o = null; String(o?.a.b.c)`, "undefined"},
		{`let o = {a: {b: 2}}; o?.a?.b`, "2"},
		{`let o = {}; String(o.f?.())`, "undefined"},
		{`let o = {f() { return 9 }}; o.f?.()`, "9"},
		{`let a = null; String(a?.[0])`, "undefined"},
	})
}

func TestConstructors(t *testing.T) {
	runTests(t, []testCase{
		{`function P(x) { this.x = x } let p = new P(3); p.x`, "3"},
		{`function P() {} P.prototype.hi = function() { return "hi" }; new P().hi()`, "hi"},
		{`function P() {} new P() instanceof P`, "true"},
		{`function P() { return {other: 1} } new P().other`, "1"},
		{`function P() { this.a = 1; return 5 } new P().a`, "1"},
		{`function P(...xs) { this.n = xs.length } new P(...[1, 2, 3]).n`, "3"},
		{`new Array(2).length`, "2"},
	})
	kind, msg := thrownKind(t, `const f = () => 1; new f()`)
	require.Equal(t, "TypeError", kind)
	require.Equal(t, "f is not a constructor", msg)
}

func TestCallingNonFunctions(t *testing.T) {
	for src, msg := range map[string]string{
		`let x = 5; x()`:       "5 is not a function",
		`let o = {}; o.nope()`: "undefined is not a function",
		`null.x`:               "Cannot read properties of null (reading 'x')",
		`let u; u.y = 1`:       "Cannot set properties of undefined (setting 'y')",
	} {
		kind, got := thrownKind(t, src)
		require.Equal(t, "TypeError", kind, src)
		require.Equal(t, msg, got, src)
	}
}

func TestCompletionValue(t *testing.T) {
	runTests(t, []testCase{
		{`1; 2; 3`, "3"},
		{`let x = 1;`, "undefined"},
		{`5; let y = 2;`, "5"},
		{`if (true) { "in" }`, "in"},
		{`function f() { return 1 }`, "undefined"},
	})
}

func TestScriptGlobalsPersistAcrossRuns(t *testing.T) {
	ctx := context.Background()
	machine := New(builtins.NewRealm())
	_, err := machine.RunScript(ctx, compile(t, `let counter = 1; var shared = "s"; function bump() { return ++counter }`, false))
	require.NoError(t, err)
	result, err := machine.RunScript(ctx, compile(t, `bump(); bump() + shared`, false))
	require.NoError(t, err)
	require.Equal(t, "3s", object.Display(result))

	_, err = machine.RunScript(ctx, compile(t, `let counter = 2;`, false))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Identifier 'counter' has already been declared")
}

func TestCallFromGo(t *testing.T) {
	ctx := context.Background()
	machine := New(builtins.NewRealm())
	_, err := machine.RunScript(ctx, compile(t, `function add(a, b) { return a + b + this.base }`, false))
	require.NoError(t, err)

	fn, err := machine.Realm().LoadGlobal("add")
	require.NoError(t, err)
	this := machine.Realm().NewObject()
	this.Set("base", object.NewNumber(100))
	result, err := machine.Call(ctx, fn, this, []object.Object{object.NewNumber(1), object.NewNumber(2)})
	require.NoError(t, err)
	require.Equal(t, object.NewNumber(103), result)

	max, err := machine.Realm().LoadGlobal("Math")
	require.NoError(t, err)
	maxFn, err := object.GetProperty(ctx, max, "max")
	require.NoError(t, err)
	result, err = machine.Call(ctx, maxFn, nil, []object.Object{object.NewNumber(1), object.NewNumber(8)})
	require.NoError(t, err)
	require.Equal(t, 8.0, result.(*object.Number).Value())

	_, err = machine.Call(ctx, object.NewNumber(1), nil, nil)
	require.Error(t, err)
}

func TestBuiltinCallbacksReenterTheVM(t *testing.T) {
	runTests(t, []testCase{
		{`[3, 1, 2].sort((a, b) => a - b).map(x => [x].map(y => y * 10)[0]).join()`, "10,20,30"},
		{`function f() { return [1, 2].reduce((acc, x) => acc + g(x), 0) } function g(x) { return x * 100 } f()`, "300"},
	})
}

func TestModuleEnvironment(t *testing.T) {
	ctx := context.Background()
	unit := compile(t, `
		export let count = 1;
		export function inc() { count++; return count; }
		count += 10;
	`, true)
	machine := New(builtins.NewRealm())
	env := newEnv(unit)
	hoist(machine, unit, env)

	_, err := machine.RunModule(ctx, unit, env)
	require.NoError(t, err)
	require.Equal(t, object.NewNumber(11), slotValue(t, env, "count"))

	inc := slotValue(t, env, "inc")
	result, err := machine.Call(ctx, inc, nil, nil)
	require.NoError(t, err)
	require.Equal(t, object.NewNumber(12), result)
	require.Equal(t, object.NewNumber(12), slotValue(t, env, "count"))
}

func TestRunModuleRejectsMismatchedEnv(t *testing.T) {
	unit := compile(t, `export const a = 1;`, true)
	machine := New(builtins.NewRealm())
	_, err := machine.RunModule(context.Background(), unit, object.NewModuleEnv("x", nil, nil))
	require.Error(t, err)

	_, err = machine.RunScript(context.Background(), unit)
	require.Error(t, err)
}

func TestModuleTopLevelThisIsUndefined(t *testing.T) {
	unit := compile(t, `export const t = typeof this;`, true)
	machine := New(builtins.NewRealm())
	env := newEnv(unit)
	_, err := machine.RunModule(context.Background(), unit, env)
	require.NoError(t, err)
	require.Equal(t, "undefined", object.Display(slotValue(t, env, "t")))
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := run(ctx, t, `while (true) {}`)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestContextCancellationCannotBeCaught(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := run(ctx, t, `let n = 0; while (true) { try { n++ } catch (e) {} }`)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInterruptHandler(t *testing.T) {
	calls := 0
	_, err := run(context.Background(), t, `let i = 0; while (true) { i++ }`,
		WithContextCheckInterval(100),
		WithInterruptHandler(func() bool {
			calls++
			return calls == 3
		}))
	require.ErrorIs(t, err, ErrInterrupted)
	require.Equal(t, 3, calls)
}

func TestStackOverflow(t *testing.T) {
	kind, msg := thrownKind(t, `function r() { return r() } r()`)
	require.Equal(t, "RangeError", kind)
	require.Equal(t, "Maximum call stack size exceeded", msg)

	// The overflow is catchable and the VM stays usable.
	require.Equal(t, "caught", eval(t, `function r() { return r() } let out; try { r() } catch (e) { out = "caught" } out`))
}

func TestMaxFrameDepthOption(t *testing.T) {
	_, err := run(context.Background(), t, `function d(n) { return n == 0 ? 0 : d(n - 1) } d(50)`, WithMaxFrameDepth(20))
	require.Error(t, err)
	_, err = run(context.Background(), t, `function d(n) { return n == 0 ? 0 : d(n - 1) } d(10)`, WithMaxFrameDepth(20))
	require.NoError(t, err)
}

func TestVMReusableAfterError(t *testing.T) {
	ctx := context.Background()
	machine := New(builtins.NewRealm())
	_, err := machine.RunScript(ctx, compile(t, `function f() { throw new Error("x") } f()`, false))
	require.Error(t, err)
	require.Equal(t, -1, machine.fp)
	require.Equal(t, -1, machine.sp)

	result, err := machine.RunScript(ctx, compile(t, `1 + 1`, false))
	require.NoError(t, err)
	require.Equal(t, object.NewNumber(2), result)
}

func TestStackGrowth(t *testing.T) {
	require.Equal(t, "2000", eval(t, `let a = []; for (let i = 0; i < 2000; i++) a.push(i); [...a].length`))
	require.Equal(t, "500", eval(t, `function d(n) { return n == 0 ? 0 : 1 + d(n - 1) } d(500)`))
}

func newEnv(unit *bytecode.Unit) *object.ModuleEnv {
	names := make([]string, unit.SlotCount())
	lexical := make([]bool, unit.SlotCount())
	for i := range names {
		slot := unit.SlotAt(i)
		names[i] = slot.Name
		lexical[i] = slot.Lexical
	}
	return object.NewModuleEnv(unit.Name(), names, lexical)
}

func hoist(machine *VirtualMachine, unit *bytecode.Unit, env *object.ModuleEnv) {
	for i := 0; i < unit.HoistedCount(); i++ {
		h := unit.HoistedAt(i)
		fn := unit.Main().ConstantAt(h.Constant).(*bytecode.Function)
		env.Cell(h.Slot).Set(machine.NewFunction(fn, env))
	}
}

func slotValue(t *testing.T, env *object.ModuleEnv, name string) object.Object {
	t.Helper()
	for i := 0; i < env.SlotCount(); i++ {
		if env.SlotName(i) == name {
			return env.Cell(i).Value()
		}
	}
	t.Fatalf("no slot %q", name)
	return nil
}
