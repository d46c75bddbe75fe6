package compiler

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/internal/token"
	"github.com/deepnoodle-ai/jsrt/op"
	"github.com/deepnoodle-ai/jsrt/parser"
)

func compileSource(t *testing.T, input string, module bool) *bytecode.Unit {
	t.Helper()
	opts := []parser.Option{parser.WithFilename("t.js")}
	if module {
		opts = append(opts, parser.WithModule())
	}
	program, err := parser.Parse(context.Background(), input, opts...)
	require.NoError(t, err)
	unit, err := Compile(program, &Config{Filename: "t.js", Source: input})
	require.NoError(t, err)
	require.NoError(t, bytecode.Validate(unit))
	return unit
}

func compileError(t *testing.T, input string, module bool) *errors.CompileError {
	t.Helper()
	opts := []parser.Option{parser.WithFilename("t.js")}
	if module {
		opts = append(opts, parser.WithModule())
	}
	program, err := parser.Parse(context.Background(), input, opts...)
	require.NoError(t, err)
	_, err = Compile(program, &Config{Filename: "t.js", Source: input})
	require.Error(t, err)
	var compileErr *errors.CompileError
	require.True(t, stderrors.As(err, &compileErr), "unexpected error type %T", err)
	return compileErr
}

// opcodes returns the opcodes of a code block without their operands.
func opcodes(code *bytecode.Code) []op.Code {
	var result []op.Code
	for ip := 0; ip < code.InstructionCount(); {
		opcode := code.InstructionAt(ip)
		result = append(result, opcode)
		ip += 1 + op.GetInfo(opcode).OperandCount
	}
	return result
}

func instructions(code *bytecode.Code) []op.Code {
	result := make([]op.Code, code.InstructionCount())
	for i := range result {
		result[i] = code.InstructionAt(i)
	}
	return result
}

func TestExpressionStatement(t *testing.T) {
	unit := compileSource(t, "1 + 2", false)
	require.Equal(t, bytecode.Script, unit.Kind())
	main := unit.Main()
	require.Equal(t, []op.Code{
		op.LoadConst, 0,
		op.LoadConst, 1,
		op.BinaryOp, op.Code(op.Add),
		op.StoreFast, 0,
		op.LoadFast, 0,
		op.ReturnValue,
	}, instructions(main))
	require.Equal(t, 2, main.ConstantCount())
	require.Equal(t, 1.0, main.ConstantAt(0))
	require.Equal(t, 2.0, main.ConstantAt(1))
	require.Equal(t, 1, main.LocalCount())
}

func TestConstantsAreShared(t *testing.T) {
	unit := compileSource(t, `"a" + "a" + 1 + 1`, false)
	require.Equal(t, 2, unit.Main().ConstantCount())
}

func TestScriptDeclarations(t *testing.T) {
	unit := compileSource(t, "let x = 1; var y; function f() { return x; }", false)
	main := unit.Main()
	require.Equal(t, []op.Code{
		op.DeclareGlobal, 0, op.DeclareLet,
		op.DeclareGlobal, 1, op.DeclareVar,
		op.DeclareGlobal, 2, op.DeclareVar,
		op.LoadClosure, 0, 0,
		op.InitGlobal, 1,
		op.LoadConst, 1,
		op.InitGlobal, 0,
		op.LoadFast, 0,
		op.ReturnValue,
	}, instructions(main))
	require.Equal(t, "x", main.NameAt(0))
	require.Equal(t, "f", main.NameAt(1))
	require.Equal(t, "y", main.NameAt(2))

	fn, ok := main.ConstantAt(0).(*bytecode.Function)
	require.True(t, ok)
	require.Equal(t, "f", fn.Name())
	require.Equal(t, []op.Code{
		op.LoadGlobal, op.ReturnValue, op.Undefined, op.ReturnValue,
	}, opcodes(fn.Code()))
}

func TestClosureCapture(t *testing.T) {
	unit := compileSource(t, `
function counter() {
	let n = 0;
	return () => { n++; return n; };
}`, false)
	counter := unit.Main().ConstantAt(0).(*bytecode.Function)
	require.Equal(t, []op.Code{
		op.Uninitialized, op.InitFast,
		op.LoadConst, op.InitFast,
		op.MakeCell, op.LoadClosure, op.ReturnValue,
		op.Undefined, op.ReturnValue,
	}, opcodes(counter.Code()))

	arrow := counter.Code().ConstantAt(1).(*bytecode.Function)
	require.True(t, arrow.IsArrow())
	require.Equal(t, 1, arrow.Code().FreeCount())
	require.Equal(t, "n", arrow.Code().FreeNameAt(0))
	require.Equal(t, []op.Code{
		op.LoadFree, op.UnaryPlus, op.Copy, op.LoadConst, op.BinaryOp, op.StoreFree, op.PopTop,
		op.LoadFree, op.ReturnValue,
		op.Undefined, op.ReturnValue,
	}, opcodes(arrow.Code()))
}

func TestFunctionNames(t *testing.T) {
	unit := compileSource(t, `
const add = (a, ...rest) => a;
const obj = { method() {}, key: function () {} };
const named = function inner() { return inner; };`, false)
	names := unit.Main().FunctionNames()
	require.Equal(t, []string{"add", "method", "key", "inner"}, names)

	add := unit.Main().ConstantAt(0).(*bytecode.Function)
	require.True(t, add.HasRestParam())
	require.Equal(t, 1, add.Length())

	var inner *bytecode.Function
	for i := 0; i < unit.Main().ConstantCount(); i++ {
		if fn, ok := unit.Main().ConstantAt(i).(*bytecode.Function); ok && fn.Name() == "inner" {
			inner = fn
		}
	}
	require.NotNil(t, inner)
	require.Equal(t, op.LoadCallee, inner.Code().InstructionAt(0))
}

func TestDefaultParameters(t *testing.T) {
	unit := compileSource(t, "function f(a, b = a + 1) { return b; }", false)
	fn := unit.Main().ConstantAt(0).(*bytecode.Function)
	require.Equal(t, []op.Code{
		op.LoadFast, op.Undefined, op.CompareOp, op.PopJumpForwardIfFalse,
		op.LoadFast, op.LoadConst, op.BinaryOp, op.StoreFast,
		op.LoadFast, op.ReturnValue,
		op.Undefined, op.ReturnValue,
	}, opcodes(fn.Code()))
}

func TestMethodCalls(t *testing.T) {
	unit := compileSource(t, "console.log(1, 2)", false)
	require.Equal(t, []op.Code{
		op.LoadGlobal, op.Copy, op.LoadAttr, op.LoadConst, op.LoadConst, op.CallMethod,
		op.StoreFast, op.LoadFast, op.ReturnValue,
	}, opcodes(unit.Main()))
	require.Equal(t, 2, unit.Main().MaxCallArgs())

	unit = compileSource(t, "f(...xs, 1)", false)
	require.Equal(t, []op.Code{
		op.LoadGlobal, op.BuildArray, op.LoadGlobal, op.ArrayExtend, op.LoadConst, op.ArrayAppend,
		op.CallSpread, op.StoreFast, op.LoadFast, op.ReturnValue,
	}, opcodes(unit.Main()))
}

func TestOptionalChain(t *testing.T) {
	unit := compileSource(t, "a?.b.c", false)
	require.Equal(t, []op.Code{
		op.LoadGlobal, op.Copy, op.PopJumpForwardIfNullish,
		op.LoadAttr, op.LoadAttr,
		op.JumpForward,
		op.PopTop, op.Undefined, op.JumpForward,
		op.StoreFast, op.LoadFast, op.ReturnValue,
	}, opcodes(unit.Main()))
}

func TestLogicalOperators(t *testing.T) {
	unit := compileSource(t, "a ?? b", false)
	require.Equal(t, []op.Code{
		op.LoadGlobal, op.Copy, op.PopJumpForwardIfNotNullish, op.PopTop, op.LoadGlobal,
		op.StoreFast, op.LoadFast, op.ReturnValue,
	}, opcodes(unit.Main()))
}

func TestTypeofGlobal(t *testing.T) {
	unit := compileSource(t, "typeof missing", false)
	require.Equal(t, []op.Code{
		op.LoadGlobalTypeof, op.TypeOf, op.StoreFast, op.LoadFast, op.ReturnValue,
	}, opcodes(unit.Main()))
}

func TestPostfixMember(t *testing.T) {
	unit := compileSource(t, "o.n++", false)
	require.Equal(t, []op.Code{
		op.LoadGlobal, op.Copy, op.LoadAttr, op.UnaryPlus,
		op.Copy, op.Swap, op.Swap,
		op.LoadConst, op.BinaryOp, op.StoreAttr, op.PopTop,
		op.StoreFast, op.LoadFast, op.ReturnValue,
	}, opcodes(unit.Main()))
}

func TestForOfLoop(t *testing.T) {
	unit := compileSource(t, "for (const x of xs) { if (x) break; }", false)
	require.Equal(t, []op.Code{
		op.Uninitialized, op.InitFast,
		op.LoadGlobal, op.GetIter,
		op.ForIter, op.RenewFast, op.InitFast,
		op.LoadFast, op.PopJumpForwardIfFalse, op.JumpForward,
		op.JumpBackward,
		op.PopTop,
		op.LoadFast, op.ReturnValue,
	}, opcodes(unit.Main()))
}

func TestLetLoopBindingsAreRenewed(t *testing.T) {
	unit := compileSource(t, "for (let i = 0; i < 3; i++) {}", false)
	ops := opcodes(unit.Main())
	require.Contains(t, ops, op.RenewFast)
	require.Contains(t, ops, op.JumpBackward)
}

func TestTryFinally(t *testing.T) {
	unit := compileSource(t, `
function f() {
	try {
		return 1;
	} catch (e) {
		return e;
	} finally {
		g();
	}
}`, false)
	fn := unit.Main().ConstantAt(0).(*bytecode.Function)
	ops := opcodes(fn.Code())
	require.Equal(t, op.PushExcept, ops[0])
	// The finally block is inlined before each return and on each exit path.
	calls := 0
	for _, o := range ops {
		if o == op.Call {
			calls++
		}
	}
	require.Equal(t, 5, calls)
}

func TestSourceLocations(t *testing.T) {
	unit := compileSource(t, "let x = 1;\n  foo();", false)
	main := unit.Main()
	for ip := 0; ip < main.InstructionCount(); ip++ {
		if main.InstructionAt(ip) == op.Call {
			loc := main.LocationAt(ip)
			require.Equal(t, 2, loc.Line)
			require.Equal(t, 3, loc.Column)
			return
		}
	}
	t.Fatal("no call instruction")
}

func TestModuleTables(t *testing.T) {
	unit := compileSource(t, `import { a as b } from "./dep.js";
import * as ns from "./ns.js";
export const c = b + 1;
export default function () { return c; }
export { c as d, ns };
export { e as f } from "./e.js";
function helper() {}`, true)

	require.Equal(t, bytecode.Module, unit.Kind())
	require.Equal(t, "t.js", unit.Name())
	require.Equal(t, []string{"./dep.js", "./ns.js", "./e.js"}, unit.Requests())

	require.Equal(t, 5, unit.SlotCount())
	require.Equal(t, bytecode.Slot{Name: "b", Const: true}, unit.SlotAt(0))
	require.Equal(t, bytecode.Slot{Name: "ns", Const: true}, unit.SlotAt(1))
	require.Equal(t, bytecode.Slot{Name: "c", Const: true, Lexical: true}, unit.SlotAt(2))
	require.Equal(t, bytecode.Slot{Name: "helper"}, unit.SlotAt(3))
	require.Equal(t, bytecode.Slot{Name: "*default*", Const: true}, unit.SlotAt(4))

	require.Equal(t, 2, unit.ImportCount())
	imp := unit.ImportAt(0)
	require.Equal(t, "./dep.js", imp.Specifier)
	require.Len(t, imp.Bindings, 1)
	require.Equal(t, "a", imp.Bindings[0].Imported)
	require.Equal(t, 0, imp.Bindings[0].Slot)
	require.Equal(t, 1, imp.Bindings[0].Line)
	require.Equal(t, bytecode.NamespaceImport, unit.ImportAt(1).Bindings[0].Imported)

	require.Equal(t, 5, unit.ExportCount())
	require.Equal(t, bytecode.Export{Exported: "c", Slot: 2}, unit.ExportAt(0))
	require.Equal(t, bytecode.Export{Exported: "default", Slot: 4}, unit.ExportAt(1))
	require.Equal(t, bytecode.Export{Exported: "d", Slot: 2}, unit.ExportAt(2))
	require.Equal(t, bytecode.Export{Exported: "ns", Slot: 1, Specifier: "./ns.js", Imported: "*"}, unit.ExportAt(3))
	require.Equal(t, bytecode.Export{Exported: "f", Specifier: "./e.js", Imported: "e"}, unit.ExportAt(4))

	require.Equal(t, 2, unit.HoistedCount())
	require.Equal(t, bytecode.Hoisted{Slot: 3, Constant: 0}, unit.HoistedAt(0))
	require.Equal(t, bytecode.Hoisted{Slot: 4, Constant: 1}, unit.HoistedAt(1))
	def := unit.Main().ConstantAt(1).(*bytecode.Function)
	require.Equal(t, "default", def.Name())
	require.Equal(t, []op.Code{
		op.LoadModule, op.ReturnValue, op.Undefined, op.ReturnValue,
	}, opcodes(def.Code()))

	require.Equal(t, []op.Code{
		op.LoadModule, op.LoadConst, op.BinaryOp, op.InitModule,
		op.Undefined, op.ReturnValue,
	}, opcodes(unit.Main()))
}

func TestModuleDefaultExpression(t *testing.T) {
	unit := compileSource(t, "export default 40 + 2;", true)
	require.Equal(t, bytecode.Slot{Name: "*default*", Const: true, Lexical: true}, unit.SlotAt(0))
	require.Equal(t, bytecode.Export{Exported: "default", Slot: 0}, unit.ExportAt(0))
	require.Equal(t, 0, unit.HoistedCount())
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		module bool
		code   errors.ErrorCode
		msg    string
	}{
		{"duplicate let", "let a = 1;\nlet a = 2;", false, errors.E2006, "Identifier 'a' has already been declared"},
		{"let over var", "var a; let a;", false, errors.E2006, "Identifier 'a' has already been declared"},
		{"let over parameter", "function f(a) { let a; }", false, errors.E2006, "Identifier 'a' has already been declared"},
		{"assign to const", "const a = 1; a = 2;", false, errors.E2011, "Assignment to constant variable."},
		{"update const", "const a = 1; a++;", false, errors.E2011, "Assignment to constant variable."},
		{"assign to import", `import { x } from "./x.js"; x = 1;`, true, errors.E2011, "Assignment to constant variable."},
		{"duplicate export", "export const a = 1; export { a };", true, errors.E2012, "Duplicate export of 'a'"},
		{"undefined export", "export { missing };", true, errors.E1003, "Export 'missing' is not defined in module"},
		{"duplicate import", `import { a } from "./a.js"; import { a } from "./b.js";`, true, errors.E2006, "Identifier 'a' has already been declared"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileError(t, tt.input, tt.module)
			require.Equal(t, tt.code, err.Code)
			require.Equal(t, tt.msg, err.Message)
			require.Equal(t, "t.js", err.Filename)
		})
	}
}

func TestCompileErrorLocation(t *testing.T) {
	err := compileError(t, "let a = 1;\nlet a = 2;", false)
	require.Equal(t, 2, err.Line)
	require.Equal(t, 5, err.Column)
	require.Equal(t, "let a = 2;", err.SourceLine)
}

func TestControlFlowErrors(t *testing.T) {
	pos := token.Position{Line: 0, Column: 0}
	tests := []struct {
		name string
		stmt ast.Stmt
		code errors.ErrorCode
	}{
		{"break", &ast.Break{BreakPos: pos}, errors.E2003},
		{"continue", &ast.Continue{ContinuePos: pos}, errors.E2004},
		{"return", &ast.Return{ReturnPos: pos}, errors.E2005},
		{"delete identifier", &ast.ExprStmt{X: &ast.Prefix{OpPos: pos, Op: "delete", X: &ast.Ident{NamePos: pos, Name: "x"}}}, errors.E1003},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(&ast.Program{Stmts: []ast.Stmt{tt.stmt}}, nil)
			require.Error(t, err)
			var compileErr *errors.CompileError
			require.True(t, stderrors.As(err, &compileErr))
			require.Equal(t, tt.code, compileErr.Code)
		})
	}
}

func TestCompileValidatesAndRoundTrips(t *testing.T) {
	input := `
let total = 0;
const items = [1, 2, ...[3, 4]];
for (let i = 0; i < items.length; i++) {
	if (i % 2 === 0) continue;
	total += items[i];
}
for (const key in { a: 1, b: 2 }) {
	total += key.length;
}
let k = 0;
do { k++; } while (k < 3);
while (true) { if (k-- <= 0) break; }
switch (total) {
case 1: total = 2; break;
default: total = 3;
}
function risky(x) {
	try {
		if (x) throw new Error("boom");
		return "ok";
	} catch (err) {
		return err.message;
	} finally {
		total++;
	}
}
const o = { [risky(1)]: 1, ...{ z: 2 }, f() { return this; } };
o.count ??= 0;
o["count"] += 1;
const neg = -total, flag = !neg, bits = ~5 >>> 1;
const maybe = o?.missing?.deep ?? null;
typeof o, void 0, "z" in o, o instanceof Object, delete o.z;
total;`
	unit := compileSource(t, input, false)
	data, err := bytecode.Marshal(unit)
	require.NoError(t, err)
	decoded, err := bytecode.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, unit.Main().InstructionCount(), decoded.Main().InstructionCount())
	require.Equal(t, unit.Main().FunctionNames(), decoded.Main().FunctionNames())
}
