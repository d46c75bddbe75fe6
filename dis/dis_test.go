package dis

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/compiler"
	"github.com/deepnoodle-ai/jsrt/op"
	"github.com/deepnoodle-ai/jsrt/parser"
)

func compile(t *testing.T, src string, module bool) *bytecode.Unit {
	t.Helper()
	var opts []parser.Option
	if module {
		opts = append(opts, parser.WithModule())
	}
	program, err := parser.Parse(context.Background(), src, opts...)
	require.NoError(t, err)
	unit, err := compiler.Compile(program, &compiler.Config{Filename: "t.js", Source: src})
	require.NoError(t, err)
	return unit
}

func noColor(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })
}

func TestFunctionDisassembly(t *testing.T) {
	noColor(t)
	unit := compile(t, `let x = 1; function f() { return x; }`, false)
	var fn *bytecode.Function
	for i := 0; i < unit.Main().ConstantCount(); i++ {
		if f, ok := unit.Main().ConstantAt(i).(*bytecode.Function); ok {
			fn = f
		}
	}
	require.NotNil(t, fn)
	instructions, err := Disassemble(fn.Code())
	require.NoError(t, err)

	var buf bytes.Buffer
	Print(instructions, &buf)

	expected := strings.TrimSpace(`
+--------+--------------+----------+------+
| OFFSET |    OPCODE    | OPERANDS | INFO |
+--------+--------------+----------+------+
|      0 | LOAD_GLOBAL  |        0 | x    |
|      2 | RETURN_VALUE |          |      |
|      3 | UNDEFINED    |          |      |
|      4 | RETURN_VALUE |          |      |
+--------+--------------+----------+------+
`)
	require.Equal(t, expected+"\n", buf.String())
}

func TestAnnotations(t *testing.T) {
	unit := compile(t, `let x = 1; var y; function f() { return x; } 1 + 2`, false)
	instructions, err := Disassemble(unit.Main())
	require.NoError(t, err)

	byName := map[string][]Instruction{}
	for _, instr := range instructions {
		byName[instr.Name] = append(byName[instr.Name], instr)
	}
	var declared []string
	for _, instr := range byName["DECLARE_GLOBAL"] {
		declared = append(declared, instr.Annotation)
	}
	require.Contains(t, declared, "let x")
	require.Contains(t, declared, "var y")
	require.Contains(t, declared, "var f")

	closure := byName["LOAD_CLOSURE"]
	require.Len(t, closure, 1)
	fn, ok := closure[0].Constant.(*bytecode.Function)
	require.True(t, ok)
	require.Equal(t, "f", fn.Name())

	require.Equal(t, "+", byName["BINARY_OP"][0].Annotation)
	var constants []any
	for _, instr := range byName["LOAD_CONST"] {
		constants = append(constants, instr.Constant)
	}
	require.Contains(t, constants, 2.0)
}

func TestJumpTargets(t *testing.T) {
	unit := compile(t, `function f(a, b = a + 1) { return b; }`, false)
	fn := unit.Main().ConstantAt(0).(*bytecode.Function)
	instructions, err := Disassemble(fn.Code())
	require.NoError(t, err)
	require.Equal(t, op.PopJumpForwardIfFalse, instructions[3].Opcode)
	require.Equal(t, 5, instructions[3].Offset)
	require.Equal(t, "to 15", instructions[3].Annotation)
	require.Equal(t, 15, instructions[8].Offset)

	require.Equal(t, "b", instructions[0].Annotation)
	require.Equal(t, "a", instructions[4].Annotation)
}

func TestLoopJumpsBackward(t *testing.T) {
	unit := compile(t, `let n = 0; while (n < 3) { n++ }`, false)
	instructions, err := Disassemble(unit.Main())
	require.NoError(t, err)
	var back *Instruction
	for i := range instructions {
		if instructions[i].Opcode == op.JumpBackward {
			back = &instructions[i]
		}
	}
	require.NotNil(t, back)
	require.True(t, strings.HasPrefix(back.Annotation, "to "))
	require.Equal(t, "<", byOpcode(instructions, op.CompareOp).Annotation)
}

func byOpcode(instructions []Instruction, code op.Code) Instruction {
	for _, instr := range instructions {
		if instr.Opcode == code {
			return instr
		}
	}
	return Instruction{}
}

func TestFreeVariables(t *testing.T) {
	unit := compile(t, `
function counter() {
	let n = 0;
	return () => { n++; return n; };
}`, false)
	counter := unit.Main().ConstantAt(0).(*bytecode.Function)
	arrow := counter.Code().ConstantAt(1).(*bytecode.Function)
	instructions, err := Disassemble(arrow.Code())
	require.NoError(t, err)
	require.Equal(t, "LOAD_FREE", instructions[0].Name)
	require.Equal(t, "n", instructions[0].Annotation)

	instructions, err = Disassemble(counter.Code())
	require.NoError(t, err)
	require.Equal(t, "n", byOpcode(instructions, op.MakeCell).Annotation)
}

func TestUnitListing(t *testing.T) {
	noColor(t)
	unit := compile(t, `import { a } from "dep"; export const b = a; export function g() { return b }`, true)
	instructions, err := DisassembleUnit(unit)
	require.NoError(t, err)
	var slots []string
	for _, instr := range instructions {
		switch instr.Opcode {
		case op.LoadModule, op.StoreModule, op.InitModule:
			slots = append(slots, instr.Annotation)
		}
	}
	require.Contains(t, slots, "a")
	require.Contains(t, slots, "b")

	var buf bytes.Buffer
	require.NoError(t, PrintUnit(unit, &buf))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "module t.js\n"), out)
	require.Contains(t, out, "\nfunction g\n")
}

func TestTruncatedCode(t *testing.T) {
	code := bytecode.NewCode(bytecode.CodeParams{
		Instructions: []op.Code{op.LoadConst},
	})
	_, err := Disassemble(code)
	require.Error(t, err)
	require.Contains(t, err.Error(), "truncated LOAD_CONST")
}
