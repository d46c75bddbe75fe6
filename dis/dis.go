// Package dis supports analysis of jsrt bytecode by disassembling it.
// This works with the opcodes defined in the `op` package and uses the
// InstructionIter type from the `bytecode` package.
package dis

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/internal/table"
	"github.com/deepnoodle-ai/jsrt/object"
	"github.com/deepnoodle-ai/jsrt/op"
)

// Instruction represents a single bytecode instruction and its operands.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     op.Code
	Operands   []op.Code
	Annotation string
	Constant   any
}

// Disassemble returns a parsed representation of the given bytecode.
func Disassemble(code *bytecode.Code) ([]Instruction, error) {
	return disassemble(code, nil)
}

// DisassembleUnit disassembles the main code of a unit. Module slot
// operands are annotated with their binding names.
func DisassembleUnit(unit *bytecode.Unit) ([]Instruction, error) {
	slots := make([]string, unit.SlotCount())
	for i := range slots {
		slots[i] = unit.SlotAt(i).Name
	}
	return disassemble(unit.Main(), slots)
}

func disassemble(code *bytecode.Code, slots []string) ([]Instruction, error) {
	var instructions []Instruction
	iter := bytecode.NewInstructionIter(code)
	for {
		offset := iter.Offset()
		val, ok := iter.Next()
		if !ok {
			break
		}
		info := op.GetInfo(val[0])
		if info.Name == "" {
			return nil, fmt.Errorf("unknown opcode %d at offset %d", val[0], offset)
		}
		if len(val)-1 != info.OperandCount {
			return nil, fmt.Errorf("truncated %s instruction at offset %d", info.Name, offset)
		}
		var err error
		var constant any
		var annotation string
		switch val[0] {
		case op.LoadFast, op.StoreFast, op.InitFast, op.RenewFast:
			annotation, err = getLocalVariableName(code, int(val[1]))
		case op.LoadFree, op.StoreFree:
			annotation, err = getFreeVariableName(code, int(val[1]))
		case op.LoadGlobal, op.LoadGlobalTypeof, op.StoreGlobal, op.InitGlobal,
			op.LoadAttr, op.StoreAttr, op.DeleteAttr:
			annotation, err = getName(code, int(val[1]))
		case op.DeclareGlobal:
			annotation, err = getName(code, int(val[1]))
			if err == nil {
				annotation = declarationKind(val[2]) + " " + annotation
			}
		case op.LoadModule, op.StoreModule, op.InitModule:
			annotation = getSlotName(slots, int(val[1]))
		case op.BinaryOp:
			annotation = op.BinaryOpType(val[1]).String()
		case op.CompareOp:
			annotation = op.CompareOpType(val[1]).String()
		case op.LoadConst:
			constant, err = getConstantValue(code, int(val[1]))
			annotation = fmt.Sprintf("%v", constant)
		case op.LoadClosure:
			constant, err = getConstantValue(code, int(val[1]))
		case op.GetIter:
			annotation = "values"
			if val[1] == op.IterKeys {
				annotation = "keys"
			}
		case op.MakeCell:
			if val[2] == op.CellFree {
				annotation, err = getFreeVariableName(code, int(val[1]))
			} else {
				annotation, err = getLocalVariableName(code, int(val[1]))
			}
		case op.JumpBackward:
			annotation = fmt.Sprintf("to %d", offset-int(val[1]))
		default:
			if op.IsJump(val[0]) {
				annotation = fmt.Sprintf("to %d", offset+int(val[1]))
			}
		}
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, Instruction{
			Offset:     offset,
			Name:       info.Name,
			Opcode:     val[0],
			Operands:   val[1:],
			Annotation: annotation,
			Constant:   constant,
		})
	}
	return instructions, nil
}

var (
	colorOpcode   = color.New(color.Bold)
	colorNumber   = color.New(color.FgYellow)
	colorString   = color.New(color.FgGreen)
	colorFunction = color.New(color.FgMagenta)
	colorInfo     = color.New(color.FgHiCyan)
	colorItalic   = color.New(color.Italic)
)

// Print a string representation of the given instructions to the given writer.
func Print(instructions []Instruction, writer io.Writer) {
	var lines [][]string
	for _, instr := range instructions {
		var values []string
		values = append(values, strconv.Itoa(instr.Offset))
		values = append(values, colorOpcode.Sprint(instr.Name))
		values = append(values, formatOperands(instr.Operands))
		if instr.Constant != nil {
			switch c := instr.Constant.(type) {
			case float64:
				values = append(values, colorNumber.Sprint(object.FormatNumber(c)))
			case string:
				if len(c) > 80 {
					c = c[:77] + "..."
				}
				values = append(values, colorString.Sprint(strconv.Quote(c)))
			case *bytecode.Function:
				name := c.Name()
				if name == "" {
					name = colorItalic.Sprint("<anonymous>")
				}
				values = append(values, colorFunction.Sprintf("func:%s", name))
			default:
				values = append(values, colorOpcode.Sprintf("%v", c))
			}
		} else if instr.Annotation != "" {
			values = append(values, colorInfo.Sprint(instr.Annotation))
		} else {
			values = append(values, "")
		}
		lines = append(lines, values)
	}

	table.NewTable(writer).
		WithHeader([]string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}

// PrintUnit writes a listing of a unit's main code followed by every
// function it contains, each under a heading line.
func PrintUnit(unit *bytecode.Unit, writer io.Writer) error {
	instructions, err := DisassembleUnit(unit)
	if err != nil {
		return err
	}
	fmt.Fprintf(writer, "%s %s\n", unit.Kind(), unit.Name())
	Print(instructions, writer)
	for _, code := range unit.Main().Flatten() {
		if code == unit.Main() {
			continue
		}
		instructions, err := Disassemble(code)
		if err != nil {
			return err
		}
		fmt.Fprintf(writer, "\nfunction %s\n", code.Name())
		Print(instructions, writer)
	}
	return nil
}

func formatOperands(ops []op.Code) string {
	var sb strings.Builder
	for i, op := range ops {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(op)))
	}
	return sb.String()
}

func declarationKind(kind op.Code) string {
	switch kind {
	case op.DeclareLet:
		return "let"
	case op.DeclareConst:
		return "const"
	default:
		return "var"
	}
}

func getLocalVariableName(code *bytecode.Code, index int) (string, error) {
	if code.LocalCount() <= index {
		return "", fmt.Errorf("local variable index out of range: %d", index)
	}
	if name := code.LocalNameAt(index); name != "" {
		return name, nil
	}
	return fmt.Sprintf("local_%d", index), nil
}

func getFreeVariableName(code *bytecode.Code, index int) (string, error) {
	if code.FreeCount() <= index {
		return "", fmt.Errorf("free variable index out of range: %d", index)
	}
	return code.FreeNameAt(index), nil
}

func getSlotName(slots []string, index int) string {
	if index < len(slots) {
		return slots[index]
	}
	return fmt.Sprintf("slot_%d", index)
}

func getConstantValue(code *bytecode.Code, index int) (any, error) {
	if code.ConstantCount() <= index {
		return "", fmt.Errorf("constant index out of range: %d", index)
	}
	return code.ConstantAt(index), nil
}

func getName(code *bytecode.Code, index int) (string, error) {
	if code.NameCount() <= index {
		return "", fmt.Errorf("name index out of range: %d", index)
	}
	return code.NameAt(index), nil
}
