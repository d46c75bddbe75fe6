package bytecode

import (
	"fmt"
	"math"

	"github.com/deepnoodle-ai/jsrt/op"
)

// Validate structurally checks a unit so that executing it cannot index out
// of range: every opcode is known and complete, every constant, name, local,
// free variable, slot and child reference exists, every jump lands inside
// its code block, and the module tables are consistent. Errors wrap
// ErrInvalidCode.
func Validate(unit *Unit) error {
	if unit == nil || unit.main == nil {
		return fmt.Errorf("%w: empty unit", ErrInvalidCode)
	}
	v := &validator{unit: unit}
	if err := v.code(unit.main, 0); err != nil {
		return err
	}
	return v.tables()
}

type validator struct {
	unit *Unit
}

func (v *validator) fail(c *Code, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidCode, c.id, fmt.Sprintf(format, args...))
}

func (v *validator) code(c *Code, depth int) error {
	if depth > 128 {
		return v.fail(c, "code nesting too deep")
	}
	if c.localCount < 0 || c.localCount > math.MaxUint16 {
		return v.fail(c, "invalid local count %d", c.localCount)
	}
	if len(c.locations) != 0 && len(c.locations) != len(c.instructions) {
		return v.fail(c, "source map has %d entries for %d instructions",
			len(c.locations), len(c.instructions))
	}
	for i, constant := range c.constants {
		switch constant := constant.(type) {
		case float64, string:
		case *Function:
			if constant.code == nil || constant.code.parent != c {
				return v.fail(c, "function constant %d is not a child of this code", i)
			}
			if constant.rest && len(constant.parameters) == 0 {
				return v.fail(c, "function constant %d has a rest flag without parameters", i)
			}
			if len(constant.parameters) > constant.code.localCount {
				return v.fail(c, "function constant %d has more parameters than locals", i)
			}
		default:
			return v.fail(c, "unsupported constant %d of type %T", i, constant)
		}
	}
	n := len(c.instructions)
	for ip := 0; ip < n; {
		opcode := c.instructions[ip]
		info := op.GetInfo(opcode)
		if info.Name == "" {
			return v.fail(c, "unknown opcode %d at %d", opcode, ip)
		}
		if ip+info.OperandCount >= n {
			return v.fail(c, "truncated %s at %d", info.Name, ip)
		}
		operands := c.instructions[ip+1 : ip+1+info.OperandCount]
		if err := v.instruction(c, ip, opcode, operands); err != nil {
			return err
		}
		ip += 1 + info.OperandCount
	}
	for _, child := range c.children {
		if err := v.code(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) instruction(c *Code, ip int, opcode op.Code, operands []op.Code) error {
	name := op.GetInfo(opcode).Name
	operand := func(i int) int { return int(operands[i]) }
	switch opcode {
	case op.LoadConst:
		if operand(0) >= len(c.constants) {
			return v.fail(c, "%s at %d: constant %d out of range", name, ip, operand(0))
		}
		if _, ok := c.constants[operand(0)].(*Function); ok {
			return v.fail(c, "%s at %d: functions must be loaded with LOAD_CLOSURE", name, ip)
		}
	case op.LoadAttr, op.StoreAttr, op.DeleteAttr, op.LoadGlobal, op.LoadGlobalTypeof,
		op.StoreGlobal, op.InitGlobal:
		if operand(0) >= len(c.names) {
			return v.fail(c, "%s at %d: name %d out of range", name, ip, operand(0))
		}
	case op.DeclareGlobal:
		if operand(0) >= len(c.names) {
			return v.fail(c, "%s at %d: name %d out of range", name, ip, operand(0))
		}
		if operand(1) > op.DeclareConst {
			return v.fail(c, "%s at %d: unknown declaration kind %d", name, ip, operand(1))
		}
	case op.LoadFast, op.StoreFast, op.InitFast, op.RenewFast:
		if operand(0) >= c.localCount {
			return v.fail(c, "%s at %d: local %d out of range", name, ip, operand(0))
		}
	case op.LoadFree, op.StoreFree:
		if operand(0) >= len(c.freeNames) {
			return v.fail(c, "%s at %d: free variable %d out of range", name, ip, operand(0))
		}
	case op.LoadModule, op.StoreModule, op.InitModule:
		if v.unit.kind != Module {
			return v.fail(c, "%s at %d: module slot access in a script", name, ip)
		}
		if operand(0) >= len(v.unit.slots) {
			return v.fail(c, "%s at %d: slot %d out of range", name, ip, operand(0))
		}
	case op.MakeCell:
		switch operand(1) {
		case op.CellLocal:
			if operand(0) >= c.localCount {
				return v.fail(c, "%s at %d: local %d out of range", name, ip, operand(0))
			}
		case op.CellFree:
			if operand(0) >= len(c.freeNames) {
				return v.fail(c, "%s at %d: free variable %d out of range", name, ip, operand(0))
			}
		default:
			return v.fail(c, "%s at %d: unknown cell source %d", name, ip, operand(1))
		}
	case op.LoadClosure:
		if operand(0) >= len(c.constants) {
			return v.fail(c, "%s at %d: constant %d out of range", name, ip, operand(0))
		}
		fn, ok := c.constants[operand(0)].(*Function)
		if !ok {
			return v.fail(c, "%s at %d: constant %d is not a function", name, ip, operand(0))
		}
		if operand(1) != len(fn.code.freeNames) {
			return v.fail(c, "%s at %d: function expects %d free variables, got %d",
				name, ip, len(fn.code.freeNames), operand(1))
		}
	case op.BinaryOp:
		if op.BinaryOpType(operand(0)).String() == "" {
			return v.fail(c, "%s at %d: unknown operator %d", name, ip, operand(0))
		}
	case op.CompareOp:
		if op.CompareOpType(operand(0)).String() == "" {
			return v.fail(c, "%s at %d: unknown comparison %d", name, ip, operand(0))
		}
	case op.GetIter:
		if operand(0) > op.IterKeys {
			return v.fail(c, "%s at %d: unknown iteration kind %d", name, ip, operand(0))
		}
	case op.CallSpread:
		if operand(0) > 1 {
			return v.fail(c, "%s at %d: invalid receiver flag %d", name, ip, operand(0))
		}
	case op.Copy, op.Swap:
		if opcode == op.Swap && operand(0) == 0 {
			return v.fail(c, "%s at %d: swap distance must be positive", name, ip)
		}
	}
	if op.IsJump(opcode) {
		delta := operand(0)
		var target int
		if opcode == op.JumpBackward {
			target = ip - delta
		} else {
			target = ip + delta
		}
		if delta == 0 || target < 0 || target > len(c.instructions) {
			return v.fail(c, "%s at %d: jump target %d out of range", name, ip, target)
		}
	}
	return nil
}

func (v *validator) tables() error {
	u := v.unit
	main := u.main
	if u.kind == Script {
		if len(u.slots) != 0 || len(u.imports) != 0 || len(u.exports) != 0 || len(u.hoisted) != 0 {
			return fmt.Errorf("%w: script units cannot have module tables", ErrInvalidCode)
		}
		return nil
	}
	slotOK := func(i int) bool { return i >= 0 && i < len(u.slots) }
	for _, imp := range u.imports {
		if imp.Specifier == "" {
			return fmt.Errorf("%w: import with an empty specifier", ErrInvalidCode)
		}
		for _, b := range imp.Bindings {
			if !slotOK(b.Slot) || b.Imported == "" {
				return fmt.Errorf("%w: import of %q has an invalid binding", ErrInvalidCode, imp.Specifier)
			}
		}
	}
	exported := map[string]bool{}
	for _, exp := range u.exports {
		if exp.Exported == "" {
			return fmt.Errorf("%w: export with an empty name", ErrInvalidCode)
		}
		if exported[exp.Exported] {
			return fmt.Errorf("%w: duplicate export %q", ErrInvalidCode, exp.Exported)
		}
		exported[exp.Exported] = true
		if exp.IsIndirect() {
			if exp.Imported == "" {
				return fmt.Errorf("%w: re-export %q names no binding", ErrInvalidCode, exp.Exported)
			}
			continue
		}
		if !slotOK(exp.Slot) {
			return fmt.Errorf("%w: export %q references slot %d", ErrInvalidCode, exp.Exported, exp.Slot)
		}
	}
	for _, h := range u.hoisted {
		if !slotOK(h.Slot) {
			return fmt.Errorf("%w: hoisted function references slot %d", ErrInvalidCode, h.Slot)
		}
		if h.Constant < 0 || h.Constant >= len(main.constants) {
			return fmt.Errorf("%w: hoisted function constant %d out of range", ErrInvalidCode, h.Constant)
		}
		fn, ok := main.constants[h.Constant].(*Function)
		if !ok || len(fn.code.freeNames) != 0 {
			return fmt.Errorf("%w: hoisted constant %d is not a top-level function", ErrInvalidCode, h.Constant)
		}
	}
	return nil
}
