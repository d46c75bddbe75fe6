package bytecode

import "github.com/deepnoodle-ai/jsrt/op"

// InstructionIter iterates over the instructions of a Code block.
type InstructionIter struct {
	code *Code
	pos  int
}

// NewInstructionIter creates a new instruction iterator for the given code.
func NewInstructionIter(code *Code) *InstructionIter {
	return &InstructionIter{code: code}
}

// Offset returns the offset of the instruction Next will return.
func (i *InstructionIter) Offset() int {
	return i.pos
}

// Next returns the next instruction and its operands. It returns false when
// there are no more instructions. A truncated trailing instruction is
// returned with only the operands that are present.
func (i *InstructionIter) Next() ([]op.Code, bool) {
	if i.pos >= i.code.InstructionCount() {
		return nil, false
	}
	opcode := i.code.InstructionAt(i.pos)
	i.pos++

	info := op.GetInfo(opcode)
	instr := []op.Code{opcode}
	for j := 0; j < info.OperandCount && i.pos < i.code.InstructionCount(); j++ {
		instr = append(instr, i.code.InstructionAt(i.pos))
		i.pos++
	}
	return instr, true
}

// All returns all remaining instructions.
func (i *InstructionIter) All() [][]op.Code {
	var results [][]op.Code
	for {
		instr, ok := i.Next()
		if !ok {
			break
		}
		results = append(results, instr)
	}
	return results
}
