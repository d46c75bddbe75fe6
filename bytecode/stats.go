package bytecode

// Stats contains statistics about compiled bytecode.
// This is useful for auditing compiled units before execution.
type Stats struct {
	// InstructionCount is the total number of instruction slots.
	InstructionCount int

	// ConstantCount is the number of constants across all code blocks.
	ConstantCount int

	// FunctionCount is the number of functions defined in the unit.
	FunctionCount int

	// SourceBytes is the size of the retained source code in bytes.
	SourceBytes int
}
