package bytecode

import (
	"slices"
	"strings"

	"github.com/deepnoodle-ai/jsrt/op"
)

// Code represents a compiled code block (script body, module body or
// function body). It is immutable after creation and safe for concurrent use.
//
// Constants are float64, string or *Function values.
type Code struct {
	id       string
	name     string
	isNamed  bool
	children []*Code
	parent   *Code // Parent code (nil for root)

	instructions []op.Code
	constants    []any
	names        []string
	source       string
	filename     string

	// Source map: one location per instruction slot for error reporting
	locations []SourceLocation

	localCount  int
	localNames  []string
	freeNames   []string
	maxCallArgs int
}

// CodeParams contains parameters for creating a new Code.
type CodeParams struct {
	ID           string
	Name         string
	IsNamed      bool
	Children     []*Code // Pre-built child code blocks
	Instructions []op.Code
	Constants    []any
	Names        []string
	Source       string
	Filename     string
	Locations    []SourceLocation
	LocalCount   int
	LocalNames   []string
	FreeNames    []string
	MaxCallArgs  int
}

// NewCode creates a new immutable Code from the given parameters.
// Input slices are copied to ensure immutability.
func NewCode(params CodeParams) *Code {
	var children []*Code
	if len(params.Children) > 0 {
		children = make([]*Code, len(params.Children))
		copy(children, params.Children)
	}
	code := &Code{
		id:           params.ID,
		name:         params.Name,
		isNamed:      params.IsNamed,
		children:     children,
		instructions: slices.Clone(params.Instructions),
		constants:    slices.Clone(params.Constants),
		names:        slices.Clone(params.Names),
		source:       params.Source,
		filename:     params.Filename,
		locations:    slices.Clone(params.Locations),
		localCount:   params.LocalCount,
		localNames:   slices.Clone(params.LocalNames),
		freeNames:    slices.Clone(params.FreeNames),
		maxCallArgs:  params.MaxCallArgs,
	}
	// Set parent reference on all children for source lookups
	for _, child := range code.children {
		child.parent = code
	}
	return code
}

// ID returns the unique identifier for this code block.
func (c *Code) ID() string {
	return c.id
}

// Name returns the name of this code block.
func (c *Code) Name() string {
	return c.name
}

// IsNamed returns true if this is a named function.
func (c *Code) IsNamed() bool {
	return c.isNamed
}

// Parent returns the enclosing code block, or nil for the root.
func (c *Code) Parent() *Code {
	return c.parent
}

// ChildCount returns the number of child code blocks.
func (c *Code) ChildCount() int {
	return len(c.children)
}

// ChildAt returns the child code block at the given index.
func (c *Code) ChildAt(index int) *Code {
	return c.children[index]
}

// InstructionCount returns the number of instruction slots, operands included.
func (c *Code) InstructionCount() int {
	return len(c.instructions)
}

// InstructionAt returns the instruction slot at the given index.
func (c *Code) InstructionAt(index int) op.Code {
	return c.instructions[index]
}

// ConstantCount returns the number of constants.
func (c *Code) ConstantCount() int {
	return len(c.constants)
}

// ConstantAt returns the constant at the given index.
func (c *Code) ConstantAt(index int) any {
	return c.constants[index]
}

// NameCount returns the number of names (property and global names used in
// this code).
func (c *Code) NameCount() int {
	return len(c.names)
}

// NameAt returns the name at the given index.
func (c *Code) NameAt(index int) string {
	return c.names[index]
}

// Source returns the source code for this block. It is empty when the code
// was serialized with the source stripped.
func (c *Code) Source() string {
	return c.source
}

// Filename returns the source filename.
func (c *Code) Filename() string {
	return c.filename
}

// LocalCount returns the number of local variable slots.
func (c *Code) LocalCount() int {
	return c.localCount
}

// LocalNameAt returns the local variable name at the given index.
// Returns an empty string if the index is out of range.
func (c *Code) LocalNameAt(index int) string {
	if index < 0 || index >= len(c.localNames) {
		return ""
	}
	return c.localNames[index]
}

// FreeCount returns the number of free (captured) variables.
func (c *Code) FreeCount() int {
	return len(c.freeNames)
}

// FreeNameAt returns the free variable name at the given index.
func (c *Code) FreeNameAt(index int) string {
	if index < 0 || index >= len(c.freeNames) {
		return ""
	}
	return c.freeNames[index]
}

// MaxCallArgs returns the maximum argument count from any call opcode.
func (c *Code) MaxCallArgs() int {
	return c.maxCallArgs
}

// LocationAt returns the source location for the instruction at the given index.
func (c *Code) LocationAt(ip int) SourceLocation {
	if ip < 0 || ip >= len(c.locations) {
		return SourceLocation{}
	}
	return c.locations[ip]
}

// LocationCount returns the number of recorded source locations.
func (c *Code) LocationCount() int {
	return len(c.locations)
}

// Flatten returns this code and all descendants in a flat slice.
func (c *Code) Flatten() []*Code {
	codes := []*Code{c}
	for _, child := range c.children {
		codes = append(codes, child.Flatten()...)
	}
	return codes
}

// Root returns the outermost code block.
func (c *Code) Root() *Code {
	root := c
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// GetSourceLine returns the source code line at the given 1-based line number.
// Nested functions look the line up in the root code's source.
func (c *Code) GetSourceLine(lineNum int) string {
	if lineNum < 1 {
		return ""
	}
	source := c.Root().source
	if source == "" {
		return ""
	}
	lines := strings.Split(source, "\n")
	if lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}

// Stats returns statistics about this code block and its descendants.
func (c *Code) Stats() Stats {
	var stats Stats
	for _, code := range c.Flatten() {
		stats.InstructionCount += code.InstructionCount()
		stats.ConstantCount += code.ConstantCount()
		for i := 0; i < code.ConstantCount(); i++ {
			if _, ok := code.ConstantAt(i).(*Function); ok {
				stats.FunctionCount++
			}
		}
	}
	stats.SourceBytes = len(c.source)
	return stats
}

// FunctionNames returns the names of all named functions defined directly in
// this code. Anonymous functions are not included.
func (c *Code) FunctionNames() []string {
	var names []string
	for i := 0; i < c.ConstantCount(); i++ {
		if fn, ok := c.ConstantAt(i).(*Function); ok {
			if name := fn.Name(); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// stripped returns a copy of the code tree with source text removed.
func (c *Code) stripped() *Code {
	children := make([]*Code, len(c.children))
	byOld := map[*Code]*Code{}
	for i, child := range c.children {
		children[i] = child.stripped()
		byOld[child] = children[i]
	}
	constants := slices.Clone(c.constants)
	for i, constant := range constants {
		if fn, ok := constant.(*Function); ok {
			clone := *fn
			clone.code = byOld[fn.code]
			constants[i] = &clone
		}
	}
	return NewCode(CodeParams{
		ID:           c.id,
		Name:         c.name,
		IsNamed:      c.isNamed,
		Children:     children,
		Instructions: c.instructions,
		Constants:    constants,
		Names:        c.names,
		Filename:     c.filename,
		Locations:    c.locations,
		LocalCount:   c.localCount,
		LocalNames:   c.localNames,
		FreeNames:    c.freeNames,
		MaxCallArgs:  c.maxCallArgs,
	})
}
