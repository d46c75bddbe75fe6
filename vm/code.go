package vm

import (
	"fmt"

	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
	"github.com/deepnoodle-ai/jsrt/op"
)

// loadedCode is a bytecode.Code converted into the form the interpreter
// works with: a flat instruction slice and constants as engine objects.
type loadedCode struct {
	*bytecode.Code
	Instructions []op.Code
	Constants    []object.Object
	Functions    []*bytecode.Function // function templates, by constant index
	Names        []string
	filename     string
	localCount   int
}

func loadCode(bc *bytecode.Code) *loadedCode {
	c := &loadedCode{
		Code:         bc,
		Instructions: make([]op.Code, bc.InstructionCount()),
		Constants:    make([]object.Object, bc.ConstantCount()),
		Functions:    make([]*bytecode.Function, bc.ConstantCount()),
		Names:        make([]string, bc.NameCount()),
		filename:     bc.Filename(),
		localCount:   bc.LocalCount(),
	}
	if c.filename == "" {
		c.filename = bc.Root().Filename()
	}
	for i := 0; i < bc.InstructionCount(); i++ {
		c.Instructions[i] = bc.InstructionAt(i)
	}
	for i := 0; i < bc.NameCount(); i++ {
		c.Names[i] = bc.NameAt(i)
	}
	for i := 0; i < bc.ConstantCount(); i++ {
		switch constant := bc.ConstantAt(i).(type) {
		case float64:
			c.Constants[i] = object.NewNumber(constant)
		case string:
			c.Constants[i] = object.NewString(constant)
		case *bytecode.Function:
			c.Functions[i] = constant
			c.Constants[i] = object.Undefined
		default:
			panic(fmt.Sprintf("unsupported constant type: %T", constant))
		}
	}
	return c
}

// LocationAt returns the source location for the instruction at the given index.
func (c *loadedCode) LocationAt(ip int) errz.SourceLocation {
	loc := c.Code.LocationAt(ip)
	if loc.IsZero() {
		return errz.SourceLocation{Filename: c.filename}
	}
	return errz.SourceLocation{
		Filename: c.filename,
		Line:     loc.Line,
		Column:   loc.Column,
		Source:   c.GetSourceLine(loc.Line),
	}
}

// localName returns the name of a local variable for error messages.
func (c *loadedCode) localName(idx int) string {
	if name := c.LocalNameAt(idx); name != "" {
		return name
	}
	return fmt.Sprintf("local%d", idx)
}
