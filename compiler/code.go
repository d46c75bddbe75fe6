package compiler

import (
	"fmt"

	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/op"
)

type controlKind int

const (
	controlLoop controlKind = iota
	controlSwitch
	controlTry
)

// control is one entry of the statement stack that break, continue and
// return have to cross.
type control struct {
	kind controlKind
	// finally is compiled inline whenever a jump leaves a try body.
	finally *ast.Block
	// handlerActive is true while the try's exception handler is installed.
	handlerActive bool

	breakPos    []int
	continuePos []int
}

// funcTemplate is the placeholder constant for a nested function until the
// code tree is converted to bytecode.
type funcTemplate struct {
	name   string
	params []string
	rest   bool
	arrow  bool
	code   *Code
}

// Code is the mutable state of one code block while it is compiled.
type Code struct {
	id           string
	name         string
	isNamed      bool
	parent       *Code
	children     []*Code
	symbols      *SymbolTable
	instructions []op.Code
	constants    []any
	names        []string
	nameIndex    map[string]uint16
	strings      map[string]uint16
	source       string
	filename     string

	// Source map: one location per instruction slot
	locations []bytecode.SourceLocation

	maxCallArgs uint16

	// Used during compilation only
	controls   []*control
	completion int
	isFunction bool
}

func newCode(id, name, filename string, symbols *SymbolTable) *Code {
	return &Code{
		id:         id,
		name:       name,
		isNamed:    name != "",
		symbols:    symbols,
		filename:   filename,
		nameIndex:  map[string]uint16{},
		strings:    map[string]uint16{},
		completion: -1,
	}
}

func (c *Code) ID() string {
	return c.id
}

func (c *Code) Parent() *Code {
	return c.parent
}

func (c *Code) newChild(name string) *Code {
	child := newCode(fmt.Sprintf("%s.%d", c.id, len(c.children)), name, c.filename, c.symbols.NewChild())
	child.parent = c
	child.isFunction = true
	c.children = append(c.children, child)
	return child
}

func (c *Code) addName(name string) uint16 {
	if idx, ok := c.nameIndex[name]; ok {
		return idx
	}
	c.names = append(c.names, name)
	idx := uint16(len(c.names) - 1)
	c.nameIndex[name] = idx
	return idx
}

func (c *Code) pushControl(kind controlKind) *control {
	ctl := &control{kind: kind}
	c.controls = append(c.controls, ctl)
	return ctl
}

func (c *Code) popControl() {
	c.controls = c.controls[:len(c.controls)-1]
}

// ToBytecode converts the code tree into immutable bytecode.
func (c *Code) ToBytecode() *bytecode.Code {
	children := make([]*bytecode.Code, len(c.children))
	converted := make(map[*Code]*bytecode.Code, len(c.children))
	for i, child := range c.children {
		children[i] = child.ToBytecode()
		converted[child] = children[i]
	}
	constants := make([]any, len(c.constants))
	for i, k := range c.constants {
		tmpl, ok := k.(*funcTemplate)
		if !ok {
			constants[i] = k
			continue
		}
		code := converted[tmpl.code]
		constants[i] = bytecode.NewFunction(bytecode.FunctionParams{
			ID:         code.ID(),
			Name:       tmpl.name,
			Parameters: tmpl.params,
			Rest:       tmpl.rest,
			Arrow:      tmpl.arrow,
			Code:       code,
		})
	}
	freeNames := make([]string, c.symbols.FreeCount())
	for i := range freeNames {
		freeNames[i] = c.symbols.Free(uint16(i)).Name
	}
	return bytecode.NewCode(bytecode.CodeParams{
		ID:           c.id,
		Name:         c.name,
		IsNamed:      c.isNamed,
		Children:     children,
		Instructions: c.instructions,
		Constants:    constants,
		Names:        c.names,
		Source:       c.source,
		Filename:     c.filename,
		Locations:    c.locations,
		LocalCount:   int(c.symbols.Count()),
		LocalNames:   c.symbols.LocalNames(),
		FreeNames:    freeNames,
		MaxCallArgs:  int(c.maxCallArgs),
	})
}
