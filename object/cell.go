package object

import (
	"fmt"
)

// Internal: do not use. Cell is an implementation detail for closure variable
// capture and module bindings. A cell points at a variable slot so that
// writes through the owning frame and through the closure are shared.
type Cell struct {
	value *Object
}

func (c *Cell) Type() Type {
	return CELL
}

func (c *Cell) Inspect() string {
	if c.value == nil || *c.value == nil {
		return "cell()"
	}
	return fmt.Sprintf("cell(%s)", (*c.value).Inspect())
}

// Value returns the current value, or nil when the slot was never written.
func (c *Cell) Value() Object {
	if c.value == nil {
		return nil
	}
	return *c.value
}

func (c *Cell) Set(value Object) {
	*c.value = value
}

func (c *Cell) Interface() any {
	if v := c.Value(); v != nil {
		return v.Interface()
	}
	return nil
}

// NewCell creates a cell that aliases the given variable slot.
func NewCell(value *Object) *Cell {
	return &Cell{value: value}
}

// NewValueCell creates a cell with its own storage.
func NewValueCell(value Object) *Cell {
	return &Cell{value: &value}
}
