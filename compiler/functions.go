package compiler

import (
	"fmt"

	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/op"
)

// compileFunc compiles a function and emits the instructions that create
// a closure for it. name is used when the function has no name of its own.
func (c *Compiler) compileFunc(node *ast.Func, name string, isExpr bool) error {
	tmpl, err := c.compileFuncTemplate(node, name, isExpr)
	if err != nil {
		return err
	}
	c.emitClosure(tmpl)
	return nil
}

// emitClosure captures the function's free variables and creates the
// closure.
func (c *Compiler) emitClosure(tmpl *funcTemplate) {
	idx := c.constant(tmpl)
	table := tmpl.code.symbols
	freeCount := table.FreeCount()
	for i := uint16(0); i < freeCount; i++ {
		fv := table.Free(i)
		c.emit(op.MakeCell, fv.Index, fv.Source)
	}
	c.emit(op.LoadClosure, idx, freeCount)
}

func (c *Compiler) compileFuncTemplate(node *ast.Func, name string, isExpr bool) (*funcTemplate, error) {
	if node.Name != nil {
		name = node.Name.Name
	}
	parent := c.current
	code := parent.newChild(name)
	c.current = code
	defer func() { c.current = parent }()

	tmpl := &funcTemplate{name: name, arrow: node.Arrow, code: code}
	table := code.symbols
	params := make([]*Symbol, len(node.Params))
	for i, p := range node.Params {
		sym, err := table.Insert(p.Name.Name, KindParam, 0)
		if err != nil {
			return nil, c.formatError(errors.E2006, "Duplicate parameter name not allowed in this context", p.Name.Pos())
		}
		params[i] = sym
		tmpl.params = append(tmpl.params, p.Name.Name)
		if p.Rest {
			tmpl.rest = true
		}
	}
	funcs, err := c.declareScope(node.Body.Stmts, true)
	if err != nil {
		return nil, err
	}

	// A named function expression can refer to itself by name unless the
	// name is shadowed by a parameter or a declaration in its body.
	if isExpr && node.Name != nil && !table.IsDefined(name) {
		sym, err := table.Insert(name, KindConst, 0)
		if err != nil {
			return nil, c.formatError(errors.E2007, err.Error(), node.Pos())
		}
		sym.bound = true
		c.emit(op.LoadCallee)
		c.emit(op.InitFast, sym.Index())
	}

	// Default values apply to parameters that are missing or undefined.
	for i, p := range node.Params {
		if p.Default == nil {
			continue
		}
		idx := params[i].Index()
		c.emit(op.LoadFast, idx)
		c.emit(op.Undefined)
		c.emit(op.CompareOp, uint16(op.StrictEqual))
		skip := c.emit(op.PopJumpForwardIfFalse, Placeholder)
		if err := c.compileNamedExpr(p.Default, p.Name.Name); err != nil {
			return nil, err
		}
		c.emit(op.StoreFast, idx)
		if err := c.patchJump(skip); err != nil {
			return nil, err
		}
	}

	if err := c.instantiateBlock(funcs); err != nil {
		return nil, err
	}
	for _, stmt := range node.Body.Stmts {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	c.emit(op.Undefined)
	c.emit(op.ReturnValue)
	return tmpl, nil
}

// hoistFunction compiles a module-level function declaration. The function
// is created when the module is linked, so no instructions are emitted.
func (c *Compiler) hoistFunction(node *ast.Func, name string, slot uint16) error {
	prev := c.currentNode
	c.currentNode = node
	defer func() { c.currentNode = prev }()
	tmpl, err := c.compileFuncTemplate(node, name, false)
	if err != nil {
		return err
	}
	if tmpl.code.symbols.FreeCount() != 0 {
		return c.formatError(errors.E1003, fmt.Sprintf("function %s captures local variables", name), node.Pos())
	}
	c.hoisted = append(c.hoisted, bytecode.Hoisted{Slot: int(slot), Constant: int(c.constant(tmpl))})
	return nil
}
