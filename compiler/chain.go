package compiler

import (
	"math"

	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/op"
)

// optionalChain collects the nullish checks of one member/call chain. Each
// check jumps to a landing pad that drops the chain's partial results and
// produces undefined for the whole chain.
type optionalChain struct {
	pads []chainPad
}

type chainPad struct {
	jump  int
	depth int
}

// compileChain compiles a member access, index or call expression together
// with the rest of its chain.
func (c *Compiler) compileChain(expr ast.Expr) error {
	chain := &optionalChain{}
	if err := c.compileChainLink(expr, chain); err != nil {
		return err
	}
	if len(chain.pads) == 0 {
		return nil
	}
	ends := []int{c.emit(op.JumpForward, Placeholder)}
	for _, pad := range chain.pads {
		if err := c.patchJump(pad.jump); err != nil {
			return err
		}
		for i := 0; i < pad.depth; i++ {
			c.emit(op.PopTop)
		}
		c.emit(op.Undefined)
		ends = append(ends, c.emit(op.JumpForward, Placeholder))
	}
	return c.patchJumps(ends)
}

// nullishCheck ends the chain early when the value on top of the stack is
// null or undefined. depth is the number of chain values on the stack.
func (c *Compiler) nullishCheck(chain *optionalChain, depth int) {
	c.emit(op.Copy, 0)
	jump := c.emit(op.PopJumpForwardIfNullish, Placeholder)
	chain.pads = append(chain.pads, chainPad{jump: jump, depth: depth})
}

// compileChainObject compiles the object part of a chain link.
func (c *Compiler) compileChainObject(expr ast.Expr, chain *optionalChain) error {
	switch expr.(type) {
	case *ast.Member, *ast.Index, *ast.Call:
		return c.compileChainLink(expr, chain)
	}
	return c.compileExpr(expr)
}

func (c *Compiler) compileChainLink(expr ast.Expr, chain *optionalChain) error {
	prev := c.currentNode
	c.currentNode = expr
	defer func() { c.currentNode = prev }()

	switch node := expr.(type) {
	case *ast.Member:
		if err := c.compileChainObject(node.X, chain); err != nil {
			return err
		}
		if node.Optional {
			c.nullishCheck(chain, 1)
		}
		c.emit(op.LoadAttr, c.current.addName(node.Name.Name))
	case *ast.Index:
		if err := c.compileChainObject(node.X, chain); err != nil {
			return err
		}
		if node.Optional {
			c.nullishCheck(chain, 1)
		}
		if err := c.compileExpr(node.Index); err != nil {
			return err
		}
		c.emit(op.BinarySubscr)
	case *ast.Call:
		return c.compileCall(node, chain)
	}
	return nil
}

func (c *Compiler) compileCall(node *ast.Call, chain *optionalChain) error {
	method := true
	switch fun := node.Fun.(type) {
	case *ast.Member:
		if err := c.compileChainObject(fun.X, chain); err != nil {
			return err
		}
		if fun.Optional {
			c.nullishCheck(chain, 1)
		}
		c.emit(op.Copy, 0)
		c.emit(op.LoadAttr, c.current.addName(fun.Name.Name))
	case *ast.Index:
		if err := c.compileChainObject(fun.X, chain); err != nil {
			return err
		}
		if fun.Optional {
			c.nullishCheck(chain, 1)
		}
		c.emit(op.Copy, 0)
		if err := c.compileExpr(fun.Index); err != nil {
			return err
		}
		c.emit(op.BinarySubscr)
	default:
		method = false
		if err := c.compileChainObject(node.Fun, chain); err != nil {
			return err
		}
	}
	if node.Optional {
		depth := 1
		if method {
			depth = 2
		}
		c.nullishCheck(chain, depth)
	}
	argc, spread, err := c.compileArgs(node.Args)
	if err != nil {
		return err
	}
	switch {
	case spread:
		flag := uint16(0)
		if method {
			flag = 1
		}
		c.emit(op.CallSpread, flag)
	case method:
		c.emit(op.CallMethod, argc)
	default:
		c.emit(op.Call, argc)
	}
	return nil
}

func (c *Compiler) compileNew(node *ast.New) error {
	if err := c.compileExpr(node.Callee); err != nil {
		return err
	}
	argc, spread, err := c.compileArgs(node.Args)
	if err != nil {
		return err
	}
	if spread {
		c.emit(op.NewSpread)
	} else {
		c.emit(op.New, argc)
	}
	return nil
}

// compileArgs pushes call arguments. With a spread argument, the arguments
// are collected into a single array instead.
func (c *Compiler) compileArgs(args []ast.Expr) (uint16, bool, error) {
	spread := false
	for _, arg := range args {
		if _, ok := arg.(*ast.Spread); ok {
			spread = true
			break
		}
	}
	if !spread {
		if len(args) >= math.MaxUint16 {
			return 0, false, c.formatError(errors.E1003, "too many arguments", c.nodePos())
		}
		for _, arg := range args {
			if err := c.compileExpr(arg); err != nil {
				return 0, false, err
			}
		}
		return uint16(len(args)), false, nil
	}
	c.emit(op.BuildArray, 0)
	for _, arg := range args {
		if s, ok := arg.(*ast.Spread); ok {
			if err := c.compileExpr(s.X); err != nil {
				return 0, false, err
			}
			c.emit(op.ArrayExtend)
			continue
		}
		if err := c.compileExpr(arg); err != nil {
			return 0, false, err
		}
		c.emit(op.ArrayAppend)
	}
	return 0, true, nil
}
