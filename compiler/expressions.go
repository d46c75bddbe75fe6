package compiler

import (
	"fmt"

	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/op"
)

var binaryOps = map[string]op.BinaryOpType{
	"+":   op.Add,
	"-":   op.Subtract,
	"*":   op.Multiply,
	"/":   op.Divide,
	"%":   op.Modulo,
	"**":  op.Power,
	"<<":  op.LShift,
	">>":  op.RShift,
	">>>": op.UnsignedRShift,
	"&":   op.BitwiseAnd,
	"|":   op.BitwiseOr,
	"^":   op.BitwiseXor,
}

var compareOps = map[string]op.CompareOpType{
	"<":   op.LessThan,
	"<=":  op.LessThanOrEqual,
	"==":  op.Equal,
	"!=":  op.NotEqual,
	">":   op.GreaterThan,
	">=":  op.GreaterThanOrEqual,
	"===": op.StrictEqual,
	"!==": op.StrictNotEqual,
}

func (c *Compiler) compileExpr(expr ast.Expr) error {
	prev := c.currentNode
	c.currentNode = expr
	defer func() { c.currentNode = prev }()

	switch node := expr.(type) {
	case *ast.Number:
		c.emit(op.LoadConst, c.constant(node.Value))
	case *ast.String:
		c.emit(op.LoadConst, c.constant(node.Value))
	case *ast.Bool:
		if node.Value {
			c.emit(op.True)
		} else {
			c.emit(op.False)
		}
	case *ast.Null:
		c.emit(op.Null)
	case *ast.Undefined:
		c.emit(op.Undefined)
	case *ast.This:
		c.emit(op.LoadThis)
	case *ast.Ident:
		c.emitLoad(c.resolve(node.Name))
	case *ast.Array:
		return c.compileArray(node)
	case *ast.Object:
		return c.compileObject(node)
	case *ast.Func:
		return c.compileFunc(node, "", true)
	case *ast.Prefix:
		return c.compilePrefix(node)
	case *ast.Infix:
		return c.compileInfix(node)
	case *ast.Logical:
		return c.compileLogical(node)
	case *ast.Ternary:
		return c.compileTernary(node)
	case *ast.Assign:
		return c.compileAssign(node)
	case *ast.Update:
		return c.compileUpdate(node)
	case *ast.Sequence:
		for i, x := range node.Exprs {
			if err := c.compileExpr(x); err != nil {
				return err
			}
			if i < len(node.Exprs)-1 {
				c.emit(op.PopTop)
			}
		}
	case *ast.Member, *ast.Index, *ast.Call:
		return c.compileChain(expr)
	case *ast.New:
		return c.compileNew(node)
	case *ast.Spread:
		return c.formatError(errors.E1003, "Unexpected spread element", node.Pos())
	case *ast.BadExpr:
		return c.formatError(errors.E1003, "invalid expression", node.Pos())
	default:
		return c.formatError(errors.E1003, fmt.Sprintf("unsupported expression: %s", expr), expr.Pos())
	}
	return nil
}

// compileNamedExpr compiles an expression bound to name. Anonymous
// functions take the name of the binding.
func (c *Compiler) compileNamedExpr(expr ast.Expr, name string) error {
	if fn, ok := expr.(*ast.Func); ok && fn.Name == nil {
		prev := c.currentNode
		c.currentNode = fn
		defer func() { c.currentNode = prev }()
		return c.compileFunc(fn, name, true)
	}
	return c.compileExpr(expr)
}

func (c *Compiler) compileArray(node *ast.Array) error {
	hasSpread := false
	for _, item := range node.Items {
		if _, ok := item.(*ast.Spread); ok {
			hasSpread = true
			break
		}
	}
	if !hasSpread {
		for _, item := range node.Items {
			if err := c.compileExpr(item); err != nil {
				return err
			}
		}
		c.emit(op.BuildArray, uint16(len(node.Items)))
		return nil
	}
	c.emit(op.BuildArray, 0)
	for _, item := range node.Items {
		if spread, ok := item.(*ast.Spread); ok {
			if err := c.compileExpr(spread.X); err != nil {
				return err
			}
			c.emit(op.ArrayExtend)
			continue
		}
		if err := c.compileExpr(item); err != nil {
			return err
		}
		c.emit(op.ArrayAppend)
	}
	return nil
}

func (c *Compiler) compileObject(node *ast.Object) error {
	simple := true
	for _, prop := range node.Props {
		if prop.Spread || prop.Computed {
			simple = false
			break
		}
	}
	if simple {
		for _, prop := range node.Props {
			key := prop.Key.(*ast.String).Value
			c.emit(op.LoadConst, c.constant(key))
			if err := c.compileNamedExpr(prop.Value, key); err != nil {
				return err
			}
		}
		c.emit(op.BuildObject, uint16(len(node.Props)))
		return nil
	}
	c.emit(op.BuildObject, 0)
	for _, prop := range node.Props {
		if prop.Spread {
			if err := c.compileExpr(prop.Value); err != nil {
				return err
			}
			c.emit(op.ObjectSpread)
			continue
		}
		name := ""
		if key, ok := prop.Key.(*ast.String); ok && !prop.Computed {
			name = key.Value
			c.emit(op.LoadConst, c.constant(key.Value))
		} else if err := c.compileExpr(prop.Key); err != nil {
			return err
		}
		if err := c.compileNamedExpr(prop.Value, name); err != nil {
			return err
		}
		c.emit(op.ObjectSet)
	}
	return nil
}

func (c *Compiler) compilePrefix(node *ast.Prefix) error {
	switch node.Op {
	case "typeof":
		if ident, ok := node.X.(*ast.Ident); ok {
			if res := c.resolve(ident.Name); res.scope == Global {
				c.emit(op.LoadGlobalTypeof, c.current.addName(ident.Name))
				c.emit(op.TypeOf)
				return nil
			}
		}
		if err := c.compileExpr(node.X); err != nil {
			return err
		}
		c.emit(op.TypeOf)
		return nil
	case "delete":
		return c.compileDelete(node)
	}
	if err := c.compileExpr(node.X); err != nil {
		return err
	}
	switch node.Op {
	case "-":
		c.emit(op.UnaryNegative)
	case "+":
		c.emit(op.UnaryPlus)
	case "!":
		c.emit(op.UnaryNot)
	case "~":
		c.emit(op.UnaryBitNot)
	case "void":
		c.emit(op.PopTop)
		c.emit(op.Undefined)
	default:
		return c.formatError(errors.E1003, fmt.Sprintf("unknown operator: %s", node.Op), node.Pos())
	}
	return nil
}

func (c *Compiler) compileDelete(node *ast.Prefix) error {
	switch x := node.X.(type) {
	case *ast.Ident:
		return c.formatError(errors.E1003, "Delete of an unqualified identifier in strict mode.", node.Pos())
	case *ast.Member:
		if x.Optional {
			break
		}
		if err := c.compileExpr(x.X); err != nil {
			return err
		}
		c.emit(op.DeleteAttr, c.current.addName(x.Name.Name))
		return nil
	case *ast.Index:
		if x.Optional {
			break
		}
		if err := c.compileExpr(x.X); err != nil {
			return err
		}
		if err := c.compileExpr(x.Index); err != nil {
			return err
		}
		c.emit(op.DeleteSubscr)
		return nil
	}
	if err := c.compileExpr(node.X); err != nil {
		return err
	}
	c.emit(op.PopTop)
	c.emit(op.True)
	return nil
}

func (c *Compiler) compileInfix(node *ast.Infix) error {
	if err := c.compileExpr(node.X); err != nil {
		return err
	}
	if err := c.compileExpr(node.Y); err != nil {
		return err
	}
	if opType, ok := binaryOps[node.Op]; ok {
		c.emit(op.BinaryOp, uint16(opType))
		return nil
	}
	if opType, ok := compareOps[node.Op]; ok {
		c.emit(op.CompareOp, uint16(opType))
		return nil
	}
	switch node.Op {
	case "in":
		c.emit(op.ContainsOp)
	case "instanceof":
		c.emit(op.InstanceOf)
	default:
		return c.formatError(errors.E1003, fmt.Sprintf("unknown operator: %s", node.Op), node.OpPos)
	}
	return nil
}

// shortCircuitJump returns the jump that skips the right operand of a
// logical operator, leaving the left operand as the result.
func shortCircuitJump(operator string) op.Code {
	switch operator {
	case "&&", "&&=":
		return op.PopJumpForwardIfFalse
	case "||", "||=":
		return op.PopJumpForwardIfTrue
	default:
		return op.PopJumpForwardIfNotNullish
	}
}

func (c *Compiler) compileLogical(node *ast.Logical) error {
	if err := c.compileExpr(node.X); err != nil {
		return err
	}
	c.emit(op.Copy, 0)
	jump := c.emit(shortCircuitJump(node.Op), Placeholder)
	c.emit(op.PopTop)
	if err := c.compileExpr(node.Y); err != nil {
		return err
	}
	return c.patchJump(jump)
}

func (c *Compiler) compileTernary(node *ast.Ternary) error {
	if err := c.compileExpr(node.Cond); err != nil {
		return err
	}
	jumpIfFalse := c.emit(op.PopJumpForwardIfFalse, Placeholder)
	if err := c.compileExpr(node.IfTrue); err != nil {
		return err
	}
	jumpToEnd := c.emit(op.JumpForward, Placeholder)
	if err := c.patchJump(jumpIfFalse); err != nil {
		return err
	}
	if err := c.compileExpr(node.IfFalse); err != nil {
		return err
	}
	return c.patchJump(jumpToEnd)
}

func isLogicalAssign(operator string) bool {
	return operator == "&&=" || operator == "||=" || operator == "??="
}

func (c *Compiler) compileAssign(node *ast.Assign) error {
	switch target := node.Target.(type) {
	case *ast.Ident:
		return c.compileAssignIdent(node, target)
	case *ast.Member:
		return c.compileAssignMember(node, target)
	case *ast.Index:
		return c.compileAssignIndex(node, target)
	}
	return c.formatError(errors.E1005, "Invalid left-hand side in assignment", node.Pos())
}

// compoundOp returns the binary operator of a compound assignment.
func (c *Compiler) compoundOp(node *ast.Assign) (op.BinaryOpType, error) {
	opType, ok := binaryOps[node.Op[:len(node.Op)-1]]
	if !ok {
		return 0, c.formatError(errors.E1003, fmt.Sprintf("unknown operator: %s", node.Op), node.OpPos)
	}
	return opType, nil
}

func (c *Compiler) compileAssignIdent(node *ast.Assign, target *ast.Ident) error {
	res, err := c.resolveAssignable(target)
	if err != nil {
		return err
	}
	switch {
	case node.Op == "=":
		if err := c.compileNamedExpr(node.Value, target.Name); err != nil {
			return err
		}
	case isLogicalAssign(node.Op):
		c.emitLoad(res)
		c.emit(op.Copy, 0)
		jump := c.emit(shortCircuitJump(node.Op), Placeholder)
		c.emit(op.PopTop)
		if err := c.compileNamedExpr(node.Value, target.Name); err != nil {
			return err
		}
		c.emit(op.Copy, 0)
		c.emitStore(res)
		return c.patchJump(jump)
	default:
		opType, err := c.compoundOp(node)
		if err != nil {
			return err
		}
		c.emitLoad(res)
		if err := c.compileExpr(node.Value); err != nil {
			return err
		}
		c.emit(op.BinaryOp, uint16(opType))
	}
	c.emit(op.Copy, 0)
	c.emitStore(res)
	return nil
}

func (c *Compiler) compileAssignMember(node *ast.Assign, target *ast.Member) error {
	if target.Optional {
		return c.formatError(errors.E1005, "Invalid left-hand side in assignment", node.Pos())
	}
	if err := c.compileExpr(target.X); err != nil {
		return err
	}
	name := c.current.addName(target.Name.Name)
	switch {
	case node.Op == "=":
		if err := c.compileExpr(node.Value); err != nil {
			return err
		}
	case isLogicalAssign(node.Op):
		c.emit(op.Copy, 0)
		c.emit(op.LoadAttr, name)
		c.emit(op.Copy, 0)
		skip := c.emit(shortCircuitJump(node.Op), Placeholder)
		c.emit(op.PopTop)
		if err := c.compileExpr(node.Value); err != nil {
			return err
		}
		c.emit(op.StoreAttr, name)
		end := c.emit(op.JumpForward, Placeholder)
		if err := c.patchJump(skip); err != nil {
			return err
		}
		c.emit(op.Swap, 1)
		c.emit(op.PopTop)
		return c.patchJump(end)
	default:
		opType, err := c.compoundOp(node)
		if err != nil {
			return err
		}
		c.emit(op.Copy, 0)
		c.emit(op.LoadAttr, name)
		if err := c.compileExpr(node.Value); err != nil {
			return err
		}
		c.emit(op.BinaryOp, uint16(opType))
	}
	c.emit(op.StoreAttr, name)
	return nil
}

func (c *Compiler) compileAssignIndex(node *ast.Assign, target *ast.Index) error {
	if target.Optional {
		return c.formatError(errors.E1005, "Invalid left-hand side in assignment", node.Pos())
	}
	if err := c.compileExpr(target.X); err != nil {
		return err
	}
	if err := c.compileExpr(target.Index); err != nil {
		return err
	}
	switch {
	case node.Op == "=":
		if err := c.compileExpr(node.Value); err != nil {
			return err
		}
	case isLogicalAssign(node.Op):
		c.emit(op.Copy, 1)
		c.emit(op.Copy, 1)
		c.emit(op.BinarySubscr)
		c.emit(op.Copy, 0)
		skip := c.emit(shortCircuitJump(node.Op), Placeholder)
		c.emit(op.PopTop)
		if err := c.compileExpr(node.Value); err != nil {
			return err
		}
		c.emit(op.StoreSubscr)
		end := c.emit(op.JumpForward, Placeholder)
		if err := c.patchJump(skip); err != nil {
			return err
		}
		c.emit(op.Swap, 2)
		c.emit(op.PopTop)
		c.emit(op.PopTop)
		return c.patchJump(end)
	default:
		opType, err := c.compoundOp(node)
		if err != nil {
			return err
		}
		c.emit(op.Copy, 1)
		c.emit(op.Copy, 1)
		c.emit(op.BinarySubscr)
		if err := c.compileExpr(node.Value); err != nil {
			return err
		}
		c.emit(op.BinaryOp, uint16(opType))
	}
	c.emit(op.StoreSubscr)
	return nil
}

func (c *Compiler) compileUpdate(node *ast.Update) error {
	opType := op.Add
	if node.Op == "--" {
		opType = op.Subtract
	}
	one := c.constant(float64(1))
	switch target := node.X.(type) {
	case *ast.Ident:
		res, err := c.resolveAssignable(target)
		if err != nil {
			return err
		}
		c.emitLoad(res)
		c.emit(op.UnaryPlus)
		if node.Prefix {
			c.emit(op.LoadConst, one)
			c.emit(op.BinaryOp, uint16(opType))
			c.emit(op.Copy, 0)
		} else {
			c.emit(op.Copy, 0)
			c.emit(op.LoadConst, one)
			c.emit(op.BinaryOp, uint16(opType))
		}
		c.emitStore(res)
	case *ast.Member:
		if target.Optional {
			return c.invalidUpdate(node)
		}
		if err := c.compileExpr(target.X); err != nil {
			return err
		}
		name := c.current.addName(target.Name.Name)
		c.emit(op.Copy, 0)
		c.emit(op.LoadAttr, name)
		c.emit(op.UnaryPlus)
		if !node.Prefix {
			c.emit(op.Copy, 0)
			c.emit(op.Swap, 2)
			c.emit(op.Swap, 1)
		}
		c.emit(op.LoadConst, one)
		c.emit(op.BinaryOp, uint16(opType))
		c.emit(op.StoreAttr, name)
		if !node.Prefix {
			c.emit(op.PopTop)
		}
		return nil
	case *ast.Index:
		if target.Optional {
			return c.invalidUpdate(node)
		}
		if err := c.compileExpr(target.X); err != nil {
			return err
		}
		if err := c.compileExpr(target.Index); err != nil {
			return err
		}
		c.emit(op.Copy, 1)
		c.emit(op.Copy, 1)
		c.emit(op.BinarySubscr)
		c.emit(op.UnaryPlus)
		if !node.Prefix {
			c.emit(op.Copy, 0)
			c.emit(op.Swap, 3)
			c.emit(op.Swap, 2)
			c.emit(op.Swap, 1)
		}
		c.emit(op.LoadConst, one)
		c.emit(op.BinaryOp, uint16(opType))
		c.emit(op.StoreSubscr)
		if !node.Prefix {
			c.emit(op.PopTop)
		}
		return nil
	default:
		return c.invalidUpdate(node)
	}
	return nil
}

func (c *Compiler) invalidUpdate(node *ast.Update) error {
	kind := "postfix"
	if node.Prefix {
		kind = "prefix"
	}
	return c.formatError(errors.E1005, "Invalid left-hand side expression in "+kind+" operation", node.Pos())
}
