package compiler

import (
	"fmt"

	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/op"
)

func (c *Compiler) compileStmt(stmt ast.Stmt) error {
	prev := c.currentNode
	c.currentNode = stmt
	defer func() { c.currentNode = prev }()

	switch stmt := stmt.(type) {
	case *ast.ExprStmt:
		if err := c.compileExpr(stmt.X); err != nil {
			return err
		}
		if c.current.completion >= 0 {
			c.emit(op.StoreFast, uint16(c.current.completion))
		} else {
			c.emit(op.PopTop)
		}
	case *ast.VarDecl:
		return c.compileVarDecl(stmt)
	case *ast.FuncDecl:
		// Instantiated when the enclosing block is entered.
	case *ast.Empty:
	case *ast.Block:
		return c.compileBlock(stmt)
	case *ast.If:
		return c.compileIf(stmt)
	case *ast.While:
		return c.compileWhile(stmt)
	case *ast.DoWhile:
		return c.compileDoWhile(stmt)
	case *ast.For:
		return c.compileFor(stmt)
	case *ast.ForEach:
		return c.compileForEach(stmt)
	case *ast.Break:
		return c.compileBreak(stmt)
	case *ast.Continue:
		return c.compileContinue(stmt)
	case *ast.Return:
		return c.compileReturn(stmt)
	case *ast.Throw:
		if err := c.compileExpr(stmt.Value); err != nil {
			return err
		}
		c.emit(op.Throw)
	case *ast.Try:
		return c.compileTry(stmt)
	case *ast.Switch:
		return c.compileSwitch(stmt)
	case *ast.Import, *ast.ExportNamed, *ast.ExportDecl, *ast.ExportDefault:
		return c.compileModuleStmt(stmt)
	case *ast.BadStmt:
		return c.formatError(errors.E1003, "invalid statement", stmt.Pos())
	default:
		return c.formatError(errors.E1003, fmt.Sprintf("unsupported statement: %s", stmt), stmt.Pos())
	}
	return nil
}

func (c *Compiler) compileBlock(block *ast.Block) error {
	c.enterBlock()
	defer c.leaveBlock()
	return c.compileStmts(block.Stmts)
}

// compileStmts declares and compiles statements in the current scope.
func (c *Compiler) compileStmts(stmts []ast.Stmt) error {
	funcs, err := c.declareScope(stmts, false)
	if err != nil {
		return err
	}
	if err := c.instantiateBlock(funcs); err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileVarDecl(node *ast.VarDecl) error {
	for _, d := range node.Decls {
		res := c.resolve(d.Name.Name)
		if node.Kind == "var" {
			if d.Value == nil {
				continue
			}
			if err := c.compileNamedExpr(d.Value, d.Name.Name); err != nil {
				return err
			}
			c.emitStore(res)
			continue
		}
		if d.Value == nil {
			c.emit(op.Undefined)
		} else if err := c.compileNamedExpr(d.Value, d.Name.Name); err != nil {
			return err
		}
		c.emitInit(res)
	}
	return nil
}

func (c *Compiler) compileIf(node *ast.If) error {
	if err := c.compileExpr(node.Cond); err != nil {
		return err
	}
	jumpIfFalse := c.emit(op.PopJumpForwardIfFalse, Placeholder)
	if err := c.compileScopedStmt(node.Consequence); err != nil {
		return err
	}
	if node.Alternative == nil {
		return c.patchJump(jumpIfFalse)
	}
	jumpToEnd := c.emit(op.JumpForward, Placeholder)
	if err := c.patchJump(jumpIfFalse); err != nil {
		return err
	}
	if err := c.compileScopedStmt(node.Alternative); err != nil {
		return err
	}
	return c.patchJump(jumpToEnd)
}

// compileScopedStmt compiles the body of a compound statement. A bare
// declaration there gets a scope of its own.
func (c *Compiler) compileScopedStmt(stmt ast.Stmt) error {
	switch stmt.(type) {
	case *ast.VarDecl, *ast.FuncDecl:
		c.enterBlock()
		defer c.leaveBlock()
		return c.compileStmts([]ast.Stmt{stmt})
	}
	return c.compileStmt(stmt)
}

func (c *Compiler) compileWhile(node *ast.While) error {
	code := c.current
	start := c.currentPosition()
	if err := c.compileExpr(node.Cond); err != nil {
		return err
	}
	exit := c.emit(op.PopJumpForwardIfFalse, Placeholder)
	ctl := code.pushControl(controlLoop)
	if err := c.compileScopedStmt(node.Body); err != nil {
		return err
	}
	code.popControl()
	if err := c.patchContinues(ctl, start); err != nil {
		return err
	}
	if err := c.emitJumpBackward(start); err != nil {
		return err
	}
	if err := c.patchJump(exit); err != nil {
		return err
	}
	return c.patchBreaks(ctl)
}

func (c *Compiler) compileDoWhile(node *ast.DoWhile) error {
	code := c.current
	start := c.currentPosition()
	ctl := code.pushControl(controlLoop)
	if err := c.compileScopedStmt(node.Body); err != nil {
		return err
	}
	code.popControl()
	if err := c.patchContinues(ctl, -1); err != nil {
		return err
	}
	if err := c.compileExpr(node.Cond); err != nil {
		return err
	}
	exit := c.emit(op.PopJumpForwardIfFalse, Placeholder)
	if err := c.emitJumpBackward(start); err != nil {
		return err
	}
	if err := c.patchJump(exit); err != nil {
		return err
	}
	return c.patchBreaks(ctl)
}

func (c *Compiler) compileFor(node *ast.For) error {
	code := c.current
	c.enterBlock()
	defer c.leaveBlock()

	// Bindings declared in the loop head get a fresh copy per iteration so
	// closures created in the body see the value of their own iteration.
	var perIteration []uint16
	if decl, ok := node.Init.(*ast.VarDecl); ok {
		if _, err := c.declareScope([]ast.Stmt{decl}, false); err != nil {
			return err
		}
		if err := c.instantiateBlock(nil); err != nil {
			return err
		}
		if decl.Kind == "let" {
			for _, d := range decl.Decls {
				sym, _ := c.current.symbols.Get(d.Name.Name)
				perIteration = append(perIteration, sym.Index())
			}
		}
		if err := c.compileVarDecl(decl); err != nil {
			return err
		}
	} else if stmt, ok := node.Init.(*ast.ExprStmt); ok {
		if err := c.compileExpr(stmt.X); err != nil {
			return err
		}
		c.emit(op.PopTop)
	}

	start := c.currentPosition()
	exit := -1
	if node.Cond != nil {
		if err := c.compileExpr(node.Cond); err != nil {
			return err
		}
		exit = c.emit(op.PopJumpForwardIfFalse, Placeholder)
	}
	ctl := code.pushControl(controlLoop)
	if err := c.compileScopedStmt(node.Body); err != nil {
		return err
	}
	code.popControl()
	if err := c.patchContinues(ctl, -1); err != nil {
		return err
	}
	for _, idx := range perIteration {
		c.emit(op.RenewFast, idx)
	}
	if node.Post != nil {
		if err := c.compileExpr(node.Post); err != nil {
			return err
		}
		c.emit(op.PopTop)
	}
	if err := c.emitJumpBackward(start); err != nil {
		return err
	}
	if exit >= 0 {
		if err := c.patchJump(exit); err != nil {
			return err
		}
	}
	return c.patchBreaks(ctl)
}

func (c *Compiler) compileForEach(node *ast.ForEach) error {
	code := c.current
	c.enterBlock()
	defer c.leaveBlock()

	if node.Kind == "let" || node.Kind == "const" {
		kind := KindLet
		if node.Kind == "const" {
			kind = KindConst
		}
		if _, err := c.declare(node.Name.Name, kind, true); err != nil {
			return c.duplicateError(node.Name.Name, node.Name.Pos())
		}
		// The iterable expression sees the loop binding in its dead zone.
		if err := c.instantiateBlock(nil); err != nil {
			return err
		}
	}
	if err := c.compileExpr(node.Iter); err != nil {
		return err
	}
	iterKind := op.IterKeys
	if node.Of {
		iterKind = op.IterValues
	}
	c.emit(op.GetIter, uint16(iterKind))

	start := c.currentPosition()
	forIter := c.emit(op.ForIter, Placeholder)
	ctl := code.pushControl(controlLoop)

	var res *Resolution
	if node.Kind == "let" || node.Kind == "const" {
		res = c.resolve(node.Name.Name)
		c.emit(op.RenewFast, res.symbol.Index())
		c.emitInit(res)
	} else {
		if node.Kind == "" {
			var err error
			if res, err = c.resolveAssignable(node.Name); err != nil {
				return err
			}
		} else {
			res = c.resolve(node.Name.Name)
		}
		c.emitStore(res)
	}
	if err := c.compileScopedStmt(node.Body); err != nil {
		return err
	}
	code.popControl()
	if err := c.patchContinues(ctl, start); err != nil {
		return err
	}
	if err := c.emitJumpBackward(start); err != nil {
		return err
	}
	// Breaks land here and discard the iterator; exhaustion skips this.
	if len(ctl.breakPos) > 0 {
		if err := c.patchBreaks(ctl); err != nil {
			return err
		}
		c.emit(op.PopTop)
	}
	return c.patchJump(forIter)
}

func (c *Compiler) patchBreaks(ctl *control) error {
	for _, pos := range ctl.breakPos {
		if err := c.patchJump(pos); err != nil {
			return err
		}
	}
	ctl.breakPos = nil
	return nil
}

// patchContinues resolves continue jumps. A negative target means the
// continue target is the current position.
func (c *Compiler) patchContinues(ctl *control, target int) error {
	for _, pos := range ctl.continuePos {
		if target < 0 {
			if err := c.patchJump(pos); err != nil {
				return err
			}
			continue
		}
		c.current.instructions[pos] = op.JumpBackward
		c.changeOperand(pos, uint16(pos-target))
	}
	ctl.continuePos = nil
	return nil
}

func (c *Compiler) compileBreak(node *ast.Break) error {
	code := c.current
	for i := len(code.controls) - 1; i >= 0; i-- {
		ctl := code.controls[i]
		switch ctl.kind {
		case controlTry:
			if err := c.leaveTry(i); err != nil {
				return err
			}
		case controlLoop, controlSwitch:
			pos := c.emit(op.JumpForward, Placeholder)
			ctl.breakPos = append(ctl.breakPos, pos)
			return nil
		}
	}
	return c.formatError(errors.E2003, "Illegal break statement", node.Pos())
}

func (c *Compiler) compileContinue(node *ast.Continue) error {
	code := c.current
	for i := len(code.controls) - 1; i >= 0; i-- {
		ctl := code.controls[i]
		switch ctl.kind {
		case controlTry:
			if err := c.leaveTry(i); err != nil {
				return err
			}
		case controlLoop:
			pos := c.emit(op.JumpForward, Placeholder)
			ctl.continuePos = append(ctl.continuePos, pos)
			return nil
		}
	}
	return c.formatError(errors.E2004, "Illegal continue statement: no surrounding iteration statement", node.Pos())
}

func (c *Compiler) compileReturn(node *ast.Return) error {
	code := c.current
	if !code.isFunction {
		return c.formatError(errors.E2005, "Illegal return statement", node.Pos())
	}
	if node.Value == nil {
		c.emit(op.Undefined)
	} else if err := c.compileExpr(node.Value); err != nil {
		return err
	}
	// Iterators left on the stack are dropped with the frame.
	for i := len(code.controls) - 1; i >= 0; i-- {
		if code.controls[i].kind == controlTry {
			if err := c.leaveTry(i); err != nil {
				return err
			}
		}
	}
	c.emit(op.ReturnValue)
	return nil
}

// leaveTry emits the code that runs when a jump leaves the try statement
// at control index i: its handler is removed and its finally block runs
// with only the enclosing statements in scope.
func (c *Compiler) leaveTry(i int) error {
	code := c.current
	ctl := code.controls[i]
	if ctl.handlerActive {
		c.emit(op.PopExcept)
	}
	if ctl.finally == nil {
		return nil
	}
	saved := code.controls
	code.controls = append([]*control(nil), saved[:i]...)
	err := c.compileBlock(ctl.finally)
	code.controls = saved
	return err
}

func (c *Compiler) compileTry(node *ast.Try) error {
	code := c.current
	var endJumps []int

	ctl := code.pushControl(controlTry)
	ctl.finally = node.Finally
	ctl.handlerActive = true
	pushExcept := c.emit(op.PushExcept, Placeholder)
	if err := c.compileBlock(node.Body); err != nil {
		return err
	}
	c.emit(op.PopExcept)
	code.popControl()
	if node.Finally != nil {
		if err := c.compileBlock(node.Finally); err != nil {
			return err
		}
	}
	endJumps = append(endJumps, c.emit(op.JumpForward, Placeholder))

	// The handler starts with the thrown value on the stack.
	if err := c.patchJump(pushExcept); err != nil {
		return err
	}
	if node.Catch != nil {
		inner := -1
		if err := c.compileCatch(node, func() {
			if node.Finally == nil {
				return
			}
			ctl := code.pushControl(controlTry)
			ctl.finally = node.Finally
			ctl.handlerActive = true
			inner = c.emit(op.PushExcept, Placeholder)
		}); err != nil {
			return err
		}
		if node.Finally == nil {
			return c.patchJumps(endJumps)
		}
		c.emit(op.PopExcept)
		code.popControl()
		if err := c.compileBlock(node.Finally); err != nil {
			return err
		}
		endJumps = append(endJumps, c.emit(op.JumpForward, Placeholder))
		if err := c.patchJump(inner); err != nil {
			return err
		}
	}
	// Run the finally block, then rethrow the pending exception.
	tmp, err := c.hidden("*exception*", node.Pos())
	if err != nil {
		return err
	}
	c.emit(op.StoreFast, tmp)
	if err := c.compileBlock(node.Finally); err != nil {
		return err
	}
	c.emit(op.LoadFast, tmp)
	c.emit(op.Throw)
	return c.patchJumps(endJumps)
}

// compileCatch binds the thrown value and compiles the catch body.
// protect runs once the value is bound, before the body.
func (c *Compiler) compileCatch(node *ast.Try, protect func()) error {
	c.enterBlock()
	defer c.leaveBlock()
	if node.CatchParam == nil {
		c.emit(op.PopTop)
	} else {
		sym, err := c.declare(node.CatchParam.Name, KindLet, true)
		if err != nil {
			return c.duplicateError(node.CatchParam.Name, node.CatchParam.Pos())
		}
		sym.bound = true
		if c.inLoop() {
			c.emit(op.RenewFast, sym.Index())
		}
		c.emit(op.InitFast, sym.Index())
	}
	protect()
	// The catch body shares the parameter's scope, so redeclaring the
	// parameter with let or const is an error.
	return c.compileStmts(node.Catch.Stmts)
}

func (c *Compiler) patchJumps(positions []int) error {
	for _, pos := range positions {
		if err := c.patchJump(pos); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileSwitch(node *ast.Switch) error {
	code := c.current
	if err := c.compileExpr(node.Value); err != nil {
		return err
	}
	tmp, err := c.hidden("*switch*", node.Pos())
	if err != nil {
		return err
	}
	c.emit(op.StoreFast, tmp)

	c.enterBlock()
	defer c.leaveBlock()
	var all []ast.Stmt
	for _, cs := range node.Cases {
		all = append(all, cs.Body...)
	}
	funcs, err := c.declareScope(all, false)
	if err != nil {
		return err
	}
	if err := c.instantiateBlock(funcs); err != nil {
		return err
	}

	caseJumps := make([]int, len(node.Cases))
	defaultIndex := -1
	for i, cs := range node.Cases {
		if cs.Value == nil {
			defaultIndex = i
			continue
		}
		c.emit(op.LoadFast, tmp)
		if err := c.compileExpr(cs.Value); err != nil {
			return err
		}
		c.emit(op.CompareOp, uint16(op.StrictEqual))
		caseJumps[i] = c.emit(op.PopJumpForwardIfTrue, Placeholder)
	}
	noMatch := c.emit(op.JumpForward, Placeholder)

	ctl := code.pushControl(controlSwitch)
	for i, cs := range node.Cases {
		if cs.Value == nil {
			if err := c.patchJump(noMatch); err != nil {
				return err
			}
		} else if err := c.patchJump(caseJumps[i]); err != nil {
			return err
		}
		for _, stmt := range cs.Body {
			if err := c.compileStmt(stmt); err != nil {
				return err
			}
		}
	}
	code.popControl()
	if defaultIndex < 0 {
		if err := c.patchJump(noMatch); err != nil {
			return err
		}
	}
	return c.patchBreaks(ctl)
}
