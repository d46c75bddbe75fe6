// Package compiler is used to compile a parsed program into bytecode.
//
// The compiler lowers the AST produced by the parser into a bytecode.Unit.
// Scripts bind top-level declarations as realm globals, while modules bind
// them to module environment slots and record import, export and hoisted
// function tables for the linker.
package compiler

import (
	"fmt"
	"math"
	"strings"

	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/internal/token"
	"github.com/deepnoodle-ai/jsrt/op"
)

const (
	// Placeholder is a temporary operand value used while jump targets are
	// not yet known.
	Placeholder = math.MaxUint16

	// MainName is the name of the top-level code block.
	MainName = "main"

	completionName = "*completion*"
	defaultSlot    = "*default*"
)

// Compiler is used to compile a parsed program into bytecode.
type Compiler struct {
	// The entrypoint code we are compiling. This remains fixed throughout
	// the compilation process.
	main *Code

	// The current code we are compiling into. This changes as we enter
	// and exit functions.
	current *Code

	filename string
	source   string
	lines    []string
	module   bool

	// Holds any error that occurs during compilation that is difficult to
	// propagate through the call stack.
	failure error

	// Current AST node being compiled (used for source map tracking)
	currentNode ast.Node

	// Module tables
	slots    []bytecode.Slot
	imports  []bytecode.Import
	exports  []bytecode.Export
	exported map[string]bool
	hoisted  []bytecode.Hoisted
	imported map[uint16]bytecode.Export
}

// Config holds compiler configuration options.
type Config struct {
	// Filename is the source filename, used for error messages and as the
	// name of the compiled unit.
	Filename string

	// Source is the original source code, used for better error messages
	// and retained on the main code block.
	Source string
}

// Compile compiles the given program and returns an immutable unit. The
// unit is a module when the program was parsed with the module goal.
// Pass nil for cfg to use default settings.
func Compile(program *ast.Program, cfg *Config) (*bytecode.Unit, error) {
	return New(cfg).CompileProgram(program)
}

// New creates and returns a new Compiler. Pass nil for cfg to use defaults.
func New(cfg *Config) *Compiler {
	c := &Compiler{
		exported: map[string]bool{},
		imported: map[uint16]bytecode.Export{},
	}
	if cfg != nil {
		c.filename = cfg.Filename
		c.source = cfg.Source
	}
	if c.source != "" {
		c.lines = strings.Split(c.source, "\n")
	}
	return c
}

// CompileProgram compiles a parsed program into a unit.
func (c *Compiler) CompileProgram(program *ast.Program) (*bytecode.Unit, error) {
	if program == nil {
		return nil, fmt.Errorf("compile error: nil program")
	}
	c.module = program.IsModule
	// Prologue instructions report the position of the first statement.
	c.currentNode = program
	var err error
	if c.module {
		err = c.compileModule(program)
	} else {
		err = c.compileScript(program)
	}
	if err != nil {
		return nil, err
	}
	// Check for failures that happened that aren't propagated up the call
	// stack.
	if c.failure != nil {
		return nil, c.failure
	}
	kind := bytecode.Script
	if c.module {
		kind = bytecode.Module
	}
	return bytecode.NewUnit(bytecode.UnitParams{
		Kind:    kind,
		Name:    c.filename,
		Main:    c.main.ToBytecode(),
		Slots:   c.slots,
		Imports: c.imports,
		Exports: c.exports,
		Hoisted: c.hoisted,
	}), nil
}

func (c *Compiler) startMain(scope Scope) {
	c.main = newCode(MainName, MainName, c.filename, NewSymbolTable(scope))
	c.main.source = c.source
	c.current = c.main
}

func (c *Compiler) compileScript(program *ast.Program) error {
	c.startMain(Global)
	idx, err := c.main.symbols.AllocHidden(completionName)
	if err != nil {
		return err
	}
	c.main.completion = int(idx)
	funcs, err := c.declareScope(program.Stmts, true)
	if err != nil {
		return err
	}
	// Every top-level name is declared on the realm before the body runs,
	// so the whole script fails before any side effect on a conflict.
	for _, name := range scriptDeclarationOrder(program.Stmts) {
		sym, _ := c.main.symbols.Get(name)
		kind := op.DeclareVar
		switch sym.Kind() {
		case KindLet:
			kind = op.DeclareLet
		case KindConst:
			kind = op.DeclareConst
		}
		c.emit(op.DeclareGlobal, c.current.addName(name), uint16(kind))
	}
	if err := c.instantiateFunctions(funcs); err != nil {
		return err
	}
	for _, stmt := range program.Stmts {
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	c.emit(op.LoadFast, idx)
	c.emit(op.ReturnValue)
	return nil
}

// scriptDeclarationOrder returns the names declared at the top level of a
// script in source order, without duplicates.
func scriptDeclarationOrder(stmts []ast.Stmt) []string {
	var names []string
	seen := map[string]bool{}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, stmt := range stmts {
		switch stmt := stmt.(type) {
		case *ast.VarDecl:
			if stmt.Kind != "var" {
				for _, d := range stmt.Decls {
					add(d.Name.Name)
				}
			}
		case *ast.FuncDecl:
			add(stmt.Func.Name.Name)
		}
	}
	var vars []*ast.Ident
	collectVarNames(stmts, &vars)
	for _, ident := range vars {
		add(ident.Name)
	}
	return names
}

// declareScope declares the names bound directly by stmts in the current
// symbol table and returns the function declarations to instantiate. When
// top is true, var declarations found anywhere in stmts (outside nested
// functions) are declared too.
func (c *Compiler) declareScope(stmts []ast.Stmt, top bool) ([]*ast.FuncDecl, error) {
	table := c.current.symbols
	if top {
		var vars []*ast.Ident
		collectVarNames(stmts, &vars)
		for _, ident := range vars {
			if sym, ok := table.Get(ident.Name); ok {
				if sym.IsLexical() || sym.Kind() == KindImport {
					return nil, c.duplicateError(ident.Name, ident.Pos())
				}
				continue
			}
			if _, err := c.declare(ident.Name, KindVar, false); err != nil {
				return nil, c.formatError(errors.E2007, err.Error(), ident.Pos())
			}
		}
	}
	var funcs []*ast.FuncDecl
	var declareFunc func(fn *ast.FuncDecl) error
	declareFunc = func(fn *ast.FuncDecl) error {
		name := fn.Func.Name.Name
		if sym, ok := table.Get(name); ok {
			if sym.IsLexical() || sym.Kind() == KindImport {
				return c.duplicateError(name, fn.Pos())
			}
		} else if _, err := c.declare(name, KindFunction, false); err != nil {
			return c.formatError(errors.E2007, err.Error(), fn.Pos())
		}
		funcs = append(funcs, fn)
		return nil
	}
	var declareStmt func(stmt ast.Stmt) error
	declareStmt = func(stmt ast.Stmt) error {
		switch stmt := stmt.(type) {
		case *ast.VarDecl:
			if stmt.Kind == "var" {
				return nil
			}
			kind := KindLet
			if stmt.Kind == "const" {
				kind = KindConst
			}
			for _, d := range stmt.Decls {
				if table.IsDefined(d.Name.Name) {
					return c.duplicateError(d.Name.Name, d.Name.Pos())
				}
				if _, err := c.declare(d.Name.Name, kind, true); err != nil {
					return c.formatError(errors.E2007, err.Error(), d.Name.Pos())
				}
			}
		case *ast.FuncDecl:
			return declareFunc(stmt)
		case *ast.ExportDecl:
			return declareStmt(stmt.Decl)
		case *ast.ExportDefault:
			if stmt.Func != nil && stmt.Func.Func.Name != nil {
				return declareFunc(stmt.Func)
			}
		}
		return nil
	}
	for _, stmt := range stmts {
		if err := declareStmt(stmt); err != nil {
			return nil, err
		}
	}
	return funcs, nil
}

// declare adds a binding to the current table, allocating a module slot
// when the table is the module top level.
func (c *Compiler) declare(name string, kind VarKind, lexical bool) (*Symbol, error) {
	table := c.current.symbols
	var index uint16
	if table.IsRoot() && c.module && c.current == c.main {
		index = uint16(len(c.slots))
		c.slots = append(c.slots, bytecode.Slot{
			Name:    name,
			Const:   kind == KindConst || kind == KindImport,
			Lexical: lexical,
		})
	}
	return table.Insert(name, kind, index)
}

// instantiateBlock emits the block entry code: lexical bindings enter their
// dead zone and function declarations are created.
func (c *Compiler) instantiateBlock(funcs []*ast.FuncDecl) error {
	table := c.current.symbols
	if table.IsRoot() && c.current == c.main {
		return c.instantiateFunctions(funcs)
	}
	renew := c.inLoop()
	for _, name := range sortedLexicals(table) {
		sym, _ := table.Get(name)
		if sym.bound {
			continue
		}
		sym.bound = true
		if renew {
			c.emit(op.RenewFast, sym.Index())
		}
		c.emit(op.Uninitialized)
		c.emit(op.InitFast, sym.Index())
	}
	return c.instantiateFunctions(funcs)
}

func (c *Compiler) instantiateFunctions(funcs []*ast.FuncDecl) error {
	for _, fn := range funcs {
		res, ok := c.current.symbols.Resolve(fn.Func.Name.Name)
		if !ok {
			return c.formatError(errors.E1003, fmt.Sprintf("%s is not declared", fn.Func.Name.Name), fn.Pos())
		}
		if res.scope == Module {
			// Module functions are created when the module is linked.
			continue
		}
		prev := c.currentNode
		c.currentNode = fn
		if err := c.compileFunc(fn.Func, fn.Func.Name.Name, false); err != nil {
			return err
		}
		if res.scope == Local && c.inLoop() {
			c.emit(op.RenewFast, res.symbol.Index())
		}
		c.emitInit(res)
		c.currentNode = prev
	}
	return nil
}

// sortedLexicals returns the let and const names of a table ordered by
// local index.
func sortedLexicals(table *SymbolTable) []string {
	names := make([]string, 0, len(table.symbols))
	for name, sym := range table.symbols {
		if sym.IsLexical() {
			names = append(names, name)
		}
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && table.symbols[names[j]].index < table.symbols[names[j-1]].index; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

// collectVarNames appends the names bound by var declarations in stmts,
// including nested blocks and loops but not nested functions.
func collectVarNames(stmts []ast.Stmt, out *[]*ast.Ident) {
	for _, stmt := range stmts {
		collectVarNamesStmt(stmt, out)
	}
}

func collectVarNamesStmt(stmt ast.Stmt, out *[]*ast.Ident) {
	switch stmt := stmt.(type) {
	case *ast.VarDecl:
		if stmt.Kind == "var" {
			for _, d := range stmt.Decls {
				*out = append(*out, d.Name)
			}
		}
	case *ast.Block:
		collectVarNames(stmt.Stmts, out)
	case *ast.If:
		collectVarNamesStmt(stmt.Consequence, out)
		if stmt.Alternative != nil {
			collectVarNamesStmt(stmt.Alternative, out)
		}
	case *ast.While:
		collectVarNamesStmt(stmt.Body, out)
	case *ast.DoWhile:
		collectVarNamesStmt(stmt.Body, out)
	case *ast.For:
		if stmt.Init != nil {
			collectVarNamesStmt(stmt.Init, out)
		}
		collectVarNamesStmt(stmt.Body, out)
	case *ast.ForEach:
		if stmt.Kind == "var" {
			*out = append(*out, stmt.Name)
		}
		collectVarNamesStmt(stmt.Body, out)
	case *ast.Try:
		collectVarNames(stmt.Body.Stmts, out)
		if stmt.Catch != nil {
			collectVarNames(stmt.Catch.Stmts, out)
		}
		if stmt.Finally != nil {
			collectVarNames(stmt.Finally.Stmts, out)
		}
	case *ast.Switch:
		for _, cs := range stmt.Cases {
			collectVarNames(cs.Body, out)
		}
	case *ast.ExportDecl:
		collectVarNamesStmt(stmt.Decl, out)
	}
}

// enterBlock pushes a new block scope.
func (c *Compiler) enterBlock() {
	c.current.symbols = c.current.symbols.NewBlock()
}

// leaveBlock pops the current block scope.
func (c *Compiler) leaveBlock() {
	c.current.symbols = c.current.symbols.Parent()
}

// inLoop reports whether code emitted now may run more than once per call
// of the current function.
func (c *Compiler) inLoop() bool {
	for _, ctl := range c.current.controls {
		if ctl.kind == controlLoop {
			return true
		}
	}
	return false
}

// hidden reserves an anonymous local in the current function.
func (c *Compiler) hidden(name string, pos token.Position) (uint16, error) {
	idx, err := c.current.symbols.AllocHidden(name)
	if err != nil {
		return 0, c.formatError(errors.E2007, err.Error(), pos)
	}
	return idx, nil
}

func (c *Compiler) currentPosition() int {
	return len(c.current.instructions)
}

func (c *Compiler) constant(obj any) uint16 {
	code := c.current
	switch v := obj.(type) {
	case string:
		if idx, ok := code.strings[v]; ok {
			return idx
		}
	case float64:
		for i, k := range code.constants {
			if f, ok := k.(float64); ok && math.Float64bits(f) == math.Float64bits(v) {
				return uint16(i)
			}
		}
	}
	if len(code.constants) >= math.MaxUint16 {
		c.failure = c.formatError(errors.E2008, "number of constants exceeded limits", c.nodePos())
		return 0
	}
	code.constants = append(code.constants, obj)
	idx := uint16(len(code.constants) - 1)
	if s, ok := obj.(string); ok {
		code.strings[s] = idx
	}
	return idx
}

func (c *Compiler) emit(opcode op.Code, operands ...uint16) int {
	inst := makeInstruction(opcode, operands...)
	code := c.current
	pos := len(code.instructions)
	code.instructions = append(code.instructions, inst...)

	// Track maximum call arguments for VM optimization
	switch opcode {
	case op.Call, op.CallMethod, op.New:
		if operands[0] > code.maxCallArgs {
			code.maxCallArgs = operands[0]
		}
	}

	// Record source location for each instruction slot
	loc := c.currentLocation()
	for range inst {
		code.locations = append(code.locations, loc)
	}
	return pos
}

// emitLoad emits the appropriate load instruction based on the variable's scope.
func (c *Compiler) emitLoad(res *Resolution) {
	switch res.scope {
	case Global:
		c.emit(op.LoadGlobal, c.current.addName(res.symbol.Name()))
	case Local:
		c.emit(op.LoadFast, res.symbol.Index())
	case Free:
		c.emit(op.LoadFree, uint16(res.freeIndex))
	case Module:
		c.emit(op.LoadModule, res.symbol.Index())
	}
}

// emitStore emits the appropriate store instruction based on the variable's scope.
func (c *Compiler) emitStore(res *Resolution) {
	switch res.scope {
	case Global:
		c.emit(op.StoreGlobal, c.current.addName(res.symbol.Name()))
	case Local:
		c.emit(op.StoreFast, res.symbol.Index())
	case Free:
		c.emit(op.StoreFree, uint16(res.freeIndex))
	case Module:
		c.emit(op.StoreModule, res.symbol.Index())
	}
}

// emitInit emits the instruction that ends a binding's dead zone.
func (c *Compiler) emitInit(res *Resolution) {
	switch res.scope {
	case Global:
		c.emit(op.InitGlobal, c.current.addName(res.symbol.Name()))
	case Local:
		c.emit(op.InitFast, res.symbol.Index())
	case Free:
		c.emit(op.StoreFree, uint16(res.freeIndex))
	case Module:
		c.emit(op.InitModule, res.symbol.Index())
	}
}

// resolve looks up a name. Undeclared names resolve to globals.
func (c *Compiler) resolve(name string) *Resolution {
	if res, ok := c.current.symbols.Resolve(name); ok {
		return res
	}
	return &Resolution{
		symbol:    &Symbol{name: name, kind: KindVar, scope: Global},
		scope:     Global,
		freeIndex: -1,
	}
}

// resolveAssignable resolves a name that is about to be assigned.
func (c *Compiler) resolveAssignable(ident *ast.Ident) (*Resolution, error) {
	res := c.resolve(ident.Name)
	if res.symbol.IsConst() {
		return nil, c.formatError(errors.E2011, "Assignment to constant variable.", ident.Pos())
	}
	return res, nil
}

func (c *Compiler) nodePos() token.Position {
	if c.currentNode == nil {
		return token.NoPos
	}
	return c.currentNode.Pos()
}

func (c *Compiler) currentLocation() bytecode.SourceLocation {
	if c.currentNode == nil {
		return bytecode.SourceLocation{}
	}
	pos := c.currentNode.Pos()
	if !pos.IsValid() {
		return bytecode.SourceLocation{}
	}
	return bytecode.SourceLocation{Line: pos.LineNumber(), Column: pos.ColumnNumber()}
}

func (c *Compiler) calculateDelta(pos int) (uint16, error) {
	instrCount := len(c.current.instructions)
	delta := instrCount - pos
	if delta > math.MaxUint16 {
		return 0, c.formatError(errors.E1003, "jump offset exceeds the supported code size", c.nodePos())
	}
	return uint16(delta), nil
}

func (c *Compiler) changeOperand(instructionIndex int, operand uint16) {
	c.current.instructions[instructionIndex+1] = op.Code(operand)
}

// patchJump points the forward jump at pos to the current position.
func (c *Compiler) patchJump(pos int) error {
	delta, err := c.calculateDelta(pos)
	if err != nil {
		return err
	}
	c.changeOperand(pos, delta)
	return nil
}

// emitJumpBackward emits a jump to an earlier position.
func (c *Compiler) emitJumpBackward(target int) error {
	delta := c.currentPosition() - target
	if delta > math.MaxUint16 {
		return c.formatError(errors.E1003, "jump offset exceeds the supported code size", c.nodePos())
	}
	c.emit(op.JumpBackward, uint16(delta))
	return nil
}

func makeInstruction(opcode op.Code, operands ...uint16) []op.Code {
	opInfo := op.GetInfo(opcode)
	if len(operands) != opInfo.OperandCount {
		panic("compile error: wrong operand count")
	}
	instruction := make([]op.Code, 1+opInfo.OperandCount)
	instruction[0] = opcode
	offset := 1
	for _, o := range operands {
		instruction[offset] = op.Code(o)
		offset++
	}
	return instruction
}

func (c *Compiler) formatError(code errors.ErrorCode, msg string, pos token.Position) error {
	filename := c.filename
	if filename == "" {
		filename = "unknown"
	}
	return &errors.CompileError{
		Code:       code,
		Message:    msg,
		Filename:   filename,
		Line:       pos.LineNumber(),
		Column:     pos.ColumnNumber(),
		SourceLine: c.sourceLine(pos.Line),
	}
}

func (c *Compiler) duplicateError(name string, pos token.Position) error {
	return c.formatError(errors.E2006, fmt.Sprintf("Identifier '%s' has already been declared", name), pos)
}

// sourceLine retrieves a specific line from the source code.
// lineNum is 0-indexed.
func (c *Compiler) sourceLine(lineNum int) string {
	if lineNum < 0 || lineNum >= len(c.lines) {
		return ""
	}
	return c.lines[lineNum]
}
