package compiler

import (
	"fmt"

	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/errors"
	"github.com/deepnoodle-ai/jsrt/internal/token"
	"github.com/deepnoodle-ai/jsrt/op"
)

func (c *Compiler) compileModule(program *ast.Program) error {
	c.startMain(Module)

	// Imported bindings are declared first so declarations can't shadow them.
	for _, stmt := range program.Stmts {
		if imp, ok := stmt.(*ast.Import); ok {
			if err := c.declareImport(imp); err != nil {
				return err
			}
		}
	}
	funcs, err := c.declareScope(program.Stmts, true)
	if err != nil {
		return err
	}
	for _, stmt := range program.Stmts {
		def, ok := stmt.(*ast.ExportDefault)
		if !ok || (def.Func != nil && def.Func.Func.Name != nil) {
			continue
		}
		// Anonymous default exports live in a slot scripts can't name.
		if _, err := c.declare(defaultSlot, KindConst, def.Func == nil); err != nil {
			return c.formatError(errors.E2012, "Duplicate export of 'default'", def.Pos())
		}
	}
	for _, stmt := range program.Stmts {
		if err := c.declareExports(stmt); err != nil {
			return err
		}
	}

	table := c.main.symbols
	for _, fn := range funcs {
		sym, _ := table.Get(fn.Func.Name.Name)
		if err := c.hoistFunction(fn.Func, fn.Func.Name.Name, sym.Index()); err != nil {
			return err
		}
	}
	for _, stmt := range program.Stmts {
		if def, ok := stmt.(*ast.ExportDefault); ok && def.Func != nil && def.Func.Func.Name == nil {
			sym, _ := table.Get(defaultSlot)
			if err := c.hoistFunction(def.Func.Func, bytecode.DefaultExport, sym.Index()); err != nil {
				return err
			}
		}
	}

	for _, stmt := range program.Stmts {
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	c.emit(op.Undefined)
	c.emit(op.ReturnValue)
	return nil
}

func (c *Compiler) declareImport(node *ast.Import) error {
	imp := bytecode.Import{Specifier: node.Source.Value}
	for _, spec := range node.Specs {
		name := spec.Local.Name
		if c.main.symbols.IsDefined(name) {
			return c.duplicateError(name, spec.Local.Pos())
		}
		sym, err := c.declare(name, KindImport, false)
		if err != nil {
			return c.formatError(errors.E2007, err.Error(), spec.Local.Pos())
		}
		pos := spec.Local.Pos()
		imp.Bindings = append(imp.Bindings, bytecode.ImportBinding{
			Imported: spec.Imported,
			Slot:     int(sym.Index()),
			Line:     pos.LineNumber(),
			Column:   pos.ColumnNumber(),
		})
		c.imported[sym.Index()] = bytecode.Export{
			Slot:      int(sym.Index()),
			Specifier: imp.Specifier,
			Imported:  spec.Imported,
		}
	}
	c.imports = append(c.imports, imp)
	return nil
}

// declareExports records the export table entries of one statement.
func (c *Compiler) declareExports(stmt ast.Stmt) error {
	switch stmt := stmt.(type) {
	case *ast.ExportDecl:
		switch decl := stmt.Decl.(type) {
		case *ast.VarDecl:
			for _, d := range decl.Decls {
				if err := c.exportLocal(d.Name.Name, d.Name.Name, d.Name.Pos()); err != nil {
					return err
				}
			}
		case *ast.FuncDecl:
			name := decl.Func.Name.Name
			return c.exportLocal(name, name, decl.Pos())
		}
	case *ast.ExportDefault:
		local := defaultSlot
		if stmt.Func != nil && stmt.Func.Func.Name != nil {
			local = stmt.Func.Func.Name.Name
		}
		return c.exportLocal(local, bytecode.DefaultExport, stmt.Pos())
	case *ast.ExportNamed:
		for _, spec := range stmt.Specs {
			if stmt.Source != nil {
				err := c.addExport(bytecode.Export{
					Exported:  spec.Exported,
					Specifier: stmt.Source.Value,
					Imported:  spec.Local.Name,
				}, spec.Local.Pos())
				if err != nil {
					return err
				}
				continue
			}
			if err := c.exportLocal(spec.Local.Name, spec.Exported, spec.Local.Pos()); err != nil {
				return err
			}
		}
	}
	return nil
}

// exportLocal exports a top-level binding. Exporting an imported binding
// re-exports it from its source module.
func (c *Compiler) exportLocal(local, exported string, pos token.Position) error {
	sym, ok := c.main.symbols.Get(local)
	if !ok {
		return c.formatError(errors.E1003, fmt.Sprintf("Export '%s' is not defined in module", local), pos)
	}
	if sym.Kind() == KindImport {
		exp := c.imported[sym.Index()]
		exp.Exported = exported
		return c.addExport(exp, pos)
	}
	return c.addExport(bytecode.Export{Exported: exported, Slot: int(sym.Index())}, pos)
}

func (c *Compiler) addExport(exp bytecode.Export, pos token.Position) error {
	if c.exported[exp.Exported] {
		return c.formatError(errors.E2012, fmt.Sprintf("Duplicate export of '%s'", exp.Exported), pos)
	}
	c.exported[exp.Exported] = true
	c.exports = append(c.exports, exp)
	return nil
}

// compileModuleStmt compiles the runtime part of an import or export
// statement.
func (c *Compiler) compileModuleStmt(stmt ast.Stmt) error {
	if !c.module || c.current != c.main {
		return c.formatError(errors.E1011, "Cannot use import or export statements outside a module", stmt.Pos())
	}
	switch stmt := stmt.(type) {
	case *ast.ExportDecl:
		return c.compileStmt(stmt.Decl)
	case *ast.ExportDefault:
		if stmt.Func != nil {
			return nil
		}
		if err := c.compileNamedExpr(stmt.Value, bytecode.DefaultExport); err != nil {
			return err
		}
		sym, _ := c.main.symbols.Get(defaultSlot)
		c.emit(op.InitModule, sym.Index())
	}
	return nil
}
