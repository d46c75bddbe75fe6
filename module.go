package jsrt

import (
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/module"
	"github.com/deepnoodle-ai/jsrt/parser"
)

// UnitState is the lifecycle state of a compiled module.
type UnitState = module.State

const (
	Uncompiled = module.Uncompiled
	Compiled   = module.Compiled
	Resolved   = module.Resolved
	Executed   = module.Executed
	Failed     = module.Failed
)

// DetectModule reports whether source uses ES module syntax: an import
// declaration or an export at the top level.
func DetectModule(source string) bool {
	return parser.DetectModule(source)
}

// ModuleHandle refers to a module compiled in a Context.
type ModuleHandle struct {
	ctx *Context
	rec *module.Record
}

// Name returns the name the module was registered under, or "" for a nil
// handle.
func (h *ModuleHandle) Name() string {
	if h == nil {
		return ""
	}
	return h.rec.Name()
}

// State returns the module's current lifecycle state. A nil handle is
// Uncompiled.
func (h *ModuleHandle) State() UnitState {
	if h == nil {
		return Uncompiled
	}
	defer h.ctx.enter()()
	return h.rec.State()
}

// Namespace returns the module namespace object once the module is
// resolved, and Undefined() before that or after a failure.
func (h *ModuleHandle) Namespace() Value {
	if h == nil {
		return Undefined()
	}
	defer h.ctx.enter()()
	switch h.rec.State() {
	case Resolved, Executed:
		return wrap(h.rec.Namespace())
	}
	return Undefined()
}

// CompileModule compiles source as a module registered under name. On a
// parse or compile error it returns nil with a SyntaxError pending.
func (c *Context) CompileModule(source, name string) *ModuleHandle {
	defer c.enter()()
	return c.compileModule(source, name)
}

func (c *Context) compileModule(source, name string) *ModuleHandle {
	unit, err := module.Compile(c.goctx, source, name, true)
	if err != nil {
		c.logger.Debug().Str("module", name).Err(err).Msg("module compilation failed")
		c.fail(err)
		return nil
	}
	rec, err := c.modules.Add(name, unit)
	if err != nil {
		c.fail(err)
		return nil
	}
	c.logger.Debug().Str("module", name).Msg("module compiled")
	return &ModuleHandle{ctx: c, rec: rec}
}

// checkHandle raises a TypeError for handles that cannot be used here.
func (c *Context) checkHandle(h *ModuleHandle) bool {
	switch {
	case h == nil:
		c.throwError(errz.KindTypeError, "module handle is nil")
		return false
	case h.ctx != c:
		c.throwError(errz.KindTypeError, "module handle belongs to another context")
		return false
	}
	return true
}

// ResolveModule loads, compiles and links every module h imports,
// directly or transitively. Nothing is linked unless every import binding
// of the graph is valid. On failure h moves to Failed and Exception() is
// returned; on success Undefined().
func (c *Context) ResolveModule(h *ModuleHandle) Value {
	defer c.enter()()
	if !c.checkHandle(h) {
		return Exception()
	}
	if err := c.modules.Resolve(c.goctx, h.rec); err != nil {
		return c.fail(err)
	}
	return Undefined()
}

// EvalModule resolves h if needed and runs it after its dependencies.
// Every module runs at most once per Context. It returns Undefined() or
// Exception().
func (c *Context) EvalModule(h *ModuleHandle) Value {
	defer c.enter()()
	if !c.checkHandle(h) {
		return Exception()
	}
	return c.evalModule(h.rec)
}

func (c *Context) evalModule(rec *module.Record) Value {
	if err := c.modules.Evaluate(c.goctx, rec); err != nil {
		return c.fail(err)
	}
	return Undefined()
}

// EvalAutoDetect evaluates source as a module named filename when it uses
// module syntax, and as a script otherwise. Scripts return their
// completion value and modules return Undefined().
func (c *Context) EvalAutoDetect(source, filename string) Value {
	defer c.enter()()
	if parser.DetectModule(source) {
		return c.evalModuleSource(source, filename)
	}
	return c.evalScript(source, filename)
}

// EvalScript evaluates source as a script and returns its completion
// value: the value of the last expression statement run.
func (c *Context) EvalScript(source, filename string) Value {
	defer c.enter()()
	return c.evalScript(source, filename)
}

// EvalModuleSource compiles, resolves and evaluates source as a module
// named name.
func (c *Context) EvalModuleSource(source, name string) Value {
	defer c.enter()()
	return c.evalModuleSource(source, name)
}

func (c *Context) evalScript(source, filename string) Value {
	unit, err := module.Compile(c.goctx, source, filename, false)
	if err != nil {
		return c.fail(err)
	}
	result, err := c.machine.RunScript(c.goctx, unit)
	if err != nil {
		return c.fail(err)
	}
	return wrap(result)
}

func (c *Context) evalModuleSource(source, name string) Value {
	h := c.compileModule(source, name)
	if h == nil {
		return Exception()
	}
	return c.evalModule(h.rec)
}
