package jsrt

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/jsrt/builtins"
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/module"
	"github.com/deepnoodle-ai/jsrt/object"
	"github.com/deepnoodle-ai/jsrt/vm"
)

// ErrContextFreed is returned when a Context is freed twice, and is the
// panic value when a freed Context is used.
var ErrContextFreed = errors.New("context already freed")

// Context is an execution environment bound to a Runtime. Script globals
// and compiled modules persist across evaluations in the same Context.
// Failed operations return Exception() and leave the failure in the
// pending exception slot.
type Context struct {
	id      uuid.UUID
	rt      *Runtime
	logger  zerolog.Logger
	goctx   context.Context
	realm   *object.Realm
	machine *vm.VirtualMachine
	modules *module.Registry
	pending object.Object
	freed   bool
}

func newContext(rt *Runtime) *Context {
	id := uuid.Must(uuid.NewV4())
	logger := rt.logger.With().Str("context", id.String()).Logger()
	realm := builtins.NewRealm(rt.opts.builtinsOpts...)
	machine := vm.New(realm, rt.opts.vmOpts...)
	var regOpts []module.Option
	regOpts = append(regOpts, module.WithLogger(logger))
	if rt.opts.importer != nil {
		regOpts = append(regOpts, module.WithImporter(rt.opts.importer))
	}
	return &Context{
		id:      id,
		rt:      rt,
		logger:  logger,
		goctx:   context.Background(),
		realm:   realm,
		machine: machine,
		modules: module.NewRegistry(machine, regOpts...),
	}
}

// enter acquires the Runtime for one operation and returns the release
// function. Using a freed Context panics.
func (c *Context) enter() func() {
	c.rt.mu.Lock()
	if c.freed {
		c.rt.mu.Unlock()
		c.logger.Error().Msg("use of a freed context")
		panic(ErrContextFreed)
	}
	return c.rt.mu.Unlock
}

// ID returns the unique identifier of the Context.
func (c *Context) ID() string {
	return c.id.String()
}

// Runtime returns the Runtime the Context belongs to.
func (c *Context) Runtime() *Runtime {
	return c.rt
}

// SetContext sets the Go context that cancels later evaluations. A
// cancelled evaluation fails with an InternalError.
func (c *Context) SetContext(ctx context.Context) {
	defer c.enter()()
	c.goctx = ctx
}

// Free releases the Context and detaches it from its Runtime.
func (c *Context) Free() error {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	if c.freed {
		c.logger.Error().Msg("context freed twice")
		return ErrContextFreed
	}
	c.freed = true
	delete(c.rt.contexts, c)
	c.realm = nil
	c.machine = nil
	c.modules = nil
	c.pending = nil
	c.logger.Debug().Msg("context freed")
	return nil
}

// Global returns the value of a global binding. A missing binding raises
// a ReferenceError.
func (c *Context) Global(name string) Value {
	defer c.enter()()
	v, err := c.realm.LoadGlobal(name)
	if err != nil {
		return c.fail(err)
	}
	return wrap(v)
}

// SetGlobal defines or replaces a global binding.
func (c *Context) SetGlobal(name string, v Value) Value {
	defer c.enter()()
	if IsException(v) {
		return c.misuse("SetGlobal")
	}
	c.realm.DefineGlobal(name, v.engine())
	return Undefined()
}

// Call invokes fn with the given receiver and arguments.
func (c *Context) Call(fn Value, this Value, args ...Value) Value {
	defer c.enter()()
	if IsException(fn) || IsException(this) {
		return c.misuse("Call")
	}
	objs := make([]object.Object, len(args))
	for i, arg := range args {
		if IsException(arg) {
			return c.misuse("Call")
		}
		objs[i] = arg.engine()
	}
	result, err := c.machine.Call(c.goctx, fn.engine(), this.engine(), objs)
	if err != nil {
		return c.fail(err)
	}
	return wrap(result)
}

// misuse raises the TypeError for an exception sentinel passed as input.
func (c *Context) misuse(op string) Value {
	return c.throwError(errz.KindTypeError, op+": the exception sentinel is not a value")
}

// fail stores err as the pending exception. Errors that scripts could
// catch become the value a catch clause would see; everything else
// becomes an InternalError.
func (c *Context) fail(err error) Value {
	var merr *multierror.Error
	if errors.As(err, &merr) && len(merr.Errors) > 0 {
		kind := errz.KindInternalError
		var se *errz.StructuredError
		if errors.As(merr.Errors[0], &se) {
			kind = se.Kind
		}
		return c.throwError(kind, err.Error())
	}
	var thrown *object.ThrownError
	if errors.As(err, &thrown) {
		return c.throw(thrown.Value)
	}
	var se *errz.StructuredError
	if errors.As(err, &se) {
		if obj, ok := object.ErrorValue(object.WithRealm(c.goctx, c.realm), se); ok {
			return c.throw(obj)
		}
	}
	return c.throwError(errz.KindInternalError, err.Error())
}
