// Package vm provides a VirtualMachine that executes compiled bytecode units.
//
// A VirtualMachine belongs to one realm. Scripts and module bodies run on a
// shared value stack and frame stack; calls between script functions stay
// inside one interpreter loop, while builtins that call back into script
// code re-enter the loop through the CallFunc installed in the context.
package vm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
	"github.com/deepnoodle-ai/jsrt/op"
)

const (
	MaxArgs              = 65535
	DefaultMaxFrameDepth = 1024
	MaxStackDepth        = 1 << 20
	InitialStackSize     = 1024
	StopSignal           = -1

	// stackHeadroom is the free stack space required to enter a frame.
	stackHeadroom = 256

	// DefaultContextCheckInterval is the number of instructions between
	// deterministic checks of ctx.Done(). Set to 0 to disable.
	DefaultContextCheckInterval = 1000
)

var (
	// ErrInterrupted is returned when the interrupt handler stops execution.
	ErrInterrupted = errors.New("interrupted")

	// ErrHalted is returned when an observer stops execution.
	ErrHalted = errors.New("execution halted by observer")

	// ErrRunning is returned when the VM is entered while already running.
	ErrRunning = errors.New("vm is already running")
)

type stackOverflow struct{}

type VirtualMachine struct {
	ip          int // instruction pointer
	sp          int // stack pointer
	fp          int // frame pointer
	halt        int32
	activeFrame *frame
	activeCode  *loadedCode
	realm       *object.Realm
	loadedCode  map[*bytecode.Code]*loadedCode
	running     bool
	runMutex    sync.Mutex
	stopped     chan struct{}
	stack       []object.Object
	frames      []*frame
	typeofs     map[string]*object.String

	maxFrameDepth int

	// contextCheckInterval is the number of instructions between deterministic
	// checks of ctx.Done() and the interrupt handler.
	contextCheckInterval int
	interrupt            func() bool

	// observer receives callbacks for VM execution events (steps, calls, returns).
	// If nil, no callbacks are made.
	observer Observer
	stepper  *stepper
	observed ObserverConfig
}

// New creates a Virtual Machine that runs code against the given realm.
func New(realm *object.Realm, options ...Option) *VirtualMachine {
	vm := &VirtualMachine{
		sp:                   -1,
		fp:                   -1,
		realm:                realm,
		loadedCode:           map[*bytecode.Code]*loadedCode{},
		stack:                make([]object.Object, InitialStackSize),
		typeofs:              map[string]*object.String{},
		maxFrameDepth:        DefaultMaxFrameDepth,
		contextCheckInterval: DefaultContextCheckInterval,
	}
	for _, name := range []string{"undefined", "object", "boolean", "number", "string", "function"} {
		vm.typeofs[name] = object.NewString(name)
	}
	for _, opt := range options {
		opt(vm)
	}
	return vm
}

// Realm returns the realm the VM executes against.
func (vm *VirtualMachine) Realm() *object.Realm {
	return vm.realm
}

func (vm *VirtualMachine) start(ctx context.Context) error {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	if vm.running {
		return ErrRunning
	}
	vm.running = true
	// Halt execution when the context is cancelled
	atomic.StoreInt32(&vm.halt, 0)
	if doneChan := ctx.Done(); doneChan != nil {
		stopped := make(chan struct{})
		vm.stopped = stopped
		go func() {
			select {
			case <-doneChan:
				atomic.StoreInt32(&vm.halt, 1)
			case <-stopped:
			}
		}()
	}
	if vm.observer != nil {
		vm.observed = vm.observer.Config()
		vm.stepper = newStepper(vm.observed)
	}
	return nil
}

func (vm *VirtualMachine) stop() {
	vm.runMutex.Lock()
	defer vm.runMutex.Unlock()
	vm.running = false
	if vm.stopped != nil {
		close(vm.stopped)
		vm.stopped = nil
	}
}

// RunScript executes a script unit and returns its completion value: the
// value of the last expression statement evaluated, or undefined.
func (vm *VirtualMachine) RunScript(ctx context.Context, unit *bytecode.Unit) (object.Object, error) {
	if unit.Kind() != bytecode.Script {
		return nil, fmt.Errorf("expected a script unit (got %s)", unit.Kind())
	}
	return vm.run(ctx, unit.Main(), nil)
}

// RunModule executes the top-level code of a module unit whose bindings
// live in env. The module's imports must already be bound in env.
func (vm *VirtualMachine) RunModule(ctx context.Context, unit *bytecode.Unit, env *object.ModuleEnv) (object.Object, error) {
	if unit.Kind() != bytecode.Module {
		return nil, fmt.Errorf("expected a module unit (got %s)", unit.Kind())
	}
	if env == nil || env.SlotCount() != unit.SlotCount() {
		return nil, fmt.Errorf("module environment does not match unit %q", unit.Name())
	}
	return vm.run(ctx, unit.Main(), env)
}

func (vm *VirtualMachine) run(ctx context.Context, main *bytecode.Code, env *object.ModuleEnv) (result object.Object, err error) {
	if err := vm.start(ctx); err != nil {
		return nil, err
	}
	baseFP, baseSP := vm.fp, vm.sp
	defer func() {
		if r := recover(); r != nil {
			vm.reset(baseFP, baseSP)
			err = panicError(r)
		}
		vm.stop()
	}()
	ctx = vm.initContext(ctx)
	if err := vm.activateCode(vm.loadCode(main), env); err != nil {
		return nil, err
	}
	if err := vm.eval(ctx); err != nil {
		return nil, err
	}
	return vm.pop(), nil
}

// Call invokes a function value from Go with the given receiver. It fails
// with ErrRunning if the VM is already executing.
func (vm *VirtualMachine) Call(
	ctx context.Context,
	fn object.Object,
	this object.Object,
	args []object.Object,
) (result object.Object, err error) {
	if err := vm.start(ctx); err != nil {
		return nil, err
	}
	baseFP, baseSP := vm.fp, vm.sp
	defer func() {
		if r := recover(); r != nil {
			vm.reset(baseFP, baseSP)
			err = panicError(r)
		}
		vm.stop()
	}()
	ctx = vm.initContext(ctx)
	if this == nil {
		this = object.Undefined
	}
	switch fn := fn.(type) {
	case *object.Function:
		return vm.callFunction(ctx, fn, this, args)
	case object.Callable:
		return fn.Call(ctx, this, args...)
	}
	return nil, notCallable(fn)
}

// NewFunction creates a function object for a top-level function template
// of a module, closing over env.
func (vm *VirtualMachine) NewFunction(fn *bytecode.Function, env *object.ModuleEnv) *object.Function {
	return object.NewFunction(object.FunctionParams{
		Fn:    fn,
		Env:   env,
		This:  object.Undefined,
		Proto: vm.realm.FunctionPrototype,
	})
}

func panicError(r any) error {
	if _, ok := r.(stackOverflow); ok {
		return errz.RangeErrorf("Maximum call stack size exceeded")
	}
	return errz.InternalErrorf("panic: %v", r)
}

// Calls a script function with the given receiver and arguments. This is
// used when a builtin calls back into script code, e.g. [1, 2].map(f).
func (vm *VirtualMachine) callFunction(
	ctx context.Context,
	fn *object.Function,
	this object.Object,
	args []object.Object,
) (object.Object, error) {
	if err := vm.activateFunction(fn, this, args, nil, StopSignal); err != nil {
		return nil, err
	}
	if err := vm.eval(ctx); err != nil {
		return nil, err
	}
	return vm.pop(), nil
}

// Evaluate the active frame until it returns. The result is left on the top
// of the stack. On error every frame entered since the call is popped.
func (vm *VirtualMachine) eval(ctx context.Context) error {
	baseFP := vm.fp
	var instructionCount int
	checkInterval := vm.contextCheckInterval

	for {
		if atomic.LoadInt32(&vm.halt) == 1 {
			vm.unwind(baseFP)
			if err := ctx.Err(); err != nil {
				return err
			}
			return context.Canceled
		}

		// Deterministic check of ctx.Done() every N instructions.
		if checkInterval > 0 {
			instructionCount++
			if instructionCount >= checkInterval {
				instructionCount = 0
				if err := vm.checkInterrupt(ctx); err != nil {
					vm.unwind(baseFP)
					return err
				}
			}
		}

		code := vm.activeCode
		if vm.ip >= len(code.Instructions) {
			vm.unwind(baseFP)
			return errz.InternalErrorf("instruction pointer out of range in %s", code.Name())
		}
		opcode := code.Instructions[vm.ip]

		if vm.observer != nil && vm.stepper.shouldStep(code, vm.ip) {
			event := StepEvent{
				IP:         vm.ip,
				Opcode:     opcode,
				OpcodeName: op.GetInfo(opcode).Name,
				Location:   code.LocationAt(vm.ip),
				StackDepth: vm.sp + 1,
				FrameDepth: vm.fp + 1,
			}
			if !vm.observer.OnStep(event) {
				vm.unwind(baseFP)
				return ErrHalted
			}
		}

		// Advance the instruction pointer to the next instruction. Note that
		// this is done before we actually execute the current instruction, so
		// relative jump instructions will need to take this into account.
		vm.ip++

		done, err := vm.exec(ctx, opcode)
		if err != nil {
			if err := vm.handleError(ctx, baseFP, err); err != nil {
				return err
			}
			continue
		}
		if done {
			return nil
		}
	}
}

func (vm *VirtualMachine) checkInterrupt(ctx context.Context) error {
	select {
	case <-ctx.Done():
		atomic.StoreInt32(&vm.halt, 1)
		return ctx.Err()
	default:
	}
	if vm.interrupt != nil && vm.interrupt() {
		return ErrInterrupted
	}
	return nil
}

// exec runs one instruction. It reports true when the frame that eval was
// entered with has returned.
func (vm *VirtualMachine) exec(ctx context.Context, opcode op.Code) (bool, error) {
	f := vm.activeFrame
	code := vm.activeCode
	switch opcode {
	case op.Nop:
	case op.LoadConst:
		vm.push(code.Constants[vm.fetch()])
	case op.LoadFast:
		idx := int(vm.fetch())
		value := f.Load(idx)
		if value == object.Uninitialized {
			return false, uninitialized(code.localName(idx))
		}
		vm.push(value)
	case op.StoreFast:
		idx := int(vm.fetch())
		if f.Load(idx) == object.Uninitialized {
			return false, uninitialized(code.localName(idx))
		}
		f.Store(idx, vm.pop())
	case op.InitFast:
		f.Store(int(vm.fetch()), vm.pop())
	case op.RenewFast:
		f.Renew(int(vm.fetch()))
	case op.LoadFree:
		idx := int(vm.fetch())
		value := orUndefined(f.fn.FreeVar(idx).Value())
		if value == object.Uninitialized {
			return false, uninitialized(code.FreeNameAt(idx))
		}
		vm.push(value)
	case op.StoreFree:
		idx := int(vm.fetch())
		cell := f.fn.FreeVar(idx)
		if cell.Value() == object.Uninitialized {
			return false, uninitialized(code.FreeNameAt(idx))
		}
		cell.Set(vm.pop())
	case op.LoadGlobal:
		value, err := vm.realm.LoadGlobal(code.Names[vm.fetch()])
		if err != nil {
			return false, err
		}
		vm.push(value)
	case op.LoadGlobalTypeof:
		name := code.Names[vm.fetch()]
		binding, ok := vm.realm.Global(name)
		switch {
		case !ok:
			vm.push(object.Undefined)
		case binding.Value == object.Uninitialized:
			return false, uninitialized(name)
		default:
			vm.push(binding.Value)
		}
	case op.StoreGlobal:
		if err := vm.realm.StoreGlobal(code.Names[vm.fetch()], vm.pop()); err != nil {
			return false, err
		}
	case op.InitGlobal:
		if err := vm.realm.InitGlobal(code.Names[vm.fetch()], vm.pop()); err != nil {
			return false, err
		}
	case op.DeclareGlobal:
		name := code.Names[vm.fetch()]
		kind := object.BindingKind(vm.fetch())
		if err := vm.realm.DeclareGlobal(name, kind); err != nil {
			return false, err
		}
	case op.LoadModule, op.StoreModule, op.InitModule:
		slot := int(vm.fetch())
		if f.env == nil {
			return false, errz.InternalErrorf("module binding accessed outside a module")
		}
		cell := f.env.Cell(slot)
		value := orUndefined(cell.Value())
		switch {
		case opcode == op.InitModule:
			cell.Set(vm.pop())
		case value == object.Uninitialized:
			return false, uninitialized(f.env.SlotName(slot))
		case opcode == op.LoadModule:
			vm.push(value)
		default:
			cell.Set(vm.pop())
		}
	case op.LoadThis:
		vm.push(orUndefined(f.this))
	case op.LoadCallee:
		if f.fn == nil {
			vm.push(object.Undefined)
		} else {
			vm.push(f.fn)
		}
	case op.Uninitialized:
		vm.push(object.Uninitialized)
	case op.Undefined:
		vm.push(object.Undefined)
	case op.Null:
		vm.push(object.Null)
	case op.True:
		vm.push(object.True)
	case op.False:
		vm.push(object.False)
	case op.LoadAttr:
		name := code.Names[vm.fetch()]
		value, err := object.GetProperty(ctx, vm.pop(), name)
		if err != nil {
			return false, err
		}
		vm.push(value)
	case op.StoreAttr:
		name := code.Names[vm.fetch()]
		value := vm.pop()
		obj := vm.pop()
		if err := object.SetProperty(ctx, obj, name, value); err != nil {
			return false, err
		}
		vm.push(value)
	case op.BinarySubscr:
		key := vm.pop()
		obj := vm.pop()
		value, err := object.GetIndex(ctx, obj, key)
		if err != nil {
			return false, err
		}
		vm.push(value)
	case op.StoreSubscr:
		value := vm.pop()
		key := vm.pop()
		obj := vm.pop()
		if err := object.SetIndex(ctx, obj, key, value); err != nil {
			return false, err
		}
		vm.push(value)
	case op.DeleteAttr:
		name := code.Names[vm.fetch()]
		ok, err := object.DeleteProperty(ctx, vm.pop(), name)
		if err != nil {
			return false, err
		}
		vm.push(object.NewBool(ok))
	case op.DeleteSubscr:
		key := vm.pop()
		obj := vm.pop()
		name, err := object.ToPropertyKey(ctx, key)
		if err != nil {
			return false, err
		}
		ok, err := object.DeleteProperty(ctx, obj, name)
		if err != nil {
			return false, err
		}
		vm.push(object.NewBool(ok))
	case op.BinaryOp:
		opType := op.BinaryOpType(vm.fetch())
		b := vm.pop()
		a := vm.pop()
		result, err := object.BinaryOp(ctx, opType, a, b)
		if err != nil {
			return false, err
		}
		vm.push(result)
	case op.CompareOp:
		opType := op.CompareOpType(vm.fetch())
		b := vm.pop()
		a := vm.pop()
		result, err := object.Compare(ctx, opType, a, b)
		if err != nil {
			return false, err
		}
		vm.push(result)
	case op.UnaryNegative, op.UnaryPlus, op.UnaryBitNot:
		x, err := object.ToNumber(ctx, vm.pop())
		if err != nil {
			return false, err
		}
		switch opcode {
		case op.UnaryNegative:
			x = -x
		case op.UnaryBitNot:
			x = float64(^object.ToInt32(x))
		}
		vm.push(object.NewNumber(x))
	case op.UnaryNot:
		vm.push(object.NewBool(!object.ToBoolean(vm.pop())))
	case op.TypeOf:
		vm.push(vm.typeofs[object.TypeOf(vm.pop())])
	case op.InstanceOf:
		ctor := vm.pop()
		obj := vm.pop()
		ok, err := object.InstanceOf(ctx, obj, ctor)
		if err != nil {
			return false, err
		}
		vm.push(object.NewBool(ok))
	case op.ContainsOp:
		obj := vm.pop()
		key, err := object.ToPropertyKey(ctx, vm.pop())
		if err != nil {
			return false, err
		}
		ok, err := object.HasProperty(ctx, obj, key)
		if err != nil {
			return false, err
		}
		vm.push(object.NewBool(ok))
	case op.BuildArray:
		count := int(vm.fetch())
		items := make([]object.Object, count)
		copy(items, vm.stack[vm.sp-count+1:vm.sp+1])
		vm.drop(vm.sp - count)
		vm.push(vm.realm.NewArray(items))
	case op.BuildObject:
		count := int(vm.fetch())
		obj := vm.realm.NewObject()
		base := vm.sp - 2*count + 1
		for i := 0; i < count; i++ {
			key, err := object.ToPropertyKey(ctx, vm.stack[base+2*i])
			if err != nil {
				return false, err
			}
			obj.Set(key, vm.stack[base+2*i+1])
		}
		vm.drop(base - 1)
		vm.push(obj)
	case op.ArrayAppend:
		item := vm.pop()
		vm.stack[vm.sp].(*object.Array).Append(item)
	case op.ArrayExtend:
		iterable := vm.pop()
		arr := vm.stack[vm.sp].(*object.Array)
		iter, err := object.ValuesIterator(iterable)
		if err != nil {
			return false, err
		}
		for {
			item, ok := iter.Next()
			if !ok {
				break
			}
			arr.Append(item)
		}
	case op.ObjectSpread:
		source := vm.pop()
		target := vm.stack[vm.sp].(*object.Dict)
		if object.IsNullish(source) {
			break
		}
		for _, key := range object.OwnKeys(source) {
			value, err := object.GetProperty(ctx, source, key)
			if err != nil {
				return false, err
			}
			target.Set(key, value)
		}
	case op.ObjectSet:
		value := vm.pop()
		key, err := object.ToPropertyKey(ctx, vm.pop())
		if err != nil {
			return false, err
		}
		vm.stack[vm.sp].(*object.Dict).Set(key, value)
	case op.Swap:
		n := int(vm.fetch())
		vm.stack[vm.sp], vm.stack[vm.sp-n] = vm.stack[vm.sp-n], vm.stack[vm.sp]
	case op.Copy:
		n := int(vm.fetch())
		vm.push(vm.stack[vm.sp-n])
	case op.PopTop:
		vm.pop()
	case op.JumpForward:
		base := vm.ip - 1
		vm.ip = base + int(vm.fetch())
	case op.JumpBackward:
		base := vm.ip - 1
		vm.ip = base - int(vm.fetch())
	case op.PopJumpForwardIfFalse, op.PopJumpForwardIfTrue,
		op.PopJumpForwardIfNullish, op.PopJumpForwardIfNotNullish:
		base := vm.ip - 1
		delta := int(vm.fetch())
		tos := vm.pop()
		var jump bool
		switch opcode {
		case op.PopJumpForwardIfFalse:
			jump = !object.ToBoolean(tos)
		case op.PopJumpForwardIfTrue:
			jump = object.ToBoolean(tos)
		case op.PopJumpForwardIfNullish:
			jump = object.IsNullish(tos)
		default:
			jump = !object.IsNullish(tos)
		}
		if jump {
			vm.ip = base + delta
		}
	case op.GetIter:
		kind := vm.fetch()
		obj := vm.pop()
		if kind == op.IterKeys {
			vm.push(object.KeysIterator(obj))
			break
		}
		iter, err := object.ValuesIterator(obj)
		if err != nil {
			return false, err
		}
		vm.push(iter)
	case op.ForIter:
		base := vm.ip - 1
		delta := int(vm.fetch())
		iter := vm.stack[vm.sp].(*object.Iterator)
		value, ok := iter.Next()
		if !ok {
			vm.pop()
			vm.ip = base + delta
		} else {
			vm.push(value)
		}
	case op.LoadClosure:
		constIndex := vm.fetch()
		freeCount := int(vm.fetch())
		free := make([]*object.Cell, freeCount)
		for i := freeCount - 1; i >= 0; i-- {
			cell, ok := vm.pop().(*object.Cell)
			if !ok {
				return false, errz.InternalErrorf("expected cell")
			}
			free[i] = cell
		}
		tmpl := code.Functions[constIndex]
		params := object.FunctionParams{
			Fn:    tmpl,
			Free:  free,
			Env:   f.env,
			Proto: vm.realm.FunctionPrototype,
		}
		if tmpl.IsArrow() {
			params.This = orUndefined(f.this)
		}
		vm.push(object.NewFunction(params))
	case op.MakeCell:
		idx := int(vm.fetch())
		if vm.fetch() == op.CellFree {
			vm.push(f.fn.FreeVar(idx))
		} else {
			vm.push(f.Cell(idx))
		}
	case op.Call:
		argc := int(vm.fetch())
		base := vm.sp - argc
		return false, vm.call(ctx, vm.stack[base], object.Undefined, vm.stack[base+1:vm.sp+1], base-1)
	case op.CallMethod:
		argc := int(vm.fetch())
		base := vm.sp - argc
		return false, vm.call(ctx, vm.stack[base], vm.stack[base-1], vm.stack[base+1:vm.sp+1], base-2)
	case op.CallSpread:
		hasReceiver := vm.fetch() == 1
		args, err := spreadArgs(vm.pop())
		if err != nil {
			return false, err
		}
		callee := vm.pop()
		this := object.Object(object.Undefined)
		if hasReceiver {
			this = vm.pop()
		}
		return false, vm.call(ctx, callee, this, args, vm.sp)
	case op.New:
		argc := int(vm.fetch())
		base := vm.sp - argc
		return false, vm.construct(ctx, vm.stack[base], vm.stack[base+1:vm.sp+1], base-1)
	case op.NewSpread:
		args, err := spreadArgs(vm.pop())
		if err != nil {
			return false, err
		}
		ctor := vm.pop()
		return false, vm.construct(ctx, ctor, args, vm.sp)
	case op.ReturnValue:
		result := vm.pop()
		if f.construct != nil && !isObject(result) {
			result = f.construct
		}
		if vm.observer != nil && vm.observed.ObserveReturns && f.fn != nil {
			event := ReturnEvent{
				FunctionName: f.fn.Name(),
				Location:     vm.location(),
				FrameDepth:   vm.fp,
			}
			if !vm.observer.OnReturn(event) {
				return false, ErrHalted
			}
		}
		stop := f.returnAddr == StopSignal
		vm.popFrame()
		vm.push(result)
		return stop, nil
	case op.PushExcept:
		base := vm.ip - 1
		delta := int(vm.fetch())
		f.PushHandler(handler{ip: base + delta, sp: vm.sp})
	case op.PopExcept:
		f.PopHandler()
	case op.Throw:
		return false, object.NewThrownError(vm.pop())
	default:
		return false, errz.InternalErrorf("unknown opcode: %d", opcode)
	}
	return false, nil
}

func spreadArgs(obj object.Object) ([]object.Object, error) {
	arr, ok := obj.(*object.Array)
	if !ok {
		return nil, errz.InternalErrorf("spread call requires an argument array")
	}
	if arr.Len() > MaxArgs {
		return nil, errz.RangeErrorf("Maximum call stack size exceeded")
	}
	return append([]object.Object(nil), arr.Items()...), nil
}

// call invokes callee. args may alias the stack above sp, which is where
// the stack is cut back to before the call runs.
func (vm *VirtualMachine) call(ctx context.Context, callee, this object.Object, args []object.Object, sp int) error {
	top := vm.sp
	switch fn := callee.(type) {
	case *object.Function:
		vm.sp = sp
		err := vm.activateFunction(fn, this, args, nil, vm.ip)
		vm.clear(top)
		return err
	case *object.Builtin:
		argv := append([]object.Object(nil), args...)
		vm.sp = sp
		vm.clear(top)
		result, err := fn.Call(ctx, this, argv...)
		if err != nil {
			return err
		}
		vm.push(orUndefined(result))
		return nil
	}
	return notCallable(callee)
}

// construct implements new. Script constructors get a fresh object whose
// prototype is the constructor's prototype property.
func (vm *VirtualMachine) construct(ctx context.Context, ctor object.Object, args []object.Object, sp int) error {
	top := vm.sp
	switch fn := ctor.(type) {
	case *object.Function:
		if fn.IsArrow() {
			return notConstructor(ctor)
		}
		protoObj, err := object.GetProperty(ctx, fn, "prototype")
		if err != nil {
			return err
		}
		proto, ok := protoObj.(*object.Dict)
		if !ok {
			proto = vm.realm.ObjectPrototype
		}
		obj := object.NewDict(proto)
		vm.sp = sp
		err = vm.activateFunction(fn, obj, args, obj, vm.ip)
		vm.clear(top)
		return err
	case *object.Builtin:
		if !fn.IsConstructor() {
			return notConstructor(ctor)
		}
		argv := append([]object.Object(nil), args...)
		vm.sp = sp
		vm.clear(top)
		result, err := fn.Construct(ctx, argv...)
		if err != nil {
			return err
		}
		vm.push(orUndefined(result))
		return nil
	}
	return notConstructor(ctor)
}

// handleError routes err to the innermost try block of the frames entered
// since baseFP. It returns nil once a handler has taken over, or the error
// to return from eval, with those frames popped.
func (vm *VirtualMachine) handleError(ctx context.Context, baseFP int, err error) error {
	if se, ok := err.(*errz.StructuredError); ok {
		se.WithLocation(vm.location())
		if se.Stack == nil {
			se.Stack = vm.captureStack()
		}
	}
	value, ok := object.ErrorValue(ctx, err)
	if !ok {
		vm.unwind(baseFP)
		return err
	}
	for {
		f := vm.activeFrame
		if h, ok := f.PopHandler(); ok {
			vm.drop(h.sp)
			vm.ip = h.ip
			vm.push(value)
			return nil
		}
		last := vm.fp == baseFP
		vm.popFrame()
		if last {
			return object.NewThrownError(value)
		}
	}
}

// unwind pops every frame down to and including baseFP.
func (vm *VirtualMachine) unwind(baseFP int) {
	for vm.fp >= baseFP && vm.fp >= 0 {
		vm.popFrame()
	}
}

// reset restores the frame and stack pointers after a panic.
func (vm *VirtualMachine) reset(fp, sp int) {
	for vm.fp > fp {
		vm.frames[vm.fp].Release()
		vm.fp--
	}
	if sp < len(vm.stack) {
		vm.drop(sp)
	}
	vm.activate()
}

func (vm *VirtualMachine) push(obj object.Object) {
	vm.sp++
	if vm.sp >= len(vm.stack) {
		vm.grow()
	}
	vm.stack[vm.sp] = obj
}

func (vm *VirtualMachine) pop() object.Object {
	obj := vm.stack[vm.sp]
	vm.stack[vm.sp] = nil
	vm.sp--
	return obj
}

// drop discards stack entries above sp.
func (vm *VirtualMachine) drop(sp int) {
	for i := vm.sp; i > sp; i-- {
		vm.stack[i] = nil
	}
	vm.sp = sp
}

// clear zeroes abandoned slots between the stack pointer and top.
func (vm *VirtualMachine) clear(top int) {
	for i := top; i > vm.sp; i-- {
		vm.stack[i] = nil
	}
}

func (vm *VirtualMachine) grow() {
	if len(vm.stack) >= MaxStackDepth {
		vm.sp--
		panic(stackOverflow{})
	}
	stack := make([]object.Object, len(vm.stack)*2)
	copy(stack, vm.stack)
	vm.stack = stack
}

func (vm *VirtualMachine) fetch() uint16 {
	ip := vm.ip
	vm.ip++
	return uint16(vm.activeCode.Instructions[ip])
}

// nextFrame returns the frame above the active one, failing with a
// RangeError when the call stack is full.
func (vm *VirtualMachine) nextFrame() (*frame, error) {
	next := vm.fp + 1
	if next >= vm.maxFrameDepth || vm.sp+stackHeadroom >= MaxStackDepth {
		return nil, errz.RangeErrorf("Maximum call stack size exceeded")
	}
	for len(vm.frames) <= next {
		vm.frames = append(vm.frames, &frame{})
	}
	return vm.frames[next], nil
}

// Activate a frame with the given code. This is used to begin running the
// top-level code of a script or module.
func (vm *VirtualMachine) activateCode(code *loadedCode, env *object.ModuleEnv) error {
	f, err := vm.nextFrame()
	if err != nil {
		return err
	}
	f.ActivateCode(code)
	f.env = env
	f.returnAddr = StopSignal
	f.returnSp = vm.sp
	f.callSiteIP = vm.ip
	vm.fp++
	vm.ip = 0
	vm.activate()
	return nil
}

// Activate a frame with the given function, to implement a function call.
// Arguments are copied into the parameter locals before anything else
// touches the stack.
func (vm *VirtualMachine) activateFunction(
	fn *object.Function,
	this object.Object,
	args []object.Object,
	construct *object.Dict,
	returnAddr int,
) error {
	f, err := vm.nextFrame()
	if err != nil {
		return err
	}
	code := vm.loadCode(fn.Code())
	f.ActivateFunction(fn, code, returnAddr, vm.sp, vm.ip)
	if fn.IsArrow() {
		f.this = fn.LexicalThis()
	} else {
		f.this = this
	}
	f.construct = construct

	tmpl := fn.Template()
	paramCount := tmpl.ParameterCount()
	if tmpl.HasRestParam() {
		paramCount--
		rest := []object.Object{}
		if len(args) > paramCount {
			rest = append(rest, args[paramCount:]...)
		}
		f.locals[paramCount] = vm.realm.NewArray(rest)
	}
	for i := 0; i < paramCount; i++ {
		if i < len(args) {
			f.locals[i] = args[i]
		} else {
			f.locals[i] = object.Undefined
		}
	}

	vm.fp++
	vm.ip = 0
	vm.activate()

	if vm.observer != nil && vm.observed.ObserveCalls {
		event := CallEvent{
			FunctionName: fn.Name(),
			ArgCount:     len(args),
			FrameDepth:   vm.fp + 1,
		}
		if vm.fp > 0 {
			event.Location = vm.frames[vm.fp-1].locationAt(f.callSiteIP - 1)
		}
		if !vm.observer.OnCall(event) {
			vm.popFrame()
			return ErrHalted
		}
	}
	return nil
}

// popFrame leaves the active frame, restoring the caller's stack height and
// instruction pointer.
func (vm *VirtualMachine) popFrame() {
	f := vm.activeFrame
	vm.drop(f.returnSp)
	vm.ip = f.callSiteIP
	f.Release()
	vm.fp--
	vm.activate()
}

func (vm *VirtualMachine) activate() {
	if vm.fp < 0 {
		vm.activeFrame = nil
		vm.activeCode = nil
		return
	}
	vm.activeFrame = vm.frames[vm.fp]
	vm.activeCode = vm.activeFrame.code
}

// Wrap the *bytecode.Code in a *loadedCode object to make it usable by the VM.
func (vm *VirtualMachine) loadCode(bc *bytecode.Code) *loadedCode {
	if code, ok := vm.loadedCode[bc]; ok {
		return code
	}
	code := loadCode(bc)
	vm.loadedCode[bc] = code
	return code
}

func (vm *VirtualMachine) initContext(ctx context.Context) context.Context {
	ctx = object.WithCallFunc(ctx, vm.callFunction)
	ctx = object.WithRealm(ctx, vm.realm)
	ctx = object.WithStackFunc(ctx, vm.captureStack)
	return ctx
}

// captureStack builds a stack trace from the current call frames, innermost
// first.
func (vm *VirtualMachine) captureStack() []errz.StackFrame {
	var frames []errz.StackFrame
	ip := vm.ip - 1
	for i := vm.fp; i >= 0; i-- {
		f := vm.frames[i]
		if f.code == nil {
			continue
		}
		frames = append(frames, errz.StackFrame{
			Function: f.Name(),
			Location: f.locationAt(ip),
		})
		ip = f.callSiteIP - 1
	}
	return frames
}

func (f *frame) locationAt(ip int) errz.SourceLocation {
	if f.code == nil {
		return errz.SourceLocation{}
	}
	if ip < 0 {
		ip = 0
	}
	return f.code.LocationAt(ip)
}

// location returns the source location of the current instruction.
func (vm *VirtualMachine) location() errz.SourceLocation {
	if vm.activeFrame == nil {
		return errz.SourceLocation{}
	}
	return vm.activeFrame.locationAt(vm.ip - 1)
}
