package vm

import (
	"github.com/deepnoodle-ai/jsrt/object"
)

const (
	// DefaultFrameLocals is the number of local variables that can be stored
	// directly in the frame's fixed storage array, avoiding heap allocation.
	DefaultFrameLocals = 8

	// MinExtendedLocalsCapacity is the minimum capacity allocated for extended
	// locals when heap allocation is needed. This provides headroom for future
	// calls to reduce allocation churn for functions with varying local counts.
	MinExtendedLocalsCapacity = 32
)

// handler is an active try block: where to resume and the stack height to
// restore when an exception is caught.
type handler struct {
	ip int
	sp int
}

type frame struct {
	returnAddr     int
	returnSp       int
	callSiteIP     int // IP of the call instruction in the caller's code (for stack traces)
	fn             *object.Function
	code           *loadedCode
	env            *object.ModuleEnv
	this           object.Object
	construct      *object.Dict // object under construction when called with new
	storage        [DefaultFrameLocals]object.Object
	locals         []object.Object
	extendedLocals []object.Object
	cells          []*object.Cell
	handlers       []handler
}

func (f *frame) ActivateCode(code *loadedCode) {
	f.code = code
	f.fn = nil
	f.env = nil
	f.this = object.Undefined
	f.construct = nil
	f.returnAddr = 0
	f.callSiteIP = 0
	f.cells = nil
	f.handlers = f.handlers[:0]

	// Decide where to store local variables. If the frame storage has enough
	// space, use that. Otherwise, reuse extendedLocals if large enough, or
	// allocate a new slice.
	count := code.localCount
	if count > DefaultFrameLocals {
		if cap(f.extendedLocals) >= count {
			f.extendedLocals = f.extendedLocals[:count]
			for i := range f.extendedLocals {
				f.extendedLocals[i] = nil
			}
		} else {
			allocSize := count
			if allocSize < MinExtendedLocalsCapacity {
				allocSize = MinExtendedLocalsCapacity
			}
			f.extendedLocals = make([]object.Object, count, allocSize)
		}
		f.locals = f.extendedLocals
	} else {
		for i := 0; i < count; i++ {
			f.storage[i] = nil
		}
		f.locals = f.storage[:count]
	}
}

func (f *frame) ActivateFunction(fn *object.Function, code *loadedCode, returnAddr, returnSp, callSiteIP int) {
	f.ActivateCode(code)
	f.fn = fn
	f.env = fn.Env()
	f.returnAddr = returnAddr
	f.returnSp = returnSp
	f.callSiteIP = callSiteIP
}

// Release drops references held by the frame so a finished frame does not
// keep objects alive.
func (f *frame) Release() {
	for i := range f.locals {
		f.locals[i] = nil
	}
	f.fn = nil
	f.env = nil
	f.this = nil
	f.construct = nil
	f.cells = nil
	f.handlers = f.handlers[:0]
}

// Load reads local idx, through its cell when the local has been captured.
func (f *frame) Load(idx int) object.Object {
	var v object.Object
	if f.cells != nil && f.cells[idx] != nil {
		v = f.cells[idx].Value()
	} else {
		v = f.locals[idx]
	}
	if v == nil {
		return object.Undefined
	}
	return v
}

// Store writes local idx, through its cell when the local has been captured.
func (f *frame) Store(idx int, value object.Object) {
	if f.cells != nil && f.cells[idx] != nil {
		f.cells[idx].Set(value)
		return
	}
	f.locals[idx] = value
}

// Cell returns the cell for local idx, creating it on first capture. Once a
// cell exists, the local lives in the cell until Renew detaches it.
func (f *frame) Cell(idx int) *object.Cell {
	if f.cells == nil {
		f.cells = make([]*object.Cell, len(f.locals))
	}
	if cell := f.cells[idx]; cell != nil {
		return cell
	}
	v := f.locals[idx]
	if v == nil {
		v = object.Undefined
	}
	cell := object.NewValueCell(v)
	f.cells[idx] = cell
	return cell
}

// Renew detaches local idx from the cell captured so far, keeping its
// current value. Closures created earlier keep the old cell.
func (f *frame) Renew(idx int) {
	if f.cells == nil || f.cells[idx] == nil {
		return
	}
	f.locals[idx] = f.cells[idx].Value()
	f.cells[idx] = nil
}

func (f *frame) PushHandler(h handler) {
	f.handlers = append(f.handlers, h)
}

func (f *frame) PopHandler() (handler, bool) {
	n := len(f.handlers)
	if n == 0 {
		return handler{}, false
	}
	h := f.handlers[n-1]
	f.handlers = f.handlers[:n-1]
	return h, true
}

// Name returns the function name shown in stack traces.
func (f *frame) Name() string {
	if f.fn != nil {
		if name := f.fn.Name(); name != "" {
			return name
		}
		return "<anonymous>"
	}
	if f.env != nil {
		return "<module>"
	}
	return "<main>"
}
