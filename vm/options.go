package vm

// Option is a configuration function for a Virtual Machine.
type Option func(*VirtualMachine)

// WithContextCheckInterval sets how often the VM checks ctx.Done() and the
// interrupt handler during execution. The interval is specified in number
// of instructions. A value of 0 disables deterministic checking, relying
// only on the background goroutine that monitors the context. The default
// is DefaultContextCheckInterval (1000).
func WithContextCheckInterval(interval int) Option {
	return func(vm *VirtualMachine) {
		vm.contextCheckInterval = interval
	}
}

// WithMaxFrameDepth limits the depth of the script call stack. Calls beyond
// the limit raise a RangeError. The default is DefaultMaxFrameDepth.
func WithMaxFrameDepth(depth int) Option {
	return func(vm *VirtualMachine) {
		if depth > 0 {
			vm.maxFrameDepth = depth
		}
	}
}

// WithInterruptHandler installs a function polled every check interval.
// Returning true aborts execution with ErrInterrupted, which scripts cannot
// catch.
func WithInterruptHandler(fn func() bool) Option {
	return func(vm *VirtualMachine) {
		vm.interrupt = fn
	}
}

// WithObserver sets an observer for VM execution events. The observer
// receives callbacks for instruction steps, function calls and returns.
// Returning false from any observer method halts execution immediately.
func WithObserver(observer Observer) Option {
	return func(vm *VirtualMachine) {
		vm.observer = observer
	}
}
