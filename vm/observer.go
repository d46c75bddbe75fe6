package vm

import (
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/op"
)

// StepMode controls when OnStep callbacks are triggered.
type StepMode uint8

const (
	// StepAll calls OnStep for every instruction.
	StepAll StepMode = iota

	// StepNone never calls OnStep.
	StepNone

	// StepSampled calls OnStep every SampleInterval instructions.
	StepSampled

	// StepOnLine calls OnStep when the source line changes.
	StepOnLine
)

// ObserverConfig specifies what events an observer wants to receive.
type ObserverConfig struct {
	StepMode StepMode

	// SampleInterval is the number of instructions between OnStep calls
	// when StepMode is StepSampled. Values <= 0 are treated as 1.
	SampleInterval int

	ObserveCalls   bool
	ObserveReturns bool
}

// NewObserverConfig creates a config that observes calls and returns.
func NewObserverConfig(mode StepMode) ObserverConfig {
	return ObserverConfig{
		StepMode:       mode,
		SampleInterval: 1000,
		ObserveCalls:   true,
		ObserveReturns: true,
	}
}

// Observer receives VM execution events. Embed NoOpObserver to implement
// only some of the methods. Callbacks run synchronously on the VM's
// goroutine.
type Observer interface {
	// Config is called once when a run starts.
	Config() ObserverConfig

	OnStep(event StepEvent) bool
	OnCall(event CallEvent) bool
	OnReturn(event ReturnEvent) bool
}

// StepEvent describes the instruction about to execute.
type StepEvent struct {
	IP         int
	Opcode     op.Code
	OpcodeName string
	Location   errz.SourceLocation
	StackDepth int
	FrameDepth int
}

// CallEvent describes a script function call.
type CallEvent struct {
	FunctionName string
	ArgCount     int
	Location     errz.SourceLocation
	FrameDepth   int
}

// ReturnEvent describes a script function return.
type ReturnEvent struct {
	FunctionName string
	Location     errz.SourceLocation
	FrameDepth   int
}

// NoOpObserver is an Observer that does nothing. It steps on every
// instruction and observes calls and returns.
type NoOpObserver struct{}

func (NoOpObserver) Config() ObserverConfig {
	return NewObserverConfig(StepAll)
}

func (NoOpObserver) OnStep(StepEvent) bool     { return true }
func (NoOpObserver) OnCall(CallEvent) bool     { return true }
func (NoOpObserver) OnReturn(ReturnEvent) bool { return true }

var _ Observer = NoOpObserver{}

// stepper decides which instructions are reported to the observer.
type stepper struct {
	cfg      ObserverConfig
	count    int
	lastLine int
	lastCode *loadedCode
}

func newStepper(cfg ObserverConfig) *stepper {
	if cfg.StepMode == StepSampled && cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 1
	}
	return &stepper{cfg: cfg}
}

func (s *stepper) shouldStep(code *loadedCode, ip int) bool {
	switch s.cfg.StepMode {
	case StepAll:
		return true
	case StepSampled:
		s.count++
		if s.count >= s.cfg.SampleInterval {
			s.count = 0
			return true
		}
	case StepOnLine:
		line := code.Code.LocationAt(ip).Line
		if line != s.lastLine || code != s.lastCode {
			s.lastLine = line
			s.lastCode = code
			return true
		}
	}
	return false
}
