package object

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/jsrt/bytecode"
)

var _ Callable = (*Function)(nil) // Ensure that *Function implements Callable

// Function is a runtime function instance with captured variables.
// It references an immutable bytecode.Function for its signature and code.
type Function struct {
	fn    *bytecode.Function // Immutable function template
	free  []*Cell            // Captured variables
	env   *ModuleEnv         // Module environment, nil for scripts
	this  Object             // Lexical this, for arrow functions
	props Props
	proto *Dict
}

// FunctionParams holds the runtime state of a new function instance.
type FunctionParams struct {
	Fn    *bytecode.Function
	Free  []*Cell
	Env   *ModuleEnv
	This  Object
	Proto *Dict
}

// NewFunction creates a function instance.
func NewFunction(params FunctionParams) *Function {
	return &Function{
		fn:    params.Fn,
		free:  params.Free,
		env:   params.Env,
		this:  params.This,
		proto: params.Proto,
	}
}

func (f *Function) Type() Type { return FUNCTION }

func (f *Function) Name() string { return f.fn.Name() }

// Template returns the underlying bytecode.Function.
func (f *Function) Template() *bytecode.Function { return f.fn }

func (f *Function) Code() *bytecode.Code { return f.fn.Code() }

func (f *Function) Env() *ModuleEnv { return f.env }

// LexicalThis returns the captured this of an arrow function.
func (f *Function) LexicalThis() Object { return f.this }

func (f *Function) IsArrow() bool { return f.fn.IsArrow() }

// FreeVarCount returns the number of captured variables.
func (f *Function) FreeVarCount() int { return len(f.free) }

// FreeVar returns the captured variable at the given index.
func (f *Function) FreeVar(index int) *Cell { return f.free[index] }

func (f *Function) Prototype() *Dict { return f.proto }

func (f *Function) GetOwn(key string) (Object, bool) {
	switch key {
	case "name":
		if v, ok := f.props.Get(key); ok {
			return v, true
		}
		return NewString(f.fn.Name()), true
	case "length":
		return NewNumber(float64(f.fn.Length())), true
	case "prototype":
		if f.fn.IsArrow() {
			return nil, false
		}
		if v, ok := f.props.Get(key); ok {
			return v, true
		}
		// Created on first use.
		var objectProto *Dict
		if f.proto != nil {
			objectProto = f.proto.proto
		}
		p := NewDict(objectProto)
		p.SetHidden("constructor", f)
		f.props.SetHidden(key, p)
		return p, true
	}
	return f.props.Get(key)
}

func (f *Function) SetOwn(key string, value Object) error {
	if key == "prototype" {
		f.props.SetHidden(key, value)
		return nil
	}
	f.props.Set(key, value)
	return nil
}

func (f *Function) DeleteOwn(key string) bool { return f.props.Delete(key) }

func (f *Function) OwnKeys() []string { return f.props.Keys() }

// Call invokes the function through the CallFunc installed in the context.
func (f *Function) Call(ctx context.Context, this Object, args ...Object) (Object, error) {
	call, ok := GetCallFunc(ctx)
	if !ok {
		return nil, fmt.Errorf("no call function found in context")
	}
	return call(ctx, f, this, args)
}

func (f *Function) Inspect() string {
	if name := f.fn.Name(); name != "" {
		return fmt.Sprintf("[Function: %s]", name)
	}
	return "[Function (anonymous)]"
}

func (f *Function) String() string { return f.fn.String() }

func (f *Function) Interface() any { return nil }
