package object

import (
	"context"

	"github.com/deepnoodle-ai/jsrt/errz"
)

type contextKey string

// CallFunc is a type signature for a function that can call a script
// function with the given receiver.
type CallFunc func(ctx context.Context, fn *Function, this Object, args []Object) (Object, error)

// StackFunc captures the current script call stack, innermost frame first.
type StackFunc func() []errz.StackFrame

////////////////////////////////////////////////////////////////////////////////

const (
	callFuncKey  = contextKey("jsrt:call")
	realmKey     = contextKey("jsrt:realm")
	stackFuncKey = contextKey("jsrt:stack")
)

// WithCallFunc adds a CallFunc to the context, which can be used by
// objects to call a script function at runtime.
func WithCallFunc(ctx context.Context, fn CallFunc) context.Context {
	return context.WithValue(ctx, callFuncKey, fn)
}

// GetCallFunc returns the CallFunc from the context, if it exists.
func GetCallFunc(ctx context.Context) (CallFunc, bool) {
	if fn, ok := ctx.Value(callFuncKey).(CallFunc); ok {
		if fn != nil {
			return fn, ok
		}
	}
	return nil, false
}

// WithRealm adds the active realm to the context.
func WithRealm(ctx context.Context, realm *Realm) context.Context {
	return context.WithValue(ctx, realmKey, realm)
}

// GetRealm returns the active realm from the context, if it exists.
func GetRealm(ctx context.Context) (*Realm, bool) {
	realm, ok := ctx.Value(realmKey).(*Realm)
	return realm, ok && realm != nil
}

// WithStackFunc adds a StackFunc to the context.
func WithStackFunc(ctx context.Context, fn StackFunc) context.Context {
	return context.WithValue(ctx, stackFuncKey, fn)
}

// GetStackFunc returns the StackFunc from the context, if it exists.
func GetStackFunc(ctx context.Context) (StackFunc, bool) {
	fn, ok := ctx.Value(stackFuncKey).(StackFunc)
	return fn, ok && fn != nil
}
