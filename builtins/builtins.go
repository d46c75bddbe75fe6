// Package builtins installs the standard globals into a realm: the Object,
// Function, Array, String, Number and Boolean constructors and prototypes,
// the Error constructors, Math, JSON, console and the global functions.
package builtins

import (
	"context"
	"io"
	"os"

	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/object"
)

// Option configures Install.
type Option func(*config)

type config struct {
	stdout io.Writer
	stderr io.Writer
}

// WithStdout sets where console.log, console.info and console.debug write.
func WithStdout(w io.Writer) Option {
	return func(c *config) {
		c.stdout = w
	}
}

// WithStderr sets where console.warn and console.error write.
func WithStderr(w io.Writer) Option {
	return func(c *config) {
		c.stderr = w
	}
}

// Install defines the builtins in realm.
func Install(realm *object.Realm, opts ...Option) {
	cfg := &config{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(cfg)
	}
	b := &installer{realm: realm}
	b.objects()
	b.functions()
	b.errorTypes()
	b.arrays()
	b.strings()
	b.numbers()
	b.booleans()
	b.math()
	b.json()
	b.console(cfg.stdout, cfg.stderr)
	b.globals()
}

// NewRealm returns a realm with the builtins installed.
func NewRealm(opts ...Option) *object.Realm {
	realm := object.NewRealm()
	Install(realm, opts...)
	return realm
}

type installer struct {
	realm      *object.Realm
	parseInt   *object.Builtin
	parseFloat *object.Builtin
}

// method defines a non-enumerable builtin method on obj.
func (b *installer) method(obj hiddenSetter, name string, length int, fn object.BuiltinFunction) *object.Builtin {
	builtin := b.realm.NewBuiltin(name, length, fn)
	obj.SetHidden(name, builtin)
	return builtin
}

// constructor creates a global constructor wired to its prototype.
func (b *installer) constructor(name string, length int, proto *object.Dict, call, construct object.BuiltinFunction) *object.Builtin {
	ctor := b.realm.NewBuiltin(name, length, call)
	if construct != nil {
		ctor.WithConstructor(construct)
	}
	ctor.SetHidden("prototype", proto)
	proto.SetHidden("constructor", ctor)
	b.realm.DefineGlobal(name, ctor)
	return ctor
}

type hiddenSetter interface {
	SetHidden(key string, value object.Object)
}

// arg returns args[i], or undefined when it was not passed.
func arg(args []object.Object, i int) object.Object {
	if i < len(args) {
		return args[i]
	}
	return object.Undefined
}

func toString(ctx context.Context, obj object.Object) (*object.String, error) {
	if s, ok := obj.(*object.String); ok {
		return s, nil
	}
	s, err := object.ToString(ctx, obj)
	if err != nil {
		return nil, err
	}
	return object.NewString(s), nil
}

// toIntegerOrInfinity converts an argument used as a position or count.
func toIntegerOrInfinity(ctx context.Context, obj object.Object) (float64, error) {
	f, err := object.ToNumber(ctx, obj)
	if err != nil {
		return 0, err
	}
	return object.ToInteger(f), nil
}

// relativeIndex resolves a possibly negative position against length, as
// used by slice and friends. Undefined yields def.
func relativeIndex(ctx context.Context, obj object.Object, length, def int) (int, error) {
	if obj == object.Undefined {
		return def, nil
	}
	f, err := toIntegerOrInfinity(ctx, obj)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		f += float64(length)
		if f < 0 {
			f = 0
		}
	}
	if f > float64(length) {
		f = float64(length)
	}
	return int(f), nil
}

func callable(obj object.Object) (object.Callable, error) {
	fn, ok := obj.(object.Callable)
	if !ok {
		return nil, errz.TypeErrorf("%s is not a function", obj.Inspect())
	}
	return fn, nil
}
