package object

import (
	"github.com/deepnoodle-ai/jsrt/errz"
	"github.com/deepnoodle-ai/jsrt/op"
)

// BindingKind distinguishes how a global binding was declared.
type BindingKind int

const (
	BindVar   BindingKind = op.DeclareVar
	BindLet   BindingKind = op.DeclareLet
	BindConst BindingKind = op.DeclareConst
	// BindHost is a binding defined by the host or the builtins. Scripts may
	// shadow it with a lexical declaration.
	BindHost BindingKind = 3
	// BindHostConst is a read-only host binding such as NaN.
	BindHostConst BindingKind = 4
)

// Binding is a global variable.
type Binding struct {
	Value Object
	Kind  BindingKind
}

func (b *Binding) lexical() bool {
	return b.Kind == BindLet || b.Kind == BindConst
}

func (b *Binding) readOnly() bool {
	return b.Kind == BindConst || b.Kind == BindHostConst
}

// Realm holds the intrinsic prototypes and the global bindings of one
// Context. Builtins are created per realm.
type Realm struct {
	ObjectPrototype   *Dict
	FunctionPrototype *Dict
	ArrayPrototype    *Dict
	StringPrototype   *Dict
	NumberPrototype   *Dict
	BooleanPrototype  *Dict
	ErrorPrototypes   map[errz.ErrorKind]*Dict

	globals map[string]*Binding
	order   []string
}

// NewRealm creates a realm with empty intrinsic prototypes wired together.
// The builtins package fills them in.
func NewRealm() *Realm {
	objectProto := NewDict(nil)
	r := &Realm{
		ObjectPrototype:   objectProto,
		FunctionPrototype: NewDict(objectProto),
		ArrayPrototype:    NewDict(objectProto),
		StringPrototype:   NewDict(objectProto),
		NumberPrototype:   NewDict(objectProto),
		BooleanPrototype:  NewDict(objectProto),
		ErrorPrototypes:   map[errz.ErrorKind]*Dict{},
		globals:           map[string]*Binding{},
	}
	base := NewDict(objectProto)
	base.SetHidden("name", NewString("Error"))
	base.SetHidden("message", EmptyString)
	r.ErrorPrototypes[errz.KindError] = base
	for _, kind := range errz.Kinds() {
		if kind == errz.KindError {
			continue
		}
		proto := NewDict(base)
		proto.SetHidden("name", NewString(kind.String()))
		proto.SetHidden("message", EmptyString)
		r.ErrorPrototypes[kind] = proto
	}
	return r
}

// NewObject creates an ordinary object.
func (r *Realm) NewObject() *Dict {
	return NewDict(r.ObjectPrototype)
}

// NewArray creates an array that takes ownership of items.
func (r *Realm) NewArray(items []Object) *Array {
	return NewArray(r.ArrayPrototype, items)
}

// NewBuiltin creates a builtin function object in this realm.
func (r *Realm) NewBuiltin(name string, length int, fn BuiltinFunction) *Builtin {
	return NewBuiltin(name, length, fn, r.FunctionPrototype)
}

// NewError creates an error object of the given kind. The message is used
// verbatim.
func (r *Realm) NewError(kind errz.ErrorKind, message string) *Dict {
	proto, ok := r.ErrorPrototypes[kind]
	if !ok {
		proto = r.ErrorPrototypes[errz.KindError]
	}
	err := NewDictWithClass(proto, "Error")
	err.SetHidden("message", NewString(message))
	return err
}

// ErrorKind returns the kind of an error object created in this realm.
func (r *Realm) ErrorKind(obj Object) (errz.ErrorKind, bool) {
	d, ok := obj.(*Dict)
	if !ok || !d.IsError() {
		return errz.KindError, false
	}
	for p := d.proto; p != nil; p = p.proto {
		for kind, proto := range r.ErrorPrototypes {
			if p == proto {
				return kind, true
			}
		}
	}
	return errz.KindError, true
}

// DefineGlobal creates or replaces a host binding.
func (r *Realm) DefineGlobal(name string, value Object) {
	r.define(name, &Binding{Value: value, Kind: BindHost})
}

// DefineGlobalConst creates or replaces a read-only host binding.
func (r *Realm) DefineGlobalConst(name string, value Object) {
	r.define(name, &Binding{Value: value, Kind: BindHostConst})
}

func (r *Realm) define(name string, b *Binding) {
	if _, ok := r.globals[name]; !ok {
		r.order = append(r.order, name)
	}
	r.globals[name] = b
}

// Global returns a global binding.
func (r *Realm) Global(name string) (*Binding, bool) {
	b, ok := r.globals[name]
	return b, ok
}

// GlobalNames returns the global names in definition order.
func (r *Realm) GlobalNames() []string {
	return append([]string(nil), r.order...)
}

// DeclareGlobal records a top-level script declaration before the script
// runs. Redeclaring a lexical binding, or declaring a lexical binding over a
// script var, is a SyntaxError. Lexical bindings start uninitialized.
func (r *Realm) DeclareGlobal(name string, kind BindingKind) error {
	existing, ok := r.globals[name]
	if ok {
		if existing.lexical() || (kind != BindVar && existing.Kind == BindVar) {
			return errz.SyntaxErrorf("Identifier '%s' has already been declared", name)
		}
		if kind == BindVar {
			if existing.Kind == BindHostConst {
				return errz.SyntaxErrorf("Identifier '%s' has already been declared", name)
			}
			existing.Kind = BindVar
			return nil
		}
	}
	b := &Binding{Kind: kind, Value: Undefined}
	if kind != BindVar {
		b.Value = Uninitialized
	}
	r.define(name, b)
	return nil
}

// LoadGlobal reads a global binding.
func (r *Realm) LoadGlobal(name string) (Object, error) {
	b, ok := r.globals[name]
	if !ok {
		return nil, errz.ReferenceErrorf("%s is not defined", name)
	}
	if b.Value == Uninitialized {
		return nil, errz.ReferenceErrorf("Cannot access '%s' before initialization", name)
	}
	return b.Value, nil
}

// InitGlobal initializes a declared binding, ending its dead zone.
func (r *Realm) InitGlobal(name string, value Object) error {
	b, ok := r.globals[name]
	if !ok {
		return errz.ReferenceErrorf("%s is not defined", name)
	}
	b.Value = value
	return nil
}

// StoreGlobal assigns to an existing global binding.
func (r *Realm) StoreGlobal(name string, value Object) error {
	b, ok := r.globals[name]
	if !ok {
		return errz.ReferenceErrorf("%s is not defined", name)
	}
	if b.Value == Uninitialized {
		return errz.ReferenceErrorf("Cannot access '%s' before initialization", name)
	}
	if b.readOnly() {
		return errz.TypeErrorf("Assignment to constant variable.")
	}
	b.Value = value
	return nil
}
