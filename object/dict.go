package object

import (
	"strings"
)

// Dict is an ordinary object: an ordered set of properties plus a prototype
// link. Error objects are dicts whose class is "Error".
type Dict struct {
	props Props
	proto *Dict
	class string
}

// NewDict creates an empty object with the given prototype.
func NewDict(proto *Dict) *Dict {
	return &Dict{proto: proto, class: "Object"}
}

// NewDictWithClass creates an empty object with the given prototype and
// internal class name.
func NewDictWithClass(proto *Dict, class string) *Dict {
	return &Dict{proto: proto, class: class}
}

func (d *Dict) Type() Type { return OBJECT }

// Class returns the internal class name, e.g. "Object" or "Error".
func (d *Dict) Class() string { return d.class }

func (d *Dict) Prototype() *Dict { return d.proto }

// SetPrototype replaces the prototype link.
func (d *Dict) SetPrototype(proto *Dict) { d.proto = proto }

func (d *Dict) GetOwn(key string) (Object, bool) { return d.props.Get(key) }

func (d *Dict) SetOwn(key string, value Object) error {
	d.props.Set(key, value)
	return nil
}

// Set is SetOwn without the error, for building objects from Go.
func (d *Dict) Set(key string, value Object) { d.props.Set(key, value) }

// SetHidden defines a non-enumerable property.
func (d *Dict) SetHidden(key string, value Object) { d.props.SetHidden(key, value) }

func (d *Dict) DeleteOwn(key string) bool { return d.props.Delete(key) }

func (d *Dict) OwnKeys() []string { return d.props.Keys() }

// Lookup finds key on this object or its prototype chain.
func (d *Dict) Lookup(key string) (Object, bool) {
	for o := d; o != nil; o = o.proto {
		if v, ok := o.props.Get(key); ok {
			return v, true
		}
	}
	return nil, false
}

// IsError reports whether the object was created as an error.
func (d *Dict) IsError() bool { return d.class == "Error" }

func (d *Dict) Inspect() string {
	return inspect(d, 0)
}

func (d *Dict) Interface() any {
	return export(d, 0)
}

func (d *Dict) inspectAt(depth int) string {
	if d.IsError() {
		return errorSummary(d)
	}
	keys := d.props.Keys()
	if len(keys) == 0 {
		return "{}"
	}
	if depth > maxInspectDepth {
		return "[Object]"
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := d.props.Get(k)
		parts = append(parts, inspectKey(k)+": "+inspect(v, depth+1))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// errorSummary renders an error as "Name: message".
func errorSummary(d *Dict) string {
	name := "Error"
	if v, ok := d.Lookup("name"); ok {
		if s, ok := v.(*String); ok {
			name = s.value
		}
	}
	var message string
	if v, ok := d.Lookup("message"); ok {
		if s, ok := v.(*String); ok {
			message = s.value
		}
	}
	switch {
	case name == "":
		return message
	case message == "":
		return name
	}
	return name + ": " + message
}
