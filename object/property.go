package object

import (
	"context"
	"math"
)

// prototypeOf returns the object where property lookup continues for obj.
func prototypeOf(ctx context.Context, obj Object) *Dict {
	switch obj := obj.(type) {
	case PropertyObject:
		return obj.Prototype()
	case *String, *Number, *Bool:
		realm, ok := GetRealm(ctx)
		if !ok {
			return nil
		}
		switch obj.(type) {
		case *String:
			return realm.StringPrototype
		case *Number:
			return realm.NumberPrototype
		default:
			return realm.BooleanPrototype
		}
	}
	return nil
}

// GetProperty reads obj[key], following the prototype chain.
func GetProperty(ctx context.Context, obj Object, key string) (Object, error) {
	switch o := obj.(type) {
	case *UndefinedType, *NullType:
		return nil, typeErrorf("Cannot read properties of %s (reading '%s')", obj.Inspect(), key)
	case *String:
		if key == "length" {
			return NewNumber(float64(o.Len())), nil
		}
		if i, ok := ArrayIndex(key); ok {
			if s, ok := o.At(i); ok {
				return NewString(s), nil
			}
			return Undefined, nil
		}
	case *Namespace:
		v, ok, err := o.Get(key)
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
		return Undefined, nil
	case PropertyObject:
		if v, ok := o.GetOwn(key); ok {
			return v, nil
		}
	}
	for p := prototypeOf(ctx, obj); p != nil; p = p.proto {
		if v, ok := p.props.Get(key); ok {
			return v, nil
		}
	}
	return Undefined, nil
}

// GetIndex reads obj[key] for a computed key.
func GetIndex(ctx context.Context, obj, key Object) (Object, error) {
	if n, ok := key.(*Number); ok {
		if i, ok := intIndex(n.value); ok {
			switch o := obj.(type) {
			case *Array:
				if i < o.Len() {
					return o.Get(i), nil
				}
			case *String:
				if s, ok := o.At(i); ok {
					return NewString(s), nil
				}
				return Undefined, nil
			}
		}
	}
	if IsNullish(obj) {
		name, err := ToPropertyKey(ctx, key)
		if err != nil {
			return nil, err
		}
		return nil, typeErrorf("Cannot read properties of %s (reading '%s')", obj.Inspect(), name)
	}
	name, err := ToPropertyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return GetProperty(ctx, obj, name)
}

func intIndex(f float64) (int, bool) {
	if f < 0 || f >= MaxArrayLength || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// SetProperty performs obj[key] = value. Assignments to primitives are
// ignored, except that undefined and null raise a TypeError.
func SetProperty(ctx context.Context, obj Object, key string, value Object) error {
	switch o := obj.(type) {
	case *UndefinedType, *NullType:
		return typeErrorf("Cannot set properties of %s (setting '%s')", obj.Inspect(), key)
	case *Namespace:
		return typeErrorf("Cannot assign to read only property '%s' of module namespace", key)
	case PropertyObject:
		return o.SetOwn(key, value)
	}
	return nil
}

// SetIndex performs obj[key] = value for a computed key.
func SetIndex(ctx context.Context, obj, key, value Object) error {
	if a, ok := obj.(*Array); ok {
		if n, ok := key.(*Number); ok {
			if i, ok := intIndex(n.value); ok {
				return a.SetIndex(i, value)
			}
		}
	}
	name, err := ToPropertyKey(ctx, key)
	if err != nil {
		return err
	}
	return SetProperty(ctx, obj, name, value)
}

// DeleteProperty implements the delete operator.
func DeleteProperty(ctx context.Context, obj Object, key string) (bool, error) {
	switch o := obj.(type) {
	case *UndefinedType, *NullType:
		return false, typeErrorf("Cannot convert undefined or null to object")
	case *Namespace:
		return false, typeErrorf("Cannot delete property '%s' of module namespace", key)
	case PropertyObject:
		o.DeleteOwn(key)
	}
	return true, nil
}

// HasProperty implements the in operator: key in obj.
func HasProperty(ctx context.Context, obj Object, key string) (bool, error) {
	switch o := obj.(type) {
	case *Namespace:
		_, ok, _ := o.Get(key)
		return ok, nil
	case PropertyObject:
		return hasProperty(o, key), nil
	}
	return false, typeErrorf("Cannot use 'in' operator to search for '%s' in %s", key, Display(obj))
}

// HasOwnProperty reports whether key is an own property of obj.
func HasOwnProperty(obj Object, key string) bool {
	switch o := obj.(type) {
	case *String:
		if key == "length" {
			return true
		}
		i, ok := ArrayIndex(key)
		return ok && i < o.Len()
	case *Namespace:
		_, ok, _ := o.Get(key)
		return ok
	case PropertyObject:
		_, ok := o.GetOwn(key)
		return ok
	}
	return false
}

// OwnKeys returns the enumerable own keys of obj.
func OwnKeys(obj Object) []string {
	switch o := obj.(type) {
	case *String:
		keys := make([]string, o.Len())
		for i := range keys {
			keys[i] = itoa(i)
		}
		return keys
	case *Namespace:
		return o.Keys()
	case PropertyObject:
		return o.OwnKeys()
	}
	return nil
}

// InstanceOf implements obj instanceof ctor.
func InstanceOf(ctx context.Context, obj, ctor Object) (bool, error) {
	if !IsCallable(ctor) {
		return false, typeErrorf("Right-hand side of 'instanceof' is not callable")
	}
	protoObj, err := GetProperty(ctx, ctor, "prototype")
	if err != nil {
		return false, err
	}
	proto, ok := protoObj.(*Dict)
	if !ok {
		return false, typeErrorf("Function has non-object prototype in instanceof check")
	}
	po, ok := obj.(PropertyObject)
	if !ok {
		return false, nil
	}
	for p := po.Prototype(); p != nil; p = p.proto {
		if p == proto {
			return true, nil
		}
	}
	return false, nil
}
