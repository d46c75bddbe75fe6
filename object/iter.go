package object

import (
	"unicode/utf8"
)

// Iterator is the internal iteration state used by for...of, for...in and
// spread. It is never exposed to scripts.
type Iterator struct {
	next func() (Object, bool)
}

func (it *Iterator) Type() Type      { return ITERATOR }
func (it *Iterator) Inspect() string { return "[Iterator]" }
func (it *Iterator) Interface() any  { return nil }

// Next returns the next value, or false when the iterator is exhausted.
func (it *Iterator) Next() (Object, bool) {
	return it.next()
}

// NewIterator wraps a next function.
func NewIterator(next func() (Object, bool)) *Iterator {
	return &Iterator{next: next}
}

// ValuesIterator returns an iterator over the values of an array or the
// code points of a string, as used by for...of and spread.
func ValuesIterator(obj Object) (*Iterator, error) {
	switch obj := obj.(type) {
	case *Array:
		i := 0
		return NewIterator(func() (Object, bool) {
			if i >= obj.Len() {
				return nil, false
			}
			v := obj.Get(i)
			i++
			return v, true
		}), nil
	case *String:
		s := obj.value
		pos := 0
		return NewIterator(func() (Object, bool) {
			if pos >= len(s) {
				return nil, false
			}
			_, size := utf8.DecodeRuneInString(s[pos:])
			v := NewString(s[pos : pos+size])
			pos += size
			return v, true
		}), nil
	case *Iterator:
		return obj, nil
	}
	return nil, typeErrorf("%s is not iterable", describe(obj))
}

// KeysIterator returns an iterator over the enumerable string keys of obj
// and its prototype chain, as used by for...in. Keys are snapshotted when
// iteration starts; keys deleted in the meantime are skipped.
func KeysIterator(obj Object) *Iterator {
	var keys []string
	var holder PropertyObject
	seen := map[string]bool{}
	add := func(ks []string) {
		for _, k := range ks {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	switch o := obj.(type) {
	case *String:
		for i := 0; i < o.Len(); i++ {
			keys = append(keys, itoa(i))
		}
	case *Namespace:
		keys = o.Keys()
	case PropertyObject:
		holder = o
		add(o.OwnKeys())
		for p := o.Prototype(); p != nil; p = p.proto {
			add(p.OwnKeys())
		}
	}
	i := 0
	return NewIterator(func() (Object, bool) {
		for i < len(keys) {
			k := keys[i]
			i++
			if holder != nil && !hasProperty(holder, k) {
				continue
			}
			return NewString(k), true
		}
		return nil, false
	})
}

func hasProperty(obj PropertyObject, key string) bool {
	if _, ok := obj.GetOwn(key); ok {
		return true
	}
	for p := obj.Prototype(); p != nil; p = p.proto {
		if _, ok := p.props.Get(key); ok {
			return true
		}
	}
	return false
}
