package object

import (
	"strconv"
	"strings"
)

// MaxArrayLength bounds array growth through index assignment.
const MaxArrayLength = 1 << 24

// Array is a dense array.
type Array struct {
	items []Object
	props Props
	proto *Dict
}

// NewArray creates an array that takes ownership of items.
func NewArray(proto *Dict, items []Object) *Array {
	return &Array{items: items, proto: proto}
}

func (a *Array) Type() Type { return OBJECT }

func (a *Array) Prototype() *Dict { return a.proto }

func (a *Array) Len() int { return len(a.items) }

// Items returns the backing slice. Callers must not retain it across
// operations that may modify the array.
func (a *Array) Items() []Object { return a.items }

// Get returns the element at index i, or undefined when out of range.
func (a *Array) Get(i int) Object {
	if i < 0 || i >= len(a.items) {
		return Undefined
	}
	if v := a.items[i]; v != nil {
		return v
	}
	return Undefined
}

// SetIndex assigns element i, growing the array with undefined as needed.
func (a *Array) SetIndex(i int, value Object) error {
	if i < 0 || i >= MaxArrayLength {
		return rangeErrorf("Invalid array length")
	}
	for len(a.items) <= i {
		a.items = append(a.items, Undefined)
	}
	a.items[i] = value
	return nil
}

// Append adds values to the end of the array.
func (a *Array) Append(values ...Object) {
	a.items = append(a.items, values...)
}

// SetItems replaces the contents of the array.
func (a *Array) SetItems(items []Object) {
	a.items = items
}

// SetLength truncates or extends the array.
func (a *Array) SetLength(n int) error {
	if n < 0 || n > MaxArrayLength {
		return rangeErrorf("Invalid array length")
	}
	if n <= len(a.items) {
		a.items = a.items[:n]
		return nil
	}
	for len(a.items) < n {
		a.items = append(a.items, Undefined)
	}
	return nil
}

func (a *Array) GetOwn(key string) (Object, bool) {
	if key == "length" {
		return NewNumber(float64(len(a.items))), true
	}
	if i, ok := ArrayIndex(key); ok {
		if i < len(a.items) {
			return a.Get(i), true
		}
		return nil, false
	}
	return a.props.Get(key)
}

func (a *Array) SetOwn(key string, value Object) error {
	if key == "length" {
		n, ok := value.(*Number)
		if !ok || n.value != float64(int(n.value)) {
			return rangeErrorf("Invalid array length")
		}
		return a.SetLength(int(n.value))
	}
	if i, ok := ArrayIndex(key); ok {
		return a.SetIndex(i, value)
	}
	a.props.Set(key, value)
	return nil
}

func (a *Array) DeleteOwn(key string) bool {
	if i, ok := ArrayIndex(key); ok {
		if i < len(a.items) {
			a.items[i] = Undefined
			return true
		}
		return false
	}
	return a.props.Delete(key)
}

func (a *Array) OwnKeys() []string {
	keys := make([]string, 0, len(a.items)+a.props.Len())
	for i := range a.items {
		keys = append(keys, strconv.Itoa(i))
	}
	return append(keys, a.props.Keys()...)
}

func (a *Array) Inspect() string {
	return inspect(a, 0)
}

func (a *Array) Interface() any {
	return export(a, 0)
}

func (a *Array) inspectAt(depth int) string {
	if len(a.items) == 0 {
		return "[]"
	}
	if depth > maxInspectDepth {
		return "[Array]"
	}
	parts := make([]string, len(a.items))
	for i := range a.items {
		parts[i] = inspect(a.Get(i), depth+1)
	}
	return "[ " + strings.Join(parts, ", ") + " ]"
}

// ArrayIndex parses a canonical array index such as "0" or "12".
func ArrayIndex(key string) (int, bool) {
	n := len(key)
	if n == 0 || n > 10 {
		return 0, false
	}
	if n > 1 && key[0] == '0' {
		return 0, false
	}
	i := 0
	for j := 0; j < n; j++ {
		c := key[j]
		if c < '0' || c > '9' {
			return 0, false
		}
		i = i*10 + int(c-'0')
	}
	if i >= MaxArrayLength {
		return 0, false
	}
	return i, true
}
