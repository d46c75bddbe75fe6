package object

import (
	"sort"
	"strings"
)

// ModuleEnv holds the top-level bindings of one module instance. Each slot
// is a cell; importing a binding makes the importer's slot share the
// exporter's cell, so later writes are visible to every importer.
type ModuleEnv struct {
	name  string
	names []string
	cells []*Cell
}

// NewModuleEnv creates an environment with one fresh cell per slot. Lexical
// slots start uninitialized, the others start undefined.
func NewModuleEnv(name string, names []string, lexical []bool) *ModuleEnv {
	env := &ModuleEnv{
		name:  name,
		names: append([]string(nil), names...),
		cells: make([]*Cell, len(names)),
	}
	for i := range env.cells {
		initial := Object(Undefined)
		if i < len(lexical) && lexical[i] {
			initial = Uninitialized
		}
		env.cells[i] = NewValueCell(initial)
	}
	return env
}

func (e *ModuleEnv) Name() string { return e.name }

func (e *ModuleEnv) SlotCount() int { return len(e.cells) }

func (e *ModuleEnv) SlotName(i int) string { return e.names[i] }

// Cell returns the cell behind slot i.
func (e *ModuleEnv) Cell(i int) *Cell { return e.cells[i] }

// Bind makes slot i share cell.
func (e *ModuleEnv) Bind(i int, cell *Cell) { e.cells[i] = cell }

// Namespace is a module namespace object: a read-only, live view of a
// module's exports, sorted by name.
type Namespace struct {
	name  string
	keys  []string
	cells map[string]*Cell
}

// NewNamespace creates a namespace over the given export cells.
func NewNamespace(name string, exports map[string]*Cell) *Namespace {
	keys := make([]string, 0, len(exports))
	cells := make(map[string]*Cell, len(exports))
	for k, c := range exports {
		keys = append(keys, k)
		cells[k] = c
	}
	sort.Strings(keys)
	return &Namespace{name: name, keys: keys, cells: cells}
}

func (n *Namespace) Type() Type { return OBJECT }

// ModuleName returns the name of the module the namespace belongs to.
func (n *Namespace) ModuleName() string { return n.name }

// Keys returns the exported names in sorted order.
func (n *Namespace) Keys() []string {
	return append([]string(nil), n.keys...)
}

// Get reads an export. Reading an export still in its temporal dead zone
// is a ReferenceError.
func (n *Namespace) Get(key string) (Object, bool, error) {
	cell, ok := n.cells[key]
	if !ok {
		return nil, false, nil
	}
	v := cell.Value()
	if v == Uninitialized {
		return nil, true, referenceErrorf("Cannot access '%s' before initialization", key)
	}
	if v == nil {
		v = Undefined
	}
	return v, true, nil
}

func (n *Namespace) Inspect() string {
	return inspect(n, 0)
}

func (n *Namespace) inspectAt(depth int) string {
	if depth > maxInspectDepth {
		return "[Module]"
	}
	parts := make([]string, 0, len(n.keys))
	for _, k := range n.keys {
		v, _, err := n.Get(k)
		s := "<uninitialized>"
		if err == nil {
			s = inspect(v, depth+1)
		}
		parts = append(parts, inspectKey(k)+": "+s)
	}
	if len(parts) == 0 {
		return "[Module: null prototype] {}"
	}
	return "[Module: null prototype] { " + strings.Join(parts, ", ") + " }"
}

func (n *Namespace) Interface() any {
	return export(n, 0)
}
