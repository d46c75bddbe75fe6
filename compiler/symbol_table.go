package compiler

import (
	"fmt"
	"math"

	"github.com/deepnoodle-ai/jsrt/op"
)

// Scope describes where a variable lives at runtime.
type Scope int

const (
	// Global variables are script top-level bindings, resolved by name on
	// the realm.
	Global Scope = iota
	// Local variables live in the frame of the current function.
	Local
	// Free variables are captured from an enclosing function via cells.
	Free
	// Module variables live in module environment slots.
	Module
)

func (s Scope) String() string {
	switch s {
	case Global:
		return "global"
	case Local:
		return "local"
	case Free:
		return "free"
	case Module:
		return "module"
	}
	return "unknown"
}

// VarKind is the way a binding was introduced.
type VarKind int

const (
	KindVar VarKind = iota
	KindLet
	KindConst
	KindFunction
	KindParam
	KindImport
)

// Symbol is a declared binding.
type Symbol struct {
	name  string
	index uint16
	kind  VarKind
	scope Scope
	// bound is set once the binding has entered its scope, either through
	// its dead zone or by being initialized directly.
	bound bool
}

func (s *Symbol) Name() string    { return s.name }
func (s *Symbol) Index() uint16   { return s.index }
func (s *Symbol) Kind() VarKind   { return s.kind }
func (s *Symbol) Scope() Scope    { return s.scope }
func (s *Symbol) IsConst() bool   { return s.kind == KindConst || s.kind == KindImport }
func (s *Symbol) IsLexical() bool { return s.kind == KindLet || s.kind == KindConst }

// Resolution is the result of resolving a name from some table.
type Resolution struct {
	symbol    *Symbol
	scope     Scope
	freeIndex int
}

func (r *Resolution) Symbol() *Symbol { return r.symbol }
func (r *Resolution) Scope() Scope    { return r.scope }
func (r *Resolution) FreeIndex() int  { return r.freeIndex }

// FreeVar describes how a closure obtains one captured cell when it is
// created: from a local of the enclosing frame, or from one of the
// enclosing function's own free variables.
type FreeVar struct {
	Name   string
	Source uint16 // op.CellLocal or op.CellFree
	Index  uint16
	symbol *Symbol
}

// SymbolTable maps names to symbols for one lexical scope. Function
// tables own the local index space; block tables nested inside a function
// allocate from it.
type SymbolTable struct {
	id         string
	parent     *SymbolTable
	fn         *SymbolTable
	isFunction bool
	topScope   Scope
	symbols    map[string]*Symbol
	children   int

	// Only used on function tables.
	count    uint16
	names    []string
	free     []*FreeVar
	freeByID map[*Symbol]int
}

// NewSymbolTable creates the root table of a script or module. Names
// declared directly in it live in topScope (Global or Module).
func NewSymbolTable(topScope Scope) *SymbolTable {
	t := &SymbolTable{
		id:         "root",
		isFunction: true,
		topScope:   topScope,
		symbols:    map[string]*Symbol{},
		freeByID:   map[*Symbol]int{},
	}
	t.fn = t
	return t
}

func (t *SymbolTable) ID() string { return t.id }

func (t *SymbolTable) Parent() *SymbolTable { return t.parent }

// IsRoot reports whether this is the top-level table of a script or module.
func (t *SymbolTable) IsRoot() bool { return t.parent == nil }

// IsFunction reports whether the table is the outermost scope of a function
// (or of the top level).
func (t *SymbolTable) IsFunction() bool { return t.isFunction }

// NewChild creates the table for a nested function.
func (t *SymbolTable) NewChild() *SymbolTable {
	child := &SymbolTable{
		id:         fmt.Sprintf("%s.%d", t.id, t.children),
		parent:     t,
		isFunction: true,
		topScope:   Local,
		symbols:    map[string]*Symbol{},
		freeByID:   map[*Symbol]int{},
	}
	child.fn = child
	t.children++
	return child
}

// NewBlock creates the table for a nested block in the same function.
func (t *SymbolTable) NewBlock() *SymbolTable {
	block := &SymbolTable{
		id:       fmt.Sprintf("%s.%d", t.id, t.children),
		parent:   t,
		fn:       t.fn,
		topScope: Local,
		symbols:  map[string]*Symbol{},
	}
	t.children++
	return block
}

// Get returns a symbol declared directly in this table.
func (t *SymbolTable) Get(name string) (*Symbol, bool) {
	s, ok := t.symbols[name]
	return s, ok
}

// IsDefined reports whether name is declared directly in this table.
func (t *SymbolTable) IsDefined(name string) bool {
	_, ok := t.symbols[name]
	return ok
}

// scope returns where names declared in this table live.
func (t *SymbolTable) scope() Scope {
	if t.isFunction && t.parent == nil {
		return t.topScope
	}
	return Local
}

// Insert declares name in this table. Locals get the next free index of
// the enclosing function; global and module symbols get index.
func (t *SymbolTable) Insert(name string, kind VarKind, index uint16) (*Symbol, error) {
	if _, ok := t.symbols[name]; ok {
		return nil, fmt.Errorf("Identifier '%s' has already been declared", name)
	}
	sym := &Symbol{name: name, kind: kind, scope: t.scope(), index: index}
	if sym.scope == Local {
		idx, err := t.fn.allocate(name)
		if err != nil {
			return nil, err
		}
		sym.index = idx
	}
	t.symbols[name] = sym
	return sym, nil
}

// AllocHidden reserves an anonymous local in the enclosing function.
func (t *SymbolTable) AllocHidden(name string) (uint16, error) {
	return t.fn.allocate(name)
}

func (t *SymbolTable) allocate(name string) (uint16, error) {
	if t.count >= math.MaxUint16 {
		return 0, fmt.Errorf("too many local variables")
	}
	idx := t.count
	t.count++
	t.names = append(t.names, name)
	return idx, nil
}

// Count returns the number of locals of the enclosing function.
func (t *SymbolTable) Count() uint16 { return t.fn.count }

// LocalNames returns the local names of the enclosing function by index.
func (t *SymbolTable) LocalNames() []string {
	return append([]string(nil), t.fn.names...)
}

// FreeCount returns the number of variables the enclosing function
// captures.
func (t *SymbolTable) FreeCount() uint16 { return uint16(len(t.fn.free)) }

// Free returns a captured variable of the enclosing function.
func (t *SymbolTable) Free(index uint16) *FreeVar { return t.fn.free[index] }

// Resolve looks name up through enclosing blocks and functions. A local of
// an enclosing function is captured, making it a free variable of every
// function in between.
func (t *SymbolTable) Resolve(name string) (*Resolution, bool) {
	for s := t; s != nil; s = s.parent {
		if sym, ok := s.symbols[name]; ok {
			return &Resolution{symbol: sym, scope: sym.scope, freeIndex: -1}, true
		}
		if s.isFunction {
			break
		}
	}
	fn := t.fn
	if fn.parent == nil {
		return nil, false
	}
	outer, ok := fn.parent.Resolve(name)
	if !ok {
		return nil, false
	}
	if outer.scope != Local && outer.scope != Free {
		return outer, true
	}
	if idx, ok := fn.freeByID[outer.symbol]; ok {
		return &Resolution{symbol: outer.symbol, scope: Free, freeIndex: idx}, true
	}
	fv := &FreeVar{Name: name, symbol: outer.symbol}
	if outer.scope == Local {
		fv.Source = op.CellLocal
		fv.Index = outer.symbol.index
	} else {
		fv.Source = op.CellFree
		fv.Index = uint16(outer.freeIndex)
	}
	fn.free = append(fn.free, fv)
	idx := len(fn.free) - 1
	fn.freeByID[outer.symbol] = idx
	return &Resolution{symbol: outer.symbol, scope: Free, freeIndex: idx}, true
}
