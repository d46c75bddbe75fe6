package bytecode

import "fmt"

// UnitKind distinguishes scripts from ES modules.
type UnitKind uint8

const (
	// Script units run against the realm's global bindings.
	Script UnitKind = 1
	// Module units run in their own module environment and carry
	// import/export tables.
	Module UnitKind = 2
)

func (k UnitKind) String() string {
	switch k {
	case Script:
		return "script"
	case Module:
		return "module"
	default:
		return fmt.Sprintf("UnitKind(%d)", uint8(k))
	}
}

// Names of import and export bindings with special meaning.
const (
	// NamespaceImport is the imported name of `import * as ns`.
	NamespaceImport = "*"
	// DefaultExport is the exported name of `export default`.
	DefaultExport = "default"
)

// Slot is one binding of a module environment. Imported bindings occupy
// slots too; they are aliased to the exporting module's slot at link time.
type Slot struct {
	Name  string `cbor:"1,keyasint"`
	Const bool   `cbor:"2,keyasint,omitempty"`
	// Lexical bindings (let, const, class-like) start uninitialized.
	Lexical bool `cbor:"3,keyasint,omitempty"`
}

// ImportBinding binds one name imported from a module to a local slot.
type ImportBinding struct {
	// Imported is the exported name in the source module, "default", or
	// NamespaceImport for namespace imports.
	Imported string `cbor:"1,keyasint"`
	Slot     int    `cbor:"2,keyasint"`
	Line     int    `cbor:"3,keyasint,omitempty"`
	Column   int    `cbor:"4,keyasint,omitempty"`
}

// Import is one import declaration. Side-effect imports have no bindings.
type Import struct {
	Specifier string          `cbor:"1,keyasint"`
	Bindings  []ImportBinding `cbor:"2,keyasint,omitempty"`
}

// Export describes one exported name. Local exports reference a slot;
// indirect exports (`export { a as b } from "m"`) name the source module
// and the binding imported from it.
type Export struct {
	Exported  string `cbor:"1,keyasint"`
	Slot      int    `cbor:"2,keyasint"`
	Specifier string `cbor:"3,keyasint,omitempty"`
	Imported  string `cbor:"4,keyasint,omitempty"`
}

// IsIndirect returns true for re-exports of another module's binding.
func (e Export) IsIndirect() bool {
	return e.Specifier != ""
}

// Hoisted is a function declaration instantiated when a module is linked,
// before any module body runs.
type Hoisted struct {
	Slot int `cbor:"1,keyasint"`
	// Constant is the index of the *Function in the main code's constants.
	Constant int `cbor:"2,keyasint"`
}

// Unit is the result of compiling one source file: the main code block plus
// the module metadata needed to link it. Units are immutable once built.
type Unit struct {
	kind    UnitKind
	name    string
	main    *Code
	slots   []Slot
	imports []Import
	exports []Export
	hoisted []Hoisted
}

// UnitParams contains parameters for creating a new Unit.
type UnitParams struct {
	Kind    UnitKind
	Name    string
	Main    *Code
	Slots   []Slot
	Imports []Import
	Exports []Export
	Hoisted []Hoisted
}

// NewUnit creates a new immutable Unit.
func NewUnit(params UnitParams) *Unit {
	u := &Unit{
		kind: params.Kind,
		name: params.Name,
		main: params.Main,
	}
	u.slots = append(u.slots, params.Slots...)
	for _, imp := range params.Imports {
		imp.Bindings = append([]ImportBinding(nil), imp.Bindings...)
		u.imports = append(u.imports, imp)
	}
	u.exports = append(u.exports, params.Exports...)
	u.hoisted = append(u.hoisted, params.Hoisted...)
	return u
}

// Kind returns whether this is a script or module unit.
func (u *Unit) Kind() UnitKind { return u.kind }

// Name returns the module name or script filename.
func (u *Unit) Name() string { return u.name }

// Main returns the top-level code block.
func (u *Unit) Main() *Code { return u.main }

// SlotCount returns the number of module environment slots.
func (u *Unit) SlotCount() int { return len(u.slots) }

// SlotAt returns the slot at the given index.
func (u *Unit) SlotAt(index int) Slot { return u.slots[index] }

// ImportCount returns the number of import declarations.
func (u *Unit) ImportCount() int { return len(u.imports) }

// ImportAt returns the import declaration at the given index. The returned
// value shares no state with the unit.
func (u *Unit) ImportAt(index int) Import {
	imp := u.imports[index]
	imp.Bindings = append([]ImportBinding(nil), imp.Bindings...)
	return imp
}

// ExportCount returns the number of exported names.
func (u *Unit) ExportCount() int { return len(u.exports) }

// ExportAt returns the export at the given index.
func (u *Unit) ExportAt(index int) Export { return u.exports[index] }

// HoistedCount returns the number of hoisted function declarations.
func (u *Unit) HoistedCount() int { return len(u.hoisted) }

// HoistedAt returns the hoisted declaration at the given index.
func (u *Unit) HoistedAt(index int) Hoisted { return u.hoisted[index] }

// Requests returns the distinct module specifiers this unit depends on, in
// first-appearance order, covering imports and indirect exports.
func (u *Unit) Requests() []string {
	seen := map[string]bool{}
	var specs []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			specs = append(specs, s)
		}
	}
	for _, imp := range u.imports {
		add(imp.Specifier)
	}
	for _, exp := range u.exports {
		add(exp.Specifier)
	}
	return specs
}

// Stripped returns a copy of the unit with all source text removed.
func (u *Unit) Stripped() *Unit {
	clone := *u
	if u.main != nil {
		clone.main = u.main.stripped()
	}
	return &clone
}
