// Package module holds the module records of one execution context and
// links them: it loads missing dependencies, validates every import
// binding, wires module environments together and evaluates module graphs
// in dependency order.
package module

import (
	"fmt"

	"github.com/deepnoodle-ai/jsrt/bytecode"
	"github.com/deepnoodle-ai/jsrt/object"
)

// State is the lifecycle state of a compiled unit.
type State uint8

const (
	Uncompiled State = iota
	Compiled
	Resolved
	Executed
	// Failed is terminal. The error that caused it is kept on the record.
	Failed
)

func (s State) String() string {
	switch s {
	case Uncompiled:
		return "uncompiled"
	case Compiled:
		return "compiled"
	case Resolved:
		return "resolved"
	case Executed:
		return "executed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Record is one module known to a Registry.
type Record struct {
	name  string
	unit  *bytecode.Unit
	state State
	err   error
	env   *object.ModuleEnv
	// deps maps each requested specifier to the record it resolved to.
	deps      map[string]*Record
	nsCell    *object.Cell
	namespace *object.Namespace
}

func newRecord(name string, unit *bytecode.Unit) *Record {
	return &Record{name: name, unit: unit, state: Compiled}
}

// Name returns the canonical module name.
func (r *Record) Name() string { return r.name }

// Unit returns the compiled module unit.
func (r *Record) Unit() *bytecode.Unit { return r.unit }

// State returns the record's lifecycle state.
func (r *Record) State() State { return r.state }

// Err returns the error that moved the record to Failed, if any.
func (r *Record) Err() error { return r.err }

// Env returns the module environment. It is nil until the record is
// resolved.
func (r *Record) Env() *object.ModuleEnv { return r.env }

// Namespace returns the module namespace object, or nil before the record
// is resolved.
func (r *Record) Namespace() *object.Namespace {
	if r.env == nil {
		return nil
	}
	r.namespaceCell()
	return r.namespace
}

func (r *Record) fail(err error) error {
	r.state = Failed
	r.err = err
	return err
}

// exportEntry finds the export entry named name.
func (r *Record) exportEntry(name string) (bytecode.Export, bool) {
	for i := 0; i < r.unit.ExportCount(); i++ {
		if exp := r.unit.ExportAt(i); exp.Exported == name {
			return exp, true
		}
	}
	return bytecode.Export{}, false
}

// newEnv creates a fresh environment for the unit's slots.
func (r *Record) newEnv() *object.ModuleEnv {
	n := r.unit.SlotCount()
	names := make([]string, n)
	lexical := make([]bool, n)
	for i := 0; i < n; i++ {
		slot := r.unit.SlotAt(i)
		names[i] = slot.Name
		lexical[i] = slot.Lexical
	}
	return object.NewModuleEnv(r.name, names, lexical)
}
