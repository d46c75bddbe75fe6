// Package bytecode provides immutable representations of compiled scripts and
// modules, and the portable binary format used to store them.
//
// This package defines the output of compilation: pure data structures that
// represent compiled bytecode, function templates, and module tables. These
// types are created once by the compiler (or by [Unmarshal]) and shared
// safely across goroutines and VM instances.
//
// # Key Types
//
//   - [Unit]: A compiled script or module with its import and export tables
//   - [Code]: An immutable compiled code block (top level or function body)
//   - [Function]: An immutable function template with parameters and code reference
//   - [SourceLocation]: Maps bytecode to source positions (value type)
//
// # Immutability Guarantees
//
// All fields are unexported and constructors copy their input slices.
// Collections are exposed through index-based accessors:
//
//	code.InstructionAt(0)
//	code.ConstantAt(i)
//	unit.ImportAt(j)
//
// # Binary Format
//
// [Marshal] writes a fixed 16 byte [Header] followed by a canonical CBOR
// payload. The header carries a magic number, the format version, flags and
// a CRC-32 of the payload. [Unmarshal] rejects data with a bad header or
// checksum and runs [Validate] on the decoded unit, so a unit returned from
// it can be executed without further bounds checks.
//
// # Package Dependencies
//
// This package depends only on [github.com/deepnoodle-ai/jsrt/op] to avoid
// circular dependencies with the object package. Constants are stored as
// []any and converted to object values by the VM at load time.
package bytecode
