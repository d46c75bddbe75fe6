package bytecode

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/jsrt/op"
)

func crcOf(b []byte) uint32 { return crc32.ChecksumIEEE(b) }

func scriptWith(instructions []op.Code, constants []any, names []string, locals int) *Unit {
	return NewUnit(UnitParams{
		Kind: Script,
		Main: NewCode(CodeParams{
			ID:           "main",
			Instructions: instructions,
			Constants:    constants,
			Names:        names,
			LocalCount:   locals,
		}),
	})
}

func TestValidateAcceptsSample(t *testing.T) {
	require.NoError(t, Validate(sampleScript()))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		unit *Unit
		msg  string
	}{
		{"unknown opcode", scriptWith([]op.Code{op.Code(250)}, nil, nil, 0), "unknown opcode"},
		{"truncated", scriptWith([]op.Code{op.LoadConst}, []any{1.0}, nil, 0), "truncated"},
		{"constant range", scriptWith([]op.Code{op.LoadConst, 3}, []any{1.0}, nil, 0), "constant 3 out of range"},
		{"name range", scriptWith([]op.Code{op.LoadGlobal, 0}, nil, nil, 0), "name 0 out of range"},
		{"local range", scriptWith([]op.Code{op.LoadFast, 2}, nil, nil, 2), "local 2 out of range"},
		{"free range", scriptWith([]op.Code{op.LoadFree, 0}, nil, nil, 0), "free variable 0 out of range"},
		{"module slot in script", scriptWith([]op.Code{op.LoadModule, 0}, nil, nil, 0), "module slot access in a script"},
		{"jump past end", scriptWith([]op.Code{op.JumpForward, 9}, nil, nil, 0), "jump target"},
		{"jump before start", scriptWith([]op.Code{op.Nop, op.JumpBackward, 5}, nil, nil, 0), "jump target"},
		{"zero jump", scriptWith([]op.Code{op.JumpForward, 0}, nil, nil, 0), "jump target"},
		{"bad operator", scriptWith([]op.Code{op.BinaryOp, 77}, nil, nil, 0), "unknown operator"},
		{"bad comparison", scriptWith([]op.Code{op.CompareOp, 0}, nil, nil, 0), "unknown comparison"},
		{"bad declare kind", scriptWith([]op.Code{op.DeclareGlobal, 0, 9}, nil, []string{"x"}, 0), "declaration kind"},
		{"closure on number", scriptWith([]op.Code{op.LoadClosure, 0, 0}, []any{1.0}, nil, 0), "not a function"},
		{"bad constant type", scriptWith(nil, []any{true}, nil, 0), "unsupported constant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.unit)
			require.ErrorIs(t, err, ErrInvalidCode)
			require.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestValidateFunctionConstants(t *testing.T) {
	orphan := NewCode(CodeParams{ID: "orphan"})
	fn := NewFunction(FunctionParams{Code: orphan})
	unit := scriptWith([]op.Code{op.LoadClosure, 0, 0}, []any{fn}, nil, 0)
	err := Validate(unit)
	require.ErrorIs(t, err, ErrInvalidCode)
	require.Contains(t, err.Error(), "not a child")

	child := NewCode(CodeParams{ID: "child", FreeNames: []string{"a"}})
	fn = NewFunction(FunctionParams{Code: child})
	main := NewCode(CodeParams{
		ID:           "main",
		Children:     []*Code{child},
		Instructions: []op.Code{op.LoadClosure, 0, 0},
		Constants:    []any{fn},
	})
	err = Validate(NewUnit(UnitParams{Kind: Script, Main: main}))
	require.ErrorIs(t, err, ErrInvalidCode)
	require.Contains(t, err.Error(), "expects 1 free variables")
}

func TestValidateModuleTables(t *testing.T) {
	main := NewCode(CodeParams{ID: "main", Instructions: []op.Code{op.Undefined, op.ReturnValue}})

	err := Validate(NewUnit(UnitParams{
		Kind:    Module,
		Main:    main,
		Exports: []Export{{Exported: "x", Slot: 4}},
	}))
	require.ErrorIs(t, err, ErrInvalidCode)

	err = Validate(NewUnit(UnitParams{
		Kind:    Module,
		Main:    main,
		Slots:   []Slot{{Name: "x"}},
		Exports: []Export{{Exported: "x", Slot: 0}, {Exported: "x", Slot: 0}},
	}))
	require.ErrorIs(t, err, ErrInvalidCode)
	require.Contains(t, err.Error(), "duplicate export")

	err = Validate(NewUnit(UnitParams{
		Kind:    Module,
		Main:    main,
		Slots:   []Slot{{Name: "x"}},
		Imports: []Import{{Specifier: "./a.js", Bindings: []ImportBinding{{Imported: "a", Slot: 3}}}},
	}))
	require.ErrorIs(t, err, ErrInvalidCode)

	err = Validate(NewUnit(UnitParams{
		Kind:  Script,
		Main:  main,
		Slots: []Slot{{Name: "x"}},
	}))
	require.ErrorIs(t, err, ErrInvalidCode)
}
