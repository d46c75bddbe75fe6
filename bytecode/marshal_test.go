package bytecode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/jsrt/op"
)

func sampleScript() *Unit {
	child := NewCode(CodeParams{
		ID:           "main.0",
		Name:         "double",
		IsNamed:      true,
		Instructions: []op.Code{op.LoadFast, 0, op.LoadConst, 0, op.BinaryOp, op.Code(op.Multiply), op.ReturnValue},
		Constants:    []any{2.0},
		Source:       "return x * 2",
		Filename:     "test.js",
		LocalCount:   1,
		LocalNames:   []string{"x"},
	})
	fn := NewFunction(FunctionParams{
		ID:         "fn-double",
		Name:       "double",
		Parameters: []string{"x"},
		Code:       child,
	})
	main := NewCode(CodeParams{
		ID:       "main",
		Name:     "main",
		Children: []*Code{child},
		Instructions: []op.Code{
			op.LoadClosure, 0, 0,
			op.DeclareGlobal, 0, op.DeclareVar,
			op.InitGlobal, 0,
			op.LoadGlobal, 0, op.LoadConst, 1, op.Call, 1,
			op.ReturnValue,
		},
		Constants:  []any{fn, 21.0},
		Names:      []string{"double"},
		Source:     "function double(x) { return x * 2 }\ndouble(21)",
		Filename:   "test.js",
		LocalCount: 1,
	})
	return NewUnit(UnitParams{Kind: Script, Name: "test.js", Main: main})
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	data, err := Marshal(sampleScript())
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, Script, restored.Kind())
	require.Equal(t, "test.js", restored.Name())

	main := restored.Main()
	require.Equal(t, "main", main.ID())
	require.Equal(t, 15, main.InstructionCount())
	require.Equal(t, 21.0, main.ConstantAt(1))
	require.Contains(t, main.Source(), "double(21)")

	fn, ok := main.ConstantAt(0).(*Function)
	require.True(t, ok)
	require.Equal(t, "double", fn.Name())
	require.Equal(t, 1, fn.ParameterCount())
	require.Same(t, main.ChildAt(0), fn.Code())
	require.Equal(t, "x", fn.Code().LocalNameAt(0))
}

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := Marshal(sampleScript())
	require.NoError(t, err)
	b, err := Marshal(sampleScript())
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestMarshalStripSource(t *testing.T) {
	data, err := Marshal(sampleScript(), WithStripSource())
	require.NoError(t, err)
	header, err := ReadHeader(data)
	require.NoError(t, err)
	require.NotZero(t, header.Flags&FlagStripped)
	require.Zero(t, header.Flags&FlagModule)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	require.Empty(t, restored.Main().Source())
	require.Empty(t, restored.Main().ChildAt(0).Source())
	fn := restored.Main().ConstantAt(0).(*Function)
	require.Same(t, restored.Main().ChildAt(0), fn.Code())
}

func TestMarshalModuleTables(t *testing.T) {
	main := NewCode(CodeParams{
		ID:           "main",
		Instructions: []op.Code{op.LoadModule, 0, op.InitModule, 1, op.Undefined, op.ReturnValue},
	})
	unit := NewUnit(UnitParams{
		Kind:    Module,
		Name:    "m.js",
		Main:    main,
		Slots:   []Slot{{Name: "dep", Const: true}, {Name: "x", Lexical: true}},
		Imports: []Import{{Specifier: "./dep.js", Bindings: []ImportBinding{{Imported: "default", Slot: 0}}}},
		Exports: []Export{{Exported: "x", Slot: 1}, {Exported: "y", Specifier: "./dep.js", Imported: "y"}},
	})
	data, err := Marshal(unit)
	require.NoError(t, err)
	header, err := ReadHeader(data)
	require.NoError(t, err)
	require.NotZero(t, header.Flags&FlagModule)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, Module, restored.Kind())
	require.Equal(t, 2, restored.SlotCount())
	require.True(t, restored.SlotAt(1).Lexical)
	require.Equal(t, "./dep.js", restored.ImportAt(0).Specifier)
	require.Equal(t, "y", restored.ExportAt(1).Imported)
}

func TestUnmarshalRejectsCorruption(t *testing.T) {
	data, err := Marshal(sampleScript())
	require.NoError(t, err)

	t.Run("truncated header", func(t *testing.T) {
		_, err := Unmarshal(data[:10])
		require.ErrorIs(t, err, ErrCorruptHeader)
	})
	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		copy(bad, "XXXX")
		_, err := Unmarshal(bad)
		require.ErrorIs(t, err, ErrInvalidMagic)
	})
	t.Run("version", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		binary.LittleEndian.PutUint16(bad[4:6], FormatVersion+1)
		_, err := Unmarshal(bad)
		require.ErrorIs(t, err, ErrVersionMismatch)
	})
	t.Run("unknown flags", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		binary.LittleEndian.PutUint16(bad[6:8], 0x80)
		_, err := Unmarshal(bad)
		require.ErrorIs(t, err, ErrCorruptHeader)
	})
	t.Run("payload length", func(t *testing.T) {
		_, err := Unmarshal(data[:len(data)-1])
		require.ErrorIs(t, err, ErrCorruptHeader)
	})
	t.Run("checksum", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-1] ^= 0xff
		_, err := Unmarshal(bad)
		require.ErrorIs(t, err, ErrChecksum)
	})
	t.Run("module flag mismatch", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		binary.LittleEndian.PutUint16(bad[6:8], uint16(FlagModule))
		_, err := Unmarshal(bad)
		require.ErrorIs(t, err, ErrCorruptData)
	})
	t.Run("garbage payload", func(t *testing.T) {
		payload := []byte{0xff, 0x00, 0x13}
		bad := Header{Version: FormatVersion, PayloadLen: uint32(len(payload)), Checksum: crcOf(payload)}.encode()
		_, err := Unmarshal(append(bad, payload...))
		require.ErrorIs(t, err, ErrCorruptData)
	})
}
