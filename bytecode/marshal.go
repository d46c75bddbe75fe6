package bytecode

import (
	"fmt"
	"hash/crc32"

	"github.com/fxamacker/cbor/v2"

	"github.com/deepnoodle-ai/jsrt/op"
)

// Constant kinds in the serialized constant pool.
const (
	constNumber   = 1
	constString   = 2
	constFunction = 3
)

type constantDef struct {
	Kind     uint8        `cbor:"1,keyasint"`
	Number   float64      `cbor:"2,keyasint,omitempty"`
	String   string       `cbor:"3,keyasint,omitempty"`
	Function *functionDef `cbor:"4,keyasint,omitempty"`
}

type functionDef struct {
	ID         string   `cbor:"1,keyasint"`
	Name       string   `cbor:"2,keyasint,omitempty"`
	Parameters []string `cbor:"3,keyasint,omitempty"`
	Rest       bool     `cbor:"4,keyasint,omitempty"`
	Arrow      bool     `cbor:"5,keyasint,omitempty"`
	// Child is the index of the function body in the enclosing code's
	// children.
	Child int `cbor:"6,keyasint"`
}

type codeDef struct {
	ID           string           `cbor:"1,keyasint"`
	Name         string           `cbor:"2,keyasint,omitempty"`
	IsNamed      bool             `cbor:"3,keyasint,omitempty"`
	Children     []*codeDef       `cbor:"4,keyasint,omitempty"`
	Instructions []uint16         `cbor:"5,keyasint"`
	Constants    []constantDef    `cbor:"6,keyasint,omitempty"`
	Names        []string         `cbor:"7,keyasint,omitempty"`
	Source       string           `cbor:"8,keyasint,omitempty"`
	Filename     string           `cbor:"9,keyasint,omitempty"`
	Locations    []SourceLocation `cbor:"10,keyasint,omitempty"`
	LocalCount   int              `cbor:"11,keyasint,omitempty"`
	LocalNames   []string         `cbor:"12,keyasint,omitempty"`
	FreeNames    []string         `cbor:"13,keyasint,omitempty"`
	MaxCallArgs  int              `cbor:"14,keyasint,omitempty"`
}

type unitDef struct {
	Kind    UnitKind  `cbor:"1,keyasint"`
	Name    string    `cbor:"2,keyasint,omitempty"`
	Main    *codeDef  `cbor:"3,keyasint"`
	Slots   []Slot    `cbor:"4,keyasint,omitempty"`
	Imports []Import  `cbor:"5,keyasint,omitempty"`
	Exports []Export  `cbor:"6,keyasint,omitempty"`
	Hoisted []Hoisted `cbor:"7,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Canonical encoding makes identical units serialize to identical bytes,
	// which keeps cache keys and checksums stable.
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		MaxNestedLevels:  256,
		MaxArrayElements: 1 << 24,
		MaxMapPairs:      1 << 20,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// MarshalOption configures Marshal.
type MarshalOption func(*marshalConfig)

type marshalConfig struct {
	stripSource bool
}

// WithStripSource removes source text from the serialized unit. Line and
// column information is kept.
func WithStripSource() MarshalOption {
	return func(c *marshalConfig) {
		c.stripSource = true
	}
}

// Marshal serializes a unit: a fixed header followed by a canonical CBOR
// payload.
func Marshal(unit *Unit, opts ...MarshalOption) ([]byte, error) {
	var cfg marshalConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if unit == nil || unit.main == nil {
		return nil, fmt.Errorf("bytecode: cannot marshal an empty unit")
	}
	if cfg.stripSource {
		unit = unit.Stripped()
	}
	main, err := codeToDef(unit.main)
	if err != nil {
		return nil, err
	}
	def := unitDef{
		Kind:    unit.kind,
		Name:    unit.name,
		Main:    main,
		Slots:   unit.slots,
		Imports: unit.imports,
		Exports: unit.exports,
		Hoisted: unit.hoisted,
	}
	payload, err := encMode.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("bytecode: encode: %w", err)
	}
	var flags Flags
	if unit.kind == Module {
		flags |= FlagModule
	}
	if cfg.stripSource {
		flags |= FlagStripped
	}
	header := Header{
		Version:    FormatVersion,
		Flags:      flags,
		PayloadLen: uint32(len(payload)),
		Checksum:   crc32.ChecksumIEEE(payload),
	}
	return append(header.encode(), payload...), nil
}

// Unmarshal decodes a serialized unit and validates it with Validate. The
// returned unit is safe to execute.
func Unmarshal(data []byte) (*Unit, error) {
	header, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	payload := data[HeaderSize:]
	if crc32.ChecksumIEEE(payload) != header.Checksum {
		return nil, ErrChecksum
	}
	var def unitDef
	if err := decMode.Unmarshal(payload, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if def.Main == nil {
		return nil, fmt.Errorf("%w: missing main code", ErrCorruptData)
	}
	if def.Kind != Script && def.Kind != Module {
		return nil, fmt.Errorf("%w: unknown unit kind %d", ErrCorruptData, def.Kind)
	}
	if (def.Kind == Module) != (header.Flags&FlagModule != 0) {
		return nil, fmt.Errorf("%w: unit kind does not match header flags", ErrCorruptData)
	}
	main, err := defToCode(def.Main, 0)
	if err != nil {
		return nil, err
	}
	unit := NewUnit(UnitParams{
		Kind:    def.Kind,
		Name:    def.Name,
		Main:    main,
		Slots:   def.Slots,
		Imports: def.Imports,
		Exports: def.Exports,
		Hoisted: def.Hoisted,
	})
	if err := Validate(unit); err != nil {
		return nil, err
	}
	return unit, nil
}

func codeToDef(c *Code) (*codeDef, error) {
	def := &codeDef{
		ID:          c.id,
		Name:        c.name,
		IsNamed:     c.isNamed,
		Names:       c.names,
		Source:      c.source,
		Filename:    c.filename,
		Locations:   c.locations,
		LocalCount:  c.localCount,
		LocalNames:  c.localNames,
		FreeNames:   c.freeNames,
		MaxCallArgs: c.maxCallArgs,
	}
	childIndex := make(map[*Code]int, len(c.children))
	for i, child := range c.children {
		childDef, err := codeToDef(child)
		if err != nil {
			return nil, err
		}
		def.Children = append(def.Children, childDef)
		childIndex[child] = i
	}
	def.Instructions = make([]uint16, len(c.instructions))
	for i, inst := range c.instructions {
		def.Instructions[i] = uint16(inst)
	}
	for i, constant := range c.constants {
		switch constant := constant.(type) {
		case float64:
			def.Constants = append(def.Constants, constantDef{Kind: constNumber, Number: constant})
		case string:
			def.Constants = append(def.Constants, constantDef{Kind: constString, String: constant})
		case *Function:
			index, ok := childIndex[constant.code]
			if !ok {
				return nil, fmt.Errorf("bytecode: function constant %d of %q is not a child code block", i, c.id)
			}
			def.Constants = append(def.Constants, constantDef{Kind: constFunction, Function: &functionDef{
				ID:         constant.id,
				Name:       constant.name,
				Parameters: constant.parameters,
				Rest:       constant.rest,
				Arrow:      constant.arrow,
				Child:      index,
			}})
		default:
			return nil, fmt.Errorf("bytecode: unsupported constant type %T", constant)
		}
	}
	return def, nil
}

func defToCode(def *codeDef, depth int) (*Code, error) {
	if depth > 128 {
		return nil, fmt.Errorf("%w: code nesting too deep", ErrCorruptData)
	}
	children := make([]*Code, len(def.Children))
	for i, childDef := range def.Children {
		if childDef == nil {
			return nil, fmt.Errorf("%w: missing child code", ErrCorruptData)
		}
		child, err := defToCode(childDef, depth+1)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	instructions := make([]op.Code, len(def.Instructions))
	for i, inst := range def.Instructions {
		instructions[i] = op.Code(inst)
	}
	constants := make([]any, len(def.Constants))
	for i, constant := range def.Constants {
		switch constant.Kind {
		case constNumber:
			constants[i] = constant.Number
		case constString:
			constants[i] = constant.String
		case constFunction:
			fn := constant.Function
			if fn == nil || fn.Child < 0 || fn.Child >= len(children) {
				return nil, fmt.Errorf("%w: function constant %d references a missing code block", ErrCorruptData, i)
			}
			constants[i] = NewFunction(FunctionParams{
				ID:         fn.ID,
				Name:       fn.Name,
				Parameters: fn.Parameters,
				Rest:       fn.Rest,
				Arrow:      fn.Arrow,
				Code:       children[fn.Child],
			})
		default:
			return nil, fmt.Errorf("%w: unknown constant kind %d", ErrCorruptData, constant.Kind)
		}
	}
	return NewCode(CodeParams{
		ID:           def.ID,
		Name:         def.Name,
		IsNamed:      def.IsNamed,
		Children:     children,
		Instructions: instructions,
		Constants:    constants,
		Names:        def.Names,
		Source:       def.Source,
		Filename:     def.Filename,
		Locations:    def.Locations,
		LocalCount:   def.LocalCount,
		LocalNames:   def.LocalNames,
		FreeNames:    def.FreeNames,
		MaxCallArgs:  def.MaxCallArgs,
	}), nil
}
