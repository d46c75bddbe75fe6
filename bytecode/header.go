package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic identifies a serialized unit.
const Magic = "JSBC"

// FormatVersion is the serialization format version. Buffers written with a
// different version are rejected rather than reinterpreted.
const FormatVersion uint16 = 1

// HeaderSize is the fixed size of the serialized header in bytes.
const HeaderSize = 16

// Flags describe the serialized unit.
type Flags uint16

const (
	// FlagModule is set when the payload is a module unit.
	FlagModule Flags = 1 << 0
	// FlagStripped is set when source text was removed before encoding.
	FlagStripped Flags = 1 << 1

	knownFlags = FlagModule | FlagStripped
)

var (
	ErrInvalidMagic    = errors.New("bytecode: invalid magic")
	ErrVersionMismatch = errors.New("bytecode: format version mismatch")
	ErrCorruptHeader   = errors.New("bytecode: corrupt header")
	ErrChecksum        = errors.New("bytecode: checksum mismatch")
	ErrCorruptData     = errors.New("bytecode: corrupt payload")
	ErrInvalidCode     = errors.New("bytecode: invalid code")
)

// Header is the fixed-size prefix of a serialized unit:
//
//	offset size field
//	0      4    magic "JSBC"
//	4      2    format version (little endian)
//	6      2    flags
//	8      4    payload length
//	12     4    CRC-32 (IEEE) of the payload
type Header struct {
	Version    uint16
	Flags      Flags
	PayloadLen uint32
	Checksum   uint32
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.Flags))
	binary.LittleEndian.PutUint32(buf[8:12], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[12:16], h.Checksum)
	return buf
}

// ReadHeader decodes and checks the header of a serialized unit. The
// payload length must account for exactly the rest of data.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		if len(data) >= 4 && string(data[0:4]) != Magic {
			return Header{}, ErrInvalidMagic
		}
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptHeader, len(data))
	}
	if string(data[0:4]) != Magic {
		return Header{}, ErrInvalidMagic
	}
	h := Header{
		Version:    binary.LittleEndian.Uint16(data[4:6]),
		Flags:      Flags(binary.LittleEndian.Uint16(data[6:8])),
		PayloadLen: binary.LittleEndian.Uint32(data[8:12]),
		Checksum:   binary.LittleEndian.Uint32(data[12:16]),
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version, FormatVersion)
	}
	if h.Flags&^knownFlags != 0 {
		return Header{}, fmt.Errorf("%w: unknown flags %#x", ErrCorruptHeader, uint16(h.Flags))
	}
	if uint64(h.PayloadLen) != uint64(len(data)-HeaderSize) {
		return Header{}, fmt.Errorf("%w: payload length %d does not match %d available bytes",
			ErrCorruptHeader, h.PayloadLen, len(data)-HeaderSize)
	}
	return h, nil
}
