// Package endian selects the byte order of capture archive headers.
//
// An EndianEngine is satisfied by binary.LittleEndian and binary.BigEndian,
// giving both the Put/Uint and Append forms through one value:
//
//	engine := endian.GetLittleEndianEngine()
//	buf = engine.AppendUint32(buf, blockSamples)
//
// Archives record their byte order in a single flag byte so readers can pick
// the matching engine with FromFlag.
package endian

import "encoding/binary"

// EndianEngine combines binary.ByteOrder and binary.AppendByteOrder.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Byte order flags as stored in archive headers.
const (
	FlagLittle byte = 0
	FlagBig    byte = 1
)

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// Flag returns the header flag for engine.
func Flag(engine EndianEngine) byte {
	if engine == binary.BigEndian {
		return FlagBig
	}

	return FlagLittle
}

// FromFlag returns the engine for a header flag, or false for an unknown flag.
func FromFlag(flag byte) (EndianEngine, bool) {
	switch flag {
	case FlagLittle:
		return binary.LittleEndian, true
	case FlagBig:
		return binary.BigEndian, true
	default:
		return nil, false
	}
}
