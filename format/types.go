// Package format holds the small enums shared between snapshots, sessions and
// capture archives.
package format

type (
	SnapshotKind    uint8
	CompressionType uint8
)

const (
	KindLogic  SnapshotKind = 0x1 // KindLogic is bit-packed logic data.
	KindDso    SnapshotKind = 0x2 // KindDso is interleaved 8-bit oscilloscope data.
	KindAnalog SnapshotKind = 0x3 // KindAnalog is interleaved 8/16-bit analog data.
	KindGroup  SnapshotKind = 0x4 // KindGroup is a projected view over logic data.

	CompressionNone CompressionType = 0x1 // CompressionNone stores capture blocks as-is.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

func (k SnapshotKind) String() string {
	switch k {
	case KindLogic:
		return "Logic"
	case KindDso:
		return "Dso"
	case KindAnalog:
		return "Analog"
	case KindGroup:
		return "Group"
	default:
		return "Unknown"
	}
}

// Valid reports whether k names a storable snapshot kind.
func (k SnapshotKind) Valid() bool {
	return k >= KindLogic && k <= KindAnalog
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}
