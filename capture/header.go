package capture

import (
	"fmt"

	"github.com/arloliu/mipsnap/compress"
	"github.com/arloliu/mipsnap/endian"
	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/format"
	"github.com/arloliu/mipsnap/sample"
)

const (
	// Magic identifies a capture archive.
	Magic = "MSNP"
	// Version is the archive layout version written by this package.
	Version = 1
	// HeaderSize is the size of the fixed archive header.
	HeaderSize = 32
	// BlockHeaderSize is the size of the header in front of every block.
	BlockHeaderSize = 16
	// MaxMetaLength bounds the metadata section.
	MaxMetaLength = 1024 * 1024
)

// Header is the fixed-size section at the start of an archive.
type Header struct {
	// BigEndian selects the byte order of every multi-byte field after the
	// flag itself. byte offset 4
	BigEndian bool
	// Version is the layout version. byte offset 5
	Version uint8
	// Kind is the archived snapshot kind. byte offset 6
	Kind format.SnapshotKind
	// Compression is the block codec. byte offset 7
	Compression format.CompressionType
	// UnitSize is the width of one interleaved sample in bytes. byte offset 8-9
	UnitSize uint16
	// Channels is the number of channels in a sample. byte offset 10-11
	Channels uint16
	// ChannelBits is the width of one channel value: 1 for logic, 8 for dso,
	// 8 or 16 for analog. byte offset 12-13
	ChannelBits uint16
	// byte offset 14-15 reserved

	// SampleCount is the number of archived samples. byte offset 16-23
	SampleCount uint64
	// BlockSamples is the maximum number of samples per block. byte offset 24-27
	BlockSamples uint32
	// MetaLength is the size of the CBOR metadata section. byte offset 28-31
	MetaLength uint32
}

func (h *Header) engine() endian.EndianEngine {
	if h.BigEndian {
		return endian.GetBigEndianEngine()
	}

	return endian.GetLittleEndianEngine()
}

// Bytes serializes the header.
func (h *Header) Bytes() []byte {
	engine := h.engine()

	data := make([]byte, 0, HeaderSize)
	data = append(data, Magic...)
	data = append(data, endian.Flag(engine), h.Version, byte(h.Kind), byte(h.Compression))
	data = engine.AppendUint16(data, h.UnitSize)
	data = engine.AppendUint16(data, h.Channels)
	data = engine.AppendUint16(data, h.ChannelBits)
	data = engine.AppendUint16(data, 0)
	data = engine.AppendUint64(data, h.SampleCount)
	data = engine.AppendUint32(data, h.BlockSamples)
	data = engine.AppendUint32(data, h.MetaLength)

	return data
}

// Parse parses and validates a header from exactly HeaderSize bytes.
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("%w: %d header bytes", errs.ErrInvalidHeader, len(data))
	}
	if string(data[:4]) != Magic {
		return fmt.Errorf("%w: %q", errs.ErrInvalidMagic, data[:4])
	}

	engine, ok := endian.FromFlag(data[4])
	if !ok {
		return fmt.Errorf("%w: byte order flag %d", errs.ErrInvalidHeader, data[4])
	}

	h.BigEndian = endian.Flag(engine) == endian.FlagBig
	h.Version = data[5]
	h.Kind = format.SnapshotKind(data[6])
	h.Compression = format.CompressionType(data[7])
	h.UnitSize = engine.Uint16(data[8:10])
	h.Channels = engine.Uint16(data[10:12])
	h.ChannelBits = engine.Uint16(data[12:14])
	h.SampleCount = engine.Uint64(data[16:24])
	h.BlockSamples = engine.Uint32(data[24:28])
	h.MetaLength = engine.Uint32(data[28:32])

	return h.Validate()
}

// ParseHeader parses and validates a header.
func ParseHeader(data []byte) (*Header, error) {
	h := &Header{}
	if err := h.Parse(data); err != nil {
		return nil, err
	}

	return h, nil
}

// Validate checks the header fields for consistency.
func (h *Header) Validate() error {
	if h.Version != Version {
		return fmt.Errorf("%w: %d", errs.ErrInvalidVersion, h.Version)
	}
	if !h.Kind.Valid() {
		return fmt.Errorf("%w: snapshot kind %d", errs.ErrInvalidHeader, h.Kind)
	}
	if _, err := compress.GetCodec(h.Compression); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidHeader, err)
	}
	if h.BlockSamples == 0 || h.BlockSamples > MaxBlockSamples {
		return fmt.Errorf("%w: %d samples per block", errs.ErrInvalidHeader, h.BlockSamples)
	}
	if h.MetaLength > MaxMetaLength {
		return fmt.Errorf("%w: %d metadata bytes", errs.ErrInvalidHeader, h.MetaLength)
	}

	unit, channels, bits := int(h.UnitSize), int(h.Channels), int(h.ChannelBits)
	var ok bool
	switch h.Kind {
	case format.KindLogic:
		ok = unit >= 1 && unit <= sample.MaxUnitSize && bits == 1 && channels == unit*8
	case format.KindDso:
		ok = channels >= 1 && bits == 8 && unit == channels
	case format.KindAnalog:
		ok = channels >= 1 && (bits == 8 || bits == 16) && unit == channels*bits/8
	}
	if !ok {
		return fmt.Errorf("%w: %s with unit size %d, %d channels of %d bits",
			errs.ErrInvalidHeader, h.Kind, unit, channels, bits)
	}

	return nil
}
