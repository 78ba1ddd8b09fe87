package capture

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/arloliu/mipsnap/compress"
	"github.com/arloliu/mipsnap/endian"
	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/internal/hash"
)

// Reader reads the blocks of an archive in order.
type Reader struct {
	r         io.Reader
	header    Header
	meta      Meta
	codec     compress.Codec
	engine    endian.EndianEngine
	remaining uint64

	blockHeader [BlockHeaderSize]byte
	payload     []byte
	raw         []byte
}

// NewReader reads and validates the archive header and metadata.
func NewReader(r io.Reader) (*Reader, error) {
	var data [HeaderSize]byte
	if err := readFull(r, data[:]); err != nil {
		return nil, err
	}

	rd := &Reader{r: r}
	if err := rd.header.Parse(data[:]); err != nil {
		return nil, err
	}

	codec, err := compress.GetCodec(rd.header.Compression)
	if err != nil {
		return nil, err
	}
	rd.codec = codec
	rd.engine = rd.header.engine()
	rd.remaining = rd.header.SampleCount

	metaData := make([]byte, rd.header.MetaLength)
	if err := readFull(r, metaData); err != nil {
		return nil, err
	}
	if err := rd.meta.unmarshal(metaData); err != nil {
		return nil, err
	}

	return rd, nil
}

// Header returns the archive header.
func (rd *Reader) Header() Header {
	return rd.header
}

// Meta returns the archive metadata.
func (rd *Reader) Meta() Meta {
	return rd.meta
}

// Next returns the raw samples of the next block. The slice is only valid
// until the following call. Returns io.EOF after the last block.
func (rd *Reader) Next() ([]byte, error) {
	if rd.remaining == 0 {
		return nil, io.EOF
	}

	if err := readFull(rd.r, rd.blockHeader[:]); err != nil {
		return nil, err
	}

	rawLen := int(rd.engine.Uint32(rd.blockHeader[0:4]))
	stored := int(rd.engine.Uint32(rd.blockHeader[4:8]))
	sum := rd.engine.Uint64(rd.blockHeader[8:16])

	unit := int(rd.header.UnitSize)
	maxRaw := min(uint64(rd.header.BlockSamples), rd.remaining) * uint64(unit)
	if rawLen == 0 || rawLen%unit != 0 || uint64(rawLen) > maxRaw || stored == 0 || stored > rawLen {
		return nil, fmt.Errorf("%w: block of %d raw, %d stored bytes", errs.ErrCorruptBlock, rawLen, stored)
	}

	rd.payload = slices.Grow(rd.payload[:0], stored)[:stored]
	if err := readFull(rd.r, rd.payload); err != nil {
		return nil, err
	}

	raw := rd.payload
	if stored < rawLen {
		var err error
		if rd.raw, err = rd.codec.Decompress(rd.raw[:0], rd.payload, rawLen); err != nil {
			return nil, err
		}
		raw = rd.raw
	}

	if hash.Block(raw) != sum {
		return nil, fmt.Errorf("%w: block at sample %d", errs.ErrChecksumMismatch,
			rd.header.SampleCount-rd.remaining)
	}
	rd.remaining -= uint64(rawLen / unit)

	return raw, nil
}

func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %w", errs.ErrTruncated, err)
		}

		return err
	}

	return nil
}
