package capture

import (
	"fmt"
	"io"

	"github.com/arloliu/mipsnap/compress"
	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/format"
	"github.com/arloliu/mipsnap/internal/hash"
	"github.com/arloliu/mipsnap/internal/options"
	"github.com/arloliu/mipsnap/internal/pool"
	"github.com/arloliu/mipsnap/snapshot"
)

// Snapshot is an archivable snapshot: *snapshot.LogicSnapshot,
// *snapshot.DsoSnapshot or *snapshot.AnalogSnapshot.
type Snapshot interface {
	Kind() format.SnapshotKind
	UnitSize() int
	ChannelCount() int
	SampleCount() uint64
}

// Stats summarizes a written archive.
type Stats struct {
	Samples     uint64
	Blocks      int
	RawBytes    uint64
	StoredBytes uint64 // block payloads only
}

// Ratio returns stored bytes per raw byte, 0 for an empty archive.
func (s Stats) Ratio() float64 {
	if s.RawBytes == 0 {
		return 0
	}

	return float64(s.StoredBytes) / float64(s.RawBytes)
}

// source adapts the kind-specific raw sample accessors.
type source struct {
	kind     format.SnapshotKind
	unitSize int
	channels int
	bits     int
	count    uint64
	view     func(start, end uint64) ([]byte, error)
}

func newSource(snap Snapshot) (*source, error) {
	src := &source{
		kind:     snap.Kind(),
		unitSize: snap.UnitSize(),
		channels: snap.ChannelCount(),
		count:    snap.SampleCount(),
	}

	switch s := snap.(type) {
	case *snapshot.LogicSnapshot:
		src.bits, src.view = 1, s.Samples
	case *snapshot.DsoSnapshot:
		src.bits, src.view = 8, s.RawSamples
	case *snapshot.AnalogSnapshot:
		src.bits, src.view = s.Bits(), s.RawSamples
	default:
		return nil, fmt.Errorf("%w: cannot archive %s snapshot", errs.ErrKindMismatch, snap.Kind())
	}

	return src, nil
}

// Write archives the samples snap holds when Write is called.
func Write(w io.Writer, snap Snapshot, meta Meta, opts ...Option) (Stats, error) {
	cfg := &config{compression: format.CompressionS2, blockSamples: DefaultBlockSamples}
	if err := options.Apply(cfg, opts...); err != nil {
		return Stats{}, err
	}

	src, err := newSource(snap)
	if err != nil {
		return Stats{}, err
	}

	codec, err := compress.GetCodec(cfg.compression)
	if err != nil {
		return Stats{}, err
	}

	metaData, err := meta.marshal()
	if err != nil {
		return Stats{}, err
	}

	header := Header{
		BigEndian:    cfg.bigEndian,
		Version:      Version,
		Kind:         src.kind,
		Compression:  cfg.compression,
		UnitSize:     uint16(src.unitSize),
		Channels:     uint16(src.channels),
		ChannelBits:  uint16(src.bits),
		SampleCount:  src.count,
		BlockSamples: cfg.blockSamples,
		MetaLength:   uint32(len(metaData)),
	}
	if err := header.Validate(); err != nil {
		return Stats{}, err
	}
	if _, err := w.Write(header.Bytes()); err != nil {
		return Stats{}, err
	}
	if _, err := w.Write(metaData); err != nil {
		return Stats{}, err
	}

	engine := header.engine()
	bb := pool.GetBlockBuffer()
	defer pool.PutBlockBuffer(bb)

	stats := Stats{Samples: src.count}
	for start := uint64(0); start < src.count; start += uint64(cfg.blockSamples) {
		end := min(start+uint64(cfg.blockSamples), src.count)
		raw, err := src.view(start, end)
		if err != nil {
			return stats, err
		}

		bb.Reset()
		bb.Grow(BlockHeaderSize + len(raw))
		bb.B = bb.B[:BlockHeaderSize]
		if bb.B, err = codec.Compress(bb.B, raw); err != nil {
			return stats, fmt.Errorf("compress block at sample %d: %w", start, err)
		}

		stored := bb.Len() - BlockHeaderSize
		if stored == 0 || stored >= len(raw) {
			bb.B = bb.B[:BlockHeaderSize]
			_, _ = bb.Write(raw)
			stored = len(raw)
		}

		engine.PutUint32(bb.B[0:4], uint32(len(raw)))
		engine.PutUint32(bb.B[4:8], uint32(stored))
		engine.PutUint64(bb.B[8:16], hash.Block(raw))

		if _, err := bb.WriteTo(w); err != nil {
			return stats, err
		}

		stats.Blocks++
		stats.RawBytes += uint64(len(raw))
		stats.StoredBytes += uint64(stored)
	}

	return stats, nil
}
