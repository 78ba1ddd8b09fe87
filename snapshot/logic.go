package snapshot

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/arloliu/mipsnap/envelope"
	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/format"
	"github.com/arloliu/mipsnap/sample"
)

// LogicSnapshot stores bit-packed logic samples and their transition mip-map.
//
// Each raw sample is a little-endian word of UnitSize bytes; bit n is channel n.
// Mip-map level 0 entry i is the OR of (sample[j-1] XOR sample[j]) for the 16
// samples j of block i, with sample[-1] taken as zero. Higher levels OR 16
// entries of the level below. A clear bit therefore proves that channel did
// not change anywhere inside the block.
type LogicSnapshot struct {
	mu       sync.RWMutex
	buf      *sample.Buffer
	mip      *envelope.Pyramid[uint64]
	unitSize int
	gen      uint64 // bumped by Reset
}

// NewLogicSnapshot creates an empty logic snapshot of unitSize-byte samples
// (1 to 8 bytes, i.e. up to 64 channels).
func NewLogicSnapshot(unitSize int, opts ...Option) (*LogicSnapshot, error) {
	if unitSize <= 0 || unitSize > sample.MaxUnitSize {
		return nil, fmt.Errorf("%w: logic unit size %d", errs.ErrInvalidUnitSize, unitSize)
	}

	cfg, err := newConfig(LogicDataUnit, opts)
	if err != nil {
		return nil, err
	}

	buf, err := sample.NewBuffer(unitSize, cfg.memoryLimit)
	if err != nil {
		return nil, err
	}

	return &LogicSnapshot{
		buf:      buf,
		mip:      envelope.NewPyramid(LogicLevels, cfg.dataUnit, orWords),
		unitSize: unitSize,
	}, nil
}

func (s *LogicSnapshot) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.gen
}

func orWords(acc, v uint64) uint64 {
	return acc | v
}

// Kind returns format.KindLogic.
func (s *LogicSnapshot) Kind() format.SnapshotKind {
	return format.KindLogic
}

// UnitSize returns the sample width in bytes.
func (s *LogicSnapshot) UnitSize() int {
	return s.unitSize
}

// ChannelCount returns the number of addressable channels, 8 per unit byte.
func (s *LogicSnapshot) ChannelCount() int {
	return s.unitSize * 8
}

// SampleCount returns the number of samples appended so far.
func (s *LogicSnapshot) SampleCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buf.Count()
}

// MemoryFailed reports whether an append exceeded the memory limit.
func (s *LogicSnapshot) MemoryFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buf.Failed()
}

// Init pre-sizes the sample buffer for totalHint samples.
func (s *LogicSnapshot) Init(totalHint uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buf.Init(totalHint)
}

// Append adds whole samples to the tail and extends the mip-map over every
// newly completed block.
func (s *LogicSnapshot) Append(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.buf.Append(data); err != nil {
		return err
	}
	s.mip.Update(s.buf.Count(), s.summarize)

	return nil
}

// Reset drops all samples and mip-map levels.
func (s *LogicSnapshot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	s.mip.Reset()
	s.gen++
}

// Samples returns a read-only view of raw samples [start, end).
func (s *LogicSnapshot) Samples(start, end uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buf.Samples(start, end)
}

// Sample returns the raw word at index.
func (s *LogicSnapshot) Sample(index uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index >= s.buf.Count() {
		return 0, fmt.Errorf("%w: sample %d of %d", errs.ErrInvalidRange, index, s.buf.Count())
	}

	return s.word(index), nil
}

// Bit returns the level of channel at index.
func (s *LogicSnapshot) Bit(index uint64, channel int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkChannel(channel); err != nil {
		return false, err
	}
	if index >= s.buf.Count() {
		return false, fmt.Errorf("%w: sample %d of %d", errs.ErrInvalidRange, index, s.buf.Count())
	}

	return s.bit(index, 1<<channel), nil
}

// MipMapLevel returns the length and capacity of mip-map level.
func (s *LogicSnapshot) MipMapLevel(level int) (envelope.LevelInfo, error) {
	if level < 0 || level >= LogicLevels {
		return envelope.LevelInfo{}, fmt.Errorf("%w: %d", errs.ErrInvalidLevel, level)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.mip.Level(level), nil
}

// Subsample returns mip-map entry offset of level.
func (s *LogicSnapshot) Subsample(level int, offset uint64) (uint64, error) {
	if level < 0 || level >= LogicLevels {
		return 0, fmt.Errorf("%w: %d", errs.ErrInvalidLevel, level)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= s.mip.Level(level).Length {
		return 0, fmt.Errorf("%w: level %d offset %d", errs.ErrInvalidRange, level, offset)
	}

	return s.mip.At(level, offset), nil
}

// summarize computes the level-0 entry for the block starting at first.
// Called with the write lock held.
func (s *LogicSnapshot) summarize(first uint64) uint64 {
	var prev uint64
	if first > 0 {
		prev = s.word(first - 1)
	}

	var acc uint64
	for i := first; i < first+ScaleFactor; i++ {
		w := s.word(i)
		acc |= prev ^ w
		prev = w
	}

	return acc
}

func (s *LogicSnapshot) word(index uint64) uint64 {
	off := index * uint64(s.unitSize)
	return unpack(s.buf.Bytes()[off : off+uint64(s.unitSize)])
}

func (s *LogicSnapshot) bit(index uint64, mask uint64) bool {
	return s.word(index)&mask != 0
}

func (s *LogicSnapshot) checkChannel(channel int) error {
	if channel < 0 || channel >= s.unitSize*8 {
		return fmt.Errorf("%w: %d of %d", errs.ErrInvalidChannel, channel, s.unitSize*8)
	}

	return nil
}

// unpack reads a little-endian word of 1 to 8 bytes.
func unpack(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	}

	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}

	return v
}
