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

// AnalogSnapshot stores interleaved analog samples of 8 or 16 bits per
// channel. 16-bit values are little-endian. Values are exposed as uint16
// regardless of the stored width.
type AnalogSnapshot struct {
	mu        sync.RWMutex
	buf       *sample.Buffer
	env       envelopeSet[uint16]
	channels  int
	unitBytes int
}

// NewAnalogSnapshot creates an empty analog snapshot. bits must be 8 or 16.
func NewAnalogSnapshot(channels, bits int, opts ...Option) (*AnalogSnapshot, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d analog channels", errs.ErrInvalidChannel, channels)
	}
	if bits != 8 && bits != 16 {
		return nil, fmt.Errorf("%w: %d-bit analog samples", errs.ErrInvalidUnitSize, bits)
	}

	cfg, err := newConfig(envelope.DefaultDataUnit, opts)
	if err != nil {
		return nil, err
	}

	unitBytes := bits / 8
	buf, err := sample.NewBuffer(channels*unitBytes, cfg.memoryLimit)
	if err != nil {
		return nil, err
	}

	return &AnalogSnapshot{
		buf:       buf,
		env:       newEnvelopeSet[uint16](channels, AnalogLevels, cfg.dataUnit, cfg.envelope),
		channels:  channels,
		unitBytes: unitBytes,
	}, nil
}

// Kind returns format.KindAnalog.
func (s *AnalogSnapshot) Kind() format.SnapshotKind {
	return format.KindAnalog
}

// ChannelCount returns the number of interleaved channels.
func (s *AnalogSnapshot) ChannelCount() int {
	return s.channels
}

// Bits returns the stored width of one channel value.
func (s *AnalogSnapshot) Bits() int {
	return s.unitBytes * 8
}

// UnitSize returns the bytes per interleaved sample.
func (s *AnalogSnapshot) UnitSize() int {
	return s.channels * s.unitBytes
}

// SampleCount returns the number of samples per channel.
func (s *AnalogSnapshot) SampleCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buf.Count()
}

// MemoryFailed reports whether an append exceeded the memory limit.
func (s *AnalogSnapshot) MemoryFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buf.Failed()
}

// Init pre-sizes the sample buffer for totalHint samples per channel.
func (s *AnalogSnapshot) Init(totalHint uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buf.Init(totalHint)
}

// Append adds interleaved samples and extends each channel's envelope.
func (s *AnalogSnapshot) Append(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.buf.Append(data); err != nil {
		return err
	}

	s.updateEnvelope()

	return nil
}

// EnableEnvelope switches envelope building on or off. Turning it on builds
// the envelope over everything appended so far; turning it off frees it.
func (s *AnalogSnapshot) EnableEnvelope(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.env.enabled == enabled {
		return
	}
	s.env.enabled = enabled
	if enabled {
		s.updateEnvelope()
	} else {
		s.env.reset()
	}
}

// EnvelopeEnabled reports whether the envelope is being built.
func (s *AnalogSnapshot) EnvelopeEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.env.enabled
}

func (s *AnalogSnapshot) updateEnvelope() {
	data := s.buf.Bytes()
	stride := s.channels * s.unitBytes
	s.env.update(s.buf.Count(), func(ch int, first uint64) envelope.Sample[uint16] {
		off := int(first)*stride + ch*s.unitBytes
		v := s.value(data, off)
		sum := envelope.Sample[uint16]{Min: v, Max: v}
		for range ScaleFactor - 1 {
			off += stride
			v = s.value(data, off)
			sum.Min = min(sum.Min, v)
			sum.Max = max(sum.Max, v)
		}

		return sum
	})
}

// Reset drops all samples and envelopes.
func (s *AnalogSnapshot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	s.env.reset()
}

// RawSamples returns a read-only view of interleaved samples [start, end).
func (s *AnalogSnapshot) RawSamples(start, end uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buf.Samples(start, end)
}

// Samples returns a copy of channel's values [start, end).
func (s *AnalogSnapshot) Samples(start, end uint64, channel int) ([]uint16, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if channel < 0 || channel >= s.channels {
		return nil, fmt.Errorf("%w: %d of %d", errs.ErrInvalidChannel, channel, s.channels)
	}
	if err := checkSampleRange(start, end, s.buf.Count()); err != nil {
		return nil, err
	}

	data := s.buf.Bytes()
	stride := s.channels * s.unitBytes
	out := make([]uint16, end-start)
	for i := range out {
		out[i] = s.value(data, (int(start)+i)*stride+channel*s.unitBytes)
	}

	return out, nil
}

// EnvelopeSection returns channel's envelope over [start, end) at the level
// chosen for minLength samples per pixel.
func (s *AnalogSnapshot) EnvelopeSection(start, end uint64, minLength float64, channel int) (envelope.Section[uint16], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.env.section(start, end, minLength, channel)
}

// EnvelopeLevel returns the length and capacity of one channel's envelope level.
func (s *AnalogSnapshot) EnvelopeLevel(channel, level int) (envelope.LevelInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.env.level(channel, level)
}

func (s *AnalogSnapshot) value(data []byte, off int) uint16 {
	if s.unitBytes == 1 {
		return uint16(data[off])
	}

	return binary.LittleEndian.Uint16(data[off:])
}
