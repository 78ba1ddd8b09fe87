package snapshot

import (
	"fmt"
	"math"
	"sync"

	"github.com/arloliu/mipsnap/envelope"
	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/format"
	"github.com/arloliu/mipsnap/sample"
)

// DsoSnapshot stores interleaved 8-bit oscilloscope samples: raw sample i of
// channel c is byte i*channels+c.
type DsoSnapshot struct {
	mu       sync.RWMutex
	buf      *sample.Buffer
	env      envelopeSet[uint8]
	channels int
}

// NewDsoSnapshot creates an empty DSO snapshot with channels interleaved channels.
func NewDsoSnapshot(channels int, opts ...Option) (*DsoSnapshot, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d dso channels", errs.ErrInvalidChannel, channels)
	}

	cfg, err := newConfig(envelope.DefaultDataUnit, opts)
	if err != nil {
		return nil, err
	}

	buf, err := sample.NewBuffer(channels, cfg.memoryLimit)
	if err != nil {
		return nil, err
	}

	return &DsoSnapshot{
		buf:      buf,
		env:      newEnvelopeSet[uint8](channels, DsoLevels, cfg.dataUnit, cfg.envelope),
		channels: channels,
	}, nil
}

// Kind returns format.KindDso.
func (s *DsoSnapshot) Kind() format.SnapshotKind {
	return format.KindDso
}

// ChannelCount returns the number of interleaved channels.
func (s *DsoSnapshot) ChannelCount() int {
	return s.channels
}

// UnitSize returns the bytes per interleaved sample.
func (s *DsoSnapshot) UnitSize() int {
	return s.channels
}

// SampleCount returns the number of samples per channel.
func (s *DsoSnapshot) SampleCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buf.Count()
}

// MemoryFailed reports whether an append exceeded the memory limit.
func (s *DsoSnapshot) MemoryFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buf.Failed()
}

// Init pre-sizes the sample buffer for totalHint samples per channel.
func (s *DsoSnapshot) Init(totalHint uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buf.Init(totalHint)
}

// Append adds interleaved samples and extends each channel's envelope.
func (s *DsoSnapshot) Append(data []byte) error {
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
func (s *DsoSnapshot) EnableEnvelope(enabled bool) {
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
func (s *DsoSnapshot) EnvelopeEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.env.enabled
}

// Reset drops all samples and envelopes.
func (s *DsoSnapshot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	s.env.reset()
}

// RawSamples returns a read-only view of interleaved samples [start, end).
func (s *DsoSnapshot) RawSamples(start, end uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buf.Samples(start, end)
}

// Samples returns a copy of channel's samples [start, end).
func (s *DsoSnapshot) Samples(start, end uint64, channel int) ([]uint8, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkChannel(channel); err != nil {
		return nil, err
	}
	raw, err := s.buf.Samples(start, end)
	if err != nil {
		return nil, err
	}

	out := make([]uint8, end-start)
	for i := range out {
		out[i] = raw[i*s.channels+channel]
	}

	return out, nil
}

// EnvelopeSection returns channel's envelope over [start, end) at the level
// chosen for minLength samples per pixel. A disabled envelope yields an empty
// section.
func (s *DsoSnapshot) EnvelopeSection(start, end uint64, minLength float64, channel int) (envelope.Section[uint8], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.env.section(start, end, minLength, channel)
}

// EnvelopeLevel returns the length and capacity of one channel's envelope level.
func (s *DsoSnapshot) EnvelopeLevel(channel, level int) (envelope.LevelInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.env.level(channel, level)
}

// VMean returns the mean raw value of channel over all samples.
func (s *DsoSnapshot) VMean(channel int) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkChannel(channel); err != nil {
		return 0, err
	}

	data := s.buf.Bytes()
	var mean float64
	for i, off := 0, channel; off < len(data); i, off = i+1, off+s.channels {
		mean += (float64(data[off]) - mean) / float64(i+1)
	}

	return mean, nil
}

// VRMS returns the RMS distance of channel's raw values from zeroOffset, the
// raw value that represents 0 V.
func (s *DsoSnapshot) VRMS(channel int, zeroOffset float64) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkChannel(channel); err != nil {
		return 0, err
	}

	// Running mean of squares keeps the accumulator bounded on long captures.
	data := s.buf.Bytes()
	var meanSq float64
	for i, off := 0, channel; off < len(data); i, off = i+1, off+s.channels {
		d := zeroOffset - float64(data[off])
		meanSq += (d*d - meanSq) / float64(i+1)
	}

	return math.Sqrt(meanSq), nil
}

func (s *DsoSnapshot) updateEnvelope() {
	data := s.buf.Bytes()
	s.env.update(s.buf.Count(), func(ch int, first uint64) envelope.Sample[uint8] {
		return envelope.SummarizeStrided(data, int(first)*s.channels+ch, s.channels)
	})
}

func (s *DsoSnapshot) checkChannel(channel int) error {
	if channel < 0 || channel >= s.channels {
		return fmt.Errorf("%w: %d of %d", errs.ErrInvalidChannel, channel, s.channels)
	}

	return nil
}
