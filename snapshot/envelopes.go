package snapshot

import (
	"fmt"

	"github.com/arloliu/mipsnap/envelope"
	"github.com/arloliu/mipsnap/errs"
)

// envelopeSet keeps one (min, max) pyramid per interleaved channel.
type envelopeSet[T envelope.Value] struct {
	levels  []*envelope.Index[T]
	enabled bool
}

func newEnvelopeSet[T envelope.Value](channels, levelCount int, unit uint64, enabled bool) envelopeSet[T] {
	set := envelopeSet[T]{
		levels:  make([]*envelope.Index[T], channels),
		enabled: enabled,
	}
	for ch := range set.levels {
		set.levels[ch] = envelope.NewIndex[T](levelCount, unit)
	}

	return set
}

// update extends every channel's pyramid to rawCount samples. summarize
// returns the summary of channel ch for the block starting at raw sample first.
func (e *envelopeSet[T]) update(rawCount uint64, summarize func(ch int, first uint64) envelope.Sample[T]) {
	if !e.enabled {
		return
	}
	for ch, x := range e.levels {
		x.Update(rawCount, func(first uint64) envelope.Sample[T] {
			return summarize(ch, first)
		})
	}
}

func (e *envelopeSet[T]) reset() {
	for _, x := range e.levels {
		x.Reset()
	}
}

func (e *envelopeSet[T]) section(start, end uint64, minLength float64, channel int) (envelope.Section[T], error) {
	if channel < 0 || channel >= len(e.levels) {
		return envelope.Section[T]{}, fmt.Errorf("%w: %d of %d", errs.ErrInvalidChannel, channel, len(e.levels))
	}
	if !e.enabled {
		if start > end {
			return envelope.Section[T]{}, fmt.Errorf("%w: start %d > end %d", errs.ErrInvalidRange, start, end)
		}
		if !(minLength > 0) {
			return envelope.Section[T]{}, fmt.Errorf("%w: %v", errs.ErrInvalidMinLength, minLength)
		}

		return envelope.Section[T]{}, nil
	}

	return e.levels[channel].Section(start, end, minLength)
}

func (e *envelopeSet[T]) level(channel, level int) (envelope.LevelInfo, error) {
	if channel < 0 || channel >= len(e.levels) {
		return envelope.LevelInfo{}, fmt.Errorf("%w: %d of %d", errs.ErrInvalidChannel, channel, len(e.levels))
	}
	if level < 0 || level >= e.levels[channel].LevelCount() {
		return envelope.LevelInfo{}, fmt.Errorf("%w: %d", errs.ErrInvalidLevel, level)
	}

	return e.levels[channel].Level(level), nil
}

// checkSampleRange validates [start, end) against count.
func checkSampleRange(start, end, count uint64) error {
	if start > end || end > count {
		return fmt.Errorf("%w: [%d, %d) of %d", errs.ErrInvalidRange, start, end, count)
	}

	return nil
}
