package snapshot

import (
	"fmt"

	"github.com/arloliu/mipsnap/envelope"
	"github.com/arloliu/mipsnap/errs"
)

// Edge is a point where a channel takes a new level.
type Edge struct {
	Index uint64
	Level bool
}

// EdgeType selects which transitions a search accepts.
type EdgeType uint8

const (
	EdgeAny     EdgeType = iota // EdgeAny accepts rising and falling transitions.
	EdgeRising                  // EdgeRising accepts low-to-high transitions.
	EdgeFalling                 // EdgeFalling accepts high-to-low transitions.
)

func (t EdgeType) String() string {
	switch t {
	case EdgeAny:
		return "Any"
	case EdgeRising:
		return "Rising"
	case EdgeFalling:
		return "Falling"
	default:
		return "Unknown"
	}
}

// NoFlag disables the flag gate of an EdgeQuery.
const NoFlag = -1

// EdgeQuery describes a directed edge search.
type EdgeQuery struct {
	// Start and End bound the search; an edge at index i means sample i differs
	// from sample i-1, and only Start < i <= End is considered.
	Start, End uint64
	// Channel is the searched channel.
	Channel int
	// Type filters the direction of the transition.
	Type EdgeType
	// FlagChannel, when not NoFlag, additionally requires that channel to read
	// FlagLevel at the edge sample.
	FlagChannel int
	FlagLevel   bool
}

// Pow2Ceil rounds x up to the next multiple of 2^power.
//
// Pow2Ceil(x, 0) == x for every x, Pow2Ceil(0, p) == 0. Values that would round
// past the top of the range wrap, as unsigned arithmetic does.
func Pow2Ceil(x uint64, power uint) uint64 {
	p := uint64(1) << power
	return (x + p - 1) / p * p
}

// AppendSubsampledEdges appends to dst the edges of channel that are visible in
// [start, end] when each pixel spans minLength samples, and returns the
// extended slice.
//
// The first entry is the level at start; the last entry is the level at end.
// Between them, each entry marks the first sample of a block of minLength
// samples (at least one) whose last sample differs from the previous entry.
// With minLength <= 1 every transition is reported at its exact sample.
// Quiet regions are skipped through the mip-map, so the work is bounded by the
// number of visible edges rather than by the range length.
func (s *LogicSnapshot) AppendSubsampledEdges(dst []Edge, start, end uint64, minLength float64, channel int) ([]Edge, error) {
	if !(minLength > 0) {
		return dst, fmt.Errorf("%w: %v", errs.ErrInvalidMinLength, minLength)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkQuery(start, end, channel); err != nil {
		return dst, err
	}

	blockLength := uint64(1)
	if minLength > 1 {
		blockLength = end - start + 1
		if minLength < float64(blockLength) {
			blockLength = uint64(minLength)
		}
	}
	minLevel := envelope.SelectLevel(minLength, LogicLevels)
	mask := uint64(1) << channel

	index := start
	last := s.bit(index, mask)
	dst = append(dst, Edge{Index: index, Level: last})
	index++

	for index+blockLength <= end {
		level := minLevel

		// Without mip-map data at the minimum level there is nothing to skip with.
		fastForward := s.mip.Level(level).Length > 0

		if minLength < ScaleFactor {
			// Check individual samples up to the next level-0 block.
			final := min(end, Pow2Ceil(index, ScalePower))
			for ; index < final && index&(ScaleFactor-1) != 0; index++ {
				if s.bit(index, mask) != last {
					fastForward = false
					break
				}
			}
		} else {
			// Below the resolution of one block at this level: round up to the
			// next block boundary.
			index = Pow2Ceil(index, uint((level+1)*ScalePower))
			if index >= end {
				break
			}
			if s.bit(index, mask) != last {
				fastForward = false
			}
		}

		if fastForward {
			index, _ = s.skipQuiet(index, end, level, minLevel, mask)

			if minLength < ScaleFactor {
				for ; index < end; index++ {
					if s.bit(index, mask) != last {
						break
					}
				}
			}
		}

		// The block ends up with the level of its last sample.
		if index+blockLength > end {
			break
		}
		final := index + blockLength
		finalLevel := s.bit(final-1, mask)
		dst = append(dst, Edge{Index: index, Level: finalLevel})

		index = final
		last = finalLevel
	}

	if dst[len(dst)-1].Index < end {
		dst = append(dst, Edge{Index: end, Level: s.bit(end, mask)})
	}

	return dst, nil
}

// skipQuiet advances index past mip-map blocks in which mask never changed.
//
// index must be aligned to a block of level. The search zooms out while it
// sits at the start of a coarser block, slides right over quiet blocks, and
// zooms back in around the first block with a change until it reaches
// minLevel. The returned index is the start of that block at minLevel, or a
// position past the mip-map tail. The bool is false once index moved past end.
func (s *LogicSnapshot) skipQuiet(index, end uint64, level, minLevel int, mask uint64) (uint64, bool) {
	// Zoom out.
	for {
		power := uint((level + 1) * ScalePower)
		offset := index >> power
		if offset >= s.mip.Level(level).Length || s.mip.At(level, offset)&mask != 0 {
			break
		}

		if offset&(ScaleFactor-1) == 0 {
			if level+1 >= LogicLevels || s.mip.Level(level+1).Length == 0 {
				break
			}
			level++
		} else {
			index = Pow2Ceil(index+1, power)
			if index > end {
				return index, false
			}
		}
	}

	// Zoom in.
	for {
		power := uint((level + 1) * ScalePower)
		offset := index >> power
		if offset >= s.mip.Level(level).Length || s.mip.At(level, offset)&mask != 0 {
			if level == minLevel {
				break
			}
			level--
		} else {
			index = Pow2Ceil(index+1, power)
			if index > end {
				return index, false
			}
		}
	}

	return index, true
}

// nextTransition returns the first index in (from, end] whose level of mask
// differs from the level at from. Called with the lock held.
func (s *LogicSnapshot) nextTransition(from, end uint64, mask uint64) (uint64, bool) {
	last := s.bit(from, mask)
	index := from + 1

	for ; index <= end && index&(ScaleFactor-1) != 0; index++ {
		if s.bit(index, mask) != last {
			return index, true
		}
	}
	if index > end {
		return 0, false
	}

	if s.mip.Level(0).Length > 0 {
		var ok bool
		if index, ok = s.skipQuiet(index, end, 0, 0, mask); !ok {
			return 0, false
		}
	}

	for ; index <= end; index++ {
		if s.bit(index, mask) != last {
			return index, true
		}
	}

	return 0, false
}

// prevTransition returns the last index in [1, from] where the level of mask
// differs from the sample before it. Called with the lock held.
func (s *LogicSnapshot) prevTransition(from uint64, mask uint64) (uint64, bool) {
	blocks := s.mip.Level(0).Length

	for j := from; j >= 1; j-- {
		// At the top of a summarized block, skip it whole if it is quiet.
		if j&(ScaleFactor-1) == ScaleFactor-1 {
			block := j >> ScalePower
			if block < blocks && s.mip.At(0, block)&mask == 0 {
				if block == 0 {
					return 0, false
				}
				j = block << ScalePower
				continue
			}
		}

		if s.bit(j, mask) != s.bit(j-1, mask) {
			return j, true
		}
	}

	return 0, false
}

// NextEdge returns the first transition of channel after index.
func (s *LogicSnapshot) NextEdge(index uint64, channel int) (Edge, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.buf.Count()
	if err := s.checkQuery(index, index, channel); err != nil {
		return Edge{}, false, err
	}

	mask := uint64(1) << channel
	i, ok := s.nextTransition(index, count-1, mask)
	if !ok {
		return Edge{}, false, nil
	}

	return Edge{Index: i, Level: s.bit(i, mask)}, true, nil
}

// PrevEdge returns the last transition of channel at or before index.
func (s *LogicSnapshot) PrevEdge(index uint64, channel int) (Edge, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkQuery(index, index, channel); err != nil {
		return Edge{}, false, err
	}

	mask := uint64(1) << channel
	i, ok := s.prevTransition(index, mask)
	if !ok {
		return Edge{}, false, nil
	}

	return Edge{Index: i, Level: s.bit(i, mask)}, true, nil
}

// FirstEdge returns the first edge matching q. Finding nothing is reported
// with false and a nil error.
func (s *LogicSnapshot) FirstEdge(q EdgeQuery) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkQuery(q.Start, q.End, q.Channel); err != nil {
		return 0, false, err
	}

	var flagMask uint64
	if q.FlagChannel != NoFlag {
		if err := s.checkChannel(q.FlagChannel); err != nil {
			return 0, false, err
		}
		flagMask = uint64(1) << q.FlagChannel
	}

	mask := uint64(1) << q.Channel
	pos := q.Start
	for {
		i, ok := s.nextTransition(pos, q.End, mask)
		if !ok {
			return 0, false, nil
		}

		w := s.word(i)
		rising := w&mask != 0
		dirOK := q.Type == EdgeAny || (q.Type == EdgeRising) == rising
		flagOK := flagMask == 0 || (w&flagMask != 0) == q.FlagLevel
		if dirOK && flagOK {
			return i, true, nil
		}
		pos = i
	}
}

// Edges returns every transition of channel in (start, end], each with the
// level the channel takes at that sample.
func (s *LogicSnapshot) Edges(start, end uint64, channel int) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkQuery(start, end, channel); err != nil {
		return nil, err
	}

	var edges []Edge
	mask := uint64(1) << channel
	for pos := start; ; {
		i, ok := s.nextTransition(pos, end, mask)
		if !ok {
			return edges, nil
		}
		edges = append(edges, Edge{Index: i, Level: s.bit(i, mask)})
		pos = i
	}
}

// MinPulse returns the shortest distance between two consecutive transitions
// of channel in (start, end]. It reports false when fewer than two
// transitions exist.
func (s *LogicSnapshot) MinPulse(start, end uint64, channel int) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkQuery(start, end, channel); err != nil {
		return 0, false, err
	}

	mask := uint64(1) << channel
	prev, ok := s.nextTransition(start, end, mask)
	if !ok {
		return 0, false, nil
	}

	var (
		best  uint64
		found bool
	)
	for {
		i, ok := s.nextTransition(prev, end, mask)
		if !ok {
			return best, found, nil
		}
		if d := i - prev; !found || d < best {
			best, found = d, true
			if best == 1 {
				return best, true, nil
			}
		}
		prev = i
	}
}

// checkQuery validates an inclusive [start, end] range and a channel. Called
// with the lock held.
func (s *LogicSnapshot) checkQuery(start, end uint64, channel int) error {
	if err := s.checkChannel(channel); err != nil {
		return err
	}

	count := s.buf.Count()
	if start > end || end >= count {
		return fmt.Errorf("%w: [%d, %d] of %d", errs.ErrInvalidRange, start, end, count)
	}

	return nil
}
