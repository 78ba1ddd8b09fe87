package snapshot

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/arloliu/mipsnap/envelope"
	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/format"
)

// MaxGroupChannels is the widest group; projected values are 16 bits.
const MaxGroupChannels = 16

// GroupSnapshot projects a list of logic channels into one value per sample.
//
// Channel indexList[j] becomes bit j of the projected value, so the first
// listed channel is the least significant. The group does not copy samples: it
// reads the parent snapshot through its public lock on every access, so
// parent reallocations never leave it with a stale buffer. New parent samples
// are folded into the group's envelope lazily, on the next query.
type GroupSnapshot struct {
	mu        sync.Mutex
	parent    *LogicSnapshot
	indexList []int
	mask      uint64
	env       *envelope.Index[uint16]
	synced    uint64
	gen       uint64
}

// NewGroupSnapshot creates a group over parent for the channels in indexList.
func NewGroupSnapshot(parent *LogicSnapshot, indexList []int, opts ...Option) (*GroupSnapshot, error) {
	if parent == nil {
		return nil, errs.ErrNoLogicData
	}
	if len(indexList) == 0 {
		return nil, errs.ErrEmptyGroup
	}
	if len(indexList) > MaxGroupChannels {
		return nil, fmt.Errorf("%w: %d channels", errs.ErrGroupTooWide, len(indexList))
	}

	cfg, err := newConfig(envelope.DefaultDataUnit, opts)
	if err != nil {
		return nil, err
	}

	var mask uint64
	for _, idx := range indexList {
		if err := parent.checkChannel(idx); err != nil {
			return nil, err
		}
		bit := uint64(1) << idx
		if mask&bit != 0 {
			return nil, fmt.Errorf("%w: %d", errs.ErrDuplicateGroup, idx)
		}
		mask |= bit
	}

	g := &GroupSnapshot{
		parent:    parent,
		indexList: slices.Clone(indexList),
		mask:      mask,
		env:       envelope.NewIndex[uint16](GroupLevels, cfg.dataUnit),
		gen:       parent.generation(),
	}
	g.Sync()

	return g, nil
}

// Kind returns format.KindGroup.
func (g *GroupSnapshot) Kind() format.SnapshotKind {
	return format.KindGroup
}

// Parent returns the logic snapshot the group reads from.
func (g *GroupSnapshot) Parent() *LogicSnapshot {
	return g.parent
}

// IndexList returns a copy of the grouped channels in bit order.
func (g *GroupSnapshot) IndexList() []int {
	return slices.Clone(g.indexList)
}

// Mask returns the parent-word mask of the grouped channels.
func (g *GroupSnapshot) Mask() uint64 {
	return g.mask
}

// SampleCount returns the parent's current sample count.
func (g *GroupSnapshot) SampleCount() uint64 {
	return g.parent.SampleCount()
}

// Project packs the grouped channels of one parent word.
func (g *GroupSnapshot) Project(word uint64) uint16 {
	var v uint16
	for j, idx := range g.indexList {
		v |= uint16((word>>idx)&1) << j
	}

	return v
}

// DisplayScale returns the height of one value step when the group is drawn
// in totalHeight pixels: totalHeight / 2^channels.
func (g *GroupSnapshot) DisplayScale(totalHeight float64) float64 {
	return totalHeight / math.Exp2(float64(len(g.indexList)))
}

// Sync folds parent samples appended since the last call into the envelope
// and returns the sample count now covered.
func (g *GroupSnapshot) Sync() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.syncLocked()
}

func (g *GroupSnapshot) syncLocked() uint64 {
	p := g.parent
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := p.buf.Count()
	if p.gen != g.gen {
		// The parent was reset for a new capture.
		g.env.Reset()
		g.synced = 0
		g.gen = p.gen
	}
	if count == g.synced {
		return count
	}

	var block [ScaleFactor]uint16
	g.env.Update(count, func(first uint64) envelope.Sample[uint16] {
		for i := range block {
			block[i] = g.Project(p.word(first + uint64(i)))
		}

		return envelope.Summarize(block[:])
	})
	g.synced = count

	return count
}

// Samples returns the projected values of samples [start, end).
func (g *GroupSnapshot) Samples(start, end uint64) ([]uint16, error) {
	p := g.parent
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := checkSampleRange(start, end, p.buf.Count()); err != nil {
		return nil, err
	}

	out := make([]uint16, end-start)
	for i := range out {
		out[i] = g.Project(p.word(start + uint64(i)))
	}

	return out, nil
}

// EnvelopeSection returns the projected envelope over [start, end) at the
// level chosen for minLength samples per pixel.
func (g *GroupSnapshot) EnvelopeSection(start, end uint64, minLength float64) (envelope.Section[uint16], error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.syncLocked()

	return g.env.Section(start, end, minLength)
}

// EnvelopeLevel returns the length and capacity of one envelope level.
func (g *GroupSnapshot) EnvelopeLevel(level int) (envelope.LevelInfo, error) {
	if level < 0 || level >= GroupLevels {
		return envelope.LevelInfo{}, fmt.Errorf("%w: %d", errs.ErrInvalidLevel, level)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.syncLocked()

	return g.env.Level(level), nil
}

// Edges returns the transitions of projected bit in (start, end], found
// through the parent's mip-map.
func (g *GroupSnapshot) Edges(start, end uint64, bit int) ([]Edge, error) {
	if bit < 0 || bit >= len(g.indexList) {
		return nil, fmt.Errorf("%w: group bit %d of %d", errs.ErrInvalidChannel, bit, len(g.indexList))
	}

	return g.parent.Edges(start, end, g.indexList[bit])
}
