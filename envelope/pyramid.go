// Package envelope implements the incremental multi-resolution summaries that
// let a renderer draw arbitrarily long captures in near-constant time.
//
// A Pyramid is a fixed stack of levels. Level 0 holds one summary per
// ScaleFactor raw samples and level k+1 holds one summary per ScaleFactor
// summaries of level k. Appending raw data only ever computes the summaries
// for newly completed blocks, and the cascade stops at the first level whose
// length did not change.
//
// The element type and the merge rule are chosen by the caller: logic
// snapshots merge transition words with OR, analog-like data merges (min, max)
// pairs. Index wraps a Pyramid of (min, max) pairs and adds the section query.
//
// Pyramids are not safe for concurrent use; the owning snapshot holds the lock.
package envelope

const (
	// ScalePower is log2 of ScaleFactor.
	ScalePower = 4
	// ScaleFactor is the number of lower-level elements summarized by one
	// element of the next level.
	ScaleFactor = 1 << ScalePower
	// DefaultDataUnit is the level allocation unit, in elements.
	DefaultDataUnit = 4 * 1024
)

// LevelInfo describes the materialized state of one pyramid level.
type LevelInfo struct {
	// Length is the number of summaries computed so far.
	Length uint64
	// DataLength is the allocated capacity in summaries; never below Length.
	DataLength uint64
}

// Pyramid is an append-only stack of summary levels.
type Pyramid[E any] struct {
	levels [][]E
	unit   uint64
	merge  func(acc, v E) E
}

// NewPyramid creates a pyramid with levelCount levels that allocates in
// multiples of unit elements and combines lower-level elements with merge.
func NewPyramid[E any](levelCount int, unit uint64, merge func(acc, v E) E) *Pyramid[E] {
	if unit == 0 {
		unit = DefaultDataUnit
	}

	return &Pyramid[E]{
		levels: make([][]E, levelCount),
		unit:   unit,
		merge:  merge,
	}
}

// LevelCount returns the fixed number of levels.
func (p *Pyramid[E]) LevelCount() int {
	return len(p.levels)
}

// Level returns the length and capacity of level.
func (p *Pyramid[E]) Level(level int) LevelInfo {
	l := p.levels[level]
	return LevelInfo{Length: uint64(len(l)), DataLength: uint64(cap(l))}
}

// At returns summary i of level. The caller checks bounds against Level.
func (p *Pyramid[E]) At(level int, i uint64) E {
	return p.levels[level][i]
}

// View returns a read-only view of summaries [start, end) of level.
func (p *Pyramid[E]) View(level int, start, end uint64) []E {
	return p.levels[level][start:end:end]
}

// Update brings the pyramid up to date with rawCount raw samples.
//
// summarize computes the level-0 summary of the ScaleFactor raw samples
// starting at raw index first; it is called only for blocks completed since
// the previous Update. Update reports whether any level grew. Calling it again
// with the same rawCount is a no-op.
func (p *Pyramid[E]) Update(rawCount uint64, summarize func(first uint64) E) bool {
	if len(p.levels) == 0 {
		return false
	}

	prev := uint64(len(p.levels[0]))
	length := rawCount / ScaleFactor
	if length <= prev {
		return false
	}

	l0 := p.reserve(p.levels[0], length)
	for i := prev; i < length; i++ {
		l0 = append(l0, summarize(i*ScaleFactor))
	}
	p.levels[0] = l0

	for level := 1; level < len(p.levels); level++ {
		lower := p.levels[level-1]
		cur := p.levels[level]

		prev = uint64(len(cur))
		length = uint64(len(lower)) / ScaleFactor
		if length == prev {
			break
		}

		cur = p.reserve(cur, length)
		for i := prev; i < length; i++ {
			block := lower[i*ScaleFactor : (i+1)*ScaleFactor]
			acc := block[0]
			for _, v := range block[1:] {
				acc = p.merge(acc, v)
			}
			cur = append(cur, acc)
		}
		p.levels[level] = cur
	}

	return true
}

// Elements returns the number of summaries allocated across all levels.
func (p *Pyramid[E]) Elements() uint64 {
	var n uint64
	for _, l := range p.levels {
		n += uint64(cap(l))
	}

	return n
}

// Reset frees every level.
func (p *Pyramid[E]) Reset() {
	for i := range p.levels {
		p.levels[i] = nil
	}
}

// reserve makes sure l can hold length elements without reallocating inside
// the fill loop.
func (p *Pyramid[E]) reserve(l []E, length uint64) []E {
	dataLength := GrowDataLength(uint64(cap(l)), length, p.unit)
	if dataLength == uint64(cap(l)) {
		return l
	}

	next := make([]E, len(l), dataLength)
	copy(next, l)

	return next
}

// GrowDataLength returns the capacity a level of capacity dataLength needs to
// hold length elements.
//
// The result never shrinks, is always a multiple of unit, and grows by at
// least 25% of the current capacity once a reallocation is needed.
func GrowDataLength(dataLength, length, unit uint64) uint64 {
	if length <= dataLength {
		return dataLength
	}

	want := length
	if step := dataLength + dataLength/4; step > want {
		want = step
	}

	return (want + unit - 1) / unit * unit
}
