package envelope

import (
	"fmt"
	"math"

	"github.com/arloliu/mipsnap/errs"
)

// Value is the set of sample types an Index can summarize.
type Value interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Sample is one (min, max) summary.
type Sample[T Value] struct {
	Min T
	Max T
}

// Section is a level-selected slice of an Index.
//
// Samples[i] summarizes raw samples [Start+i*Scale, Start+(i+1)*Scale).
type Section[T Value] struct {
	Start   uint64
	Scale   uint64
	Length  uint64
	Samples []Sample[T]
}

// Index is an incremental (min, max) pyramid.
type Index[T Value] struct {
	p *Pyramid[Sample[T]]
}

// NewIndex creates an Index with levelCount levels allocating in unit-element steps.
func NewIndex[T Value](levelCount int, unit uint64) *Index[T] {
	return &Index[T]{p: NewPyramid(levelCount, unit, mergeMinMax[T])}
}

func mergeMinMax[T Value](acc, v Sample[T]) Sample[T] {
	acc.Min = min(acc.Min, v.Min)
	acc.Max = max(acc.Max, v.Max)

	return acc
}

// Summarize returns the (min, max) of values. values must not be empty.
func Summarize[T Value](values []T) Sample[T] {
	s := Sample[T]{Min: values[0], Max: values[0]}
	for _, v := range values[1:] {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}

	return s
}

// SummarizeStrided returns the (min, max) of ScaleFactor values read from
// data at first, first+stride, first+2*stride, ...
func SummarizeStrided[T Value](data []T, first, stride int) Sample[T] {
	s := Sample[T]{Min: data[first], Max: data[first]}
	for i, idx := 1, first+stride; i < ScaleFactor; i, idx = i+1, idx+stride {
		v := data[idx]
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}

	return s
}

// Update extends the index to cover rawCount raw samples; see Pyramid.Update.
func (x *Index[T]) Update(rawCount uint64, summarize func(first uint64) Sample[T]) bool {
	return x.p.Update(rawCount, summarize)
}

// LevelCount returns the number of levels.
func (x *Index[T]) LevelCount() int {
	return x.p.LevelCount()
}

// Level returns the length and capacity of level.
func (x *Index[T]) Level(level int) LevelInfo {
	return x.p.Level(level)
}

// At returns summary i of level.
func (x *Index[T]) At(level int, i uint64) Sample[T] {
	return x.p.At(level, i)
}

// Elements returns the number of summaries allocated across all levels.
func (x *Index[T]) Elements() uint64 {
	return x.p.Elements()
}

// Reset frees every level.
func (x *Index[T]) Reset() {
	x.p.Reset()
}

// Section returns a copy of the summaries covering raw samples [start, end) at
// the coarsest level whose span does not exceed minLength samples.
//
// The section is clipped to the summaries materialized so far, so a range that
// reaches into the not-yet-summarized tail returns fewer samples.
func (x *Index[T]) Section(start, end uint64, minLength float64) (Section[T], error) {
	if start > end {
		return Section[T]{}, fmt.Errorf("%w: start %d > end %d", errs.ErrInvalidRange, start, end)
	}
	if !(minLength > 0) {
		return Section[T]{}, fmt.Errorf("%w: %v", errs.ErrInvalidMinLength, minLength)
	}

	level := SelectLevel(minLength, x.p.LevelCount())
	scalePower := uint((level + 1) * ScalePower)

	first := start >> scalePower
	last := end >> scalePower
	avail := x.p.Level(level).Length
	last = min(last, avail)
	first = min(first, last)

	s := Section[T]{
		Start:  first << scalePower,
		Scale:  1 << scalePower,
		Length: last - first,
	}
	if s.Length > 0 {
		s.Samples = make([]Sample[T], s.Length)
		copy(s.Samples, x.p.View(level, first, last))
	}

	return s, nil
}

// SelectLevel picks the level used for a minLength samples-per-pixel query:
// floor(log16(minLength)) - 1, clamped to [0, levelCount-1].
//
// log2 is exact for powers of two, so a minLength of exactly 16^k always lands
// on level k-1.
func SelectLevel(minLength float64, levelCount int) int {
	level := math.Floor(math.Log2(minLength)/ScalePower) - 1
	switch {
	case !(level > 0):
		return 0
	case level >= float64(levelCount-1):
		return levelCount - 1
	default:
		return int(level)
	}
}
