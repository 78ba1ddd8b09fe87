// Package sample provides the append-only raw sample store that backs every
// snapshot.
//
// A Buffer holds fixed-width samples (unit size bytes each) in one contiguous
// byte slice. Appends only ever add to the tail, so a view returned by Samples
// stays valid and unchanged even after the buffer reallocates: the old backing
// array is kept alive by the view and the published range is never rewritten.
//
// Buffer is not safe for concurrent use; snapshots guard it with their own lock.
package sample

import (
	"fmt"

	"github.com/arloliu/mipsnap/errs"
)

const (
	// BlockBytes is the allocation unit for buffer growth.
	BlockBytes = 64 * 1024
	// largeThreshold is the capacity above which growth switches from
	// block steps to 25% steps.
	largeThreshold = 4 * BlockBytes
	// MaxUnitSize is the widest supported sample, 64 logic channels.
	MaxUnitSize = 8
	// MaxReserveBytes bounds the up-front reservation made by Init.
	MaxReserveBytes = 32 << 20
)

// Buffer is an append-only store of fixed-width samples.
type Buffer struct {
	data     []byte
	unitSize int
	limit    uint64 // byte limit, 0 means unlimited
	failed   bool
}

// NewBuffer creates an empty buffer of unitSize-byte samples.
// A non-zero limit caps the number of bytes the buffer may hold.
func NewBuffer(unitSize int, limit uint64) (*Buffer, error) {
	if unitSize <= 0 {
		return nil, fmt.Errorf("%w: %d", errs.ErrInvalidUnitSize, unitSize)
	}

	return &Buffer{unitSize: unitSize, limit: limit}, nil
}

// UnitSize returns the width of one sample in bytes.
func (b *Buffer) UnitSize() int {
	return b.unitSize
}

// Count returns the number of complete samples stored.
func (b *Buffer) Count() uint64 {
	return uint64(len(b.data) / b.unitSize)
}

// Capacity returns the number of samples the buffer can hold before it must grow.
func (b *Buffer) Capacity() uint64 {
	return uint64(cap(b.data) / b.unitSize)
}

// Failed reports whether an earlier append exceeded the memory limit.
func (b *Buffer) Failed() bool {
	return b.failed
}

// Init pre-reserves room for totalHint samples. The hint is not a cap; later
// appends beyond it still grow the buffer. The reservation is best-effort:
// it is clamped to the memory limit and to MaxReserveBytes.
func (b *Buffer) Init(totalHint uint64) error {
	if b.failed {
		return errs.ErrMemoryFailed
	}

	unit := uint64(b.unitSize)
	bound := uint64(MaxReserveBytes)
	if b.limit > 0 && b.limit < bound {
		bound = b.limit
	}
	want := bound - bound%unit
	if totalHint <= want/unit {
		want = totalHint * unit
	}
	if want <= uint64(cap(b.data)) {
		return nil
	}

	b.realloc(int(want))

	return nil
}

// Append copies whole samples from data onto the tail and returns how many
// samples were added.
//
// Returns errs.ErrPartialSample if len(data) is not a multiple of the unit size,
// errs.ErrOutOfMemory if the append would exceed the limit (the buffer is then
// marked failed and keeps its previous content), and errs.ErrMemoryFailed on
// any append after such a failure.
func (b *Buffer) Append(data []byte) (uint64, error) {
	if b.failed {
		return 0, errs.ErrMemoryFailed
	}
	if len(data)%b.unitSize != 0 {
		return 0, fmt.Errorf("%w: %d bytes, unit size %d", errs.ErrPartialSample, len(data), b.unitSize)
	}
	if len(data) == 0 {
		return 0, nil
	}

	need := len(b.data) + len(data)
	if b.limit > 0 && uint64(need) > b.limit {
		b.failed = true
		return 0, fmt.Errorf("%w: need %d bytes, limit %d", errs.ErrOutOfMemory, need, b.limit)
	}

	if need > cap(b.data) {
		b.grow(need)
	}
	b.data = append(b.data, data...)

	return uint64(len(data) / b.unitSize), nil
}

// Samples returns a read-only view of samples [start, end).
//
// The view aliases the buffer; callers must not modify it. Returns
// errs.ErrInvalidRange unless start <= end <= Count().
func (b *Buffer) Samples(start, end uint64) ([]byte, error) {
	if start > end || end > b.Count() {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", errs.ErrInvalidRange, start, end, b.Count())
	}

	lo := start * uint64(b.unitSize)
	hi := end * uint64(b.unitSize)

	return b.data[lo:hi:hi], nil
}

// Bytes returns a read-only view of all stored samples.
func (b *Buffer) Bytes() []byte {
	return b.data[:len(b.data):len(b.data)]
}

// Reset empties the buffer for a new capture and clears the failed state.
// Memory is released rather than reused so views held by readers of the
// previous capture are never overwritten.
func (b *Buffer) Reset() {
	b.data = nil
	b.failed = false
}

// grow reallocates so that at least need bytes fit.
//
// Small buffers grow in BlockBytes steps; larger ones grow by 25% of their
// capacity, whichever is bigger, rounded up to a whole block.
func (b *Buffer) grow(need int) {
	growBy := BlockBytes
	if cap(b.data) > largeThreshold {
		growBy = cap(b.data) / 4
	}

	newCap := cap(b.data) + growBy
	if newCap < need {
		newCap = need
	}
	newCap = (newCap + BlockBytes - 1) / BlockBytes * BlockBytes
	if b.limit > 0 && uint64(newCap) > b.limit {
		newCap = int(b.limit)
	}

	b.realloc(newCap)
}

func (b *Buffer) realloc(capacity int) {
	next := make([]byte, len(b.data), capacity)
	copy(next, b.data)
	b.data = next
}
