package snapshot

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/mipsnap/envelope"
	"github.com/arloliu/mipsnap/errs"
)

func newLogic(t testing.TB, unitSize int, data []byte) *LogicSnapshot {
	t.Helper()

	s, err := NewLogicSnapshot(unitSize)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, s.Append(data))
	}

	return s
}

func packWords(unitSize int, words []uint64) []byte {
	out := make([]byte, len(words)*unitSize)
	tmp := make([]byte, 8)
	for i, w := range words {
		binary.LittleEndian.PutUint64(tmp, w)
		copy(out[i*unitSize:], tmp[:unitSize])
	}

	return out
}

func level(t testing.TB, s *LogicSnapshot, l int) envelope.LevelInfo {
	t.Helper()

	info, err := s.MipMapLevel(l)
	require.NoError(t, err)

	return info
}

func subsample(t testing.TB, s *LogicSnapshot, l int, i uint64) uint64 {
	t.Helper()

	v, err := s.Subsample(l, i)
	require.NoError(t, err)

	return v
}

func edgeIndexes(edges []Edge) []uint64 {
	out := make([]uint64, len(edges))
	for i, e := range edges {
		out[i] = e.Index
	}

	return out
}

func TestPow2Ceil(t *testing.T) {
	assert.Equal(t, uint64(0), Pow2Ceil(0, 0))
	assert.Equal(t, uint64(1), Pow2Ceil(1, 0))
	assert.Equal(t, uint64(2), Pow2Ceil(2, 0))
	assert.Equal(t, uint64(math.MaxInt64), Pow2Ceil(math.MaxInt64, 0))
	assert.Equal(t, uint64(1)<<63, Pow2Ceil(1<<63, 0), "INT64_MIN bit pattern passes through")
	assert.Equal(t, uint64(math.MaxUint64), Pow2Ceil(math.MaxUint64, 0))

	assert.Equal(t, uint64(0), Pow2Ceil(0, 1))
	assert.Equal(t, uint64(2), Pow2Ceil(1, 1))
	assert.Equal(t, uint64(2), Pow2Ceil(2, 1))
	assert.Equal(t, uint64(4), Pow2Ceil(3, 1))

	assert.Equal(t, uint64(0), Pow2Ceil(0, 4))
	assert.Equal(t, uint64(16), Pow2Ceil(1, 4))
	assert.Equal(t, uint64(16), Pow2Ceil(16, 4))
	assert.Equal(t, uint64(32), Pow2Ceil(17, 4))
}

func TestNewLogicSnapshot_InvalidUnitSize(t *testing.T) {
	_, err := NewLogicSnapshot(0)
	require.ErrorIs(t, err, errs.ErrInvalidUnitSize)

	_, err = NewLogicSnapshot(9)
	require.ErrorIs(t, err, errs.ErrInvalidUnitSize)

	_, err = NewLogicSnapshot(1, WithDataUnit(0))
	require.Error(t, err)
}

func TestLogicSnapshot_Basic(t *testing.T) {
	s := newLogic(t, 1, nil)

	require.Equal(t, uint64(0), s.SampleCount())
	for l := range LogicLevels {
		assert.Equal(t, envelope.LevelInfo{}, level(t, s, l))
	}

	// 8 samples of all zeros: not enough for one mip-map entry.
	require.NoError(t, s.Append(make([]byte, 8)))
	require.Equal(t, uint64(8), s.SampleCount())
	for l := range LogicLevels {
		assert.Equal(t, envelope.LevelInfo{}, level(t, s, l))
	}

	// 8 samples of 0x11 bring it to exactly 16.
	ones := []byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11}
	require.NoError(t, s.Append(ones))
	require.Equal(t, uint64(16), s.SampleCount())

	m0 := level(t, s, 0)
	assert.Equal(t, uint64(1), m0.Length)
	assert.Equal(t, uint64(LogicDataUnit), m0.DataLength)
	assert.Equal(t, uint64(0x11), subsample(t, s, 0, 0))
	for l := 1; l < LogicLevels; l++ {
		assert.Equal(t, envelope.LevelInfo{}, level(t, s, l))
	}

	// 240 more zeros bring the total to 256.
	require.NoError(t, s.Append(make([]byte, 240)))
	require.Equal(t, uint64(256), s.SampleCount())

	m0 = level(t, s, 0)
	assert.Equal(t, uint64(16), m0.Length)
	assert.Equal(t, uint64(LogicDataUnit), m0.DataLength)
	assert.Equal(t, uint64(0x11), subsample(t, s, 0, 0), "rise at sample 8")
	assert.Equal(t, uint64(0x11), subsample(t, s, 0, 1), "fall at sample 16")
	for i := uint64(2); i < m0.Length; i++ {
		assert.Equal(t, uint64(0), subsample(t, s, 0, i))
	}

	m1 := level(t, s, 1)
	assert.Equal(t, uint64(1), m1.Length)
	assert.Equal(t, uint64(LogicDataUnit), m1.DataLength)
	assert.Equal(t, uint64(0x11), subsample(t, s, 1, 0))

	// Full view at full zoom.
	edges, err := s.AppendSubsampledEdges(nil, 0, 255, 1, 0)
	require.NoError(t, err)
	require.Equal(t, []Edge{
		{Index: 0, Level: false},
		{Index: 8, Level: true},
		{Index: 16, Level: false},
		{Index: 255, Level: false},
	}, edges)

	// A subset at high zoom.
	edges, err = s.AppendSubsampledEdges(nil, 6, 17, 0.05, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{6, 8, 16, 17}, edgeIndexes(edges))

	// Channel 1 never changes.
	edges, err = s.AppendSubsampledEdges(nil, 0, 255, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []Edge{{Index: 0}, {Index: 255}}, edges)
}

func TestLogicSnapshot_AppendEdgesKeepsDst(t *testing.T) {
	s := newLogic(t, 1, []byte{0, 1, 1, 0})

	dst := []Edge{{Index: 99, Level: true}}
	dst, err := s.AppendSubsampledEdges(dst, 0, 3, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []Edge{{99, true}, {0, false}, {1, true}, {3, false}}, dst)
}

func longPulses(t testing.TB) *LogicSnapshot {
	t.Helper()

	const (
		cycles = 3
		period = 64
	)
	words := make([]uint64, 0, cycles*period)
	for range cycles {
		for j := range period {
			if j < period/4 {
				words = append(words, math.MaxUint64)
			} else {
				words = append(words, 0)
			}
		}
	}

	return newLogic(t, 8, packWords(8, words))
}

func TestLogicSnapshot_LongPulses(t *testing.T) {
	s := longPulses(t)
	const length = 192

	m0 := level(t, s, 0)
	require.Equal(t, uint64(12), m0.Length)
	assert.Equal(t, uint64(LogicDataUnit), m0.DataLength)
	for i := uint64(0); i < m0.Length; i += 4 {
		assert.Equal(t, uint64(0xFF), subsample(t, s, 0, i)&0xFF)
		assert.Equal(t, uint64(0xFF), subsample(t, s, 0, i+1)&0xFF)
		assert.Equal(t, uint64(0x00), subsample(t, s, 0, i+2)&0xFF)
		assert.Equal(t, uint64(0x00), subsample(t, s, 0, i+3)&0xFF)
	}
	assert.Equal(t, envelope.LevelInfo{}, level(t, s, 1))

	edges, err := s.AppendSubsampledEdges(nil, 0, length-1, 16, 2)
	require.NoError(t, err)
	require.Len(t, edges, 2*3+1)
	assert.Equal(t, []Edge{
		{0, true}, {16, false},
		{64, true}, {80, false},
		{128, true}, {144, false},
		{191, false},
	}, edges)

	edges, err = s.AppendSubsampledEdges(nil, 0, length-1, 17, 2)
	require.NoError(t, err)
	assert.Equal(t, []Edge{
		{0, true}, {16, false}, {64, false}, {128, false}, {191, false},
	}, edges)
}

func TestLogicSnapshot_EdgeCountShrinksWithZoom(t *testing.T) {
	s := longPulses(t)

	prev := math.MaxInt
	for _, minLength := range []float64{1, 4, 16, 17, 40, 64, 100, 191, 1000} {
		edges, err := s.AppendSubsampledEdges(nil, 0, 191, minLength, 5)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(edges), prev, "minLength %v", minLength)
		assert.Equal(t, uint64(0), edges[0].Index)
		assert.Equal(t, uint64(191), edges[len(edges)-1].Index)
		prev = len(edges)
	}
}

func TestLogicSnapshot_WideConstant(t *testing.T) {
	const length = 512 << 10

	data := make([]byte, 2*length)
	for i := 0; i < len(data); i += 2 {
		binary.LittleEndian.PutUint16(data[i:], 0x0FF0)
	}
	s := newLogic(t, 2, data)

	assert.Equal(t, uint64(length/16), level(t, s, 0).Length)
	assert.Equal(t, uint64(8), level(t, s, 3).Length)
	assert.Equal(t, uint64(0), level(t, s, 4).Length)

	edges, err := s.AppendSubsampledEdges(nil, 0, length-1, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []Edge{{0, false}, {length - 1, false}}, edges)

	edges, err = s.AppendSubsampledEdges(nil, 0, length-1, 1, 8)
	require.NoError(t, err)
	assert.Equal(t, []Edge{{0, true}, {length - 1, true}}, edges)

	found, err := s.Edges(0, length-1, 8)
	require.NoError(t, err)
	assert.Empty(t, found)
}

// randomWalk builds samples whose bits flip with probability 1/flip.
func randomWalk(r *rand.Rand, n, unitSize, flip int) []uint64 {
	words := make([]uint64, n)
	width := uint(unitSize * 8)
	var cur uint64
	for i := range words {
		for b := range width {
			if r.IntN(flip) == 0 {
				cur ^= 1 << b
			}
		}
		words[i] = cur
	}

	return words
}

func bruteTransitions(words []uint64, start, end uint64, channel int) []Edge {
	var out []Edge
	mask := uint64(1) << channel
	for i := start + 1; i <= end; i++ {
		if (words[i]^words[i-1])&mask != 0 {
			out = append(out, Edge{Index: i, Level: words[i]&mask != 0})
		}
	}

	return out
}

func TestLogicSnapshot_MipMapInvariantDuringAppend(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	words := randomWalk(r, 70000, 2, 3000)
	data := packWords(2, words)

	s := newLogic(t, 2, nil)
	prevData := make([]uint64, LogicLevels)
	for off := 0; off < len(data); {
		n := min(2*(1+r.IntN(3000)), len(data)-off)
		require.NoError(t, s.Append(data[off:off+n]))
		off += n

		assert.Equal(t, s.SampleCount()/ScaleFactor, level(t, s, 0).Length)
		for l := 1; l < LogicLevels; l++ {
			assert.Equal(t, level(t, s, l-1).Length/ScaleFactor, level(t, s, l).Length)
		}
		for l := range LogicLevels {
			info := level(t, s, l)
			assert.GreaterOrEqual(t, info.DataLength, info.Length)
			assert.GreaterOrEqual(t, info.DataLength, prevData[l])
			prevData[l] = info.DataLength
		}
	}

	// Level 0 entries must equal the OR of transitions, computed directly.
	for b := uint64(0); b < level(t, s, 0).Length; b++ {
		var want, prev uint64
		if b > 0 {
			prev = words[b*16-1]
		}
		for i := b * 16; i < b*16+16; i++ {
			want |= prev ^ words[i]
			prev = words[i]
		}
		require.Equal(t, want, subsample(t, s, 0, b), "block %d", b)
	}
}

func TestLogicSnapshot_FullDetailMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	words := randomWalk(r, 200000, 1, 5000)
	s := newLogic(t, 1, packWords(1, words))

	ranges := [][2]uint64{{0, 199999}, {17, 70000}, {4096, 4097}, {12345, 12345}, {65535, 131072}}
	for _, rg := range ranges {
		for ch := range 8 {
			edges, err := s.AppendSubsampledEdges(nil, rg[0], rg[1], 1, ch)
			require.NoError(t, err)

			mask := uint64(1) << ch
			want := []Edge{{Index: rg[0], Level: words[rg[0]]&mask != 0}}
			want = append(want, bruteTransitions(words, rg[0], rg[1], ch)...)
			if want[len(want)-1].Index < rg[1] {
				want = append(want, Edge{Index: rg[1], Level: words[rg[1]]&mask != 0})
			}
			require.Equal(t, want, edges, "range %v channel %d", rg, ch)

			exact, err := s.Edges(rg[0], rg[1], ch)
			require.NoError(t, err)
			require.Equal(t, bruteTransitions(words, rg[0], rg[1], ch), exact)
		}
	}
}

func TestLogicSnapshot_SubsampledEdgesMonotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	words := randomWalk(r, 100000, 1, 200)
	s := newLogic(t, 1, packWords(1, words))

	for _, minLength := range []float64{0.5, 1, 3, 15, 16, 31, 256, 5000} {
		edges, err := s.AppendSubsampledEdges(nil, 10, 99990, minLength, 3)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(edges), 2)
		for i := 1; i < len(edges); i++ {
			require.Greater(t, edges[i].Index, edges[i-1].Index, "minLength %v", minLength)
		}
		assert.Equal(t, words[99990]&8 != 0, edges[len(edges)-1].Level)
	}
}

func TestLogicSnapshot_QueryErrors(t *testing.T) {
	s := newLogic(t, 1, make([]byte, 32))

	_, err := s.AppendSubsampledEdges(nil, 0, 32, 1, 0)
	require.ErrorIs(t, err, errs.ErrInvalidRange)

	_, err = s.AppendSubsampledEdges(nil, 10, 5, 1, 0)
	require.ErrorIs(t, err, errs.ErrInvalidRange)

	_, err = s.AppendSubsampledEdges(nil, 0, 5, 0, 0)
	require.ErrorIs(t, err, errs.ErrInvalidMinLength)

	_, err = s.AppendSubsampledEdges(nil, 0, 5, 1, 8)
	require.ErrorIs(t, err, errs.ErrInvalidChannel)

	_, err = s.Edges(0, 5, -1)
	require.ErrorIs(t, err, errs.ErrInvalidChannel)

	_, err = s.Sample(32)
	require.ErrorIs(t, err, errs.ErrInvalidRange)

	_, err = s.Bit(0, 9)
	require.ErrorIs(t, err, errs.ErrInvalidChannel)

	_, err = s.MipMapLevel(LogicLevels)
	require.ErrorIs(t, err, errs.ErrInvalidLevel)

	_, err = s.Subsample(0, 2)
	require.ErrorIs(t, err, errs.ErrInvalidRange)

	_, _, err = s.FirstEdge(EdgeQuery{Start: 0, End: 5, Channel: 0, FlagChannel: 12})
	require.ErrorIs(t, err, errs.ErrInvalidChannel)

	empty := newLogic(t, 1, nil)
	_, err = empty.AppendSubsampledEdges(nil, 0, 0, 1, 0)
	require.ErrorIs(t, err, errs.ErrInvalidRange)
}

func TestLogicSnapshot_FirstEdge(t *testing.T) {
	// ch0 toggles every 10 samples, ch1 is high on [25, 60).
	words := make([]uint64, 100)
	for i := range words {
		if (i/10)%2 == 1 {
			words[i] |= 1
		}
		if i >= 25 && i < 60 {
			words[i] |= 2
		}
	}
	s := newLogic(t, 1, packWords(1, words))

	tests := []struct {
		name  string
		q     EdgeQuery
		want  uint64
		found bool
	}{
		{"any", EdgeQuery{Start: 0, End: 99, Channel: 0, FlagChannel: NoFlag}, 10, true},
		{"falling", EdgeQuery{Start: 0, End: 99, Channel: 0, Type: EdgeFalling, FlagChannel: NoFlag}, 20, true},
		{"rising after start edge", EdgeQuery{Start: 10, End: 99, Channel: 0, Type: EdgeRising, FlagChannel: NoFlag}, 30, true},
		{"start is exclusive", EdgeQuery{Start: 20, End: 99, Channel: 0, FlagChannel: NoFlag}, 30, true},
		{"end is inclusive", EdgeQuery{Start: 0, End: 10, Channel: 0, FlagChannel: NoFlag}, 10, true},
		{"out of window", EdgeQuery{Start: 0, End: 9, Channel: 0, FlagChannel: NoFlag}, 0, false},
		{"flag high", EdgeQuery{Start: 0, End: 99, Channel: 0, FlagChannel: 1, FlagLevel: true}, 30, true},
		{"falling flag high", EdgeQuery{Start: 0, End: 99, Channel: 0, Type: EdgeFalling, FlagChannel: 1, FlagLevel: true}, 40, true},
		{"flag low after window", EdgeQuery{Start: 30, End: 99, Channel: 0, FlagChannel: 1, FlagLevel: false}, 60, true},
		{"no match", EdgeQuery{Start: 60, End: 99, Channel: 0, Type: EdgeRising, FlagChannel: 1, FlagLevel: true}, 0, false},
		{"flag channel edge", EdgeQuery{Start: 0, End: 99, Channel: 1, Type: EdgeFalling, FlagChannel: NoFlag}, 60, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := s.FirstEdge(tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogicSnapshot_FirstEdgeAcrossMipMap(t *testing.T) {
	const n = 1 << 20
	words := make([]uint64, n)
	for i := 700000; i < n; i++ {
		words[i] = 0x80
	}
	s := newLogic(t, 1, packWords(1, words))

	got, found, err := s.FirstEdge(EdgeQuery{Start: 5, End: n - 1, Channel: 7, Type: EdgeRising, FlagChannel: NoFlag})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(700000), got)

	_, found, err = s.FirstEdge(EdgeQuery{Start: 5, End: n - 1, Channel: 7, Type: EdgeFalling, FlagChannel: NoFlag})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLogicSnapshot_NextPrevEdge(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	words := randomWalk(r, 20000, 1, 400)
	s := newLogic(t, 1, packWords(1, words))

	const ch = 4
	all := bruteTransitions(words, 0, uint64(len(words)-1), ch)
	require.NotEmpty(t, all)

	for _, at := range []uint64{0, 1, 15, 16, 17, 255, 4095, 10000, 19999} {
		next, found, err := s.NextEdge(at, ch)
		require.NoError(t, err)
		wantNext, wantFound := Edge{}, false
		for _, e := range all {
			if e.Index > at {
				wantNext, wantFound = e, true
				break
			}
		}
		assert.Equal(t, wantFound, found, "next after %d", at)
		assert.Equal(t, wantNext, next, "next after %d", at)

		prev, found, err := s.PrevEdge(at, ch)
		require.NoError(t, err)
		wantPrev, wantFound := Edge{}, false
		for _, e := range all {
			if e.Index <= at {
				wantPrev, wantFound = e, true
			}
		}
		assert.Equal(t, wantFound, found, "prev at %d", at)
		assert.Equal(t, wantPrev, prev, "prev at %d", at)
	}
}

func TestLogicSnapshot_MinPulse(t *testing.T) {
	// Pulses of widths 40, 7 and 12 on channel 3.
	words := make([]uint64, 200)
	for i := range words {
		switch {
		case i >= 10 && i < 50, i >= 80 && i < 87, i >= 150 && i < 162:
			words[i] = 8
		}
	}
	s := newLogic(t, 1, packWords(1, words))

	width, found, err := s.MinPulse(0, 199, 3)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(7), width)

	width, found, err = s.MinPulse(100, 199, 3)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(12), width)

	_, found, err = s.MinPulse(0, 30, 3)
	require.NoError(t, err)
	assert.False(t, found, "one transition is not a pulse")

	_, found, err = s.MinPulse(0, 199, 0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLogicSnapshot_SampleAndBit(t *testing.T) {
	s := newLogic(t, 3, []byte{0x01, 0x02, 0x83, 0xFF, 0x00, 0x00})

	w, err := s.Sample(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x830201), w)

	b, err := s.Bit(0, 23)
	require.NoError(t, err)
	assert.True(t, b)

	b, err = s.Bit(1, 8)
	require.NoError(t, err)
	assert.False(t, b)

	view, err := s.Samples(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x00, 0x00}, view)
	assert.Equal(t, 24, s.ChannelCount())
}

func TestLogicSnapshot_AppendErrors(t *testing.T) {
	s, err := NewLogicSnapshot(2, WithMemoryLimit(64))
	require.NoError(t, err)

	require.ErrorIs(t, s.Append([]byte{1, 2, 3}), errs.ErrPartialSample)
	require.NoError(t, s.Append(make([]byte, 40)))
	require.ErrorIs(t, s.Append(make([]byte, 40)), errs.ErrOutOfMemory)
	assert.True(t, s.MemoryFailed())
	require.ErrorIs(t, s.Append(make([]byte, 2)), errs.ErrMemoryFailed)

	// Data captured before the failure stays queryable.
	assert.Equal(t, uint64(20), s.SampleCount())
	assert.Equal(t, uint64(1), level(t, s, 0).Length)
	_, err = s.AppendSubsampledEdges(nil, 0, 19, 1, 0)
	require.NoError(t, err)

	s.Reset()
	assert.False(t, s.MemoryFailed())
	assert.Equal(t, uint64(0), s.SampleCount())
	assert.Equal(t, envelope.LevelInfo{}, level(t, s, 0))
}

func TestLogicSnapshot_ConcurrentReaders(t *testing.T) {
	s := newLogic(t, 1, nil)

	done := make(chan struct{})
	errCh := make(chan error, 4)
	for range 4 {
		go func() {
			for {
				select {
				case <-done:
					errCh <- nil
					return
				default:
				}
				n := s.SampleCount()
				if n == 0 {
					continue
				}
				if _, err := s.AppendSubsampledEdges(nil, 0, n-1, 10, 0); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}

	packet := make([]byte, 1000)
	for i := range 200 {
		for j := range packet {
			packet[j] = byte((i*1000 + j) / 37)
		}
		require.NoError(t, s.Append(packet))
	}
	close(done)

	for range 4 {
		require.NoError(t, <-errCh)
	}
	assert.Equal(t, uint64(200000), s.SampleCount())
}
