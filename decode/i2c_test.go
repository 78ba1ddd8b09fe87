package decode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/snapshot"
)

const (
	sclCh = 0
	sdaCh = 1
)

// i2cWave builds a 1-byte-per-sample logic capture with SCL on bit 0 and SDA
// on bit 1. Each bit takes 8 samples: 2 with SCL low after SDA settles, 4 with
// SCL high, 2 with SCL low.
type i2cWave struct {
	data     []byte
	scl, sda bool
}

func newI2CWave() *i2cWave {
	w := &i2cWave{scl: true, sda: true}
	w.hold(10)

	return w
}

func (w *i2cWave) hold(n int) {
	var v byte
	if w.scl {
		v |= 1 << sclCh
	}
	if w.sda {
		v |= 1 << sdaCh
	}
	for range n {
		w.data = append(w.data, v)
	}
}

func (w *i2cWave) pos() uint64 { return uint64(len(w.data)) }

func (w *i2cWave) start() uint64 {
	at := w.pos()
	w.sda = false
	w.hold(4)
	w.scl = false
	w.hold(2)

	return at
}

func (w *i2cWave) repeatedStart() uint64 {
	w.sda = true
	w.hold(2)
	w.scl = true
	w.hold(2)
	at := w.pos()
	w.sda = false
	w.hold(2)
	w.scl = false
	w.hold(2)

	return at
}

func (w *i2cWave) stop() uint64 {
	w.sda = false
	w.hold(2)
	w.scl = true
	w.hold(2)
	at := w.pos()
	w.sda = true
	w.hold(6)

	return at
}

func (w *i2cWave) bit(v bool) {
	w.sda = v
	w.hold(2)
	w.scl = true
	w.hold(4)
	w.scl = false
	w.hold(2)
}

func (w *i2cWave) bits(v byte, n int) {
	for i := 7; i > 7-n; i-- {
		w.bit(v&(1<<i) != 0)
	}
}

func (w *i2cWave) sendByte(v byte, ack bool) {
	w.bits(v, 8)
	w.bit(!ack)
}

func (w *i2cWave) snapshot(t *testing.T) *snapshot.LogicSnapshot {
	t.Helper()

	s, err := snapshot.NewLogicSnapshot(1)
	require.NoError(t, err)
	require.NoError(t, s.Append(w.data))

	return s
}

type stateView struct {
	State   State
	Payload uint64
}

func states(anns []Annotation) []stateView {
	out := make([]stateView, len(anns))
	for i, a := range anns {
		out[i] = stateView{a.State, a.Payload}
	}

	return out
}

func decodeI2C(t *testing.T, w *i2cWave) []Annotation {
	t.Helper()

	d := NewI2C()
	require.NoError(t, d.Decode(context.Background(), w.snapshot(t), []int{sclCh, sdaCh}))

	return d.Annotations()
}

func TestI2C_Write(t *testing.T) {
	w := newI2CWave()
	startAt := w.start()
	w.sendByte(0x50<<1, true)
	w.sendByte(0x12, true)
	w.sendByte(0x34, false)
	stopAt := w.stop()
	w.hold(10)

	anns := decodeI2C(t, w)
	assert.Equal(t, []stateView{
		{I2CStart, 0},
		{I2CAddressWrite, 0x50},
		{I2CAck, 0},
		{I2CData, 0x12},
		{I2CAck, 0},
		{I2CData, 0x34},
		{I2CNak, 0},
		{I2CStop, 0},
	}, states(anns))

	assert.Equal(t, Annotation{Start: startAt, Length: 1, State: I2CStart}, anns[0])
	assert.Equal(t, Annotation{Start: 18, Length: 60, State: I2CAddressWrite, Payload: 0x50}, anns[1])
	assert.Equal(t, Annotation{Start: 82, Length: 4, State: I2CAck}, anns[2])
	assert.Equal(t, Annotation{Start: stopAt, Length: 1, State: I2CStop}, anns[7])

	for i := 1; i < len(anns); i++ {
		assert.LessOrEqual(t, anns[i-1].End(), anns[i].Start, "annotation %d overlaps", i)
	}
}

func TestI2C_RepeatedStartRead(t *testing.T) {
	w := newI2CWave()
	w.start()
	w.sendByte(0x50<<1, true)
	w.sendByte(0x01, true)
	rs := w.repeatedStart()
	w.sendByte(0x50<<1|1, true)
	w.sendByte(0x99, false)
	w.stop()
	w.hold(4)

	anns := decodeI2C(t, w)
	assert.Equal(t, []stateView{
		{I2CStart, 0},
		{I2CAddressWrite, 0x50},
		{I2CAck, 0},
		{I2CData, 0x01},
		{I2CAck, 0},
		{I2CRepeatedStart, 0},
		{I2CAddressRead, 0x50},
		{I2CAck, 0},
		{I2CData, 0x99},
		{I2CNak, 0},
		{I2CStop, 0},
	}, states(anns))
	assert.Equal(t, rs, anns[5].Start)
}

func TestI2C_MultipleFrames(t *testing.T) {
	w := newI2CWave()
	for _, addr := range []byte{0x20, 0x21, 0x22} {
		w.start()
		w.sendByte(addr<<1, true)
		w.stop()
		w.hold(20)
	}

	anns := decodeI2C(t, w)
	require.Len(t, anns, 12)
	for i, addr := range []uint64{0x20, 0x21, 0x22} {
		assert.Equal(t, []stateView{{I2CStart, 0}, {I2CAddressWrite, addr}, {I2CAck, 0}, {I2CStop, 0}},
			states(anns[i*4:i*4+4]))
	}
}

func TestI2C_TruncatedFrame(t *testing.T) {
	t.Run("partial byte dropped", func(t *testing.T) {
		w := newI2CWave()
		w.start()
		w.sendByte(0x50<<1, true)
		w.sendByte(0xAB, true)
		w.bits(0xFF, 5)

		assert.Equal(t, []stateView{
			{I2CStart, 0},
			{I2CAddressWrite, 0x50},
			{I2CAck, 0},
			{I2CData, 0xAB},
			{I2CAck, 0},
		}, states(decodeI2C(t, w)))
	})

	t.Run("byte without acknowledge kept", func(t *testing.T) {
		w := newI2CWave()
		w.start()
		w.sendByte(0x50<<1, true)
		w.bits(0xCD, 8)
		w.hold(3)

		assert.Equal(t, []stateView{
			{I2CStart, 0},
			{I2CAddressWrite, 0x50},
			{I2CAck, 0},
			{I2CData, 0xCD},
		}, states(decodeI2C(t, w)))
	})
}

func TestI2C_IncompleteByteBeforeStop(t *testing.T) {
	w := newI2CWave()
	w.start()
	w.sendByte(0x50<<1, true)
	w.bits(0xF0, 4)
	w.stop()
	w.hold(4)

	assert.Equal(t, []stateView{
		{I2CStart, 0},
		{I2CAddressWrite, 0x50},
		{I2CAck, 0},
		{I2CStop, 0},
	}, states(decodeI2C(t, w)))
}

func TestI2C_NoTraffic(t *testing.T) {
	w := newI2CWave()
	w.hold(100)

	assert.Empty(t, decodeI2C(t, w))
}

func TestI2C_Errors(t *testing.T) {
	w := newI2CWave()
	w.start()
	w.sendByte(0xA0, true)
	w.stop()
	src := w.snapshot(t)
	d := NewI2C()

	require.ErrorIs(t, d.Decode(context.Background(), src, []int{0}), errs.ErrMissingProbe)
	require.ErrorIs(t, d.Decode(context.Background(), src, []int{1, 1}), errs.ErrDuplicateProbes)
	require.ErrorIs(t, d.Decode(context.Background(), src, []int{0, 8}), errs.ErrInvalidChannel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, d.Decode(ctx, src, []int{sclCh, sdaCh}), context.Canceled)
	assert.Empty(t, d.Annotations())
}

func TestI2C_Tables(t *testing.T) {
	d := NewI2C()
	assert.Equal(t, I2CID, d.ID())
	require.Len(t, d.Probes(), 2)
	assert.Equal(t, "SCL", d.Probes()[0].Name)
	assert.Len(t, d.StateNames(), int(I2CStop)+1)
	assert.Len(t, d.Colors(), len(d.StateNames()))
	assert.Equal(t, "NAK", d.StateNames()[I2CNak])
}

func TestI2C_SubsampledStates(t *testing.T) {
	w := newI2CWave()
	w.start()
	w.sendByte(0x50<<1, true)
	w.sendByte(0x12, true)
	w.stop()
	w.hold(4)

	d := NewI2C()
	require.NoError(t, d.Decode(context.Background(), w.snapshot(t), []int{sclCh, sdaCh}))
	all := d.Annotations()

	// One sample per pixel shows everything.
	assert.Equal(t, all, d.SubsampledStates(0, w.pos()-1, 1))

	// At 8 samples per pixel, the ack spans collapse only where they are
	// adjacent to another short span.
	coarse := d.SubsampledStates(0, w.pos()-1, 8)
	require.NotEmpty(t, coarse)
	for i := 1; i < len(coarse); i++ {
		assert.Less(t, coarse[i-1].Start, coarse[i].Start)
	}

	// Zoomed out past the whole frame, the short spans merge.
	far := d.SubsampledStates(0, w.pos()-1, 1e6)
	require.Len(t, far, 1)
	assert.Equal(t, StateSummary, far[0].State)
	assert.Equal(t, uint64(len(all)), far[0].Payload)
	assert.Equal(t, all[0].Start, far[0].Start)
	assert.Equal(t, all[len(all)-1].End(), far[0].End())
}
