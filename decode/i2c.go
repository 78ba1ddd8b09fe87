package decode

import (
	"context"
	"image/color"

	"github.com/arloliu/mipsnap/internal/pool"
	"github.com/arloliu/mipsnap/snapshot"
)

// I2CID is the registry id of the I2C decoder.
const I2CID = "i2c"

// I2C annotation states.
const (
	I2CStart State = iota
	I2CRepeatedStart
	I2CAddressWrite
	I2CAddressRead
	I2CData
	I2CAck
	I2CNak
	I2CStop
)

var (
	i2cStateNames = []string{"Start", "Repeated Start", "Address Write", "Address Read", "Data", "ACK", "NAK", "Stop"}
	i2cColors     = []color.RGBA{
		{R: 0x30, G: 0xA0, B: 0x30, A: 0xFF},
		{R: 0x30, G: 0xC0, B: 0x90, A: 0xFF},
		{R: 0xE0, G: 0x90, B: 0x20, A: 0xFF},
		{R: 0xE0, G: 0x60, B: 0x20, A: 0xFF},
		{R: 0x40, G: 0x80, B: 0xE0, A: 0xFF},
		{R: 0x90, G: 0x90, B: 0x90, A: 0xFF},
		{R: 0xD0, G: 0x30, B: 0x30, A: 0xFF},
		{R: 0x80, G: 0x30, B: 0xB0, A: 0xFF},
	}
	i2cProbes = []Probe{
		{Name: "SCL", Description: "Serial clock line"},
		{Name: "SDA", Description: "Serial data line"},
	}
)

func init() {
	MustRegister(I2CID, func() Decoder { return NewI2C() })
}

// I2C decodes two-wire I2C traffic: start and stop conditions, the 7-bit
// address with its read/write bit, data bytes, and the acknowledge bit after
// each byte.
type I2C struct {
	stateList
}

var _ Decoder = (*I2C)(nil)

// NewI2C creates an I2C decoder.
func NewI2C() *I2C {
	return &I2C{}
}

// ID returns I2CID.
func (d *I2C) ID() string { return I2CID }

// Probes returns SCL and SDA.
func (d *I2C) Probes() []Probe { return i2cProbes }

// StateNames returns the names of the I2C states.
func (d *I2C) StateNames() []string { return i2cStateNames }

// Colors returns the colors of the I2C states.
func (d *I2C) Colors() []color.RGBA { return i2cColors }

// Decode decodes the I2C traffic in src. channels holds the SCL and SDA
// channels in that order.
//
// A start condition is SDA falling while SCL is high; the frame runs to the
// next SDA edge while SCL is high, which is either a stop (SDA rising) or a
// repeated start (SDA falling). SDA is sampled on every SCL rising edge inside
// the frame and the bits are grouped into 8 data bits plus one acknowledge bit.
// An incomplete group before a stop or repeated start is dropped; a frame cut
// off by the end of the data keeps every complete byte.
func (d *I2C) Decode(ctx context.Context, src EdgeSource, channels []int) error {
	if err := checkChannels(i2cProbes, channels, src); err != nil {
		return err
	}

	dec := i2cDecoder{src: src, scl: channels[0], sda: channels[1]}
	anns, err := dec.run(ctx)
	if err != nil {
		return err
	}
	d.set(anns)

	return nil
}

type i2cDecoder struct {
	src      EdgeSource
	scl, sda int
	anns     []Annotation
}

func (d *i2cDecoder) run(ctx context.Context) ([]Annotation, error) {
	count := d.src.SampleCount()
	if count < 2 {
		return nil, nil
	}
	last := count - 1

	start, found, err := d.src.FirstEdge(snapshot.EdgeQuery{
		Start: 0, End: last,
		Channel: d.sda, Type: snapshot.EdgeFalling,
		FlagChannel: d.scl, FlagLevel: true,
	})
	if err != nil || !found {
		return nil, err
	}

	state := I2CStart
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.emit(start, 1, state, 0)

		// The frame ends at the next SDA change while SCL is high.
		boundary, closed, err := d.src.FirstEdge(snapshot.EdgeQuery{
			Start: start, End: last,
			Channel: d.sda, Type: snapshot.EdgeAny,
			FlagChannel: d.scl, FlagLevel: true,
		})
		if err != nil {
			return nil, err
		}
		if !closed {
			boundary = last
		}

		if err := d.frame(start, boundary, closed); err != nil {
			return nil, err
		}
		if !closed {
			return d.anns, nil
		}

		rising, err := d.src.Bit(boundary, d.sda)
		if err != nil {
			return nil, err
		}
		if !rising {
			start, state = boundary, I2CRepeatedStart
			continue
		}

		d.emit(boundary, 1, I2CStop, 0)
		start, found, err = d.src.FirstEdge(snapshot.EdgeQuery{
			Start: boundary, End: last,
			Channel: d.sda, Type: snapshot.EdgeFalling,
			FlagChannel: d.scl, FlagLevel: true,
		})
		if err != nil {
			return nil, err
		}
		if !found {
			return d.anns, nil
		}
		state = I2CStart
	}
}

// i2cBit is one SCL high phase: SDA is sampled at rise, the bit ends at fall.
type i2cBit struct {
	rise, fall uint64
	value      bool
}

var i2cBitPool = pool.NewSlicePool[i2cBit]()

// frame decodes the bytes clocked between a start condition and boundary.
func (d *i2cDecoder) frame(start, boundary uint64, closed bool) error {
	edges, err := d.src.Edges(start, boundary, d.scl)
	if err != nil {
		return err
	}

	// at most one bit per SCL edge
	bits, cleanup := i2cBitPool.Get(len(edges))
	defer cleanup()
	bits = bits[:0]

	for i, e := range edges {
		if !e.Level || e.Index >= boundary {
			continue
		}
		b := i2cBit{rise: e.Index, fall: boundary}
		if i+1 < len(edges) && edges[i+1].Index < boundary {
			b.fall = edges[i+1].Index
		}
		if b.value, err = d.src.Bit(e.Index, d.sda); err != nil {
			return err
		}
		bits = append(bits, b)
	}

	first := true
	for len(bits) >= 8 {
		if len(bits) < 9 && closed {
			break
		}

		var v uint64
		for _, b := range bits[:8] {
			v <<= 1
			if b.value {
				v |= 1
			}
		}

		byteStart, byteEnd := bits[0].rise, bits[7].fall
		switch {
		case !first:
			d.emit(byteStart, byteEnd-byteStart, I2CData, v)
		case v&1 != 0:
			d.emit(byteStart, byteEnd-byteStart, I2CAddressRead, v>>1)
		default:
			d.emit(byteStart, byteEnd-byteStart, I2CAddressWrite, v>>1)
		}
		first = false

		if len(bits) < 9 {
			break
		}
		ack := bits[8]
		if ack.value {
			d.emit(ack.rise, ack.fall-ack.rise, I2CNak, 0)
		} else {
			d.emit(ack.rise, ack.fall-ack.rise, I2CAck, 0)
		}
		bits = bits[9:]
	}

	return nil
}

func (d *i2cDecoder) emit(start, length uint64, state State, payload uint64) {
	d.anns = append(d.anns, Annotation{Start: start, Length: length, State: state, Payload: payload})
}
