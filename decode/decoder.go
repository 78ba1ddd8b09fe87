// Package decode runs protocol decoders over logic snapshots.
//
// A decoder is a state machine driven by the edge queries of a logic snapshot:
// it looks for framing conditions with FirstEdge, then walks the clock edges
// between two conditions to recover the bits. The result is an ordered list
// of annotations that a renderer can window with SubsampledStates.
//
// Decoders are created through a small registry keyed by protocol id:
//
//	dec, err := decode.New(decode.I2CID)
//	if err != nil {
//		return err
//	}
//	if err := dec.Decode(ctx, logic, []int{sclChannel, sdaChannel}); err != nil {
//		return err
//	}
//	visible := dec.SubsampledStates(start, end, samplesPerPixel)
package decode

import (
	"context"
	"fmt"
	"image/color"

	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/snapshot"
)

// State is a decoder-specific annotation state. Each decoder numbers its own
// states from zero; StateSummary is shared by all of them.
type State uint16

// StateSummary marks several short annotations merged into one span.
const StateSummary State = 0xFFFF

// Annotation is one decoded span of samples.
type Annotation struct {
	Start   uint64
	Length  uint64
	State   State
	Payload uint64
}

// End returns the first sample after the annotation.
func (a Annotation) End() uint64 {
	return a.Start + a.Length
}

// Probe describes one input signal a decoder needs.
type Probe struct {
	Name        string
	Description string
}

// EdgeSource is the read side of a logic snapshot used by decoders.
// *snapshot.LogicSnapshot implements it.
type EdgeSource interface {
	SampleCount() uint64
	ChannelCount() int
	Bit(index uint64, channel int) (bool, error)
	FirstEdge(q snapshot.EdgeQuery) (uint64, bool, error)
	Edges(start, end uint64, channel int) ([]snapshot.Edge, error)
}

var _ EdgeSource = (*snapshot.LogicSnapshot)(nil)

// Decoder is the capability set every protocol decoder implements.
//
// A Decoder keeps the annotations of its last Decode call; it is safe to query
// them from other goroutines while a new Decode runs.
type Decoder interface {
	// ID returns the registry id of the protocol.
	ID() string
	// Probes lists the signals Decode expects, in order.
	Probes() []Probe
	// Decode replaces the stored annotations with a decode of src. channels[i]
	// is the snapshot channel assigned to Probes()[i]. A frame cut off by the
	// end of the data is flushed as far as it was decoded.
	Decode(ctx context.Context, src EdgeSource, channels []int) error
	// Annotations returns a copy of the stored annotations.
	Annotations() []Annotation
	// SubsampledStates returns the annotations that intersect [start, end],
	// merging runs of spans shorter than minLength samples into
	// StateSummary markers.
	SubsampledStates(start, end uint64, minLength float64) []Annotation
	// StateNames returns the display name of each state, indexed by State.
	StateNames() []string
	// Colors returns the display color of each state, indexed by State.
	Colors() []color.RGBA
}

// checkChannels validates a probe assignment against src.
func checkChannels(probes []Probe, channels []int, src EdgeSource) error {
	if len(channels) < len(probes) {
		return fmt.Errorf("%w: %s", errs.ErrMissingProbe, probes[len(channels)].Name)
	}

	var seen uint64
	for i, ch := range channels[:len(probes)] {
		if ch < 0 || ch >= src.ChannelCount() {
			return fmt.Errorf("%w: probe %s on channel %d", errs.ErrInvalidChannel, probes[i].Name, ch)
		}
		if seen&(1<<ch) != 0 {
			return fmt.Errorf("%w: channel %d", errs.ErrDuplicateProbes, ch)
		}
		seen |= 1 << ch
	}

	return nil
}
