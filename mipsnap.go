// Package mipsnap stores streamed logic analyzer and oscilloscope captures
// with multi-resolution summaries, so that any window of a capture can be
// rendered or searched in time proportional to the screen, not to the data.
//
// # Core Features
//
//   - Logic snapshots with an OR mip-map for edge search at any zoom level
//   - DSO and analog snapshots with per-channel (min, max) envelopes
//   - Channel groups projecting logic bits into a combined value stream
//   - Edge-driven protocol decoders (I2C) with annotation lookup
//   - Compressed, checksummed capture archives (None, Zstd, S2, LZ4)
//
// # Basic Usage
//
// Capturing logic data through a session:
//
//	s, _ := mipsnap.NewSession(mipsnap.LogicChannels("SCL", "SDA"))
//	_ = s.Start(totalSamples)
//	for packet := range packets {
//	    _ = s.FeedLogic(session.LogicPacket{Data: packet, UnitSize: s.LogicUnitSize()})
//	}
//	_ = s.Stop()
//
// Rendering and decoding:
//
//	logic := s.Logic()
//	edges, _ := logic.AppendSubsampledEdges(nil, start, end, samplesPerPixel, 1)
//
//	dec, _ := mipsnap.NewDecoder(decode.I2CID)
//	_ = dec.Decode(ctx, logic, []int{0, 1})
//
// Archiving:
//
//	stats, _ := mipsnap.SaveLogic(w, s, sampleRate)
//
// # Package Structure
//
// This package wraps the most common entry points. The snapshot, session,
// decode and capture packages expose the full API.
package mipsnap

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/arloliu/mipsnap/capture"
	"github.com/arloliu/mipsnap/decode"
	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/format"
	"github.com/arloliu/mipsnap/session"
	"github.com/arloliu/mipsnap/snapshot"
)

// NewLogicSnapshot creates a logic snapshot wide enough for channels logic
// channels, one byte per 8 channels.
func NewLogicSnapshot(channels int, opts ...snapshot.Option) (*snapshot.LogicSnapshot, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d logic channels", errs.ErrInvalidChannel, channels)
	}

	return snapshot.NewLogicSnapshot((channels+7)/8, opts...)
}

// LogicChannels returns enabled logic channels 0..len(names)-1 with the given names.
func LogicChannels(names ...string) []session.Channel {
	channels := make([]session.Channel, len(names))
	for i, name := range names {
		channels[i] = session.Channel{Index: i, Kind: format.KindLogic, Name: name, Enabled: true}
	}

	return channels
}

// NewSession creates an idle acquisition session.
func NewSession(channels []session.Channel, opts ...session.Option) (*session.Session, error) {
	return session.New(channels, opts...)
}

// NewDecoder creates a registered protocol decoder, e.g. decode.I2CID.
func NewDecoder(id string) (decode.Decoder, error) {
	return decode.New(id)
}

// CaptureMeta builds archive metadata from the enabled channels of kind in s.
// Channels are listed in ascending index order, which is also their
// interleave order for dso and analog data.
func CaptureMeta(s *session.Session, kind format.SnapshotKind, sampleRate uint64) capture.Meta {
	meta := capture.Meta{SampleRate: sampleRate}
	for _, ch := range s.Channels() {
		if ch.Enabled && ch.Kind == kind {
			meta.Channels = append(meta.Channels, capture.ChannelMeta{Index: ch.Index, Name: ch.Name})
		}
	}
	slices.SortFunc(meta.Channels, func(a, b capture.ChannelMeta) int {
		return cmp.Compare(a.Index, b.Index)
	})

	return meta
}

// SaveLogic archives the logic data captured by s.
func SaveLogic(w io.Writer, s *session.Session, sampleRate uint64, opts ...capture.Option) (capture.Stats, error) {
	logic := s.Logic()
	if logic == nil {
		return capture.Stats{}, errs.ErrNoLogicData
	}

	return capture.Write(w, logic, CaptureMeta(s, format.KindLogic, sampleRate), opts...)
}
