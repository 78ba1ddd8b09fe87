package session

import (
	"fmt"
	"slices"

	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/format"
	"github.com/arloliu/mipsnap/sample"
)

// Channel describes one acquisition channel.
//
// Logic channel Index is the bit position in the device's sample word. DSO
// and analog channels are interleaved in packets in ascending Index order of
// the enabled channels of that kind.
type Channel struct {
	Index   int
	Kind    format.SnapshotKind
	Name    string
	Enabled bool
}

func validateChannels(channels []Channel) error {
	seen := make(map[int]struct{}, len(channels))
	for _, ch := range channels {
		if !ch.Kind.Valid() {
			return fmt.Errorf("%w: channel %d has kind %s", errs.ErrInvalidChannels, ch.Index, ch.Kind)
		}
		if ch.Index < 0 {
			return fmt.Errorf("%w: negative index %d", errs.ErrInvalidChannels, ch.Index)
		}
		if ch.Kind == format.KindLogic && ch.Index >= sample.MaxUnitSize*8 {
			return fmt.Errorf("%w: logic channel %d beyond %d bits", errs.ErrInvalidChannels, ch.Index, sample.MaxUnitSize*8)
		}
		if _, ok := seen[ch.Index]; ok {
			return fmt.Errorf("%w: index %d listed twice", errs.ErrInvalidChannels, ch.Index)
		}
		seen[ch.Index] = struct{}{}
	}

	return nil
}

// enabled returns the indexes of the enabled channels of kind, ascending.
func enabled(channels []Channel, kind format.SnapshotKind) []int {
	var out []int
	for _, ch := range channels {
		if ch.Enabled && ch.Kind == kind {
			out = append(out, ch.Index)
		}
	}
	slices.Sort(out)

	return out
}

// logicUnitSize returns the bytes per logic sample needed to carry the
// highest enabled logic channel, or 0 without enabled logic channels.
func logicUnitSize(channels []Channel) int {
	idx := enabled(channels, format.KindLogic)
	if len(idx) == 0 {
		return 0
	}

	return idx[len(idx)-1]/8 + 1
}
