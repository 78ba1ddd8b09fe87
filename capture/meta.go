package capture

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/arloliu/mipsnap/errs"
)

// ChannelMeta names one archived channel.
type ChannelMeta struct {
	Index int    `cbor:"index"`
	Name  string `cbor:"name"`
}

// Meta is the descriptive part of an archive.
type Meta struct {
	// SampleRate is the capture rate in samples per second, 0 if unknown.
	SampleRate uint64        `cbor:"rate"`
	Channels   []ChannelMeta `cbor:"channels"`
	// Trigger is the sample index of the trigger position.
	Trigger uint64 `cbor:"trigger,omitempty"`
	Comment string `cbor:"comment,omitempty"`
}

// Deterministic encoding keeps archives of equal captures byte-identical.
var metaEncMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor encode mode: %v", err))
	}

	return mode
}()

func (m *Meta) marshal() ([]byte, error) {
	data, err := metaEncMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode capture metadata: %w", err)
	}
	if len(data) > MaxMetaLength {
		return nil, fmt.Errorf("%w: %d metadata bytes", errs.ErrInvalidHeader, len(data))
	}

	return data, nil
}

func (m *Meta) unmarshal(data []byte) error {
	if err := cbor.Unmarshal(data, m); err != nil {
		return fmt.Errorf("%w: metadata: %w", errs.ErrInvalidHeader, err)
	}

	return nil
}
