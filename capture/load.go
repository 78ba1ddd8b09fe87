package capture

import (
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/format"
	"github.com/arloliu/mipsnap/snapshot"
)

type appender interface {
	Init(totalHint uint64) error
	Append(data []byte) error
}

// LoadLogic reads a logic archive into a new snapshot, rebuilding its mip-map.
func LoadLogic(r io.Reader, opts ...snapshot.Option) (*snapshot.LogicSnapshot, Meta, error) {
	rd, err := open(r, format.KindLogic)
	if err != nil {
		return nil, Meta{}, err
	}

	snap, err := snapshot.NewLogicSnapshot(int(rd.header.UnitSize), opts...)
	if err != nil {
		return nil, Meta{}, err
	}
	if err := replay(rd, snap); err != nil {
		return nil, Meta{}, err
	}

	return snap, rd.meta, nil
}

// LoadDso reads a dso archive into a new snapshot, rebuilding its envelopes.
func LoadDso(r io.Reader, opts ...snapshot.Option) (*snapshot.DsoSnapshot, Meta, error) {
	rd, err := open(r, format.KindDso)
	if err != nil {
		return nil, Meta{}, err
	}

	snap, err := snapshot.NewDsoSnapshot(int(rd.header.Channels), opts...)
	if err != nil {
		return nil, Meta{}, err
	}
	if err := replay(rd, snap); err != nil {
		return nil, Meta{}, err
	}

	return snap, rd.meta, nil
}

// LoadAnalog reads an analog archive into a new snapshot, rebuilding its envelopes.
func LoadAnalog(r io.Reader, opts ...snapshot.Option) (*snapshot.AnalogSnapshot, Meta, error) {
	rd, err := open(r, format.KindAnalog)
	if err != nil {
		return nil, Meta{}, err
	}

	snap, err := snapshot.NewAnalogSnapshot(int(rd.header.Channels), int(rd.header.ChannelBits), opts...)
	if err != nil {
		return nil, Meta{}, err
	}
	if err := replay(rd, snap); err != nil {
		return nil, Meta{}, err
	}

	return snap, rd.meta, nil
}

func open(r io.Reader, kind format.SnapshotKind) (*Reader, error) {
	rd, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	if rd.header.Kind != kind {
		return nil, fmt.Errorf("%w: archive holds %s, want %s", errs.ErrKindMismatch, rd.header.Kind, kind)
	}

	return rd, nil
}

// replay streams every block into snap. The header's sample count only sizes
// the initial reservation, which Init bounds; the blocks decide the length.
func replay(rd *Reader, snap appender) error {
	if err := snap.Init(rd.header.SampleCount); err != nil {
		return err
	}

	for {
		block, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := snap.Append(block); err != nil {
			return err
		}
	}
}
