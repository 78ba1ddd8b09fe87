package snapshot

import (
	"errors"

	"github.com/arloliu/mipsnap/envelope"
	"github.com/arloliu/mipsnap/internal/options"
)

// Level counts and allocation units per snapshot kind.
const (
	LogicLevels   = 10
	DsoLevels     = 10
	AnalogLevels  = 10
	GroupLevels   = 16
	LogicDataUnit = 64 * 1024
)

// ScalePower and ScaleFactor mirror the envelope package.
const (
	ScalePower  = envelope.ScalePower
	ScaleFactor = envelope.ScaleFactor
)

type config struct {
	memoryLimit uint64
	envelope    bool
	dataUnit    uint64
}

func newConfig(dataUnit uint64, opts []Option) (*config, error) {
	cfg := &config{envelope: true, dataUnit: dataUnit}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Option configures a snapshot.
type Option = options.Option[*config]

// WithMemoryLimit caps the raw sample memory in bytes. Zero means unlimited.
func WithMemoryLimit(bytes uint64) Option {
	return options.NoError(func(c *config) {
		c.memoryLimit = bytes
	})
}

// WithEnvelope enables or disables envelope building for Dso and Analog
// snapshots. Logic snapshots always keep their mip-map.
func WithEnvelope(enabled bool) Option {
	return options.NoError(func(c *config) {
		c.envelope = enabled
	})
}

// WithDataUnit sets the summary allocation unit in elements.
func WithDataUnit(n uint64) Option {
	return options.New(func(c *config) error {
		if n == 0 {
			return errors.New("data unit must be positive")
		}
		c.dataUnit = n

		return nil
	})
}
