package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/arloliu/mipsnap/internal/options"
)

// DataErrorHandler is notified when the device flags a logic packet as
// corrupt. first is the index of the packet's first sample and count its
// sample count. The packet is stored regardless. The handler may call back
// into the session, for example to Stop it.
type DataErrorHandler func(first, count uint64)

type config struct {
	logger      *zap.Logger
	onDataError DataErrorHandler
	memoryLimit uint64
	analogBits  int
	envelope    bool
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		logger:     zap.NewNop(),
		analogBits: 8,
		envelope:   true,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Option configures a Session.
type Option = options.Option[*config]

// WithLogger sets the session logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return options.New(func(c *config) error {
		if logger == nil {
			return errors.New("nil logger")
		}
		c.logger = logger

		return nil
	})
}

// WithDataErrorHandler registers a callback for packets flagged with a data error.
func WithDataErrorHandler(h DataErrorHandler) Option {
	return options.NoError(func(c *config) {
		c.onDataError = h
	})
}

// WithMemoryLimit caps the raw sample memory of each snapshot in bytes.
func WithMemoryLimit(bytes uint64) Option {
	return options.NoError(func(c *config) {
		c.memoryLimit = bytes
	})
}

// WithAnalogBits sets the analog sample width, 8 (default) or 16 bits.
func WithAnalogBits(bits int) Option {
	return options.New(func(c *config) error {
		if bits != 8 && bits != 16 {
			return errors.New("analog bits must be 8 or 16")
		}
		c.analogBits = bits

		return nil
	})
}

// WithDsoEnvelope enables or disables the DSO envelope at capture start.
func WithDsoEnvelope(enabled bool) Option {
	return options.NoError(func(c *config) {
		c.envelope = enabled
	})
}
