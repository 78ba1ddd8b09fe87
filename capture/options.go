package capture

import (
	"fmt"

	"github.com/arloliu/mipsnap/compress"
	"github.com/arloliu/mipsnap/format"
	"github.com/arloliu/mipsnap/internal/options"
)

const (
	// DefaultBlockSamples is the number of samples per block unless
	// WithBlockSamples says otherwise.
	DefaultBlockSamples = 64 * 1024
	// MaxBlockSamples bounds the block size.
	MaxBlockSamples = 16 * 1024 * 1024
)

type config struct {
	compression  format.CompressionType
	blockSamples uint32
	bigEndian    bool
}

// Option configures Write.
type Option = options.Option[*config]

// WithCompression selects the block codec. The default is S2.
func WithCompression(compression format.CompressionType) Option {
	return options.New(func(c *config) error {
		if _, err := compress.GetCodec(compression); err != nil {
			return err
		}
		c.compression = compression

		return nil
	})
}

// WithBlockSamples sets the number of samples per block.
func WithBlockSamples(n int) Option {
	return options.New(func(c *config) error {
		if n <= 0 || n > MaxBlockSamples {
			return fmt.Errorf("block samples must be in [1, %d], got %d", MaxBlockSamples, n)
		}
		c.blockSamples = uint32(n)

		return nil
	})
}

// WithBigEndian writes header and block fields in big-endian order.
func WithBigEndian() Option {
	return options.NoError(func(c *config) {
		c.bigEndian = true
	})
}
