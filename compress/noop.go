package compress

import "github.com/arloliu/mipsnap/format"

// NoOpCompressor stores blocks without compression.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates the pass-through codec.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Type returns format.CompressionNone.
func (c NoOpCompressor) Type() format.CompressionType {
	return format.CompressionNone
}

// Compress appends src to dst unchanged.
func (c NoOpCompressor) Compress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

// Decompress appends src to dst unchanged after checking its length.
func (c NoOpCompressor) Decompress(dst, src []byte, rawLen int) ([]byte, error) {
	if err := checkLength(format.CompressionNone, len(src), rawLen); err != nil {
		return dst, err
	}

	return append(dst, src...), nil
}
