package compress

import (
	"slices"

	"github.com/klauspost/compress/s2"

	"github.com/arloliu/mipsnap/format"
)

// S2Compressor is the S2 block codec, an extension of Snappy with better
// ratio and throughput.
type S2Compressor struct{}

var _ Codec = (*S2Compressor)(nil)

// NewS2Compressor creates an S2 codec.
func NewS2Compressor() S2Compressor {
	return S2Compressor{}
}

// Type returns format.CompressionS2.
func (c S2Compressor) Type() format.CompressionType {
	return format.CompressionS2
}

// Compress appends the S2 encoding of src to dst.
func (c S2Compressor) Compress(dst, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return dst, nil
	}

	start := len(dst)
	bound := s2.MaxEncodedLen(len(src))
	dst = slices.Grow(dst, bound)
	enc := s2.Encode(dst[start:start+bound], src)

	return dst[:start+len(enc)], nil
}

// Decompress appends the decoded block to dst.
func (c S2Compressor) Decompress(dst, src []byte, rawLen int) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return dst, corrupt(format.CompressionS2, err)
	}
	if err := checkLength(format.CompressionS2, n, rawLen); err != nil {
		return dst, err
	}

	start := len(dst)
	dst = slices.Grow(dst, rawLen)
	out, err := s2.Decode(dst[start:start+rawLen], src)
	if err != nil {
		return dst[:start], corrupt(format.CompressionS2, err)
	}

	return dst[:start+len(out)], nil
}
