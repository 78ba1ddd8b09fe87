package compress

import (
	"slices"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/mipsnap/format"
)

// lz4CompressorPool reuses the hash tables of lz4 block compressors.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Compressor is the LZ4 block codec.
type LZ4Compressor struct{}

var _ Codec = (*LZ4Compressor)(nil)

// NewLZ4Compressor creates an LZ4 codec.
func NewLZ4Compressor() LZ4Compressor {
	return LZ4Compressor{}
}

// Type returns format.CompressionLZ4.
func (c LZ4Compressor) Type() format.CompressionType {
	return format.CompressionLZ4
}

// Compress appends the LZ4 block encoding of src to dst. Nothing is appended
// when src does not compress.
func (c LZ4Compressor) Compress(dst, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return dst, nil
	}

	start := len(dst)
	bound := lz4.CompressBlockBound(len(src))
	dst = slices.Grow(dst, bound)

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(src, dst[start:start+bound])
	if err != nil {
		return dst[:start], err
	}

	return dst[:start+n], nil
}

// Decompress appends the decoded block to dst.
func (c LZ4Compressor) Decompress(dst, src []byte, rawLen int) ([]byte, error) {
	start := len(dst)
	dst = slices.Grow(dst, rawLen)

	n, err := lz4.UncompressBlock(src, dst[start:start+rawLen])
	if err != nil {
		return dst[:start], corrupt(format.CompressionLZ4, err)
	}
	if err := checkLength(format.CompressionLZ4, n, rawLen); err != nil {
		return dst[:start], err
	}

	return dst[:start+n], nil
}
