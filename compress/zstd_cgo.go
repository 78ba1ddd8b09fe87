//go:build gozstd && cgo

package compress

import (
	"github.com/valyala/gozstd"

	"github.com/arloliu/mipsnap/format"
)

const zstdLevel = 3

// Compress appends the Zstandard frame of src to dst.
func (c ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	return gozstd.CompressLevel(dst, src, zstdLevel), nil
}

// Decompress appends the decoded frame to dst.
func (c ZstdCompressor) Decompress(dst, src []byte, rawLen int) ([]byte, error) {
	start := len(dst)
	out, err := gozstd.Decompress(dst, src)
	if err != nil {
		return dst, corrupt(format.CompressionZstd, err)
	}
	if err := checkLength(format.CompressionZstd, len(out)-start, rawLen); err != nil {
		return out[:start], err
	}

	return out, nil
}
