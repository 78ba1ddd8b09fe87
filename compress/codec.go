package compress

import (
	"fmt"

	"github.com/arloliu/mipsnap/errs"
	"github.com/arloliu/mipsnap/format"
)

// Codec compresses and decompresses capture blocks.
type Codec interface {
	// Type returns the compression type recorded in archive headers.
	Type() format.CompressionType
	// Compress appends the compressed form of src to dst.
	//
	// A codec may append nothing for input it cannot shrink; callers then
	// store the block uncompressed.
	Compress(dst, src []byte) ([]byte, error)
	// Decompress appends the rawLen bytes encoded in src to dst.
	//
	// Returns an error wrapping errs.ErrCorruptBlock if src is malformed or
	// does not decode to exactly rawLen bytes.
	Decompress(dst, src []byte, rawLen int) ([]byte, error)
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec returns the built-in codec for compressionType.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: %s", errs.ErrInvalidCodec, compressionType)
}

func corrupt(codec format.CompressionType, err error) error {
	return fmt.Errorf("%w: %s: %w", errs.ErrCorruptBlock, codec, err)
}

func checkLength(codec format.CompressionType, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s block decoded to %d bytes, want %d", errs.ErrCorruptBlock, codec, got, want)
	}

	return nil
}
