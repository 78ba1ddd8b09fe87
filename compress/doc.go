// Package compress provides the block codecs used by capture archives.
//
// Every codec works on whole blocks and follows append semantics: Compress
// appends the encoded block to dst, Decompress appends the decoded block to
// dst. The decoded length is always known to the caller (it is stored in the
// archive's block header), so Decompress takes it as an argument and rejects
// blocks that decode to any other size.
//
// Available codecs:
//
//   - None: blocks are stored as-is.
//   - Zstd: best ratio. Pure Go (klauspost/compress) by default; building
//     with the gozstd tag and cgo enabled switches to the libzstd binding.
//   - S2: very fast, moderate ratio. Good default for live captures.
//   - LZ4: fastest decompression.
//
// Logic captures compress extremely well with any of them: long runs of
// unchanged samples dominate real signals.
//
// Codecs are stateless values and safe for concurrent use; encoders and
// decoders that carry state are pooled internally.
package compress
