// Package capture stores snapshots in a compact, checksummed archive and
// replays archives back into snapshots.
//
// An archive is a fixed 32-byte header, a CBOR metadata section, then the raw
// samples split into blocks of at most BlockSamples samples:
//
//	header   magic "MSNP", byte order, version, kind, codec, unit size,
//	         channel count, bits per channel, sample count, block size,
//	         metadata length
//	meta     CBOR encoded Meta (sample rate, channel names, trigger, comment)
//	block*   [raw length u32][stored length u32][xxh64 of raw u64][payload]
//
// A block whose stored length equals its raw length holds uncompressed
// samples; this is also how incompressible blocks are kept. Only raw samples
// are archived: mip-maps and envelopes are rebuilt on load by appending the
// samples to a fresh snapshot.
//
// Writing a snapshot that is still receiving samples archives the samples
// published when Write is called.
package capture
