// Package snapshot holds one capture session's sample data together with the
// multi-resolution summaries used to render and decode it.
//
// # Snapshot Kinds
//
//   - LogicSnapshot: bit-packed logic samples (one bit per channel, up to 64
//     channels). Its mip-map stores, per block, the OR of every bit transition
//     inside the block, which lets edge searches skip quiet regions level by
//     level.
//   - DsoSnapshot: interleaved 8-bit oscilloscope samples with one (min, max)
//     envelope pyramid per channel.
//   - AnalogSnapshot: interleaved 8- or 16-bit analog samples with one (min, max)
//     envelope pyramid per channel.
//   - GroupSnapshot: a view over a LogicSnapshot that packs a chosen list of
//     channels into one value per sample and keeps its own envelope.
//
// # Concurrency
//
// Each snapshot has one lock. Exactly one goroutine appends; any number may
// query concurrently. Appends never rewrite published samples, and every query
// is checked against the sample count seen when it takes the lock.
//
// # Errors
//
// Out-of-range queries return errs.ErrInvalidRange (or a sibling sentinel)
// rather than panicking. Searches that find nothing return false, not an error.
// An append that exceeds the configured memory limit returns
// errs.ErrOutOfMemory and leaves the snapshot readable but closed for appends.
package snapshot
