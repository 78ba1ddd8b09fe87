// Package hash wraps xxHash64 for capture block checksums.
package hash

import "github.com/cespare/xxhash/v2"

// Block computes the xxHash64 of a raw capture block.
func Block(data []byte) uint64 {
	return xxhash.Sum64(data)
}
