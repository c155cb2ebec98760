package ring

import "github.com/cespare/xxhash/v2"

// H64 is the fixed, unseeded 64-bit hash used for configuration-id
// computation. Unlike Hash, it never varies with a ring seed: every node
// must derive byte-identical configuration ids from identical inputs.
func H64(b []byte) uint64 {
	return xxhash.Sum64(b)
}
