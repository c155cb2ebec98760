// Package ring implements the K-ring placement primitives that
// MembershipView builds on: a seeded, uniform 64-bit hash and a sorted set
// that keeps endpoints ordered by that hash for one ring seed.
package ring

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a deterministic 64-bit value for (host, port) salted by seed.
// Two different seeds must scatter the same endpoint to unrelated positions
// so that observers are not clustered across rings; xxhash's avalanche
// behavior over a seed-prefixed buffer gives us that without a hand-rolled
// mixing function.
func Hash(host []byte, port int32, seed int) uint64 {
	buf := make([]byte, 8+4+len(host))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seed))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(port))
	copy(buf[12:], host)
	return xxhash.Sum64(buf)
}
