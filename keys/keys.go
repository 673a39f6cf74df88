// Package keys provides hash functions for hash index callbacks.
package keys

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
)

// HashString returns a 32-bit hash of s.
func HashString(s string) uint32 {
	return uint32(xxhash.Sum64String(s))
}

// HashBytes returns a 32-bit hash of b.
func HashBytes(b []byte) uint32 {
	return uint32(xxhash.Sum64(b))
}

// HashUint64 returns a 32-bit hash of v.
func HashUint64(v uint64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return uint32(xxhash.Sum64(buf[:]))
}

// HashInt returns a 32-bit hash of v.
func HashInt(v int) uint32 {
	return HashUint64(uint64(v))
}
