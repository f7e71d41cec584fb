package hashring

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const (
	murmurMultiplier uint32 = 0x5bd1e995
	murmurRotation          = 24
	murmurSeed       uint32 = 97
)

// Hasher produces the 32-bit ring coordinate for a virtual node name or a key.
// Names and keys must go through the same Hasher so they share one coordinate space.
type Hasher interface {
	Sum32(data []byte) uint32
}

// MurmurHasher is the default Hasher. It is stable across processes and implementations.
type MurmurHasher struct{}

// Sum32 implements Hasher.
func (MurmurHasher) Sum32(data []byte) uint32 {
	return Hash(data)
}

// XXHasher folds xxhash64 down to 32 bits. Faster on long keys, but positions are
// not compatible with rings built with MurmurHasher.
type XXHasher struct{}

// Sum32 implements Hasher.
func (XXHasher) Sum32(data []byte) uint32 {
	var sum = xxhash.Sum64(data)
	return uint32(sum) ^ uint32(sum>>32)
}

// Hash is MurmurHash2 with a fixed seed of 97.
// Positions computed here are bit-exact with any other ring using the same algorithm.
func Hash(data []byte) uint32 {
	var (
		length = len(data)
		h      = murmurSeed ^ uint32(length)
	)

	for length >= 4 {
		var k = binary.LittleEndian.Uint32(data)
		k *= murmurMultiplier
		k ^= k >> murmurRotation
		k *= murmurMultiplier

		h *= murmurMultiplier
		h ^= k

		data = data[4:]
		length -= 4
	}

	switch length {
	case 3:
		h ^= uint32(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[0])
		h *= murmurMultiplier
	}

	h ^= h >> 13
	h *= murmurMultiplier
	h ^= h >> 15

	return h
}
