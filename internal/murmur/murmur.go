// Package murmur implements the MurmurHash2 32-bit finalization used to map
// cache keys onto bucket indices. The mixing schedule is fixed by the
// original algorithm (Austin Appleby, public domain) and must not change:
// cross-version test vectors and the reference oracle in the tracker and
// slru packages depend on the exact byte-mixing order.
package murmur

import "encoding/binary"

const (
	m = 0x5bd1e995
	r = 24
)

// Hash32 computes the MurmurHash2 32-bit digest of data, seeded with seed.
// Reduction to a bucket index is the caller's responsibility (see
// internal/buckets.Table.Index) since it depends on whether the table size
// is a power of two.
func Hash32(data []byte, seed uint32) uint32 {
	h := seed ^ uint32(len(data))

	for len(data) >= 4 {
		k := binary.LittleEndian.Uint32(data)

		k *= m
		k ^= k >> r
		k *= m

		h *= m
		h ^= k

		data = data[4:]
	}

	switch len(data) {
	case 3:
		h ^= uint32(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[0])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15

	return h
}
