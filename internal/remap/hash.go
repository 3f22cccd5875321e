package remap

import (
	"encoding/binary"
	"math/bits"
)

const (
	hashSeed  = 0xcbf29ce484222325
	hashPrime = 0x9e3779b97f4a7c15
)

// Hash returns the content hash of a remap table.
//
// The table is consumed as 32 little-endian 8-byte words, each folded into
// the accumulator with an xor, rotate and multiply. Tables that are not a
// multiple of 8 bytes hash their tail bytes individually.
func Hash(table []byte) uint64 {
	h := uint64(hashSeed)
	n := len(table) &^ 7
	for i := 0; i < n; i += 8 {
		h ^= binary.LittleEndian.Uint64(table[i:])
		h = bits.RotateLeft64(h, 27) * hashPrime
	}
	for _, b := range table[n:] {
		h ^= uint64(b)
		h *= hashPrime
	}
	return h ^ h>>31
}
