package hasher

import (
	"encoding/binary"
	"math/bits"
)

// Portable SHA-256 compression for single padded blocks.
// Every candidate fits in one 64-byte block, so a digest is exactly one
// Compress call from the initial state followed by Digest.

// SHA-256 round constants
var k256 = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5,
	0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3,
	0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc,
	0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7,
	0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13,
	0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3,
	0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5,
	0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208,
	0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

// State is the eight-word SHA-256 chaining state.
type State [8]uint32

// IV is the SHA-256 initial state.
var IV = State{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

// Sigma functions from FIPS 180-4 section 4.1.2.
func bigSigma0(x uint32) uint32 {
	return bits.RotateLeft32(x, -2) ^ bits.RotateLeft32(x, -13) ^ bits.RotateLeft32(x, -22)
}

func bigSigma1(x uint32) uint32 {
	return bits.RotateLeft32(x, -6) ^ bits.RotateLeft32(x, -11) ^ bits.RotateLeft32(x, -25)
}

func smallSigma0(x uint32) uint32 {
	return bits.RotateLeft32(x, -7) ^ bits.RotateLeft32(x, -18) ^ x>>3
}

func smallSigma1(x uint32) uint32 {
	return bits.RotateLeft32(x, -17) ^ bits.RotateLeft32(x, -19) ^ x>>10
}

// Compress runs the SHA-256 compression function over one block and
// returns the updated state. The input state is not modified.
func Compress(h State, block *Block) State {
	var w [64]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(block[i*4:])
	}
	for i := 16; i < 64; i++ {
		w[i] = smallSigma1(w[i-2]) + w[i-7] + smallSigma0(w[i-15]) + w[i-16]
	}

	v := h
	for i := 0; i < 64; i++ {
		t1 := v[7] + bigSigma1(v[4]) + (v[4]&v[5] ^ ^v[4]&v[6]) + k256[i] + w[i]
		t2 := bigSigma0(v[0]) + (v[0]&v[1] ^ v[0]&v[2] ^ v[1]&v[2])
		// Rotate the working variables; a..h live in v[0]..v[7].
		v[7], v[6], v[5], v[4] = v[6], v[5], v[4], v[3]+t1
		v[3], v[2], v[1], v[0] = v[2], v[1], v[0], t1+t2
	}

	for i := range h {
		h[i] += v[i]
	}
	return h
}

// Digest serializes the state as a big-endian 32-byte digest.
func (s State) Digest() Digest {
	var d Digest
	for i, word := range s {
		binary.BigEndian.PutUint32(d[i*4:], word)
	}
	return d
}
