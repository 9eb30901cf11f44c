// Package hasher encodes IPv4 candidates into single SHA-256 blocks and
// hashes them through interchangeable digest backends.
package hasher

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// DigestSize is the length of a SHA-256 digest in bytes.
const DigestSize = 32

// ErrInvalidDigest is returned when a hex digest is malformed.
var ErrInvalidDigest = errors.New("invalid sha-256 digest")

// Digest is a raw SHA-256 output.
type Digest [DigestSize]byte

// ParseDigest decodes a 64 character hex string. Surrounding whitespace and
// upper-case hex are accepted.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	s = strings.TrimSpace(s)
	if len(s) != DigestSize*2 {
		return d, fmt.Errorf("%w: want %d hex characters, got %d", ErrInvalidDigest, DigestSize*2, len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	return d, nil
}

// String returns the lowercase hex form.
func (d Digest) String() string {
	return string(d.AppendHex(nil))
}

// AppendHex appends the lowercase hex form of d to dst.
// Zero allocations when dst has 64 bytes of spare capacity.
func (d Digest) AppendHex(dst []byte) []byte {
	const hexChars = "0123456789abcdef"
	for _, b := range d {
		dst = append(dst, hexChars[b>>4], hexChars[b&0x0f])
	}
	return dst
}
