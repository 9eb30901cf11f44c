package hasher

import (
	"errors"
	"fmt"
)

// ErrInvalidPrefix is returned for a prefix length outside [0, 32].
var ErrInvalidPrefix = errors.New("invalid digest prefix length")

// Matcher compares candidate digests against a target.
//
// The zero prefix length (or 32) compares the whole digest. A shorter prefix
// trades a small false-positive probability for speed and accepts a match
// without re-checking the remaining bytes; callers must opt into it.
type Matcher struct {
	target Digest
	n      int
}

// NewMatcher returns a matcher for target. prefixBytes of 0 selects full
// comparison.
func NewMatcher(target Digest, prefixBytes int) (Matcher, error) {
	if prefixBytes < 0 || prefixBytes > DigestSize {
		return Matcher{}, fmt.Errorf("%w: %d (want 0 for full, or 1-%d)", ErrInvalidPrefix, prefixBytes, DigestSize)
	}
	if prefixBytes == 0 {
		prefixBytes = DigestSize
	}
	return Matcher{target: target, n: prefixBytes}, nil
}

// Match reports whether d matches the target under the configured policy.
func (m Matcher) Match(d *Digest) bool {
	if m.n == DigestSize {
		return *d == m.target
	}
	return string(d[:m.n]) == string(m.target[:m.n])
}

// Exact reports whether the matcher compares all 32 bytes.
func (m Matcher) Exact() bool {
	return m.n == DigestSize
}

// PrefixLen is the number of leading bytes compared.
func (m Matcher) PrefixLen() int {
	return m.n
}

// Target returns the digest being searched for.
func (m Matcher) Target() Digest {
	return m.target
}
