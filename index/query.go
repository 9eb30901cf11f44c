package index

import (
	"errors"

	"github.com/amplitudesxd/IPHasher/hasher"
)

// Lookup returns the address stored for digestHex. Upper-case input is
// normalised before the lookup. A miss is found == false with a nil error.
func Lookup(s Store, digestHex string) (addr string, found bool, err error) {
	d, err := hasher.ParseDigest(digestHex)
	if err != nil {
		return "", false, err
	}
	var key [2 * hasher.DigestSize]byte
	v, err := s.Get(d.AppendHex(key[:0]))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(v), true, nil
}
