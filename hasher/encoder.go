package hasher

import (
	"fmt"
	"net/netip"
)

const (
	// MinPayload is the length of the shortest candidate, "0.0.0.0".
	MinPayload = 7
	// MaxPayload is the length of the longest candidate, "255.255.255.255".
	MaxPayload = 15
)

// octet is the decimal ASCII form of one byte value.
type octet struct {
	digits [3]byte
	n      uint8
}

var octets [256]octet

func init() {
	for i := range octets {
		v := i
		switch {
		case v >= 100:
			octets[i] = octet{digits: [3]byte{byte('0' + v/100), byte('0' + v/10%10), byte('0' + v%10)}, n: 3}
		case v >= 10:
			octets[i] = octet{digits: [3]byte{byte('0' + v/10), byte('0' + v%10)}, n: 2}
		default:
			octets[i] = octet{digits: [3]byte{byte('0' + v)}, n: 1}
		}
	}
}

// Encode writes the dotted-decimal form of addr into dst and returns the
// number of bytes written. dst must hold at least MaxPayload bytes.
func Encode(dst []byte, addr uint32) int {
	_ = dst[MaxPayload-1]
	n := putOctet(dst, 0, byte(addr>>24))
	dst[n] = '.'
	n = putOctet(dst, n+1, byte(addr>>16))
	dst[n] = '.'
	n = putOctet(dst, n+1, byte(addr>>8))
	dst[n] = '.'
	return putOctet(dst, n+1, byte(addr))
}

// putOctet copies all three table bytes and advances by the real length,
// so the digit count never needs a branch.
func putOctet(dst []byte, at int, v byte) int {
	o := &octets[v]
	copy(dst[at:at+3], o.digits[:])
	return at + int(o.n)
}

// FormatAddress returns the dotted-decimal string for addr.
func FormatAddress(addr uint32) string {
	var buf [MaxPayload + 2]byte
	n := Encode(buf[:], addr)
	return string(buf[:n])
}

// ParseAddress parses a dotted-decimal IPv4 address.
func ParseAddress(s string) (uint32, error) {
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return 0, fmt.Errorf("invalid ipv4 address %q: %w", s, err)
	}
	if !ip.Is4() {
		return 0, fmt.Errorf("invalid ipv4 address %q: not an ipv4 address", s)
	}
	b := ip.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// FlatTable returns the octet table as 256 zero-padded 3-byte entries, the
// layout GPU kernels consume.
func FlatTable() [256 * 3]byte {
	var t [256 * 3]byte
	for i := range octets {
		copy(t[i*3:i*3+3], octets[i].digits[:octets[i].n])
	}
	return t
}
