// Package search brute-forces the IPv4 keyspace for a SHA-256 preimage
// using statically partitioned range workers.
package search

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"

	"github.com/amplitudesxd/IPHasher/hasher"
)

// KeyspaceSize is the number of IPv4 addresses.
const KeyspaceSize uint64 = 1 << 32

// ErrEmptyRange is returned by ParseRange for input that selects nothing.
var ErrEmptyRange = errors.New("empty address range")

// Range is the half-open interval [Start, End) of addresses. End may be
// 1<<32, so both bounds are uint64.
type Range struct {
	Start uint64
	End   uint64
}

// Full returns the entire IPv4 keyspace.
func Full() Range {
	return Range{Start: 0, End: KeyspaceSize}
}

// Len returns the number of addresses in the range.
func (r Range) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether addr lies within the range.
func (r Range) Contains(addr uint32) bool {
	a := uint64(addr)
	return a >= r.Start && a < r.End
}

// IPRange returns the inclusive netipx form. The zero IPRange is returned
// for an empty range.
func (r Range) IPRange() netipx.IPRange {
	if r.Len() == 0 {
		return netipx.IPRange{}
	}
	return netipx.IPRangeFrom(addrOf(uint32(r.Start)), addrOf(uint32(r.End-1)))
}

func (r Range) String() string {
	if r.Len() == 0 {
		return "empty"
	}
	return r.IPRange().String()
}

func addrOf(a uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(a >> 24), byte(a >> 16), byte(a >> 8), byte(a)})
}

func uint32Of(ip netip.Addr) uint32 {
	b := ip.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// ParseRange accepts a CIDR prefix ("10.0.0.0/8"), an inclusive range
// ("10.0.0.1-10.0.0.9"), a single address, or "" / "all" for the full keyspace.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return Full(), nil
	}

	var ipr netipx.IPRange
	switch {
	case strings.Contains(s, "/"):
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return Range{}, fmt.Errorf("invalid prefix %q: %w", s, err)
		}
		ipr = netipx.RangeOfPrefix(p.Masked())
	case strings.Contains(s, "-"):
		var err error
		ipr, err = netipx.ParseIPRange(s)
		if err != nil {
			return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
		}
	default:
		a, err := hasher.ParseAddress(s)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: uint64(a), End: uint64(a) + 1}, nil
	}

	if !ipr.IsValid() {
		return Range{}, fmt.Errorf("%w: %q", ErrEmptyRange, s)
	}
	if !ipr.From().Is4() || !ipr.To().Is4() {
		return Range{}, fmt.Errorf("invalid range %q: only ipv4 is supported", s)
	}
	return FromIPRange(ipr), nil
}

// FromIPRange converts an inclusive IPv4 range.
func FromIPRange(ipr netipx.IPRange) Range {
	return Range{Start: uint64(uint32Of(ipr.From())), End: uint64(uint32Of(ipr.To())) + 1}
}

// Partition splits r into n contiguous, non-overlapping ranges of len/n
// addresses; the last range absorbs the remainder. n is clamped to
// [1, r.Len()] so no range is empty. An empty r yields nil.
func Partition(r Range, n int) []Range {
	total := r.Len()
	if total == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if uint64(n) > total {
		n = int(total)
	}

	step := total / uint64(n)
	ranges := make([]Range, n)
	start := r.Start
	for i := 0; i < n; i++ {
		end := start + step
		if i == n-1 {
			end = r.End
		}
		ranges[i] = Range{Start: start, End: end}
		start = end
	}
	return ranges
}
