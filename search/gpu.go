package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amplitudesxd/IPHasher/hasher"
)

// ErrGPUUnavailable is returned when no GPU backend was compiled in or the
// device could not be initialised.
var ErrGPUUnavailable = errors.New("gpu search not available")

const (
	// DefaultGPUPrefix is how many digest bytes a kernel compares.
	DefaultGPUPrefix = 8
	// DefaultGlobalSize is the kernel work-item count. 40960 is half of a
	// 80 SM part at 1024 threads per SM.
	DefaultGlobalSize = 81920 / 2
)

// Kernel is everything a device needs for one dispatch. Work item i checks
// Start+i, Start+i+GlobalSize, ... below End, using the same encoding and
// padding rules as hasher.Block.
type Kernel struct {
	Table      [256 * 3]byte
	Target     []byte // leading digest bytes to compare, 1-32
	Start      uint64
	End        uint64
	GlobalSize int
}

// Device runs kernels. Run returns the dotted-decimal address of the first
// hit, or "" when the domain holds no match.
type Device interface {
	Name() string
	Run(ctx context.Context, k Kernel) (string, error)
	Close() error
}

// NewKernel prepares a dispatch over r comparing prefix bytes of target.
func NewKernel(target hasher.Digest, prefix int, r Range, globalSize int) (Kernel, error) {
	if prefix < 1 || prefix > hasher.DigestSize {
		return Kernel{}, fmt.Errorf("%w: %d", hasher.ErrInvalidPrefix, prefix)
	}
	if globalSize <= 0 {
		globalSize = DefaultGlobalSize
	}
	return Kernel{
		Table:      hasher.FlatTable(),
		Target:     append([]byte(nil), target[:prefix]...),
		Start:      r.Start,
		End:        r.End,
		GlobalSize: globalSize,
	}, nil
}

// GPUConfig controls SearchDevice.
type GPUConfig struct {
	Range       Range
	PrefixBytes int // 0 verifies every device hit against the full digest
	GlobalSize  int
}

// SearchDevice offloads the search to dev. With full comparison the kernel
// matches DefaultGPUPrefix bytes and each hit is verified on the host; a
// prefix collision resumes the dispatch just past the false hit.
func SearchDevice(ctx context.Context, dev Device, target hasher.Digest, cfg GPUConfig) (Outcome, error) {
	matcher, err := hasher.NewMatcher(target, cfg.PrefixBytes)
	if err != nil {
		return Outcome{}, err
	}
	r := cfg.Range
	if r.Len() == 0 && r.Start == 0 {
		r = Full()
	}

	prefix := DefaultGPUPrefix
	if !matcher.Exact() {
		prefix = matcher.PrefixLen()
	}
	k, err := NewKernel(target, prefix, r, cfg.GlobalSize)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	outcome := Outcome{Workers: 1, Backend: dev.Name()}
	var blk hasher.Block

	// Work items stride the domain, so a false hit does not bound where the
	// true one is. Both sides of it are dispatched again.
	pending := []Range{r}
	for len(pending) > 0 && !outcome.Found {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		k.Start, k.End = cur.Start, cur.End

		ip, err := dev.Run(ctx, k)
		if err != nil {
			return outcome, fmt.Errorf("%s: %w", dev.Name(), err)
		}
		if ip == "" {
			continue
		}
		addr, err := hasher.ParseAddress(ip)
		if err != nil || !cur.Contains(addr) {
			return outcome, fmt.Errorf("%s returned an address outside the dispatch: %q", dev.Name(), ip)
		}

		blk.SetAddress(addr)
		digest := hasher.Compress(hasher.IV, &blk).Digest()
		if matcher.Match(&digest) {
			outcome.Found = true
			outcome.Result = Result{Address: addr, Digest: digest}
			break
		}
		if next := (Range{Start: uint64(addr) + 1, End: cur.End}); next.Len() > 0 {
			pending = append(pending, next)
		}
		if prev := (Range{Start: cur.Start, End: uint64(addr)}); prev.Len() > 0 {
			pending = append(pending, prev)
		}
	}

	// Devices do not report partial progress; only an exhausted domain has
	// a known count.
	outcome.Elapsed = time.Since(start)
	if !outcome.Found {
		outcome.Processed = r.Len()
	}
	return outcome, nil
}
