package hasher

import (
	"crypto/sha256"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/klauspost/cpuid/v2"
	sha256simd "github.com/minio/sha256-simd"
)

// Backend hashes a padded candidate block. Implementations must be safe for
// concurrent use with distinct blocks.
type Backend interface {
	Name() string
	Sum(b *Block) Digest
}

// Backend names.
const (
	Portable = "portable"
	Stdlib   = "stdlib"
	SIMD     = "simd"
	Auto     = "auto"
)

// portableBackend runs the pure-Go compression on the already padded block.
type portableBackend struct{}

func (portableBackend) Name() string { return Portable }

func (portableBackend) Sum(b *Block) Digest {
	return Compress(IV, b).Digest()
}

// stdlibBackend uses crypto/sha256, which has SHA-NI / ARMv8 assembly on
// common platforms.
type stdlibBackend struct{}

func (stdlibBackend) Name() string { return Stdlib }

func (stdlibBackend) Sum(b *Block) Digest {
	return sha256.Sum256(b.Payload())
}

// simdBackend uses minio/sha256-simd, which picks SHA-NI, AVX2 or ARM SHA2
// code paths from its own CPU probe.
type simdBackend struct{}

func (simdBackend) Name() string { return SIMD }

func (simdBackend) Sum(b *Block) Digest {
	return sha256simd.Sum256(b.Payload())
}

var backends = map[string]Backend{
	Portable: portableBackend{},
	Stdlib:   stdlibBackend{},
	SIMD:     simdBackend{},
}

// Names lists the registered backend names in sorted order.
func Names() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the backend registered under name. "auto" and the empty
// string resolve through Detect.
func Lookup(name string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == Auto {
		return Detect(), nil
	}
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown digest backend %q (available: %s, %s)", name, Auto, strings.Join(Names(), ", "))
	}
	return b, nil
}

// HasSHAExtensions reports whether the CPU implements SHA-256 instructions.
func HasSHAExtensions() bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return cpuid.CPU.Supports(cpuid.SHA, cpuid.SSSE3, cpuid.SSE4)
	case "arm64":
		return cpuid.CPU.Supports(cpuid.SHA2)
	}
	return false
}

// Detect picks the fastest backend for the running CPU.
func Detect() Backend {
	if HasSHAExtensions() {
		return backends[SIMD]
	}
	return backends[Stdlib]
}

// CPUSummary describes the host for benchmark and log output.
func CPUSummary() string {
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("%s (%d logical cores, sha extensions: %t)", brand, runtime.NumCPU(), HasSHAExtensions())
}
