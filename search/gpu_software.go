package search

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/amplitudesxd/IPHasher/hasher"
)

// SoftwareDevice executes the kernel contract on CPU goroutines, one lane
// per core, each lane owning a slice of the work items. It reads octets from
// the flat table the way a kernel does rather than through hasher.Encode, so
// it doubles as a conformance check for the table layout.
type SoftwareDevice struct {
	Lanes int
}

// NewSoftwareDevice returns a device with one lane per CPU.
func NewSoftwareDevice() *SoftwareDevice {
	return &SoftwareDevice{Lanes: runtime.NumCPU()}
}

func (d *SoftwareDevice) Name() string { return "software" }

func (d *SoftwareDevice) Close() error { return nil }

// Run dispatches k and blocks until a lane reports a hit, the domain is
// exhausted, or ctx is done.
func (d *SoftwareDevice) Run(ctx context.Context, k Kernel) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if k.End <= k.Start || len(k.Target) == 0 {
		return "", nil
	}
	globalSize := k.GlobalSize
	if globalSize <= 0 {
		globalSize = DefaultGlobalSize
	}
	lanes := d.Lanes
	if lanes <= 0 {
		lanes = runtime.NumCPU()
	}
	if lanes > globalSize {
		lanes = globalSize
	}

	var completed atomic.Bool
	var found string

	var wg sync.WaitGroup
	for lane := 0; lane < lanes; lane++ {
		wg.Add(1)
		go func(lane int) {
			defer wg.Done()
			var blk hasher.Block
			var checked int

			for item := lane; item < globalSize; item += lanes {
				for a := k.Start + uint64(item); a < k.End; a += uint64(globalSize) {
					if completed.Load() {
						return
					}
					checked++
					if checked&0xFFFF == 0 && ctx.Err() != nil {
						return
					}

					n := encodeFromTable(&k.Table, uint32(a), blk[:])
					blk[n] = 0x80
					clear(blk[n+1 : 56])
					bitLen := uint64(n) * 8
					for i := 0; i < 8; i++ {
						blk[63-i] = byte(bitLen >> (8 * i))
					}

					digest := hasher.Compress(hasher.IV, &blk).Digest()
					if string(digest[:len(k.Target)]) == string(k.Target) {
						if completed.CompareAndSwap(false, true) {
							found = string(blk[:n])
						}
						return
					}
				}
			}
		}(lane)
	}
	wg.Wait()

	if found == "" {
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	return found, nil
}

// encodeFromTable renders addr from a zero-padded 256x3 table.
func encodeFromTable(table *[256 * 3]byte, addr uint32, dst []byte) int {
	idx := 0
	for i := 0; i < 4; i++ {
		if i != 0 {
			dst[idx] = '.'
			idx++
		}
		v := byte(addr >> (24 - 8*i))
		for j := 0; j < 3; j++ {
			c := table[int(v)*3+j]
			if c == 0 {
				break
			}
			dst[idx] = c
			idx++
		}
	}
	return idx
}
