package search

import (
	"github.com/amplitudesxd/IPHasher/hasher"
)

// DefaultStride is how many addresses a worker hashes between progress
// flushes.
const DefaultStride = 1 << 16

// Result is sent by the worker that found the target.
type Result struct {
	Address uint32
	Digest  hasher.Digest
	Worker  int
}

// IP returns the dotted-decimal form of the found address.
func (r Result) IP() string {
	return hasher.FormatAddress(r.Address)
}

// Worker scans one contiguous range on a single goroutine.
type Worker struct {
	ID      int
	Range   Range
	Backend hasher.Backend
	Matcher hasher.Matcher
	Stride  uint64

	progress *Progress
	stop     *Signal
}

// Run hashes every address in the range until a match, exhaustion or the
// stop signal. The scratch block lives on this goroutine's stack and is
// overwritten per candidate.
//
// Only the worker whose Stop call raises the signal sends on results, so a
// channel with capacity 1 never blocks.
func (w *Worker) Run(results chan<- Result) {
	var blk hasher.Block
	var digest hasher.Digest

	stride := w.Stride
	if stride == 0 {
		stride = DefaultStride
	}

	var local uint64
	for addr := w.Range.Start; addr < w.Range.End; addr++ {
		if w.stop.Stopped() {
			break
		}

		blk.SetAddress(uint32(addr))
		digest = w.Backend.Sum(&blk)
		local++

		if w.Matcher.Match(&digest) {
			w.progress.Add(w.ID, local)
			if w.stop.Stop() {
				results <- Result{Address: uint32(addr), Digest: digest, Worker: w.ID}
			}
			return
		}

		if local == stride {
			w.progress.Add(w.ID, local)
			local = 0
		}
	}
	w.progress.Add(w.ID, local)
}
