package search

import (
	"sync/atomic"
	"time"
)

// Signal is the shared stop flag. Any worker may call Stop; only the first
// call returns true, which makes that caller the owner of the result.
type Signal struct {
	stopped atomic.Bool
}

// Stop raises the flag and reports whether this call was the one that
// raised it.
func (s *Signal) Stop() bool {
	return s.stopped.CompareAndSwap(false, true)
}

// Stopped reports whether the flag is raised.
func (s *Signal) Stopped() bool {
	return s.stopped.Load()
}

// counter is padded to its own cache line so workers do not contend.
type counter struct {
	n atomic.Uint64
	_ [56]byte
}

// Progress holds one counter per worker. Each counter has a single writer;
// readers get an approximate total.
type Progress struct {
	counters []counter
	total    uint64
	start    time.Time
}

// NewProgress creates counters for workers covering total addresses.
func NewProgress(workers int, total uint64) *Progress {
	if workers < 1 {
		workers = 1
	}
	return &Progress{
		counters: make([]counter, workers),
		total:    total,
		start:    time.Now(),
	}
}

// Add credits n processed addresses to worker id.
func (p *Progress) Add(id int, n uint64) {
	p.counters[id].n.Add(n)
}

// Worker returns the count reported by worker id.
func (p *Progress) Worker(id int) uint64 {
	return p.counters[id].n.Load()
}

// Processed sums all worker counters.
func (p *Progress) Processed() uint64 {
	var sum uint64
	for i := range p.counters {
		sum += p.counters[i].n.Load()
	}
	return sum
}

// Snapshot is a point-in-time view used for throughput reporting.
type Snapshot struct {
	Processed uint64
	Total     uint64
	Elapsed   time.Duration
	Rate      float64 // addresses per second
	ETA       time.Duration
}

// Percent returns completion in [0, 100].
func (s Snapshot) Percent() float64 {
	if s.Total == 0 {
		return 100
	}
	return float64(s.Processed) / float64(s.Total) * 100
}

// Snapshot computes rate and time remaining from the current counters.
func (p *Progress) Snapshot() Snapshot {
	processed := p.Processed()
	elapsed := time.Since(p.start)
	s := Snapshot{
		Processed: processed,
		Total:     p.total,
		Elapsed:   elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.Rate = float64(processed) / secs
	}
	if s.Rate > 0 && processed < p.total {
		s.ETA = time.Duration(float64(p.total-processed) / s.Rate * float64(time.Second))
	}
	return s
}
