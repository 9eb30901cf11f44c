package search

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/amplitudesxd/IPHasher/hasher"
)

// DefaultPollInterval is how often the coordinator samples progress.
const DefaultPollInterval = time.Second

// Config controls a brute-force search.
type Config struct {
	Workers      int            // defaults to runtime.NumCPU()
	Range        Range          // zero value means the full keyspace
	Backend      hasher.Backend // defaults to hasher.Detect()
	PrefixBytes  int            // 0 compares full digests
	Stride       uint64         // progress flush interval per worker
	PollInterval time.Duration
	Logger       logrus.FieldLogger

	// OnProgress is called from the coordinator goroutine on every poll.
	OnProgress func(Snapshot)
}

// Outcome is the terminal state of a search. Found is false when the range
// was exhausted without a match.
type Outcome struct {
	Found     bool
	Result    Result
	Processed uint64
	Elapsed   time.Duration
	Workers   int
	Backend   string
}

// Coordinator partitions a range and runs one Worker per partition.
type Coordinator struct {
	cfg Config
}

// NewCoordinator fills in defaults and clamps misconfiguration.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Range.Len() == 0 && cfg.Range.Start == 0 {
		cfg.Range = Full()
	}
	if cfg.Backend == nil {
		cfg.Backend = hasher.Detect()
	}
	if cfg.Stride == 0 {
		cfg.Stride = DefaultStride
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	return &Coordinator{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Search looks for the address whose digest matches target. Exhausting the
// range is reported as Outcome{Found: false} with a nil error. Cancelling
// ctx stops all workers and returns ctx.Err().
func (c *Coordinator) Search(ctx context.Context, target hasher.Digest) (Outcome, error) {
	matcher, err := hasher.NewMatcher(target, c.cfg.PrefixBytes)
	if err != nil {
		return Outcome{}, err
	}

	ranges := Partition(c.cfg.Range, c.cfg.Workers)
	if len(ranges) == 0 {
		return Outcome{}, ErrEmptyRange
	}

	log := c.cfg.Logger.WithFields(logrus.Fields{
		"target":  target.String(),
		"range":   c.cfg.Range.String(),
		"workers": len(ranges),
		"backend": c.cfg.Backend.Name(),
	})
	if !matcher.Exact() {
		log = log.WithField("prefix_bytes", matcher.PrefixLen())
		log.Warn("prefix comparison enabled, matches are not verified against the full digest")
	}
	log.Info("search started")

	pool, err := ants.NewPool(len(ranges), ants.WithPreAlloc(true))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	stop := &Signal{}
	progress := NewProgress(len(ranges), c.cfg.Range.Len())
	results := make(chan Result, 1)

	var wg sync.WaitGroup
	for i, r := range ranges {
		w := &Worker{
			ID:       i,
			Range:    r,
			Backend:  c.cfg.Backend,
			Matcher:  matcher,
			Stride:   c.cfg.Stride,
			progress: progress,
			stop:     stop,
		}
		log.WithFields(logrus.Fields{"worker": i, "worker_range": r.String()}).Debug("worker assigned")

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			w.Run(results)
		}); err != nil {
			wg.Done()
			stop.Stop()
			wg.Wait()
			return Outcome{}, fmt.Errorf("failed to start worker %d: %w", i, err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	outcome := Outcome{Workers: len(ranges), Backend: c.cfg.Backend.Name()}
	finish := func() Outcome {
		snap := progress.Snapshot()
		outcome.Processed = snap.Processed
		outcome.Elapsed = snap.Elapsed
		return outcome
	}

	for {
		select {
		case res := <-results:
			<-done
			outcome.Found = true
			outcome.Result = res
			out := finish()
			log.WithFields(logrus.Fields{
				"ip":        res.IP(),
				"worker":    res.Worker,
				"processed": out.Processed,
				"elapsed":   out.Elapsed.Round(time.Millisecond),
			}).Info("match found")
			return out, nil

		case <-done:
			// A match sent just before the last worker returned is still
			// in the channel.
			select {
			case res := <-results:
				outcome.Found = true
				outcome.Result = res
			default:
			}
			out := finish()
			log.WithFields(logrus.Fields{
				"found":     out.Found,
				"processed": out.Processed,
				"elapsed":   out.Elapsed.Round(time.Millisecond),
			}).Info("search finished")
			return out, nil

		case <-ticker.C:
			if c.cfg.OnProgress != nil {
				c.cfg.OnProgress(progress.Snapshot())
			}

		case <-ctx.Done():
			if !stop.Stop() {
				// A worker won the race; its result is authoritative.
				<-done
				select {
				case res := <-results:
					outcome.Found = true
					outcome.Result = res
					return finish(), nil
				default:
				}
			}
			<-done
			out := finish()
			log.WithField("processed", out.Processed).Warn("search cancelled")
			return out, ctx.Err()
		}
	}
}
