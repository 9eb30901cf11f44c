package index

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/amplitudesxd/IPHasher/hasher"
	"github.com/amplitudesxd/IPHasher/search"
)

const (
	// DefaultBatchSize is the number of entries a worker buffers before
	// flushing to the store.
	DefaultBatchSize = 1 << 21

	// MaxBatchSize caps per-worker buffering. Each entry costs roughly 80
	// bytes in the batch.
	MaxBatchSize = 1 << 24

	defaultCheckStride = 1 << 14
)

// BuildConfig controls Build. Zero values select defaults.
type BuildConfig struct {
	Workers      int
	BatchSize    int
	Range        search.Range
	Backend      hasher.Backend
	Stride       uint64
	PollInterval time.Duration
	Logger       logrus.FieldLogger

	// OnProgress is called from the polling goroutine.
	OnProgress func(search.Snapshot)
}

func (c BuildConfig) withDefaults() BuildConfig {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.Range.Len() == 0 && c.Range.Start == 0 {
		c.Range = search.Full()
	}
	if c.Backend == nil {
		c.Backend = hasher.Detect()
	}
	if c.Stride == 0 {
		c.Stride = defaultCheckStride
	}
	if c.PollInterval <= 0 {
		c.PollInterval = search.DefaultPollInterval
	}
	if c.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.Logger = l
	}
	return c
}

// BuildStats summarises a finished build.
type BuildStats struct {
	Entries   uint64
	Batches   uint64
	Workers   int
	BatchSize int
	Backend   string
	Range     search.Range
	Started   time.Time
	Elapsed   time.Duration
}

// Build hashes every address in cfg.Range and writes digest to address
// entries into s. The store must be empty. The first write error or a
// cancelled ctx aborts every worker.
func Build(ctx context.Context, s Store, cfg BuildConfig) (BuildStats, error) {
	cfg = cfg.withDefaults()

	empty, err := s.IsEmpty()
	if err != nil {
		return BuildStats{}, err
	}
	if !empty {
		return BuildStats{}, ErrNotEmpty
	}

	ranges := search.Partition(cfg.Range, cfg.Workers)
	if len(ranges) == 0 {
		return BuildStats{}, search.ErrEmptyRange
	}

	log := cfg.Logger.WithFields(logrus.Fields{
		"range":      cfg.Range.String(),
		"workers":    len(ranges),
		"batch_size": cfg.BatchSize,
		"backend":    cfg.Backend.Name(),
	})
	log.Info("index build started")

	stats := BuildStats{
		Workers:   len(ranges),
		BatchSize: cfg.BatchSize,
		Backend:   cfg.Backend.Name(),
		Range:     cfg.Range,
		Started:   time.Now(),
	}
	progress := search.NewProgress(len(ranges), cfg.Range.Len())
	var batches atomic.Uint64

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		b := &rangeBuilder{
			id:        i,
			r:         r,
			store:     s,
			backend:   cfg.Backend,
			batchSize: cfg.BatchSize,
			stride:    cfg.Stride,
			progress:  progress,
			batches:   &batches,
			log:       log.WithField("worker", i),
		}
		g.Go(func() error { return b.run(gctx) })
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			stats.Entries = progress.Processed()
			stats.Batches = batches.Load()
			stats.Elapsed = time.Since(stats.Started)
			if err != nil {
				log.WithError(err).WithField("entries", stats.Entries).Error("index build failed")
				return stats, err
			}
			log.WithFields(logrus.Fields{
				"entries": stats.Entries,
				"batches": stats.Batches,
				"elapsed": stats.Elapsed.Round(time.Millisecond),
			}).Info("index build finished")
			return stats, nil
		case <-ticker.C:
			if cfg.OnProgress != nil {
				cfg.OnProgress(progress.Snapshot())
			}
		}
	}
}

type rangeBuilder struct {
	id        int
	r         search.Range
	store     Store
	backend   hasher.Backend
	batchSize int
	stride    uint64
	progress  *search.Progress
	batches   *atomic.Uint64
	log       logrus.FieldLogger
}

func (b *rangeBuilder) run(ctx context.Context) error {
	b.log.WithField("worker_range", b.r.String()).Debug("worker assigned")

	batch := b.store.NewBatch()
	key := make([]byte, 0, 2*hasher.DigestSize)
	var blk hasher.Block
	var local uint64

	// Progress counts entries that reached the store.
	flush := func() error {
		n := batch.Len()
		if n == 0 {
			return nil
		}
		if err := b.store.Write(batch); err != nil {
			return fmt.Errorf("worker %d: %w", b.id, err)
		}
		batch.Reset()
		b.progress.Add(b.id, uint64(n))
		b.batches.Add(1)
		b.log.WithField("entries", n).Debug("batch flushed")
		return nil
	}

	for addr := b.r.Start; addr < b.r.End; addr++ {
		n := blk.SetAddress(uint32(addr))
		digest := b.backend.Sum(&blk)
		key = digest.AppendHex(key[:0])
		batch.Put(key, blk[:n])

		if batch.Len() >= b.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
		local++
		if local == b.stride {
			local = 0
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return flush()
}
