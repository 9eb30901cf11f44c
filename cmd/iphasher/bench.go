package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/amplitudesxd/IPHasher/hasher"
	"github.com/amplitudesxd/IPHasher/search"
)

const defaultBenchIterations = 2_000_000

// benchSink keeps the benchmark loop's digests observable.
var benchSink byte

func newBenchCmd(a *app) *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure hashrate per digest backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBench(cmd.Context(), iterations)
		},
	}
	cmd.Flags().IntVarP(&iterations, "iterations", "n", defaultBenchIterations, "Addresses hashed per single-thread measurement")
	return cmd
}

// runBench measures raw hashrate without touching the index.
func (a *app) runBench(ctx context.Context, iterations int) error {
	if iterations < 1 {
		iterations = defaultBenchIterations
	}
	threads := a.cfg.Search.Workers
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	a.printBanner()
	a.out.Infof("Running hashrate benchmark with %d threads...", threads)
	a.out.Detail("CPU: %s", hasher.CPUSummary())
	a.out.Detail("Default backend: %s", hasher.Detect().Name())
	a.out.Blank()

	names := hasher.Names()
	if b := a.cfg.Search.Backend; b != "" && b != hasher.Auto {
		names = []string{a.cfg.Search.Backend}
	}

	for _, name := range names {
		backend, err := hasher.Lookup(name)
		if err != nil {
			return err
		}
		a.out.Infof("%s", backend.Name())

		single := benchmarkThread(backend, uint64(iterations))
		a.out.Detail("Single-thread:  %s", FormatRate(single))

		if threads > 1 {
			multi, err := benchmarkCoordinator(ctx, backend, threads, uint64(iterations)*uint64(threads))
			if err != nil {
				return err
			}
			a.out.Detail("%d-thread:%s%s", threads, pad(threads), FormatRate(multi))
			if single > 0 {
				a.out.Detail("Scaling:        %.1fx", multi/single)
			}
		}
		a.log.WithFields(logrus.Fields{"backend": name, "single": single}).Debug("benchmark done")
	}

	a.out.Blank()
	a.out.Infof("Benchmark complete")
	return nil
}

func pad(threads int) string {
	n := 16 - len(fmt.Sprintf("%d-thread:", threads))
	if n < 1 {
		n = 1
	}
	return fmt.Sprintf("%*s", n, "")
}

func benchmarkThread(backend hasher.Backend, iterations uint64) float64 {
	var blk hasher.Block
	var sink byte

	start := time.Now()
	for i := uint64(0); i < iterations; i++ {
		blk.SetAddress(uint32(i))
		d := backend.Sum(&blk)
		sink ^= d[0]
	}
	elapsed := time.Since(start).Seconds()
	benchSink = sink
	if elapsed <= 0 {
		return 0
	}
	return float64(iterations) / elapsed
}

// benchmarkCoordinator runs a real search for a digest no address produces,
// so every worker exhausts its share.
func benchmarkCoordinator(ctx context.Context, backend hasher.Backend, threads int, total uint64) (float64, error) {
	if total > search.KeyspaceSize {
		total = search.KeyspaceSize
	}
	c := search.NewCoordinator(search.Config{
		Workers: threads,
		Range:   search.Range{Start: 0, End: total},
		Backend: backend,
	})
	out, err := c.Search(ctx, hasher.Digest{})
	if err != nil {
		return 0, err
	}
	if secs := out.Elapsed.Seconds(); secs > 0 {
		return float64(out.Processed) / secs, nil
	}
	return 0, nil
}
