package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amplitudesxd/IPHasher/hasher"
	"github.com/amplitudesxd/IPHasher/index"
	"github.com/amplitudesxd/IPHasher/search"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build the persistent digest to address reverse index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.Int("batch-size", 0, "Entries buffered per worker before each store write")
	f.String("compression", "", "Block compression: snappy or none")

	a.v.BindPFlag("index.batch_size", f.Lookup("batch-size"))
	a.v.BindPFlag("index.compression", f.Lookup("compression"))
	return cmd
}

func (a *app) runGenerate(ctx context.Context) error {
	cfg := a.cfg
	r, err := search.ParseRange(cfg.Search.Range)
	if err != nil {
		return err
	}
	backend, err := hasher.Lookup(cfg.Search.Backend)
	if err != nil {
		return err
	}

	a.printBanner()
	ix, err := index.Create(cfg.Index.DataDir, cfg.Index.Options())
	if errors.Is(err, index.ErrNotEmpty) {
		a.out.Errorf("Store at %s is not empty, refusing to write into it", cfg.Index.DataDir)
		a.out.Detail("Remove the directory or pass --data-dir to build elsewhere.")
		return exitError{code: 1}
	}
	if err != nil {
		return err
	}
	defer ix.Close()

	a.out.Infof("Data dir:    %s", cfg.Index.DataDir)
	a.out.Infof("Range:       %s (%s entries)", r, FormatCount(r.Len()))
	a.out.Infof("Backend:     %s", backend.Name())
	a.out.Infof("Batch size:  %d", cfg.Index.BatchSize)
	a.out.Infof("Compression: %s", cfg.Index.Compression)
	a.out.Blank()

	stats, err := ix.Build(ctx, index.BuildConfig{
		Workers:      cfg.Search.Workers,
		BatchSize:    cfg.Index.BatchSize,
		Range:        r,
		Backend:      backend,
		PollInterval: cfg.Search.PollInterval,
		Logger:       a.log,
		OnProgress:   a.progress(),
	})
	a.out.EndProgress()

	rows := [][2]string{
		{"Duration", FormatDuration(stats.Elapsed)},
		{"Entries", fmt.Sprintf("%d", stats.Entries)},
		{"Batches", fmt.Sprintf("%d", stats.Batches)},
		{"Workers", fmt.Sprintf("%d", stats.Workers)},
	}
	if secs := stats.Elapsed.Seconds(); secs > 0 {
		rows = append(rows, [2]string{"Avg rate", FormatRate(float64(stats.Entries) / secs)})
	}

	if errors.Is(err, context.Canceled) {
		a.out.Blank()
		a.out.Infof("Build cancelled, index left incomplete (no manifest written)")
		a.out.Stats("index stats", rows)
		return exitError{code: 130}
	}
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	a.out.Stats("index stats", rows)
	a.out.Successf("Index complete: %s", ix.Dir)
	a.log.WithField("finished_at", ix.Manifest.FinishedAt.Format(time.RFC3339)).Debug("manifest written")
	return nil
}
