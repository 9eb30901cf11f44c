package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/amplitudesxd/IPHasher/hasher"
	"github.com/amplitudesxd/IPHasher/search"
)

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <sha256-hex>",
		Short: "Brute-force the keyspace for the address hashing to a digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd.Context(), args[0])
		},
	}

	f := cmd.Flags()
	f.IntP("prefix-bytes", "p", 0, "Compare only the leading N digest bytes (unverified, 0 = full digest)")
	f.Bool("gpu", false, "Offload the search to a GPU device")
	f.Int("device", 0, "GPU device ID (-1 = CPU-emulated device)")
	f.Int("global-size", 0, "GPU work-item count per dispatch")

	a.v.BindPFlag("search.prefix_bytes", f.Lookup("prefix-bytes"))
	a.v.BindPFlag("search.gpu", f.Lookup("gpu"))
	a.v.BindPFlag("search.gpu_device", f.Lookup("device"))
	a.v.BindPFlag("search.gpu_global_size", f.Lookup("global-size"))
	return cmd
}

func (a *app) runSearch(ctx context.Context, digestHex string) error {
	cfg := a.cfg.Search
	target, err := hasher.ParseDigest(digestHex)
	if err != nil {
		return err
	}
	r, err := search.ParseRange(cfg.Range)
	if err != nil {
		return err
	}

	a.printBanner()
	a.out.Infof("Target:  %s", target)
	a.out.Infof("Range:   %s (%s addresses)", r, FormatCount(r.Len()))
	if cfg.PrefixBytes > 0 && cfg.PrefixBytes < hasher.DigestSize {
		a.out.Infof("Compare: first %d bytes (matches are not verified)", cfg.PrefixBytes)
	} else {
		a.out.Infof("Compare: full digest")
	}

	var out search.Outcome
	if cfg.GPU {
		out, err = a.searchGPU(ctx, target, r)
	} else {
		out, err = a.searchCPU(ctx, target, r)
	}
	a.out.EndProgress()

	if errors.Is(err, context.Canceled) {
		a.out.Blank()
		a.out.Infof("Search cancelled")
		a.out.Stats("search stats", OutcomeRows(out, r.Len()))
		return exitError{code: 130}
	}
	if err != nil {
		return err
	}

	a.out.Stats("search stats", OutcomeRows(out, r.Len()))
	if !out.Found {
		a.out.Errorf("Not found in %s", r)
		return exitError{code: 1}
	}
	a.out.Successf("Found: %s", out.Result.IP())
	return nil
}

func (a *app) searchCPU(ctx context.Context, target hasher.Digest, r search.Range) (search.Outcome, error) {
	cfg := a.cfg.Search
	backend, err := hasher.Lookup(cfg.Backend)
	if err != nil {
		return search.Outcome{}, err
	}

	c := search.NewCoordinator(search.Config{
		Workers:      cfg.Workers,
		Range:        r,
		Backend:      backend,
		PrefixBytes:  cfg.PrefixBytes,
		Stride:       cfg.Stride,
		PollInterval: cfg.PollInterval,
		Logger:       a.log,
		OnProgress:   a.progress(),
	})
	eff := c.Config()
	a.out.Infof("Mode:    CPU")
	a.out.Infof("Workers: %d", min(uint64(eff.Workers), r.Len()))
	a.out.Infof("Backend: %s", backend.Name())
	a.out.Infof("Arch:    %s/%s", runtime.GOOS, runtime.GOARCH)
	a.out.Blank()

	return c.Search(ctx, target)
}

func (a *app) searchGPU(ctx context.Context, target hasher.Digest, r search.Range) (search.Outcome, error) {
	cfg := a.cfg.Search

	var dev search.Device
	if cfg.GPUDevice < 0 {
		dev = search.NewSoftwareDevice()
	} else {
		d, err := search.OpenDevice(cfg.GPUDevice)
		if errors.Is(err, search.ErrGPUUnavailable) {
			a.out.Errorf("Error: GPU search not available")
			a.out.Blank()
			a.out.Detail("This binary was not built with a GPU backend.")
			a.out.Detail("Run without --gpu to use the CPU workers, or pass --device -1")
			a.out.Detail("to run the GPU kernel contract on the CPU.")
			a.out.Blank()
			return search.Outcome{}, exitError{code: 1}
		}
		if err != nil {
			return search.Outcome{}, fmt.Errorf("failed to open gpu device %d: %w", cfg.GPUDevice, err)
		}
		dev = d
	}
	defer dev.Close()

	a.out.Infof("Mode:    GPU")
	a.out.Infof("Device:  %s", dev.Name())
	a.out.Infof("Global:  %d work items", cfg.GPUGlobalSize)
	a.out.Blank()

	a.log.WithField("device", dev.Name()).Info("gpu search started")
	return search.SearchDevice(ctx, dev, target, search.GPUConfig{
		Range:       r,
		PrefixBytes: cfg.PrefixBytes,
		GlobalSize:  cfg.GPUGlobalSize,
	})
}

// progress returns the OnProgress callback, or nil when quiet.
func (a *app) progress() func(search.Snapshot) {
	if a.quiet {
		return nil
	}
	return a.out.Progress
}
