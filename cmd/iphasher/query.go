package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/amplitudesxd/IPHasher/hasher"
	"github.com/amplitudesxd/IPHasher/index"
)

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sha256-hex>",
		Short: "Look a digest up in the reverse index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(args[0])
		},
	}
}

func (a *app) runQuery(digestHex string) error {
	if _, err := hasher.ParseDigest(digestHex); err != nil {
		return err
	}

	start := time.Now()
	ix, err := index.Open(a.cfg.Index.DataDir, a.cfg.Index.Options())
	if err != nil {
		return err
	}
	defer ix.Close()
	opened := time.Since(start)

	if ix.Manifest == nil {
		a.out.Warnf("%s has no manifest, the index may be incomplete", ix.Dir)
	} else if !ix.Manifest.Complete() {
		a.out.Warnf("Index holds %d entries for range %s", ix.Manifest.Entries, ix.Manifest.Range)
	}

	lookupStart := time.Now()
	addr, found, err := ix.Lookup(digestHex)
	if err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"open":   opened,
		"lookup": time.Since(lookupStart),
		"found":  found,
	}).Debug("query timing")

	if !found {
		a.out.Errorf("Not found")
		return exitError{code: 1}
	}
	a.out.Successf("Found: %s", addr)
	return nil
}
