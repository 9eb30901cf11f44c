package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const dbDir = "db"

// Index is a data directory holding a LevelDB store and, once a build has
// finished, its manifest.
type Index struct {
	Dir      string
	Store    Store
	Manifest *Manifest

	opts Options
}

// Create opens dir for a new build. It fails with ErrNotEmpty when a
// manifest or any stored key is already present.
func Create(dir string, opts Options) (*Index, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return nil, fmt.Errorf("%w: %s already holds a completed index", ErrNotEmpty, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	opts.ReadOnly = false
	s, err := OpenLevel(filepath.Join(dir, dbDir), opts)
	if err != nil {
		return nil, err
	}
	empty, err := s.IsEmpty()
	if err != nil {
		s.Close()
		return nil, err
	}
	if !empty {
		s.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotEmpty, dir)
	}
	return &Index{Dir: dir, Store: s, opts: opts}, nil
}

// Open opens an existing index read-only. Manifest is nil when the build
// that produced the store never completed.
func Open(dir string, opts Options) (*Index, error) {
	path := filepath.Join(dir, dbDir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no index at %s: %w", dir, err)
		}
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	opts.ReadOnly = true
	s, err := OpenLevel(path, opts)
	if err != nil {
		return nil, err
	}
	return &Index{Dir: dir, Store: s, Manifest: m, opts: opts}, nil
}

// Build fills the store and writes the manifest on success.
func (ix *Index) Build(ctx context.Context, cfg BuildConfig) (BuildStats, error) {
	stats, err := Build(ctx, ix.Store, cfg)
	if err != nil {
		return stats, err
	}
	compression := ix.opts.Compression
	if compression == "" {
		compression = CompressionSnappy
	}
	m := NewManifest(stats, compression)
	if err := SaveManifest(ix.Dir, m); err != nil {
		return stats, err
	}
	ix.Manifest = m
	return stats, nil
}

// Lookup queries the store. See the package-level Lookup.
func (ix *Index) Lookup(digestHex string) (string, bool, error) {
	return Lookup(ix.Store, digestHex)
}

func (ix *Index) Close() error {
	return ix.Store.Close()
}
