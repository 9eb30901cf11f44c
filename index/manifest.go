package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestFile is written into the data directory once a build completes.
const ManifestFile = "manifest.json"

// Manifest records a completed build. Its absence means the store was never
// fully built, or was built by something else.
type Manifest struct {
	Version     int       `json:"version"`
	Range       string    `json:"range"`
	RangeStart  uint64    `json:"range_start"`
	RangeEnd    uint64    `json:"range_end"`
	Entries     uint64    `json:"entries"`
	Backend     string    `json:"backend"`
	Workers     int       `json:"workers"`
	BatchSize   int       `json:"batch_size"`
	Compression string    `json:"compression"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

const manifestVersion = 1

// NewManifest describes the build summarised by stats.
func NewManifest(stats BuildStats, compression string) *Manifest {
	return &Manifest{
		Version:     manifestVersion,
		Range:       stats.Range.String(),
		RangeStart:  stats.Range.Start,
		RangeEnd:    stats.Range.End,
		Entries:     stats.Entries,
		Backend:     stats.Backend,
		Workers:     stats.Workers,
		BatchSize:   stats.BatchSize,
		Compression: compression,
		StartedAt:   stats.Started.UTC(),
		FinishedAt:  stats.Started.Add(stats.Elapsed).UTC(),
	}
}

// Complete reports whether every address of the recorded range is present.
func (m *Manifest) Complete() bool {
	return m.RangeEnd > m.RangeStart && m.Entries == m.RangeEnd-m.RangeStart
}

// SaveManifest writes m into dir, replacing any previous manifest.
func SaveManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the manifest in dir. Returns nil (not an error) when
// none exists.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
