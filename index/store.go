// Package index precomputes the digest to address mapping for the IPv4
// keyspace into a persistent key-value store and answers lookups from it.
package index

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

var (
	// ErrNotEmpty is returned when a build targets a store that already
	// holds data.
	ErrNotEmpty = errors.New("index store is not empty")

	// ErrNotFound is returned by Store.Get for a missing key.
	ErrNotFound = errors.New("key not found")
)

// Batch accumulates writes that are applied atomically by Store.Write.
// Put copies key and value.
type Batch interface {
	Put(key, value []byte)
	Len() int
	Reset()
}

// Store is the persistent map the index lives in. Implementations must
// allow concurrent Write calls from independent batches.
type Store interface {
	IsEmpty() (bool, error)
	NewBatch() Batch
	Write(b Batch) error
	Get(key []byte) ([]byte, error)
	Close() error
}

// Compression names accepted in Options.
const (
	CompressionSnappy = "snappy"
	CompressionNone   = "none"
)

// Options tune the LevelDB store.
type Options struct {
	Compression   string
	CacheMB       int
	WriteBufferMB int
	NoSync        bool
	ReadOnly      bool
}

// DefaultOptions favours bulk load throughput.
func DefaultOptions() Options {
	return Options{
		Compression:   CompressionSnappy,
		CacheMB:       64,
		WriteBufferMB: 64,
		NoSync:        true,
	}
}

func (o Options) levelOptions() (*opt.Options, error) {
	lo := &opt.Options{
		NoSync:   o.NoSync,
		ReadOnly: o.ReadOnly,
	}
	switch strings.ToLower(o.Compression) {
	case "", CompressionSnappy:
		lo.Compression = opt.SnappyCompression
	case CompressionNone:
		lo.Compression = opt.NoCompression
	default:
		return nil, fmt.Errorf("unknown compression %q (want %s or %s)", o.Compression, CompressionSnappy, CompressionNone)
	}
	if o.CacheMB > 0 {
		lo.BlockCacheCapacity = o.CacheMB * opt.MiB
	}
	if o.WriteBufferMB > 0 {
		lo.WriteBuffer = o.WriteBufferMB * opt.MiB
	}
	return lo, nil
}

// LevelStore is a Store backed by goleveldb.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevel opens or creates a LevelDB database at path. A read-only open
// of a missing database fails.
func OpenLevel(path string, o Options) (*LevelStore, error) {
	lo, err := o.levelOptions()
	if err != nil {
		return nil, err
	}
	if o.ReadOnly {
		lo.ErrorIfMissing = true
	}
	db, err := leveldb.OpenFile(path, lo)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

// OpenMemory returns a LevelStore held entirely in memory.
func OpenMemory() (*LevelStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	return &LevelStore{db: db}, nil
}

// IsEmpty reports whether the store holds no keys.
func (s *LevelStore) IsEmpty() (bool, error) {
	it := s.db.NewIterator(nil, nil)
	defer it.Release()
	if it.First() {
		return false, nil
	}
	if err := it.Error(); err != nil {
		return false, fmt.Errorf("failed to probe store: %w", err)
	}
	return true, nil
}

type levelBatch struct {
	leveldb.Batch
}

func (s *LevelStore) NewBatch() Batch {
	return &levelBatch{}
}

func (s *LevelStore) Write(b Batch) error {
	lb, ok := b.(*levelBatch)
	if !ok {
		return fmt.Errorf("batch of type %T was not created by this store", b)
	}
	if err := s.db.Write(&lb.Batch, nil); err != nil {
		return fmt.Errorf("failed to write batch of %d entries: %w", lb.Len(), err)
	}
	return nil
}

// Get returns ErrNotFound for a missing key.
func (s *LevelStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	return v, nil
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}
