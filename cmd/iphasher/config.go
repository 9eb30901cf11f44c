package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/amplitudesxd/IPHasher/hasher"
	"github.com/amplitudesxd/IPHasher/index"
	"github.com/amplitudesxd/IPHasher/search"
)

// ============================================================================
// VERSION INFO
// ============================================================================

// AppVersion is overridden at link time with -ldflags "-X main.AppVersion=...".
var AppVersion = "dev"

const (
	// EnvPrefix namespaces environment overrides, e.g. IPHASHER_SEARCH_WORKERS.
	EnvPrefix = "IPHASHER"

	// MinPollInterval keeps the progress ticker from dominating a core.
	MinPollInterval = 100 * time.Millisecond
)

// ============================================================================
// SEARCH CONFIGURATION
// ============================================================================

// SearchConfig controls live brute-force search and the benchmark.
type SearchConfig struct {
	Workers      int           `mapstructure:"workers" yaml:"workers"`             // 0 = one per CPU
	Backend      string        `mapstructure:"backend" yaml:"backend"`             // auto, portable, stdlib, simd
	PrefixBytes  int           `mapstructure:"prefix_bytes" yaml:"prefix_bytes"`   // 0 = full digest comparison
	Range        string        `mapstructure:"range" yaml:"range"`                 // CIDR, a-b, single address, or all
	Stride       uint64        `mapstructure:"stride" yaml:"stride"`               // addresses between progress flushes
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"` // progress refresh

	GPU           bool `mapstructure:"gpu" yaml:"gpu"`
	GPUDevice     int  `mapstructure:"gpu_device" yaml:"gpu_device"` // -1 = CPU-emulated device
	GPUGlobalSize int  `mapstructure:"gpu_global_size" yaml:"gpu_global_size"`
}

// DefaultSearchConfig returns the default search configuration
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Workers:       0,
		Backend:       hasher.Auto,
		PrefixBytes:   0,
		Range:         "all",
		Stride:        search.DefaultStride,
		PollInterval:  search.DefaultPollInterval,
		GPU:           false,
		GPUDevice:     0,
		GPUGlobalSize: search.DefaultGlobalSize,
	}
}

// ============================================================================
// INDEX CONFIGURATION
// ============================================================================

// IndexConfig controls the reverse index on disk.
type IndexConfig struct {
	DataDir       string `mapstructure:"data_dir" yaml:"data_dir"`
	BatchSize     int    `mapstructure:"batch_size" yaml:"batch_size"`
	Compression   string `mapstructure:"compression" yaml:"compression"`
	CacheMB       int    `mapstructure:"cache_mb" yaml:"cache_mb"`
	WriteBufferMB int    `mapstructure:"write_buffer_mb" yaml:"write_buffer_mb"`
	NoSync        bool   `mapstructure:"no_sync" yaml:"no_sync"`
}

// DefaultIndexConfig returns the default index configuration
func DefaultIndexConfig() IndexConfig {
	homeDir, _ := os.UserHomeDir()
	opts := index.DefaultOptions()
	return IndexConfig{
		DataDir:       filepath.Join(homeDir, ".iphasher"),
		BatchSize:     index.DefaultBatchSize,
		Compression:   opts.Compression,
		CacheMB:       opts.CacheMB,
		WriteBufferMB: opts.WriteBufferMB,
		NoSync:        opts.NoSync,
	}
}

// Options converts the section into store options.
func (c IndexConfig) Options() index.Options {
	return index.Options{
		Compression:   c.Compression,
		CacheMB:       c.CacheMB,
		WriteBufferMB: c.WriteBufferMB,
		NoSync:        c.NoSync,
	}
}

// ============================================================================
// LOG CONFIGURATION
// ============================================================================

// LogConfig controls logger level and console colour.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Color bool   `mapstructure:"color" yaml:"color"`
}

// DefaultLogConfig logs at info level with colour on.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Color: true}
}

// ============================================================================
// MAIN CONFIGURATION
// ============================================================================

// Config is the complete CLI configuration
type Config struct {
	Search SearchConfig `mapstructure:"search" yaml:"search"`
	Index  IndexConfig  `mapstructure:"index" yaml:"index"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// DefaultConfig returns a fully populated default configuration
func DefaultConfig() *Config {
	return &Config{
		Search: DefaultSearchConfig(),
		Index:  DefaultIndexConfig(),
		Log:    DefaultLogConfig(),
	}
}

// ============================================================================
// CONFIGURATION LOADING
// ============================================================================

// newViper registers every key with its default so that environment
// variables are picked up by Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("search.workers", d.Search.Workers)
	v.SetDefault("search.backend", d.Search.Backend)
	v.SetDefault("search.prefix_bytes", d.Search.PrefixBytes)
	v.SetDefault("search.range", d.Search.Range)
	v.SetDefault("search.stride", d.Search.Stride)
	v.SetDefault("search.poll_interval", d.Search.PollInterval)
	v.SetDefault("search.gpu", d.Search.GPU)
	v.SetDefault("search.gpu_device", d.Search.GPUDevice)
	v.SetDefault("search.gpu_global_size", d.Search.GPUGlobalSize)

	v.SetDefault("index.data_dir", d.Index.DataDir)
	v.SetDefault("index.batch_size", d.Index.BatchSize)
	v.SetDefault("index.compression", d.Index.Compression)
	v.SetDefault("index.cache_mb", d.Index.CacheMB)
	v.SetDefault("index.write_buffer_mb", d.Index.WriteBufferMB)
	v.SetDefault("index.no_sync", d.Index.NoSync)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.color", d.Log.Color)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads path (YAML) when given, otherwise an optional
// iphasher.yaml in the working directory, then applies environment
// overrides and bound flags.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("iphasher")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate rejects values that cannot be interpreted and clamps the rest
// to safe minimums.
func (c *Config) Validate() error {
	if _, err := hasher.Lookup(c.Search.Backend); err != nil {
		return err
	}
	if c.Search.PrefixBytes < 0 || c.Search.PrefixBytes > hasher.DigestSize {
		return fmt.Errorf("%w: prefix_bytes must be 0-%d, got %d", hasher.ErrInvalidPrefix, hasher.DigestSize, c.Search.PrefixBytes)
	}
	if _, err := search.ParseRange(c.Search.Range); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch strings.ToLower(c.Index.Compression) {
	case index.CompressionSnappy, index.CompressionNone:
	default:
		return fmt.Errorf("unknown compression %q", c.Index.Compression)
	}
	if c.Index.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}

	if c.Search.Workers < 0 {
		c.Search.Workers = 0
	}
	if c.Search.Stride == 0 {
		c.Search.Stride = search.DefaultStride
	}
	if c.Search.PollInterval < MinPollInterval {
		c.Search.PollInterval = MinPollInterval
	}
	if c.Search.GPUGlobalSize <= 0 {
		c.Search.GPUGlobalSize = search.DefaultGlobalSize
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = index.DefaultBatchSize
	}
	if c.Index.BatchSize > index.MaxBatchSize {
		c.Index.BatchSize = index.MaxBatchSize
	}
	if c.Index.CacheMB < 0 {
		c.Index.CacheMB = 0
	}
	if c.Index.WriteBufferMB < 0 {
		c.Index.WriteBufferMB = 0
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// NewLogger builds the process logger from the log section.
func (c *Config) NewLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		DisableColors:   !c.Log.Color,
	})
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		l.SetLevel(level)
	}
	return l
}
