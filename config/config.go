// Package config defines the immutable engine configuration, its validation
// rules, and the loaders. Precedence: explicit overrides > environment
// variables > per-deployment defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/record"
)

// Config is the full engine configuration. It is validated before start and
// must not be mutated afterwards.
type Config struct {
	// Service is the name stamped on every record.
	Service string `yaml:"service"`
	// Level is the minimum level to admit; submissions below it return
	// without enqueueing.
	Level string `yaml:"level"`
	// RingBufferSize is the ingest queue capacity; must be a power of two.
	RingBufferSize int `yaml:"ring_buffer_size"`
	// BatchSize is the flush threshold by record count.
	BatchSize int `yaml:"batch_size"`
	// FlushIntervalMicros is the flush threshold by time.
	FlushIntervalMicros int `yaml:"flush_interval_micros"`
	// MaxMemoryBytes is the hard ceiling for in-flight batch bytes.
	MaxMemoryBytes int `yaml:"max_memory_bytes"`
	// PoolSize is the number of pre-allocated batch buffers.
	PoolSize int `yaml:"pool_size"`
	// TimeoutMillis bounds each transport send attempt.
	TimeoutMillis int `yaml:"timeout_millis"`
	// ShutdownTimeoutSecs bounds the drain on shutdown.
	ShutdownTimeoutSecs int `yaml:"shutdown_timeout_secs"`

	Outputs     []OutputConfig    `yaml:"outputs"`
	Compression CompressionConfig `yaml:"compression"`
	Retry       RetryConfig       `yaml:"retry"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// OutputConfig configures one transport.
type OutputConfig struct {
	// Type is one of stdout, stderr, console, file, redis, tcp, udp.
	Type string `yaml:"type"`
	// Host and Port address redis/tcp/udp destinations.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Path is the file transport's live file.
	Path string `yaml:"path"`
	// Channel is the redis pub/sub channel.
	Channel string `yaml:"channel"`
	// Password authenticates redis when set.
	Password string `yaml:"password"`
	// PoolSize bounds the redis connection pool.
	PoolSize int `yaml:"pool_size"`
	// MaxFileSizeBytes, MaxFiles, CompressRotated configure file rotation.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`
	MaxFiles         int   `yaml:"max_files"`
	CompressRotated  bool  `yaml:"compress_rotated"`
}

// Addr renders host:port for network outputs.
func (o OutputConfig) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// CompressionConfig configures the per-batch codec.
type CompressionConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Algorithm    string `yaml:"algorithm"`
	Level        int    `yaml:"level"`
	MinSizeBytes int    `yaml:"min_size_bytes"`
}

// RetryConfig configures transport retries.
type RetryConfig struct {
	Attempts      int     `yaml:"attempts"`
	DelayMillis   int     `yaml:"delay_ms"`
	BackoffFactor float64 `yaml:"backoff_factor"`
	MaxDelayMillis int    `yaml:"max_delay_ms"`
}

// MetricsConfig configures the telemetry collector.
type MetricsConfig struct {
	Enabled          bool      `yaml:"enabled"`
	FlushIntervalMillis int    `yaml:"flush_interval_ms"`
	HistogramBuckets []float64 `yaml:"histogram_buckets"`
	MaxEntries       int       `yaml:"max_entries"`
}

// Validate checks every rule the engine refuses to start without.
func (c *Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("config: service name is required")
	}
	if _, err := record.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.RingBufferSize <= 0 || c.RingBufferSize&(c.RingBufferSize-1) != 0 {
		return fmt.Errorf("config: ring_buffer_size %d must be a power of two", c.RingBufferSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be > 0")
	}
	if c.FlushIntervalMicros <= 0 {
		return fmt.Errorf("config: flush_interval_micros must be > 0")
	}
	if c.MaxMemoryBytes <= 0 {
		return fmt.Errorf("config: max_memory_bytes must be > 0")
	}
	if c.ShutdownTimeoutSecs < 0 {
		return fmt.Errorf("config: shutdown_timeout_secs must be >= 0")
	}
	if len(c.Outputs) == 0 {
		return fmt.Errorf("config: at least one output is required")
	}
	for i, o := range c.Outputs {
		if err := o.validate(); err != nil {
			return fmt.Errorf("config: output %d: %w", i, err)
		}
	}
	if c.Compression.Enabled {
		switch c.Compression.Algorithm {
		case "", "none", "gzip", "zstd", "lz4", "snappy":
		default:
			return fmt.Errorf("config: unknown compression algorithm %q", c.Compression.Algorithm)
		}
		if c.Compression.Level < 1 || c.Compression.Level > 9 {
			return fmt.Errorf("config: compression level %d out of range 1..9", c.Compression.Level)
		}
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("config: retry attempts must be >= 1")
	}
	if c.Retry.BackoffFactor < 1 {
		return fmt.Errorf("config: retry backoff_factor must be >= 1")
	}
	if c.Metrics.Enabled {
		if c.Metrics.MaxEntries <= 0 {
			return fmt.Errorf("config: metrics max_entries must be > 0")
		}
		for i := 1; i < len(c.Metrics.HistogramBuckets); i++ {
			if c.Metrics.HistogramBuckets[i] <= c.Metrics.HistogramBuckets[i-1] {
				return fmt.Errorf("config: histogram buckets must be strictly ascending")
			}
		}
	}
	return nil
}

func (o OutputConfig) validate() error {
	switch o.Type {
	case "stdout", "stderr", "console":
		return nil
	case "file":
		if o.Path == "" {
			return fmt.Errorf("file output requires path")
		}
	case "redis":
		if o.Host == "" || o.Port == 0 {
			return fmt.Errorf("redis output requires host and port")
		}
		if o.Channel == "" {
			return fmt.Errorf("redis output requires channel")
		}
	case "tcp", "udp":
		if o.Host == "" || o.Port == 0 {
			return fmt.Errorf("%s output requires host and port", o.Type)
		}
	default:
		return fmt.Errorf("unknown output type %q", o.Type)
	}
	return nil
}

// LoadFile overlays values from a YAML file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
