package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FromEnv synthesizes a configuration from the process environment layered
// over the deployment defaults selected by LOGGING_ENVIRONMENT. Unset
// variables keep their default; malformed values are an error.
func FromEnv() (Config, error) {
	env := ParseEnvironment(os.Getenv("LOGGING_ENVIRONMENT"))
	cfg := Defaults(env)

	var err error
	setString(&cfg.Service, "LOG_SERVICE", &err)
	setString(&cfg.Level, "ULTRA_LOG_LEVEL", &err)
	setInt(&cfg.RingBufferSize, "ULTRA_RING_BUFFER_SIZE", &err)
	setInt(&cfg.BatchSize, "ULTRA_BATCH_SIZE", &err)
	setInt(&cfg.FlushIntervalMicros, "ULTRA_FLUSH_INTERVAL_MICROS", &err)
	setInt(&cfg.MaxMemoryBytes, "ULTRA_MAX_MEMORY_BYTES", &err)
	setInt(&cfg.PoolSize, "ULTRA_POOL_SIZE", &err)
	setInt(&cfg.TimeoutMillis, "LOG_TRANSPORT_TIMEOUT_MILLIS", &err)
	setInt(&cfg.ShutdownTimeoutSecs, "LOG_SHUTDOWN_TIMEOUT_SECS", &err)

	if v := os.Getenv("LOG_TRANSPORT_TYPE"); v != "" {
		out := OutputConfig{Type: v}
		setString(&out.Host, "LOG_TRANSPORT_HOST", &err)
		setInt(&out.Port, "LOG_TRANSPORT_PORT", &err)
		setString(&out.Path, "LOG_TRANSPORT_PATH", &err)
		setString(&out.Channel, "LOG_TRANSPORT_CHANNEL", &err)
		setString(&out.Password, "LOG_TRANSPORT_PASSWORD", &err)
		setInt(&out.PoolSize, "LOG_TRANSPORT_POOL_SIZE", &err)
		setInt64(&out.MaxFileSizeBytes, "LOG_FILE_MAX_SIZE_BYTES", &err)
		setInt(&out.MaxFiles, "LOG_FILE_MAX_FILES", &err)
		setBool(&out.CompressRotated, "LOG_FILE_COMPRESS_ROTATED", &err)
		cfg.Outputs = []OutputConfig{out}
	}

	setBool(&cfg.Compression.Enabled, "LOG_COMPRESSION_ENABLED", &err)
	setString(&cfg.Compression.Algorithm, "LOG_COMPRESSION_ALGORITHM", &err)
	setInt(&cfg.Compression.Level, "LOG_COMPRESSION_LEVEL", &err)
	setInt(&cfg.Compression.MinSizeBytes, "LOG_COMPRESSION_MIN_SIZE_BYTES", &err)

	setInt(&cfg.Retry.Attempts, "LOG_RETRY_ATTEMPTS", &err)
	setInt(&cfg.Retry.DelayMillis, "LOG_RETRY_DELAY_MS", &err)
	setFloat(&cfg.Retry.BackoffFactor, "LOG_RETRY_BACKOFF_FACTOR", &err)
	setInt(&cfg.Retry.MaxDelayMillis, "LOG_RETRY_MAX_DELAY_MS", &err)

	setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED", &err)
	setInt(&cfg.Metrics.FlushIntervalMillis, "METRICS_FLUSH_INTERVAL_MS", &err)
	setInt(&cfg.Metrics.MaxEntries, "METRICS_MAX_ENTRIES", &err)
	if v := os.Getenv("METRICS_HISTOGRAM_BUCKETS"); v != "" {
		buckets, perr := parseBuckets(v)
		if perr != nil {
			err = perr
		} else {
			cfg.Metrics.HistogramBuckets = buckets
		}
	}

	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseBuckets(v string) ([]float64, error) {
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("config: METRICS_HISTOGRAM_BUCKETS: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

func setString(dst *string, key string, err *error) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, err *error) {
	v := os.Getenv(key)
	if v == "" || *err != nil {
		return
	}
	n, perr := strconv.Atoi(v)
	if perr != nil {
		*err = fmt.Errorf("config: %s must be an integer, got %q", key, v)
		return
	}
	*dst = n
}

func setInt64(dst *int64, key string, err *error) {
	v := os.Getenv(key)
	if v == "" || *err != nil {
		return
	}
	n, perr := strconv.ParseInt(v, 10, 64)
	if perr != nil {
		*err = fmt.Errorf("config: %s must be an integer, got %q", key, v)
		return
	}
	*dst = n
}

func setFloat(dst *float64, key string, err *error) {
	v := os.Getenv(key)
	if v == "" || *err != nil {
		return
	}
	f, perr := strconv.ParseFloat(v, 64)
	if perr != nil {
		*err = fmt.Errorf("config: %s must be a number, got %q", key, v)
		return
	}
	*dst = f
}

func setBool(dst *bool, key string, err *error) {
	v := os.Getenv(key)
	if v == "" || *err != nil {
		return
	}
	b, perr := strconv.ParseBool(v)
	if perr != nil {
		*err = fmt.Errorf("config: %s must be a boolean, got %q", key, v)
		return
	}
	*dst = b
}
