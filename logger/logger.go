// Package logger assembles the pipeline: the submission API, the ingest
// ring, the batcher, the transport dispatcher, and the telemetry collector,
// under one lifecycle.
package logger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/batcher"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/compression"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/config"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/metrics"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/queue"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/record"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/transport"
)

var (
	// ErrQueueFull is returned when the ingest ring refuses a record; the
	// record is counted as dropped and the caller was not blocked.
	ErrQueueFull = errors.New("ingest queue full, record dropped")
	// ErrNotRunning is returned by submissions outside Healthy/Degraded.
	ErrNotRunning = errors.New("logger is not running")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("logger already started")
)

// State is the lifecycle state of the engine.
type State int32

const (
	Stopped State = iota
	Starting
	Healthy
	Degraded
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// UltraLogger is the engine instance. Configuration is immutable after
// Start; submissions are safe from any goroutine and never block on
// transport latency.
type UltraLogger struct {
	cfg   config.Config
	level record.Level

	ring       *queue.Ring
	batch      *batcher.Batcher
	dispatcher *transport.Dispatcher
	collector  *metrics.Collector
	stats      *Stats
	diag       *logrus.Logger

	state         atomic.Int32
	metricsExport metrics.ExportFunc
}

// New validates the configuration and assembles a stopped engine with the
// transports the configuration names.
func New(cfg config.Config) (*UltraLogger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transports, err := buildTransports(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithTransports(cfg, transports...)
}

// NewWithTransports assembles an engine around caller-supplied transports,
// bypassing the output section of the configuration. Tests and hosts with
// custom sinks use this.
func NewWithTransports(cfg config.Config, transports ...transport.Transport) (*UltraLogger, error) {
	level, err := record.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	ring, err := queue.NewRing(cfg.RingBufferSize)
	if err != nil {
		return nil, err
	}

	diag := logrus.New()
	diag.SetFormatter(&logrus.TextFormatter{DisableColors: true})

	compressor, err := compression.NewCompressor(
		cfg.Compression.Enabled,
		cfg.Compression.Algorithm,
		compressionLevel(cfg.Compression),
		cfg.Compression.MinSizeBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	stats := NewStats()
	policy := transport.RetryPolicy{
		Attempts:      cfg.Retry.Attempts,
		Delay:         time.Duration(cfg.Retry.DelayMillis) * time.Millisecond,
		BackoffFactor: cfg.Retry.BackoffFactor,
		MaxDelay:      time.Duration(cfg.Retry.MaxDelayMillis) * time.Millisecond,
	}
	dispatcher := transport.NewDispatcher(
		transports,
		compressor,
		policy,
		time.Duration(cfg.TimeoutMillis)*time.Millisecond,
		stats,
		diag,
	)

	b := batcher.New(ring, dispatcher, stats, batcher.Config{
		BatchSize:       cfg.BatchSize,
		FlushInterval:   time.Duration(cfg.FlushIntervalMicros) * time.Microsecond,
		MaxMemoryBytes:  cfg.MaxMemoryBytes,
		ShutdownTimeout: time.Duration(cfg.ShutdownTimeoutSecs) * time.Second,
		PoolSize:        cfg.PoolSize,
	})

	l := &UltraLogger{
		cfg:        cfg,
		level:      level,
		ring:       ring,
		batch:      b,
		dispatcher: dispatcher,
		stats:      stats,
		diag:       diag,
	}
	if cfg.Metrics.Enabled {
		l.collector = metrics.NewCollector(metrics.Config{
			FlushInterval:    time.Duration(cfg.Metrics.FlushIntervalMillis) * time.Millisecond,
			HistogramBuckets: cfg.Metrics.HistogramBuckets,
			MaxEntries:       cfg.Metrics.MaxEntries,
		})
	}
	return l, nil
}

func compressionLevel(c config.CompressionConfig) int {
	if !c.Enabled {
		return 1
	}
	return c.Level
}

// SetMetricsExport registers the export callback run at each metrics flush.
// Must be called before Start.
func (l *UltraLogger) SetMetricsExport(fn metrics.ExportFunc) {
	l.metricsExport = fn
}

// Start launches the batcher and the metrics flush worker.
func (l *UltraLogger) Start() error {
	if !l.state.CompareAndSwap(int32(Stopped), int32(Starting)) {
		return ErrAlreadyStarted
	}
	l.batch.Start()
	if l.collector != nil {
		l.collector.Start(l.metricsExport)
	}
	l.state.Store(int32(Healthy))
	l.diag.WithField("service", l.cfg.Service).Info("logging engine started")
	return nil
}

// State reports the lifecycle state, folding in transport degradation.
func (l *UltraLogger) State() State {
	s := State(l.state.Load())
	if s == Healthy && len(l.dispatcher.Degraded()) > 0 {
		return Degraded
	}
	return s
}

// Stats returns a snapshot of the self-metrics.
func (l *UltraLogger) Stats() Snapshot { return l.stats.Snapshot() }

// Metrics exposes the telemetry collector, or nil when metrics are disabled.
func (l *UltraLogger) Metrics() *metrics.Collector { return l.collector }

// QueueDepth reports how many records are waiting in the ingest ring.
func (l *UltraLogger) QueueDepth() int { return l.ring.Len() }

// Service returns the configured service name.
func (l *UltraLogger) Service() string { return l.cfg.Service }

// Submit stamps and enqueues a caller-built record. This is the generic
// entry point behind the level helpers; it never blocks.
func (l *UltraLogger) Submit(rec *record.Record) error {
	if !rec.Level.Enabled(l.level) {
		return nil
	}
	s := State(l.state.Load())
	if s != Healthy && s != Degraded {
		l.stats.Submitted(rec.Level)
		l.stats.RecordsDropped(1)
		return ErrNotRunning
	}

	start := time.Now()
	l.stats.Submitted(rec.Level)
	if _, ok := l.ring.Enqueue(rec); !ok {
		l.stats.DropOverflow(1)
		return ErrQueueFull
	}
	l.stats.ObserveSubmitLatency(uint64(time.Since(start)))
	return nil
}

// Log builds a record and submits it.
func (l *UltraLogger) Log(level record.Level, message string, fields ...record.Field) error {
	if !level.Enabled(l.level) {
		return nil
	}
	rec := record.New(level, l.cfg.Service, message)
	rec.Fields = fields
	return l.Submit(rec)
}

func (l *UltraLogger) Trace(message string, fields ...record.Field) error {
	return l.Log(record.LevelTrace, message, fields...)
}

func (l *UltraLogger) Debug(message string, fields ...record.Field) error {
	return l.Log(record.LevelDebug, message, fields...)
}

func (l *UltraLogger) Info(message string, fields ...record.Field) error {
	return l.Log(record.LevelInfo, message, fields...)
}

func (l *UltraLogger) Warn(message string, fields ...record.Field) error {
	return l.Log(record.LevelWarn, message, fields...)
}

func (l *UltraLogger) Error(message string, fields ...record.Field) error {
	return l.Log(record.LevelError, message, fields...)
}

func (l *UltraLogger) Critical(message string, fields ...record.Field) error {
	return l.Log(record.LevelCritical, message, fields...)
}

// Domain-level helpers for the trading categories.

func (l *UltraLogger) MarketData(message string, fields ...record.Field) error {
	return l.Log(record.LevelMarketData, message, fields...)
}

func (l *UltraLogger) TradeEvent(message string, fields ...record.Field) error {
	return l.Log(record.LevelTrade, message, fields...)
}

func (l *UltraLogger) OrderEvent(message string, fields ...record.Field) error {
	return l.Log(record.LevelOrder, message, fields...)
}

func (l *UltraLogger) RiskEvent(message string, fields ...record.Field) error {
	return l.Log(record.LevelRisk, message, fields...)
}

// Flush drains everything enqueued before the call through to the
// transports without changing lifecycle state.
func (l *UltraLogger) Flush() error {
	s := State(l.state.Load())
	if s != Healthy && s != Degraded {
		return ErrNotRunning
	}
	l.batch.Flush()
	return l.dispatcher.Flush()
}

// Shutdown drains within the configured shutdown timeout, stops the
// workers, and reaches Stopped. Residual records are counted as dropped.
// The drain stops taking records at the shutdown timeout, but a batch send
// already under way runs to completion (bounded by the transport timeout and
// the retry policy), and transport shutdown then gets up to the transport
// timeout, so the call can return later than the shutdown timeout.
func (l *UltraLogger) Shutdown(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(Healthy), int32(Stopping)) &&
		!l.state.CompareAndSwap(int32(Degraded), int32(Stopping)) {
		return ErrNotRunning
	}

	residual := l.batch.Stop()
	if residual > 0 {
		l.diag.WithField("records", residual).Warn("shutdown deadline hit before drain completed")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(l.cfg.TimeoutMillis)*time.Millisecond)
	err := l.dispatcher.Shutdown(shutdownCtx)
	cancel()

	if l.collector != nil {
		l.collector.Stop()
	}
	l.state.Store(int32(Stopped))
	l.diag.WithField("service", l.cfg.Service).Info("logging engine stopped")
	return err
}

// Health summarizes state for a health endpoint.
type Health struct {
	State     string            `json:"state"`
	Degraded  map[string]string `json:"degraded,omitempty"`
	Submitted uint64            `json:"records_submitted"`
	Logged    uint64            `json:"records_logged"`
	Dropped   uint64            `json:"records_dropped"`
}

// HealthCheck reports the lifecycle state and headline counters.
func (l *UltraLogger) HealthCheck() Health {
	snap := l.stats.Snapshot()
	return Health{
		State:     l.State().String(),
		Degraded:  l.dispatcher.Degraded(),
		Submitted: snap.RecordsSubmitted,
		Logged:    snap.RecordsLogged,
		Dropped:   snap.RecordsDropped,
	}
}
