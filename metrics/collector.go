// Package metrics is the in-process telemetry collector: label-keyed
// counters, gauges, histograms, and timers with bounded retention and an
// interval flush to an export callback.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Type discriminates metric entries.
type Type uint8

const (
	Counter Type = iota
	Gauge
	Histogram
	Timer
)

func (t Type) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	case Timer:
		return "timer"
	}
	return "unknown"
}

// Label is one (key, value) pair. Label order is part of metric identity.
type Label struct {
	Key   string
	Value string
}

// DefaultBuckets are the histogram upper bounds used when the configuration
// does not override them, in seconds.
var DefaultBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
}

// Config holds the collector knobs.
type Config struct {
	// FlushInterval is the export cadence of the background worker.
	FlushInterval time.Duration
	// HistogramBuckets are ascending upper bounds; +Inf is implicit.
	HistogramBuckets []float64
	// MaxEntries bounds distinct metric identities held in memory. On
	// overflow the oldest-inserted entry of the shard that receives the new
	// identity is evicted and the overflow counter incremented; entries in
	// other shards are not considered, so the evicted entry is not
	// necessarily the oldest overall.
	MaxEntries int
}

type entry struct {
	name   string
	labels []Label
	typ    Type

	mu        sync.Mutex
	value     float64 // counter total or gauge value
	buckets   []uint64
	sum       float64
	count     uint64
	updatedAt int64 // unix nanos
}

// Collector stores metrics in a sharded map keyed by a hash of name plus
// labels, so concurrent updates to distinct keys do not serialize.
type Collector struct {
	cfg      Config
	shards   [numShards]shard
	entries  atomic.Int64
	overflow atomic.Uint64

	stopC chan struct{}
	done  chan struct{}
}

const numShards = 16

type shard struct {
	mu      sync.Mutex
	entries map[uint64]*entry
	order   []uint64 // insertion order for FIFO eviction
}

// NewCollector builds a collector; Start launches the flush worker.
func NewCollector(cfg Config) *Collector {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if len(cfg.HistogramBuckets) == 0 {
		cfg.HistogramBuckets = DefaultBuckets
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	c := &Collector{
		cfg:   cfg,
		stopC: make(chan struct{}),
		done:  make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[uint64]*entry)
	}
	return c
}

// key hashes the metric identity: name plus labels in order.
func key(name string, labels []Label) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(name)
	for _, l := range labels {
		_, _ = d.WriteString("\xff")
		_, _ = d.WriteString(l.Key)
		_, _ = d.WriteString("\xfe")
		_, _ = d.WriteString(l.Value)
	}
	return d.Sum64()
}

func (c *Collector) get(name string, labels []Label, typ Type) *entry {
	k := key(name, labels)
	s := &c.shards[k%numShards]

	s.mu.Lock()
	e, ok := s.entries[k]
	if !ok {
		e = &entry{name: name, labels: cloneLabels(labels), typ: typ}
		if typ == Histogram || typ == Timer {
			e.buckets = make([]uint64, len(c.cfg.HistogramBuckets)+1)
		}
		s.entries[k] = e
		s.order = append(s.order, k)
		if int(c.entries.Add(1)) > c.cfg.MaxEntries {
			c.evictOldest(s)
		}
	}
	s.mu.Unlock()
	return e
}

// evictOldest removes the oldest-inserted entry of the shard the new entry
// landed in. Called with the shard lock held.
func (c *Collector) evictOldest(s *shard) {
	for len(s.order) > 0 {
		victim := s.order[0]
		s.order = s.order[1:]
		if _, ok := s.entries[victim]; ok {
			delete(s.entries, victim)
			c.entries.Add(-1)
			c.overflow.Add(1)
			return
		}
	}
}

func cloneLabels(labels []Label) []Label {
	if len(labels) == 0 {
		return nil
	}
	out := make([]Label, len(labels))
	copy(out, labels)
	return out
}

// RecordCounter adds delta to a monotonic counter. Negative deltas are
// ignored so the counter can never move backwards.
func (c *Collector) RecordCounter(name string, delta float64, labels ...Label) {
	if delta < 0 {
		return
	}
	e := c.get(name, labels, Counter)
	e.mu.Lock()
	e.value += delta
	e.updatedAt = time.Now().UnixNano()
	e.mu.Unlock()
}

// RecordGauge replaces the gauge value.
func (c *Collector) RecordGauge(name string, value float64, labels ...Label) {
	e := c.get(name, labels, Gauge)
	e.mu.Lock()
	e.value = value
	e.updatedAt = time.Now().UnixNano()
	e.mu.Unlock()
}

// RecordHistogram observes value into the fixed buckets: the lowest bucket
// whose upper bound is >= value, or the implicit +Inf bucket.
func (c *Collector) RecordHistogram(name string, value float64, labels ...Label) {
	c.observe(name, value, Histogram, labels)
}

// RecordTimer observes a duration, in seconds, into a histogram.
func (c *Collector) RecordTimer(name string, d time.Duration, labels ...Label) {
	c.observe(name, d.Seconds(), Timer, labels)
}

func (c *Collector) observe(name string, value float64, typ Type, labels []Label) {
	e := c.get(name, labels, typ)
	idx := len(c.cfg.HistogramBuckets) // +Inf
	for i, bound := range c.cfg.HistogramBuckets {
		if value <= bound {
			idx = i
			break
		}
	}
	e.mu.Lock()
	if e.buckets == nil {
		e.buckets = make([]uint64, len(c.cfg.HistogramBuckets)+1)
	}
	e.buckets[idx]++
	e.sum += value
	e.count++
	e.updatedAt = time.Now().UnixNano()
	e.mu.Unlock()
}

// Overflow is the number of entries evicted because the retention bound was
// hit.
func (c *Collector) Overflow() uint64 { return c.overflow.Load() }

// Len is the number of distinct metric identities currently retained.
func (c *Collector) Len() int { return int(c.entries.Load()) }

// ExportFunc receives a snapshot at each flush.
type ExportFunc func(Snapshot)

// Start launches the background flush worker. The callback runs on the
// worker goroutine.
func (c *Collector) Start(export ExportFunc) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if export != nil {
					export(c.Snapshot())
				}
			case <-c.stopC:
				if export != nil {
					export(c.Snapshot())
				}
				return
			}
		}
	}()
}

// Stop flushes once more and stops the worker.
func (c *Collector) Stop() {
	close(c.stopC)
	<-c.done
}
