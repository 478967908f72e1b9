package logger

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/record"
)

// latencySampleCap bounds the reservoir backing the submission-latency
// percentiles; with ~10% sampling this holds memory flat under load.
const latencySampleCap = 8192

// Stats carries the engine's self-metrics. All counters are monotonic and
// updated with atomics; the invariant submitted == logged + dropped holds at
// steady state and after shutdown.
type Stats struct {
	submitted       atomic.Uint64
	logged          atomic.Uint64
	dropped         atomic.Uint64
	batches         atomic.Uint64
	batchRecords    atomic.Uint64
	bytesLogged     atomic.Uint64
	transportErrors atomic.Uint64
	bufferOverflow  atomic.Uint64

	levelCounts [record.LevelRisk + 1]atomic.Uint64

	mu      sync.Mutex
	samples []uint64 // sampled submission latencies, nanoseconds
}

// NewStats returns an empty stats block.
func NewStats() *Stats {
	return &Stats{samples: make([]uint64, 0, latencySampleCap)}
}

// Submitted counts one admitted submission.
func (s *Stats) Submitted(level record.Level) {
	s.submitted.Add(1)
	if int(level) < len(s.levelCounts) {
		s.levelCounts[level].Add(1)
	}
}

// DropOverflow counts submissions refused because the ingest ring was full.
func (s *Stats) DropOverflow(n uint64) {
	s.dropped.Add(n)
	s.bufferOverflow.Add(n)
}

// RecordsDropped counts records shed after admission (oversized record,
// shutdown residue). Implements the batcher observer.
func (s *Stats) RecordsDropped(n int) {
	s.dropped.Add(uint64(n))
}

// BatchFlushed records batch-size statistics. Implements the batcher
// observer.
func (s *Stats) BatchFlushed(records, bytes int) {
	s.batches.Add(1)
	s.batchRecords.Add(uint64(records))
	s.bytesLogged.Add(uint64(bytes))
}

// BatchDelivered counts records that reached at least one transport.
// Implements the transport observer.
func (s *Stats) BatchDelivered(records int) {
	s.logged.Add(uint64(records))
}

// BatchLost counts records whose batch exhausted every transport.
// Implements the transport observer.
func (s *Stats) BatchLost(records int) {
	s.dropped.Add(uint64(records))
}

// TransportError counts one failed send attempt. Implements the transport
// observer.
func (s *Stats) TransportError() {
	s.transportErrors.Add(1)
}

// ObserveSubmitLatency samples roughly 10% of submission latencies into the
// bounded reservoir.
func (s *Stats) ObserveSubmitLatency(ns uint64) {
	if rand.Uint32()%10 != 0 {
		return
	}
	s.mu.Lock()
	if len(s.samples) < latencySampleCap {
		s.samples = append(s.samples, ns)
	} else {
		s.samples[rand.Intn(len(s.samples))] = ns
	}
	s.mu.Unlock()
}

// Snapshot is a point-in-time copy of the stats block.
type Snapshot struct {
	RecordsSubmitted uint64
	RecordsLogged    uint64
	RecordsDropped   uint64
	BatchesProcessed uint64
	BytesLogged      uint64
	TransportErrors  uint64
	BufferOverflow   uint64
	AvgBatchSize     float64
	LatencyP50Nanos  uint64
	LatencyP99Nanos  uint64
	LatencyMaxNanos  uint64
	LevelCounts      map[string]uint64
}

// Snapshot copies the counters and computes latency percentiles from the
// sampled reservoir.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		RecordsSubmitted: s.submitted.Load(),
		RecordsLogged:    s.logged.Load(),
		RecordsDropped:   s.dropped.Load(),
		BatchesProcessed: s.batches.Load(),
		BytesLogged:      s.bytesLogged.Load(),
		TransportErrors:  s.transportErrors.Load(),
		BufferOverflow:   s.bufferOverflow.Load(),
		LevelCounts:      make(map[string]uint64),
	}
	if snap.BatchesProcessed > 0 {
		snap.AvgBatchSize = float64(s.batchRecords.Load()) / float64(snap.BatchesProcessed)
	}
	for lvl := range s.levelCounts {
		if n := s.levelCounts[lvl].Load(); n > 0 {
			snap.LevelCounts[record.Level(lvl).String()] = n
		}
	}

	s.mu.Lock()
	sorted := append([]uint64(nil), s.samples...)
	s.mu.Unlock()
	if len(sorted) > 0 {
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		snap.LatencyP50Nanos = sorted[len(sorted)/2]
		snap.LatencyP99Nanos = sorted[len(sorted)*99/100]
		snap.LatencyMaxNanos = sorted[len(sorted)-1]
	}
	return snap
}
