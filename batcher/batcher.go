// Package batcher runs the single consumer of the ingest ring. It fills
// pooled batches and hands them to a sink when any flush trigger fires:
// record count, elapsed interval, memory ceiling, or an explicit flush.
package batcher

import (
	"time"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/queue"
)

// Sink receives full batches. The batch is only valid for the duration of
// the call; a sink that queues internally must copy.
type Sink interface {
	SendBatch(b *Batch)
}

// Observer receives batcher accounting events.
type Observer interface {
	BatchFlushed(records, bytes int)
	RecordsDropped(n int)
}

// Config holds the batcher knobs. All fields are fixed once Start is called.
type Config struct {
	// BatchSize is the flush threshold by record count.
	BatchSize int
	// FlushInterval is the flush threshold by time.
	FlushInterval time.Duration
	// MaxMemoryBytes caps the serialized-size estimate of one batch. A
	// single record larger than the cap is dropped and counted.
	MaxMemoryBytes int
	// PollInterval bounds the consumer's wait when the ring is empty.
	// Values that are not positive or exceed 1ms are replaced with 200µs.
	PollInterval time.Duration
	// ShutdownTimeout bounds the drain on Stop. Records still queued at the
	// deadline are counted as dropped.
	ShutdownTimeout time.Duration
	// PoolSize is the number of pre-allocated batches.
	PoolSize int
}

// Batcher owns the consumer goroutine. Exactly one Batcher may consume a
// given ring.
type Batcher struct {
	ring *queue.Ring
	pool *Pool
	sink Sink
	obs  Observer
	cfg  Config

	flushC chan chan struct{}
	stopC  chan struct{}
	done   chan struct{}
}

const maxPollInterval = time.Millisecond

// New wires a batcher to its ring and sink. Call Start to begin consuming.
func New(ring *queue.Ring, sink Sink, obs Observer, cfg Config) *Batcher {
	if cfg.PollInterval <= 0 || cfg.PollInterval > maxPollInterval {
		cfg.PollInterval = 200 * time.Microsecond
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 16
	}
	// Pre-allocation is capped; batches above it grow on demand.
	prealloc := cfg.BatchSize
	if prealloc > 1024 {
		prealloc = 1024
	}
	return &Batcher{
		ring:   ring,
		pool:   NewPool(cfg.PoolSize, prealloc, 8192),
		sink:   sink,
		obs:    obs,
		cfg:    cfg,
		flushC: make(chan chan struct{}),
		stopC:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (b *Batcher) Start() {
	go b.run()
}

// Flush drains everything enqueued before the call and dispatches the
// current batch. It blocks until the batcher acknowledges or the batcher has
// stopped.
func (b *Batcher) Flush() {
	ack := make(chan struct{})
	select {
	case b.flushC <- ack:
		select {
		case <-ack:
		case <-b.done:
		}
	case <-b.done:
	}
}

// Stop drains within the configured shutdown timeout and stops the consumer.
// Records abandoned at the deadline are counted as dropped; their number is
// returned.
func (b *Batcher) Stop() int {
	close(b.stopC)
	<-b.done
	residual := b.ring.Len()
	if residual > 0 {
		b.obs.RecordsDropped(residual)
	}
	return residual
}

func (b *Batcher) run() {
	defer close(b.done)

	cur := b.pool.Get()
	deadline := time.Now().Add(b.cfg.FlushInterval)

	for {
		select {
		case ack := <-b.flushC:
			cur = b.drain(cur, time.Time{})
			cur, deadline = b.flush(cur)
			close(ack)
			continue
		case <-b.stopC:
			stopAt := time.Now().Add(b.cfg.ShutdownTimeout)
			cur = b.drain(cur, stopAt)
			b.flushFinal(cur)
			return
		default:
		}

		rec := b.ring.Dequeue()
		if rec == nil {
			if cur.Len() > 0 && !time.Now().Before(deadline) {
				cur, deadline = b.flush(cur)
			}
			time.Sleep(b.cfg.PollInterval)
			continue
		}

		est := rec.EstimateSize()
		if est > b.cfg.MaxMemoryBytes {
			b.obs.RecordsDropped(1)
			continue
		}
		if cur.Size()+est > b.cfg.MaxMemoryBytes && cur.Len() > 0 {
			cur, deadline = b.flush(cur)
		}
		if cur.Len() == 0 {
			// The interval runs from the first record of the batch, so an
			// idle stretch never causes an immediate one-record flush.
			deadline = time.Now().Add(b.cfg.FlushInterval)
		}
		cur.Append(rec, est)
		if cur.Len() >= b.cfg.BatchSize || !time.Now().Before(deadline) {
			cur, deadline = b.flush(cur)
		}
	}
}

// drain empties the ring into batches, flushing as triggers fire. A zero
// stopAt means "until the ring is empty"; otherwise draining also stops at
// the deadline.
func (b *Batcher) drain(cur *Batch, stopAt time.Time) *Batch {
	for {
		if !stopAt.IsZero() && !time.Now().Before(stopAt) {
			return cur
		}
		rec := b.ring.Dequeue()
		if rec == nil {
			return cur
		}
		est := rec.EstimateSize()
		if est > b.cfg.MaxMemoryBytes {
			b.obs.RecordsDropped(1)
			continue
		}
		if cur.Size()+est > b.cfg.MaxMemoryBytes && cur.Len() > 0 {
			cur, _ = b.flush(cur)
		}
		cur.Append(rec, est)
		if cur.Len() >= b.cfg.BatchSize {
			cur, _ = b.flush(cur)
		}
	}
}

// flush hands the batch to the sink and starts a fresh one. Empty batches
// only reset the deadline.
func (b *Batcher) flush(cur *Batch) (*Batch, time.Time) {
	if cur.Len() > 0 {
		records, bytes := cur.Len(), cur.Size()
		b.sink.SendBatch(cur)
		b.obs.BatchFlushed(records, bytes)
		b.pool.Put(cur)
		cur = b.pool.Get()
	}
	return cur, time.Now().Add(b.cfg.FlushInterval)
}

func (b *Batcher) flushFinal(cur *Batch) {
	if cur.Len() > 0 {
		records, bytes := cur.Len(), cur.Size()
		b.sink.SendBatch(cur)
		b.obs.BatchFlushed(records, bytes)
		b.pool.Put(cur)
	}
}
