// Package queue implements the bounded multi-producer single-consumer ring
// that feeds the batcher. Producers reserve a slot with a CAS on the write
// cursor and publish with a per-slot sequence store; the single consumer
// observes records in reservation order.
package queue

import (
	"errors"
	"sync/atomic"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/record"
)

var ErrCapacity = errors.New("ring capacity must be a power of two and > 0")

type slot struct {
	seq atomic.Uint64
	rec *record.Record
}

// Ring is the ingest queue. Capacity is a power of two so indexing is a
// bitmask; the write and read cursors live on their own cache lines.
type Ring struct {
	_        [64]byte
	writePos atomic.Uint64
	_        [56]byte
	readPos  atomic.Uint64
	_        [56]byte

	mask  uint64
	slots []slot
}

// NewRing allocates a ring with the given power-of-two capacity.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, ErrCapacity
	}
	r := &Ring{
		mask:  uint64(capacity) - 1,
		slots: make([]slot, capacity),
	}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r, nil
}

// Enqueue publishes rec and returns the position it was reserved at, which
// doubles as the record's sequence number: it is strictly increasing,
// gap-free across successful enqueues, and matches the order the consumer
// will observe. A full ring returns ok=false immediately; producers never
// block or spin on a full ring.
func (r *Ring) Enqueue(rec *record.Record) (seq uint64, ok bool) {
	for {
		pos := r.writePos.Load()
		s := &r.slots[pos&r.mask]
		sseq := s.seq.Load()
		switch {
		case sseq == pos:
			if r.writePos.CompareAndSwap(pos, pos+1) {
				rec.Sequence = pos
				s.rec = rec
				s.seq.Store(pos + 1)
				return pos, true
			}
			// Lost the reservation race; retry.
		case sseq < pos:
			// Consumer has not freed this slot yet: full.
			return 0, false
		default:
			// Another producer reserved pos; reload and retry.
		}
	}
}

// Dequeue returns the next record in publication order, or nil when the ring
// is empty or the head slot is reserved but not yet published. Single
// consumer only.
func (r *Ring) Dequeue() *record.Record {
	pos := r.readPos.Load()
	s := &r.slots[pos&r.mask]
	if s.seq.Load() != pos+1 {
		return nil
	}
	rec := s.rec
	s.rec = nil
	s.seq.Store(pos + r.mask + 1)
	r.readPos.Store(pos + 1)
	return rec
}

// Len is the number of published-or-reserved records currently in the ring.
func (r *Ring) Len() int {
	w := r.writePos.Load()
	rd := r.readPos.Load()
	return int(w - rd)
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return int(r.mask) + 1 }

// NextSequence reports the sequence number the next successful Enqueue will
// assign.
func (r *Ring) NextSequence() uint64 { return r.writePos.Load() }
