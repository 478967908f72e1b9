package batcher

import (
	"github.com/Nwagbara-Group-LLC/LoggingEngine/record"
)

// Batch accumulates records between flushes and carries the reusable
// serialization buffer. The batcher exclusively owns a batch from acquisition
// until it is returned to the pool; transports borrow it for the duration of
// a send and must not retain references.
type Batch struct {
	records []*record.Record
	buf     []byte
	size    int // serialized-size estimate of accumulated records
}

func newBatch(capacity, bufSize int) *Batch {
	return &Batch{
		records: make([]*record.Record, 0, capacity),
		buf:     make([]byte, 0, bufSize),
	}
}

// Append adds a record and its size estimate to the batch.
func (b *Batch) Append(r *record.Record, estimate int) {
	b.records = append(b.records, r)
	b.size += estimate
}

// Len is the number of records in the batch.
func (b *Batch) Len() int { return len(b.records) }

// Size is the serialized-size estimate in bytes.
func (b *Batch) Size() int { return b.size }

// Records exposes the accumulated records in submission order.
func (b *Batch) Records() []*record.Record { return b.records }

// Serialize encodes every record as one JSON line into the batch's reused
// buffer and returns the buffer contents, valid until the next Serialize or
// Reset.
func (b *Batch) Serialize() []byte {
	b.buf = b.buf[:0]
	for _, r := range b.records {
		b.buf = record.AppendLine(b.buf, r)
	}
	return b.buf
}

// Reset clears the batch for reuse, keeping allocated capacity.
func (b *Batch) Reset() {
	for i := range b.records {
		b.records[i] = nil
	}
	b.records = b.records[:0]
	b.buf = b.buf[:0]
	b.size = 0
}
