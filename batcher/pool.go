package batcher

// Pool holds pre-allocated batches on a buffered channel. Get never blocks:
// an empty pool falls back to allocation, and Put drops the batch when the
// pool is already full, so steady state reuses a fixed working set.
type Pool struct {
	ch       chan *Batch
	capacity int
	bufSize  int
}

// NewPool pre-allocates size batches, each sized for batchCapacity records
// and a bufSize-byte serialization buffer.
func NewPool(size, batchCapacity, bufSize int) *Pool {
	p := &Pool{
		ch:       make(chan *Batch, size),
		capacity: batchCapacity,
		bufSize:  bufSize,
	}
	for i := 0; i < size; i++ {
		p.ch <- newBatch(batchCapacity, bufSize)
	}
	return p
}

// Get returns an empty batch from the pool, allocating if none is idle.
func (p *Pool) Get() *Batch {
	select {
	case b := <-p.ch:
		return b
	default:
		return newBatch(p.capacity, p.bufSize)
	}
}

// Put clears the batch and returns it to the pool.
func (p *Pool) Put(b *Batch) {
	b.Reset()
	select {
	case p.ch <- b:
	default:
	}
}

// Idle reports how many batches are currently pooled.
func (p *Pool) Idle() int { return len(p.ch) }
