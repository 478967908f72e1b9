package transport

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/batcher"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/compression"
)

// Observer receives delivery accounting. A batch counts as delivered when at
// least one transport accepted it; it is lost only when every healthy
// transport exhausted its retries.
type Observer interface {
	BatchDelivered(records int)
	BatchLost(records int)
	TransportError()
}

// Dispatcher fans batches out to all configured transports. It implements
// the batcher's Sink.
type Dispatcher struct {
	transports []Transport
	compressor *compression.Compressor
	policy     RetryPolicy
	timeout    time.Duration
	obs        Observer
	diag       *logrus.Logger
	warnLimit  *rate.Limiter

	mu       sync.Mutex
	degraded map[string]string
}

// NewDispatcher assembles the dispatch layer. timeout bounds each individual
// send attempt.
func NewDispatcher(transports []Transport, compressor *compression.Compressor, policy RetryPolicy, timeout time.Duration, obs Observer, diag *logrus.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		transports: transports,
		compressor: compressor,
		policy:     policy,
		timeout:    timeout,
		obs:        obs,
		diag:       diag,
		warnLimit:  rate.NewLimiter(rate.Every(time.Second), 10),
		degraded:   make(map[string]string),
	}
}

// SendBatch serializes, optionally compresses, and fans the batch out. It
// returns when every transport has finished its own retry loop, so the
// batch buffer can be recycled by the caller.
func (d *Dispatcher) SendBatch(b *batcher.Batch) {
	raw := b.Serialize()
	p := &Payload{Raw: raw, Records: b.Len()}

	encoded, compressed, err := d.compressor.Maybe(raw)
	if err != nil {
		// Compression failure falls back to the uncompressed payload.
		if d.warnLimit.Allow() {
			d.diag.WithError(err).Warn("batch compression failed, sending raw")
		}
	} else if compressed {
		p.Encoded = encoded
		p.Compressed = true
	}

	targets := d.healthy()
	if len(targets) == 0 {
		d.obs.BatchLost(p.Records)
		return
	}

	var delivered int
	if len(targets) == 1 {
		if d.sendOne(targets[0], p) {
			delivered = 1
		}
	} else {
		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, t := range targets {
			wg.Add(1)
			go func(t Transport) {
				defer wg.Done()
				if d.sendOne(t, p) {
					mu.Lock()
					delivered++
					mu.Unlock()
				}
			}(t)
		}
		wg.Wait()
	}

	if delivered > 0 {
		d.obs.BatchDelivered(p.Records)
	} else {
		d.obs.BatchLost(p.Records)
	}
}

func (d *Dispatcher) sendOne(t Transport, p *Payload) bool {
	err := d.policy.Do(context.Background(), func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := t.Send(sendCtx, p); err != nil {
			d.obs.TransportError()
			return err
		}
		return nil
	})
	if err == nil {
		return true
	}
	if IsFatal(err) {
		d.markDegraded(t.Name(), err.Error())
	}
	if d.warnLimit.Allow() {
		d.diag.WithError(err).WithField("transport", t.Name()).Warn("batch dropped by transport")
	}
	return false
}

func (d *Dispatcher) healthy() []Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.degraded) == 0 {
		return d.transports
	}
	out := make([]Transport, 0, len(d.transports))
	for _, t := range d.transports {
		if _, bad := d.degraded[t.Name()]; !bad {
			out = append(out, t)
		}
	}
	return out
}

func (d *Dispatcher) markDegraded(name, reason string) {
	d.mu.Lock()
	if _, ok := d.degraded[name]; !ok {
		d.degraded[name] = reason
	}
	d.mu.Unlock()
}

// Degraded returns a copy of the degraded-transport map (name -> reason).
func (d *Dispatcher) Degraded() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.degraded))
	for k, v := range d.degraded {
		out[k] = v
	}
	return out
}

// Flush forwards to every transport, returning the first error seen.
func (d *Dispatcher) Flush() error {
	var first error
	for _, t := range d.transports {
		if err := t.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Shutdown stops every transport within the context deadline.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	var first error
	for _, t := range d.transports {
		if err := t.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
