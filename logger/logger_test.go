package logger

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/config"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/metrics"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/record"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/transport"
)

// captureBuffer is a goroutine-safe buffer backing a console transport.
type captureBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *captureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *captureBuffer) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := strings.TrimSpace(c.buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func testConfig() config.Config {
	cfg := config.Defaults(config.Testing)
	cfg.Service = "s"
	cfg.Level = "debug"
	cfg.Compression.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Retry.Attempts = 1
	cfg.Retry.DelayMillis = 1
	cfg.TimeoutMillis = 2000
	cfg.ShutdownTimeoutSecs = 1
	return cfg
}

func startCapture(t *testing.T, cfg config.Config) (*UltraLogger, *captureBuffer) {
	t.Helper()
	buf := &captureBuffer{}
	l, err := NewWithTransports(cfg, transport.NewConsole("capture", buf))
	require.NoError(t, err)
	require.NoError(t, l.Start())
	return l, buf
}

func decodeAll(t *testing.T, lines []string) []*record.Record {
	t.Helper()
	out := make([]*record.Record, 0, len(lines))
	for _, line := range lines {
		r, err := record.DecodeLine([]byte(line))
		require.NoError(t, err, "line %q", line)
		out = append(out, r)
	}
	return out
}

func TestColdStartSubmitAndFlush(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.BatchSize = 4
	cfg.FlushIntervalMicros = 1000
	l, buf := startCapture(t, cfg)

	for _, m := range []string{"a", "b", "c", "d"} {
		require.NoError(t, l.Info(m))
	}
	require.NoError(t, l.Flush())
	require.NoError(t, l.Shutdown(context.Background()))

	lines := buf.lines()
	require.Len(t, lines, 4)
	recs := decodeAll(t, lines)
	for i, want := range []string{"a", "b", "c", "d"} {
		assert.Equal(uint64(i), recs[i].Sequence)
		assert.Equal(want, recs[i].Message)
		assert.Equal("s", recs[i].Service)
		assert.Equal(record.LevelInfo, recs[i].Level)
	}

	t.Log("exactly one batch was emitted")
	assert.Equal(uint64(1), l.Stats().BatchesProcessed)
}

func TestTimeBasedFlush(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.BatchSize = 1024
	cfg.FlushIntervalMicros = 10000
	l, buf := startCapture(t, cfg)

	start := time.Now()
	for _, m := range []string{"x", "y", "z"} {
		require.NoError(t, l.Info(m))
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(buf.lines()) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	elapsed := time.Since(start)

	require.Len(t, buf.lines(), 3)
	assert.Less(elapsed, 500*time.Millisecond, "time trigger should fire promptly")
	assert.Equal(uint64(1), l.Stats().BatchesProcessed)

	require.NoError(t, l.Shutdown(context.Background()))
}

// blockingTransport parks every send until released.
type blockingTransport struct {
	release chan struct{}
	sends   int
	mu      sync.Mutex
}

func (b *blockingTransport) Name() string { return "blocking" }

func (b *blockingTransport) Send(ctx context.Context, p *transport.Payload) error {
	b.mu.Lock()
	b.sends++
	b.mu.Unlock()
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingTransport) Flush() error                   { return nil }
func (b *blockingTransport) Shutdown(context.Context) error { return nil }

func TestOverloadShedsAtSubmission(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.RingBufferSize = 1024
	cfg.BatchSize = 64
	cfg.FlushIntervalMicros = 100
	slow := &blockingTransport{release: make(chan struct{})}
	l, err := NewWithTransports(cfg, slow)
	require.NoError(t, err)
	require.NoError(t, l.Start())

	const total = 100000
	var worst time.Duration
	for i := 0; i < total; i++ {
		start := time.Now()
		_ = l.Info("overload")
		if d := time.Since(start); d > worst {
			worst = d
		}
	}

	snap := l.Stats()
	assert.Equal(uint64(total), snap.RecordsSubmitted)

	t.Log("drops are counted, not blocked on")
	assert.GreaterOrEqual(snap.RecordsDropped, uint64(total-1024-2*64))
	assert.GreaterOrEqual(snap.RecordsDropped, snap.BufferOverflow)
	assert.Greater(snap.BufferOverflow, uint64(0))
	assert.Less(worst, 50*time.Millisecond, "no submission may block on the transport stall")

	t.Log("submission latency is independent of the stalled transport")
	if p99 := snap.LatencyP99Nanos; p99 > 0 {
		assert.Less(p99, uint64(5*time.Millisecond))
	}

	close(slow.release)
	require.NoError(t, l.Shutdown(context.Background()))

	t.Log("the accounting invariant holds after shutdown")
	final := l.Stats()
	assert.Equal(final.RecordsSubmitted, final.RecordsLogged+final.RecordsDropped)
}

func TestConcurrentProducersPreserveOrder(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.RingBufferSize = 65536
	cfg.BatchSize = 256
	l, buf := startCapture(t, cfg)

	const producers = 8
	const perProducer = 2000
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := int64(0); i < perProducer; i++ {
				for {
					err := l.Info("m",
						record.Int64("producer", id),
						record.Int64("counter", i),
					)
					if err == nil {
						break
					}
					time.Sleep(time.Microsecond)
				}
			}
		}(int64(p))
	}
	wg.Wait()
	require.NoError(t, l.Flush())
	require.NoError(t, l.Shutdown(context.Background()))

	recs := decodeAll(t, buf.lines())
	require.Len(t, recs, producers*perProducer)

	t.Log("global order follows sequence numbers")
	for i := 1; i < len(recs); i++ {
		assert.Greater(recs[i].Sequence, recs[i-1].Sequence)
	}

	t.Log("filtered to one producer, counters are strictly increasing")
	last := map[int64]int64{}
	for _, r := range recs {
		var id, counter int64
		for _, f := range r.Fields {
			switch f.Key {
			case "producer":
				id = f.Value.Int64Val()
			case "counter":
				counter = f.Value.Int64Val()
			}
		}
		if prev, seen := last[id]; seen {
			assert.Equal(prev+1, counter, "producer %d out of order", id)
		} else {
			assert.Equal(int64(0), counter)
		}
		last[id] = counter
	}
}

func TestShutdownDrainBound(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.RingBufferSize = 16384
	cfg.BatchSize = 64
	l, buf := startCapture(t, cfg)

	const total = 10000
	accepted := uint64(0)
	for i := 0; i < total; i++ {
		if l.Info("drain me") == nil {
			accepted++
		}
	}
	assert.Equal(uint64(total), accepted, "a 16384-slot ring admits every record")

	start := time.Now()
	require.NoError(t, l.Shutdown(context.Background()))
	elapsed := time.Since(start)

	snap := l.Stats()
	assert.Equal(uint64(total), snap.RecordsSubmitted)
	assert.Equal(uint64(total), snap.RecordsLogged+snap.RecordsDropped)
	assert.Equal(uint64(len(buf.lines())), snap.RecordsLogged)
	assert.Less(elapsed, 2*time.Second, "shutdown must respect its deadline")
}

func TestLevelFilterRejectsWithoutEnqueue(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.Level = "warn"
	l, buf := startCapture(t, cfg)

	require.NoError(t, l.Debug("nope"))
	require.NoError(t, l.Info("nope"))
	require.NoError(t, l.Warn("yes"))
	require.NoError(t, l.MarketData("always"))
	require.NoError(t, l.Flush())
	require.NoError(t, l.Shutdown(context.Background()))

	recs := decodeAll(t, buf.lines())
	require.Len(t, recs, 2)
	assert.Equal("yes", recs[0].Message)
	assert.Equal("always", recs[1].Message)

	t.Log("filtered submissions are not counted as submitted")
	assert.Equal(uint64(2), l.Stats().RecordsSubmitted)
}

func TestLifecycleStates(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	buf := &captureBuffer{}
	l, err := NewWithTransports(cfg, transport.NewConsole("capture", buf))
	require.NoError(t, err)

	assert.Equal(Stopped, l.State())
	assert.ErrorIs(l.Flush(), ErrNotRunning)

	require.NoError(t, l.Start())
	assert.Equal(Healthy, l.State())
	assert.ErrorIs(l.Start(), ErrAlreadyStarted)

	require.NoError(t, l.Shutdown(context.Background()))
	assert.Equal(Stopped, l.State())
	assert.ErrorIs(l.Shutdown(context.Background()), ErrNotRunning)

	t.Log("submissions after shutdown fail fast and count as dropped")
	err = l.Info("too late")
	assert.ErrorIs(err, ErrNotRunning)
	snap := l.Stats()
	assert.Equal(snap.RecordsSubmitted, snap.RecordsLogged+snap.RecordsDropped)
}

func TestQueueFullReturnsDropIndication(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.RingBufferSize = 8
	cfg.BatchSize = 1024
	cfg.FlushIntervalMicros = 1
	slow := &blockingTransport{release: make(chan struct{})}
	l, err := NewWithTransports(cfg, slow)
	require.NoError(t, err)
	require.NoError(t, l.Start())

	var sawFull bool
	for i := 0; i < 64; i++ {
		if err := l.Info("fill"); err != nil {
			assert.ErrorIs(err, ErrQueueFull)
			sawFull = true
			break
		}
	}
	assert.True(sawFull, "an 8-slot ring must report full within 64 submissions")

	close(slow.release)
	require.NoError(t, l.Shutdown(context.Background()))
}

func TestHealthCheckReportsDegradation(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	l, _ := startCapture(t, cfg)
	h := l.HealthCheck()
	assert.Equal("healthy", h.State)
	assert.Empty(h.Degraded)
	require.NoError(t, l.Shutdown(context.Background()))
	assert.Equal("stopped", l.HealthCheck().State)
}

func TestGlobalAccessor(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(Global())
	cfg := testConfig()
	l, _ := startCapture(t, cfg)
	SetGlobal(l)
	assert.Same(l, Global())
	SetGlobal(nil)
	require.NoError(t, l.Shutdown(context.Background()))
}

func TestMetricsPipelineWiring(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.FlushIntervalMillis = 10
	cfg.Metrics.MaxEntries = 100
	buf := &captureBuffer{}
	l, err := NewWithTransports(cfg, transport.NewConsole("capture", buf))
	require.NoError(t, err)

	snaps := make(chan metrics.Snapshot, 16)
	l.SetMetricsExport(func(s metrics.Snapshot) {
		select {
		case snaps <- s:
		default:
		}
	})
	require.NoError(t, l.Start())
	require.NotNil(t, l.Metrics())

	l.Metrics().RecordCounter("orders_total", 3, metrics.Label{Key: "venue", Value: "cme"})
	l.Metrics().RecordTimer("submit_latency", 5*time.Millisecond)

	select {
	case s := <-snaps:
		assert.NotEmpty(s.Metrics)
	case <-time.After(2 * time.Second):
		t.Fatal("metrics flush never exported")
	}
	require.NoError(t, l.Shutdown(context.Background()))
}

func TestStatsLevelCounts(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	l, _ := startCapture(t, cfg)
	require.NoError(t, l.Info("a"))
	require.NoError(t, l.Info("b"))
	require.NoError(t, l.Error("c"))
	require.NoError(t, l.TradeEvent("d"))
	require.NoError(t, l.Shutdown(context.Background()))

	counts := l.Stats().LevelCounts
	assert.Equal(uint64(2), counts["INFO"])
	assert.Equal(uint64(1), counts["ERROR"])
	assert.Equal(uint64(1), counts["TRADE"])
}
