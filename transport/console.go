package transport

import (
	"context"
	"io"
	"os"
	"sync"
)

// ConsoleTransport writes newline-delimited JSON to a writer, one atomic
// write per batch. It backs the stdout, stderr, and console transport types.
type ConsoleTransport struct {
	name string
	mu   sync.Mutex
	w    io.Writer
}

// NewStdout returns a transport writing to standard output.
func NewStdout() *ConsoleTransport {
	return &ConsoleTransport{name: "stdout", w: os.Stdout}
}

// NewStderr returns a transport writing to standard error.
func NewStderr() *ConsoleTransport {
	return &ConsoleTransport{name: "stderr", w: os.Stderr}
}

// NewConsole wraps an arbitrary writer; tests use this to capture output.
func NewConsole(name string, w io.Writer) *ConsoleTransport {
	return &ConsoleTransport{name: name, w: w}
}

func (c *ConsoleTransport) Name() string { return c.name }

// Send writes the raw JSON lines in a single Write call so concurrent
// writers to the same fd never interleave mid-batch.
func (c *ConsoleTransport) Send(_ context.Context, p *Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(p.Raw); err != nil {
		return transientErr(c.name, err)
	}
	return nil
}

func (c *ConsoleTransport) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.w.(interface{ Sync() error }); ok {
		// Sync on a terminal fd returns ENOTTY; that is not a failure.
		_ = s.Sync()
	}
	return nil
}

func (c *ConsoleTransport) Shutdown(context.Context) error { return c.Flush() }
