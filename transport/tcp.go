package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"
)

// frame prepends the 4-byte big-endian length header to the payload.
func frame(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// ReadFrame reads one length-prefixed frame from a connection. Consumers of
// the tcp transport use it to unframe batches.
func ReadFrame(conn net.Conn) ([]byte, error) {
	var hdr [4]byte
	if _, err := readFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	buf := make([]byte, n)
	if _, err := readFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// TCPTransport sends length-prefixed batch frames over a persistent
// connection, redialing after an error. Each Send is bounded by the context
// deadline via the socket write deadline.
type TCPTransport struct {
	addr        string
	dialTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewTCP builds the transport; the connection is dialed lazily so that a
// temporarily unreachable collector does not fail start.
func NewTCP(addr string, dialTimeout time.Duration) (*TCPTransport, error) {
	if addr == "" {
		return nil, fmt.Errorf("tcp transport: addr is required")
	}
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &TCPTransport{addr: addr, dialTimeout: dialTimeout}, nil
}

func (t *TCPTransport) Name() string { return "tcp" }

func (t *TCPTransport) Send(ctx context.Context, p *Payload) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		d := net.Dialer{Timeout: t.dialTimeout}
		conn, err := d.DialContext(ctx, "tcp", t.addr)
		if err != nil {
			return transientErr("tcp", err)
		}
		t.conn = conn
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}
	if _, err := t.conn.Write(frame(p.Bytes())); err != nil {
		// Drop the connection; the next attempt redials.
		t.conn.Close()
		t.conn = nil
		return transientErr("tcp", err)
	}
	return nil
}

func (t *TCPTransport) Flush() error { return nil }

func (t *TCPTransport) Shutdown(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
