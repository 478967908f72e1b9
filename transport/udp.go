package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// maxUDPPayload is the largest batch payload, before the 4-byte length
// header, that Send accepts. Larger batches are refused rather than silently
// truncated.
const maxUDPPayload = 64*1024 - 8 - 4

// UDPTransport sends each batch as one length-prefixed datagram,
// fire-and-forget: no acknowledgement is awaited. A failed write is returned
// as a transient error, so the dispatcher's retry policy applies to it.
type UDPTransport struct {
	addr string

	mu   sync.Mutex
	conn net.Conn
}

// NewUDP builds the transport. The socket is "connected" on first send so
// resolution failures surface as transient errors, not construction errors.
func NewUDP(addr string) (*UDPTransport, error) {
	if addr == "" {
		return nil, fmt.Errorf("udp transport: addr is required")
	}
	return &UDPTransport{addr: addr}, nil
}

func (u *UDPTransport) Name() string { return "udp" }

func (u *UDPTransport) Send(_ context.Context, p *Payload) error {
	data := p.Bytes()
	if len(data) > maxUDPPayload {
		return transientErr("udp", fmt.Errorf("batch of %d bytes exceeds datagram limit", len(data)))
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		conn, err := net.Dial("udp", u.addr)
		if err != nil {
			return transientErr("udp", err)
		}
		u.conn = conn
	}
	if _, err := u.conn.Write(frame(data)); err != nil {
		u.conn.Close()
		u.conn = nil
		return transientErr("udp", err)
	}
	return nil
}

func (u *UDPTransport) Flush() error { return nil }

func (u *UDPTransport) Shutdown(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}
