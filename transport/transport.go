// Package transport delivers serialized batches to their destinations. A
// dispatcher fans each batch out to every configured transport; each
// transport owns its own retry loop, and a failing transport never blocks
// the others.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Payload is one serialized batch on its way out. Raw always holds the
// newline-delimited JSON; Encoded holds the compressed form when compression
// was applied. Text destinations write Raw; binary destinations write
// Bytes(). Transports borrow the payload for the duration of a send.
type Payload struct {
	Raw        []byte
	Encoded    []byte
	Compressed bool
	Records    int
}

// Bytes returns the form a binary-safe destination should transmit.
func (p *Payload) Bytes() []byte {
	if p.Compressed {
		return p.Encoded
	}
	return p.Raw
}

// Transport is a destination for batches. Send is synchronous and bounded by
// the context deadline; Flush forces buffered output down; Shutdown releases
// resources.
type Transport interface {
	Name() string
	Send(ctx context.Context, p *Payload) error
	Flush() error
	Shutdown(ctx context.Context) error
}

// Error wraps a transport failure with its retry classification. Fatal
// errors (bad endpoint, authentication) move the transport to degraded and
// are never retried.
type Error struct {
	Transport string
	Fatal     bool
	Err       error
}

func (e *Error) Error() string {
	kind := "transient"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("transport %s: %s: %v", e.Transport, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a fatal transport classification.
func IsFatal(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Fatal
}

func transientErr(name string, err error) error {
	return &Error{Transport: name, Err: err}
}

func fatalErr(name string, err error) error {
	return &Error{Transport: name, Fatal: true, Err: err}
}
