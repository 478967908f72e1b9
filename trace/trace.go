// Package trace provides correlation ids for records flowing through the
// engine: a 128-bit trace id shared by a request and 64-bit span ids for its
// stages.
package trace

import (
	"github.com/google/uuid"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/record"
)

// Context carries the correlation ids attached to records.
type Context struct {
	TraceID record.TraceID
	SpanID  record.SpanID
	Parent  record.SpanID
}

// New starts a fresh trace with a root span.
func New() Context {
	var ctx Context
	id := uuid.New()
	copy(ctx.TraceID[:], id[:])
	ctx.SpanID = newSpanID()
	return ctx
}

// Child derives a new span under the same trace.
func (c Context) Child() Context {
	return Context{
		TraceID: c.TraceID,
		SpanID:  newSpanID(),
		Parent:  c.SpanID,
	}
}

func newSpanID() record.SpanID {
	var s record.SpanID
	id := uuid.New()
	copy(s[:], id[:8])
	return s
}

// Annotate stamps the context's ids onto a record.
func (c Context) Annotate(r *record.Record) *record.Record {
	return r.WithTrace(c.TraceID, c.SpanID)
}
