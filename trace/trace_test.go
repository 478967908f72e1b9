package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/record"
)

func TestNewContext(t *testing.T) {
	assert := assert.New(t)

	ctx := New()
	assert.False(ctx.TraceID.IsZero())
	assert.False(ctx.SpanID.IsZero())
	assert.True(ctx.Parent.IsZero())

	t.Log("contexts are unique")
	other := New()
	assert.NotEqual(ctx.TraceID, other.TraceID)
	assert.NotEqual(ctx.SpanID, other.SpanID)
}

func TestChildKeepsTrace(t *testing.T) {
	assert := assert.New(t)

	root := New()
	child := root.Child()
	assert.Equal(root.TraceID, child.TraceID)
	assert.NotEqual(root.SpanID, child.SpanID)
	assert.Equal(root.SpanID, child.Parent)
}

func TestAnnotateRecord(t *testing.T) {
	assert := assert.New(t)

	ctx := New()
	r := ctx.Annotate(record.New(record.LevelInfo, "svc", "m"))
	assert.Equal(ctx.TraceID, r.TraceID)
	assert.Equal(ctx.SpanID, r.SpanID)

	t.Log("ids survive the wire format")
	decoded, err := record.DecodeLine(record.AppendJSON(nil, r))
	assert.NoError(err)
	assert.Equal(ctx.TraceID, decoded.TraceID)
	assert.Equal(ctx.SpanID, decoded.SpanID)
}
