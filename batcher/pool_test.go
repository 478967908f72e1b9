package batcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/record"
)

func TestPoolReusesBatches(t *testing.T) {
	assert := assert.New(t)

	p := NewPool(2, 8, 256)
	assert.Equal(2, p.Idle())

	a := p.Get()
	b := p.Get()
	assert.Equal(0, p.Idle())

	t.Log("an exhausted pool allocates instead of blocking")
	c := p.Get()
	assert.NotNil(c)

	a.Append(record.New(record.LevelInfo, "s", "m"), 16)
	p.Put(a)
	assert.Equal(1, p.Idle())

	t.Log("returned batches come back empty")
	reused := p.Get()
	assert.Same(a, reused)
	assert.Equal(0, reused.Len())
	assert.Equal(0, reused.Size())

	p.Put(b)
	p.Put(c)
	p.Put(reused)
	t.Log("overflow beyond pool capacity is discarded, not blocked on")
	assert.Equal(2, p.Idle())
}
