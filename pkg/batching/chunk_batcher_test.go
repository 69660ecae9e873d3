package batching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkBatcherRotatesAtBoundary(t *testing.T) {
	b := NewChunkBatcher(10, nil)
	assert.False(t, b.Record(5))
	assert.False(t, b.Record(5))
	assert.True(t, b.Record(1))
	assert.Equal(t, 1, b.ChunkIndex())
	assert.Equal(t, int64(11), b.Total())
}

func TestChunkBatcherDisabled(t *testing.T) {
	b := NewChunkBatcher(0, nil)
	assert.False(t, b.Record(1_000_000))
	assert.Equal(t, 0, b.ChunkIndex())
}
