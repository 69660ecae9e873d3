// Package batching implements the fixed-size record counter the sink
// uses to rotate output files every chunksize records (spec.md §4.5,
// §6: "chunked output ... rotates output files after every chunksize
// records per bucket per segment"). Grounded on the teacher's
// pkg/batching/adaptive_batcher.go, simplified from adaptive
// latency-driven resizing to a single fixed threshold, since spec.md
// defines chunking as a fixed, user-configured size rather than one
// the engine adapts at runtime.
package batching

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ChunkBatcher counts records written to one (bucket, segment) output
// stream and reports when a rotation boundary is crossed.
type ChunkBatcher struct {
	chunkSize int
	logger    *logrus.Logger

	mu           sync.Mutex
	writtenTotal int64
	writtenChunk int
	chunkIndex   int
}

// NewChunkBatcher returns a batcher that signals a rotation every
// chunkSize records. chunkSize<=0 disables rotation (unbounded single
// file), matching spec.md §6 "chunksize=0" meaning no chunking.
func NewChunkBatcher(chunkSize int, logger *logrus.Logger) *ChunkBatcher {
	return &ChunkBatcher{chunkSize: chunkSize, logger: logger}
}

// Record accounts for n newly written records and reports whether the
// caller should rotate to a new output file before writing any more.
func (c *ChunkBatcher) Record(n int) (rotate bool) {
	if c.chunkSize <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writtenTotal += int64(n)
	c.writtenChunk += n
	if c.writtenChunk > c.chunkSize {
		c.chunkIndex++
		c.writtenChunk = n
		if c.logger != nil {
			c.logger.WithFields(logrus.Fields{
				"chunk_index":   c.chunkIndex,
				"chunk_size":    c.chunkSize,
				"written_total": c.writtenTotal,
			}).Debug("output chunk rotated")
		}
		return true
	}
	return false
}

// ChunkIndex returns the zero-based index of the chunk currently being
// written, used to name rotated output files.
func (c *ChunkBatcher) ChunkIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunkIndex
}

// Total returns the total number of records recorded so far.
func (c *ChunkBatcher) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writtenTotal
}
