package scheduler

import (
	"container/heap"
	"context"

	"github.com/mdzesseis/fastqflow/internal/block"
)

// blockHeap is a min-heap of combined blocks keyed by block_no, the
// reorder buffer spec.md §4.4 describes preceding a serial stage or
// the sink: "a serial stage may be fed by a reorder buffer that
// precedes it", "the sink maintains next_expected = 1 and a min-heap
// keyed by block_no". Grounded on the teacher's
// internal/dispatcher/stats_collector.go out-of-order-result
// aggregation, generalized from "collect all then sort" to "stream in
// ascending order as items arrive".
type blockHeap []*block.Combined

func (h blockHeap) Len() int            { return len(h) }
func (h blockHeap) Less(i, j int) bool  { return h[i].BlockNo < h[j].BlockNo }
func (h blockHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *blockHeap) Push(x interface{}) { *h = append(*h, x.(*block.Combined)) }
func (h *blockHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// reorderRelay reads blocks off in, possibly out of order, and writes
// them to out in strictly ascending, contiguous block_no order,
// starting at 1. It closes out once in is closed and the heap has
// been fully drained.
func reorderRelay(ctx context.Context, in <-chan *block.Combined, out chan<- *block.Combined) {
	defer close(out)

	h := &blockHeap{}
	heap.Init(h)
	next := uint64(1)

	emitReady := func() bool {
		for h.Len() > 0 && (*h)[0].BlockNo == next {
			blk := heap.Pop(h).(*block.Combined)
			select {
			case out <- blk:
			case <-ctx.Done():
				return false
			}
			next++
		}
		return true
	}

	for {
		select {
		case blk, ok := <-in:
			if !ok {
				if !emitReady() {
					return
				}
				return
			}
			heap.Push(h, blk)
			if !emitReady() {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
