package scheduler

import "github.com/mdzesseis/fastqflow/internal/block"

// Sink is the scheduler's output boundary (spec.md §4.5): it receives
// combined blocks strictly in block_no order and owns whatever output
// files/buckets it opens. internal/sink implements this without the
// scheduler importing it, avoiding an import cycle.
type Sink interface {
	Write(blk *block.Combined) error
	Close() error
}
