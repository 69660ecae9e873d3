package scheduler

import "github.com/mdzesseis/fastqflow/internal/block"

// Source is the per-segment producer boundary (spec.md §6 "Pipeline
// data contract (input boundary)"). Concrete FASTQ/FASTA/BAM parsing
// is explicitly out of scope (spec.md §1); a Source is whatever
// already-built collaborator hands the scheduler correctly-sized,
// correctly-terminated per-segment blocks.
type Source interface {
	// Next returns the next block of this segment's reads. The final
	// block of the stream sets Segment.IsFinal; Next returns io.EOF on
	// the call after the final block, never before it.
	Next() (block.Segment, error)
}
