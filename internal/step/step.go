// Package step defines the polymorphic step contract (spec.md §4.2)
// and the concrete step implementations the planner assembles into an
// executable plan. Grounded on the teacher's pluggable types.Sink
// interface plus its constructor-per-config-type dispatch
// (internal/sinks/*_sink.go), generalized from "one output
// destination" to "one pipeline transformation", registered the same
// way: a factory keyed by the config's action string.
package step

import (
	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/tagvalue"
)

// InputSpec is the read-only view of declared segments a step resolves
// names against during validation (spec.md §4.2 validate_segments).
type InputSpec struct {
	SegmentNames []string
}

// SegmentIndex resolves a segment name to its stable integer index, or
// -1 if unknown.
func (s InputSpec) SegmentIndex(name string) int {
	for i, n := range s.SegmentNames {
		if n == name {
			return i
		}
	}
	return -1
}

// OutputSpec is the read-only view of the configured output sinks a
// step may cross-validate against (spec.md §4.2 validate_others), e.g.
// a chunked-output check against a step that writes to a named pipe.
type OutputSpec struct {
	Stdout    bool
	ChunkSize int
}

// TagMeta is the planner's compile-time view of one tag (spec.md §3
// "Tag metadata"): who produced it, its value type, and whether a
// downstream consumer still needs Location detail retained.
type TagMeta struct {
	ProducerIndex    int
	Type             tagvalue.Type
	RequiresLocation bool
}

// TagUse is one (name, accepted-types) pair a step's UsesTags reports.
type TagUse struct {
	Name     string
	Accepted map[tagvalue.Type]bool
}

// DemultiplexBuckets is the bucket-name -> index mapping a Demultiplex
// step publishes from Init, consumed by the planner and the sink.
type DemultiplexBuckets struct {
	Names []string
}

// IndexOf returns the bucket index for name, or -1 if unknown.
func (b *DemultiplexBuckets) IndexOf(name string) int {
	for i, n := range b.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// InitContext carries the resolved plan state a step's Init needs:
// segment names and any named barcode sets from config (spec.md §6
// "barcodes — named mappings from barcode bytes to bucket name").
type InitContext struct {
	Input    InputSpec
	Barcodes map[string]map[string]string // set name -> barcode string -> bucket name
}

// DemultiplexInfo is passed to Apply/Finalize so a non-demultiplex step
// can still read which bucket a demultiplex step assigned upstream,
// without importing the sink package.
type DemultiplexInfo struct {
	Buckets *DemultiplexBuckets
}

// Step is the polymorphic contract every pipeline transformation
// implements (spec.md §4.2).
type Step interface {
	// Name identifies the step for logging, error messages, and the
	// plan's per-step timing records.
	Name() string

	// ValidateSegments resolves any segment names the step references
	// against input, failing with an InvalidSegment-kind error.
	ValidateSegments(input InputSpec) error

	// ValidateOthers performs cross-step checks with full plan
	// visibility (spec.md §4.3 pass 3).
	ValidateOthers(input InputSpec, output OutputSpec, allSteps []Step, selfIndex int) error

	// DeclaresTag reports the single tag this step produces, if any.
	DeclaresTag() (name string, typ tagvalue.Type, ok bool)

	// UsesTags reports the tags this step reads and the value types it
	// accepts for each, validated against tagsAvailable by the planner.
	UsesTags(tagsAvailable map[string]TagMeta) ([]TagUse, error)

	// RemovesTag reports a single tag this step drops, if any.
	RemovesTag() (name string, ok bool)

	// RemovesAllTags reports whether this step clears every tag.
	RemovesAllTags() bool

	// NeedsSerial reports whether the scheduler must run this step
	// with exactly one worker in block_no order (spec.md §4.4).
	NeedsSerial() bool

	// TransmitsPrematureTermination reports whether a downstream
	// "enough" signal through this step should close its own upstream
	// inbox (spec.md §4.4). The planner may override this value when
	// expanding the plan (see planner.forceNoTransmit).
	TransmitsPrematureTermination() bool

	// Init performs one-shot setup; returns non-nil buckets only for a
	// demultiplex step.
	Init(ctx InitContext) (*DemultiplexBuckets, error)

	// Apply transforms one combined block. cont=false requests that the
	// scheduler stop feeding this step further blocks (spec.md §4.4).
	Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (cont bool, err error)

	// Finalize runs once after the stream ends, in plan order,
	// returning an optional report fragment.
	Finalize(demux DemultiplexInfo) (report interface{}, err error)
}

// Base provides no-op defaults for the less commonly overridden
// methods so concrete steps only implement what they need, the same
// embedding pattern the teacher's simpler Sink implementations use
// (e.g. local_file_sink.go leaving TLS-related hooks as no-ops).
type Base struct{}

func (Base) DeclaresTag() (string, tagvalue.Type, bool)                   { return "", tagvalue.TypeMissing, false }
func (Base) UsesTags(map[string]TagMeta) ([]TagUse, error)                { return nil, nil }
func (Base) RemovesTag() (string, bool)                                   { return "", false }
func (Base) RemovesAllTags() bool                                        { return false }
func (Base) NeedsSerial() bool                                           { return false }
func (Base) TransmitsPrematureTermination() bool                         { return true }
func (Base) Init(InitContext) (*DemultiplexBuckets, error)                { return nil, nil }
func (Base) Finalize(DemultiplexInfo) (interface{}, error)                { return nil, nil }
func (Base) ValidateOthers(InputSpec, OutputSpec, []Step, int) error       { return nil }
