package step

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/mdzesseis/fastqflow/internal/block"
)

// reportAccumulator is the shared, mutex-guarded state the planner-
// split collector and finaliser halves of a Report step communicate
// through (spec.md §4.4 "Report half-pair coupling"). Grounded on the
// teacher's metrics registry (one shared mutex-guarded struct fed by
// many worker goroutines, read once at the end).
type reportAccumulator struct {
	mu                  sync.Mutex
	moleculeCount       int64
	duplicateCountMode  bool
	seenHashes          map[uint64]int64
}

func newReportAccumulator(duplicateCountMode bool) *reportAccumulator {
	acc := &reportAccumulator{duplicateCountMode: duplicateCountMode}
	if duplicateCountMode {
		acc.seenHashes = make(map[uint64]int64)
	}
	return acc
}

func (a *reportAccumulator) observe(blk *block.Combined) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.moleculeCount += int64(blk.Len())
	if !a.duplicateCountMode || len(blk.Segments) == 0 {
		return
	}
	for _, read := range blk.Segments[0].Reads {
		h := xxhash.Sum64(read.Seq)
		a.seenHashes[h]++
	}
}

// Snapshot is the frozen view a Report's Finalize emits into the
// run-level report document (spec.md §6 "Report (output)").
type Snapshot struct {
	Name           string `json:"name"`
	MoleculeCount  int64  `json:"molecule_count"`
	DuplicateCount int64  `json:"duplicate_count,omitempty"`
}

func (a *reportAccumulator) snapshot(name string) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Snapshot{Name: name, MoleculeCount: a.moleculeCount}
	if a.duplicateCountMode {
		var dup int64
		for _, count := range a.seenHashes {
			if count > 1 {
				dup += count - 1
			}
		}
		s.DuplicateCount = dup
	}
	return s
}

// reportStep is the user-facing "Report" action before plan expansion
// splits it in two (spec.md §4.3 pass 4). It is never itself scheduled.
type reportStep struct {
	Base
	name               string
	duplicateCountMode bool
}

func newReportFactory(params map[string]interface{}) (Step, error) {
	name, err := paramString(params, "name")
	if err != nil {
		return nil, err
	}
	return &reportStep{
		name:               name,
		duplicateCountMode: paramBoolOr(params, "duplicate_count_per_read", false),
	}, nil
}

func (r *reportStep) Name() string { return "Report" }

func (r *reportStep) ValidateSegments(InputSpec) error { return nil }

// Apply/Finalize are never invoked on reportStep: Split replaces it in
// the plan before the scheduler runs. They exist only to satisfy Step.
func (r *reportStep) Apply(*block.Combined, InputSpec, uint64, DemultiplexInfo) (bool, error) {
	return true, nil
}

// Split implements ReportHalf.
func (r *reportStep) Split() (Step, Step) {
	acc := newReportAccumulator(r.duplicateCountMode)
	collector := &reportCollector{name: r.name, acc: acc}
	finalizer := &reportFinalizer{name: r.name, acc: acc}
	return collector, finalizer
}

// reportCollector is the parallel-safe half: it folds per-block
// statistics into the shared accumulator and otherwise passes blocks
// through unchanged.
type reportCollector struct {
	Base
	name string
	acc  *reportAccumulator
}

func (c *reportCollector) Name() string { return "Report/collect:" + c.name }

func (c *reportCollector) ValidateSegments(InputSpec) error { return nil }

func (c *reportCollector) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	c.acc.observe(blk)
	return true, nil
}

// ObservesFullStream implements FullStreamObserver.
func (c *reportCollector) ObservesFullStream() bool { return true }

// reportFinalizer is the serial half: it observes blocks in block_no
// order (no-op beyond pass-through, since the accumulator is already
// order-independent) and emits the final snapshot once the stream
// ends, guaranteeing deterministic output regardless of worker
// interleaving upstream (spec.md §4.4).
type reportFinalizer struct {
	Base
	name string
	acc  *reportAccumulator
}

func (f *reportFinalizer) Name() string { return "Report/finalize:" + f.name }

func (f *reportFinalizer) ValidateSegments(InputSpec) error { return nil }

func (f *reportFinalizer) NeedsSerial() bool { return true }

func (f *reportFinalizer) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	return true, nil
}

// ObservesFullStream implements FullStreamObserver.
func (f *reportFinalizer) ObservesFullStream() bool { return true }

func (f *reportFinalizer) Finalize(demux DemultiplexInfo) (interface{}, error) {
	return f.acc.snapshot(f.name), nil
}
