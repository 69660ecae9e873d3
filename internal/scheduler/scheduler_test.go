package scheduler

import (
	"context"
	"io"
	"testing"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/config"
	"github.com/mdzesseis/fastqflow/internal/planner"
	"github.com/mdzesseis/fastqflow/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeSource emits n single-read blocks, the last one marked final,
// matching the Source contract's "io.EOF only after the final block".
type fakeSource struct {
	name string
	n    int
	i    int
}

func (f *fakeSource) Next() (block.Segment, error) {
	if f.i >= f.n {
		return block.Segment{}, io.EOF
	}
	f.i++
	read := block.Read{Name: []byte("read"), Seq: []byte("ACGT"), Qual: []byte("IIII")}
	return block.Segment{Name: f.name, Reads: []block.Read{read}, IsFinal: f.i == f.n}, nil
}

// fakeSink records every block it receives, in the order it receives
// them, so tests can assert block_no arrives strictly increasing.
type fakeSink struct {
	blockNos []uint64
}

func (f *fakeSink) Write(blk *block.Combined) error {
	f.blockNos = append(f.blockNos, blk.BlockNo)
	return nil
}

func (f *fakeSink) Close() error { return nil }

func noOpPlan(t *testing.T, segments ...string) *planner.Plan {
	t.Helper()
	cfg := &config.Config{Input: config.InputConfig{}}
	for _, name := range segments {
		cfg.Input.Segments = append(cfg.Input.Segments, config.SegmentInput{Name: name, Files: []string{"unused"}})
	}
	plan, err := planner.Build(cfg, step.NewRegistry())
	require.NoError(t, err)
	return plan
}

func TestRunOrdersBlocksInSequence(t *testing.T) {
	plan := noOpPlan(t, "r1", "r2")
	sources := map[string]Source{
		"r1": &fakeSource{name: "r1", n: 5},
		"r2": &fakeSource{name: "r2", n: 5},
	}
	sink := &fakeSink{}

	result, err := Run(context.Background(), plan, Config{ThreadCount: 4, QueueCapacity: 4}, nil, sources, sink)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, sink.blockNos, 5)
	for i, no := range sink.blockNos {
		assert.Equal(t, uint64(i+1), no)
	}
}

func TestRunMismatchedSegmentLengthsIsRunEndingError(t *testing.T) {
	plan := noOpPlan(t, "r1", "r2")
	sources := map[string]Source{
		"r1": &fakeSource{name: "r1", n: 5},
		"r2": &fakeSource{name: "r2", n: 3},
	}
	sink := &fakeSink{}

	_, err := Run(context.Background(), plan, Config{ThreadCount: 2, QueueCapacity: 4}, nil, sources, sink)
	assert.Error(t, err)
}

func TestRunMissingSourceIsConfigError(t *testing.T) {
	plan := noOpPlan(t, "r1", "r2")
	sources := map[string]Source{"r1": &fakeSource{name: "r1", n: 1}}
	sink := &fakeSink{}

	_, err := Run(context.Background(), plan, Config{}, nil, sources, sink)
	assert.Error(t, err)
}

// TestRunLeavesNoGoroutines verifies the producer/combiner/stage/sink
// goroutine chain fully unwinds after Run returns, the same property
// the teacher's tests/goroutine_leak_test.go checks for its
// dispatcher/monitor chain.
func TestRunLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	plan := noOpPlan(t, "r1")
	sources := map[string]Source{"r1": &fakeSource{name: "r1", n: 50}}
	sink := &fakeSink{}

	_, err := Run(context.Background(), plan, Config{ThreadCount: 4, QueueCapacity: 2}, nil, sources, sink)
	require.NoError(t, err)
}
