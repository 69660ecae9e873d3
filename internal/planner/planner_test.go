package planner

import (
	"testing"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/config"
	"github.com/mdzesseis/fastqflow/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig(steps ...config.StepConfig) *config.Config {
	disabled := false
	return &config.Config{
		Input:   config.InputConfig{Segments: []config.SegmentInput{{Name: "read1", Files: []string{"a.fq"}}}},
		Output:  config.OutputConfig{Format: config.FormatFASTQ, Compression: config.CompressionNone},
		Options: config.OptionsConfig{ThreadCount: 1, MaxInFlightBlocks: 1, SpotCheckPairing: &disabled},
		Steps:   steps,
	}
}

func TestBuildRejectsUnknownSegment(t *testing.T) {
	cfg := baseConfig(config.StepConfig{Action: "DedupByHash", Params: map[string]interface{}{"segment": "nope"}})
	_, err := Build(cfg, step.NewRegistry())
	require.Error(t, err)
}

func TestBuildExpandsFilterEmpty(t *testing.T) {
	cfg := baseConfig(config.StepConfig{Action: "FilterEmpty"})
	plan, err := Build(cfg, step.NewRegistry())
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "ComputeLength", plan.Steps[0].Name())
	assert.Equal(t, "FilterByNumericTag", plan.Steps[1].Name())
}

func TestBuildSplitsReport(t *testing.T) {
	cfg := baseConfig(config.StepConfig{Action: "Report", Params: map[string]interface{}{"name": "r1"}})
	plan, err := Build(cfg, step.NewRegistry())
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Contains(t, plan.Steps[0].Name(), "Report/collect")
	assert.Contains(t, plan.Steps[1].Name(), "Report/finalize")
}

// TestBuildResolvesSugarSegmentBeforeExpansion pins the fix for a
// defect where a Sugar step's substitutes carried the outer step's
// configured segment string but never had ValidateSegments run on
// them, so they always computed against segment index 0 regardless of
// what was configured.
func TestBuildResolvesSugarSegmentBeforeExpansion(t *testing.T) {
	disabled := false
	cfg := &config.Config{
		Input: config.InputConfig{Segments: []config.SegmentInput{
			{Name: "r1", Files: []string{"a.fq"}},
			{Name: "r2", Files: []string{"b.fq"}},
		}},
		Output:  config.OutputConfig{Format: config.FormatFASTQ, Compression: config.CompressionNone},
		Options: config.OptionsConfig{ThreadCount: 1, MaxInFlightBlocks: 1, SpotCheckPairing: &disabled},
		Steps:   []config.StepConfig{{Action: "CalcGCContent", Params: map[string]interface{}{"segment": "r2"}}},
	}
	plan, err := Build(cfg, step.NewRegistry())
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)

	blk := &block.Combined{
		Segments: []block.Segment{
			{Name: "r1", Reads: []block.Read{{Seq: []byte("AATT")}}}, // 0% GC
			{Name: "r2", Reads: []block.Read{{Seq: []byte("GGCC")}}}, // 100% GC
		},
		Tags: block.NewTagTable(),
	}
	input := step.InputSpec{SegmentNames: plan.SegmentNames}
	_, err = plan.Steps[0].Apply(blk, input, 1, step.DemultiplexInfo{})
	require.NoError(t, err)

	values, ok := blk.Tags.Get("gc_content")
	require.True(t, ok)
	n, _ := values[0].Numeric()
	assert.Equal(t, float64(1), n, "gc_content must be computed from the configured segment r2, not the default r1")
}

// A Sugar step referencing an unknown segment must fail Build, not
// silently fall back to segment index 0.
func TestBuildRejectsUnknownSegmentInSugarExpansion(t *testing.T) {
	cfg := baseConfig(config.StepConfig{Action: "FilterEmpty", Params: map[string]interface{}{"segment": "nope"}})
	_, err := Build(cfg, step.NewRegistry())
	require.Error(t, err)
}

func TestBuildRejectsMissingTagUse(t *testing.T) {
	cfg := baseConfig(config.StepConfig{Action: "FilterByNumericTag", Params: map[string]interface{}{"tag": "length", "min": 1}})
	_, err := Build(cfg, step.NewRegistry())
	require.Error(t, err)
}

// TestForceNoTransmitScenarioF pins spec.md Scenario F / Open Question
// (b): a Report preceding Head forces Head to keep consuming and
// discarding upstream blocks; Head preceding Report leaves Head's
// default transmit behaviour untouched.
func TestForceNoTransmitScenarioF(t *testing.T) {
	reportBeforeHead := baseConfig(
		config.StepConfig{Action: "Report", Params: map[string]interface{}{"name": "r1"}},
		config.StepConfig{Action: "Head", Params: map[string]interface{}{"n": 10}},
	)
	plan, err := Build(reportBeforeHead, step.NewRegistry())
	require.NoError(t, err)
	head := plan.Steps[len(plan.Steps)-1]
	assert.Equal(t, "Head", head.Name())
	assert.False(t, head.TransmitsPrematureTermination())

	headBeforeReport := baseConfig(
		config.StepConfig{Action: "Head", Params: map[string]interface{}{"n": 10}},
		config.StepConfig{Action: "Report", Params: map[string]interface{}{"name": "r1"}},
	)
	plan2, err := Build(headBeforeReport, step.NewRegistry())
	require.NoError(t, err)
	head2 := plan2.Steps[0]
	assert.Equal(t, "Head", head2.Name())
	assert.True(t, head2.TransmitsPrematureTermination())
}
