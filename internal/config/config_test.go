package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTemp(t, `
input:
  segments:
    - name: read1
      files: ["a.fq"]
output:
  prefix: out
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatFASTQ, cfg.Output.Format)
	assert.Equal(t, CompressionNone, cfg.Output.Compression)
	assert.Equal(t, 4, cfg.Options.ThreadCount)
	assert.True(t, *cfg.Options.SpotCheckPairing)
}

func TestLoadMissingInputFails(t *testing.T) {
	path := writeTemp(t, `
output:
  prefix: out
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsChunkedStdout(t *testing.T) {
	cfg := &Config{
		Input:  InputConfig{Segments: []SegmentInput{{Name: "read1", Files: []string{"a.fq"}}}},
		Output: OutputConfig{Format: FormatFASTQ, Compression: CompressionNone, ChunkSize: 100, Stdout: true},
		Options: OptionsConfig{ThreadCount: 1, MaxInFlightBlocks: 1},
	}
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsDuplicateReportLabel(t *testing.T) {
	cfg := &Config{
		Input:   InputConfig{Segments: []SegmentInput{{Name: "read1", Files: []string{"a.fq"}}}},
		Output:  OutputConfig{Format: FormatFASTQ, Compression: CompressionNone},
		Options: OptionsConfig{ThreadCount: 1, MaxInFlightBlocks: 1},
		Steps: []StepConfig{
			{Action: "Report", Params: map[string]interface{}{"name": "r1"}},
			{Action: "Report", Params: map[string]interface{}{"name": "r1"}},
		},
	}
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsMultipleDemultiplex(t *testing.T) {
	cfg := &Config{
		Input:   InputConfig{Segments: []SegmentInput{{Name: "read1", Files: []string{"a.fq"}}}},
		Output:  OutputConfig{Format: FormatFASTQ, Compression: CompressionNone},
		Options: OptionsConfig{ThreadCount: 1, MaxInFlightBlocks: 1},
		Steps: []StepConfig{
			{Action: "Demultiplex"},
			{Action: "Demultiplex"},
		},
	}
	require.Error(t, Validate(cfg))
}
