// Package config loads and validates the declarative pipeline
// configuration document (spec.md §6): input segments, output sinks,
// scheduler options, barcode sets, and the ordered step list. Grounded
// on the teacher's internal/config/config.go three-stage shape
// (defaults -> environment overrides -> validation), retargeted from
// log-shipping config to the FASTQ pipeline's sections.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mdzesseis/fastqflow/pkg/errors"

	"gopkg.in/yaml.v2"
)

// Format is an output record format (spec.md §6).
type Format string

const (
	FormatFASTQ Format = "FASTQ"
	FormatFASTA Format = "FASTA"
	FormatBAM   Format = "BAM"
	FormatNone  Format = "NONE"
)

// Compression is an output compression codec (spec.md §6).
type Compression string

const (
	CompressionNone Compression = "uncompressed"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// InputConfig describes the per-segment or interleaved input sources
// and parsing options (spec.md §6 "input").
type InputConfig struct {
	// Segments lists, in declared order, each segment's name and file
	// list. Mutually exclusive with Interleaved.
	Segments []SegmentInput `yaml:"segments"`

	// Interleaved, if set, names a single file carrying all segments'
	// records interleaved in SegmentOrder.
	Interleaved  string   `yaml:"interleaved"`
	SegmentOrder []string `yaml:"segment_order"`

	BufferSize       int    `yaml:"buffer_size"`
	BlockSize        int    `yaml:"block_size"`
	CommentSeparator string `yaml:"comment_separator"`
}

// SegmentInput is one declared segment's file list.
type SegmentInput struct {
	Name  string   `yaml:"name"`
	Files []string `yaml:"files"`
}

// SegmentNames returns the declared segment names in order, covering
// both the per-segment and interleaved input shapes.
func (c InputConfig) SegmentNames() []string {
	if len(c.SegmentOrder) > 0 {
		return c.SegmentOrder
	}
	names := make([]string, len(c.Segments))
	for i, s := range c.Segments {
		names[i] = s.Name
	}
	return names
}

// OutputConfig describes output sinks and reports (spec.md §6 "output").
type OutputConfig struct {
	Prefix      string      `yaml:"prefix"`
	Suffix      string      `yaml:"suffix"`
	Format      Format      `yaml:"format"`
	Compression Compression `yaml:"compression"`
	CompressionLevel int    `yaml:"compression_level"`

	ChunkSize int  `yaml:"chunk_size"`
	Stdout    bool `yaml:"stdout"`

	Interleave []string `yaml:"interleave"`

	SegmentFilters map[string][]string `yaml:"segment_filters"`

	ReportHTML bool `yaml:"report_html"`
	ReportJSON bool `yaml:"report_json"`

	HashOutput bool `yaml:"hash_output"`
}

// OptionsConfig controls scheduler tuning (spec.md §6 "options").
type OptionsConfig struct {
	ThreadCount          int  `yaml:"thread_count"`
	MaxInFlightBlocks    int  `yaml:"max_in_flight_blocks"`
	BlockSize            int  `yaml:"block_size"`
	BufferSize           int  `yaml:"buffer_size"`
	AcceptDuplicateFiles bool `yaml:"accept_duplicate_files"`
	SpotCheckPairing     *bool `yaml:"spot_check_pairing"`
}

// StepConfig is one declared pipeline step (spec.md §6 "step").
type StepConfig struct {
	Action string                 `yaml:"action"`
	Params map[string]interface{} `yaml:",inline"`
}

// BenchmarkConfig optionally signals the test/benchmark harness
// (spec.md §6 "benchmark"; out of scope beyond the flag itself).
type BenchmarkConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the full declarative pipeline document.
type Config struct {
	Input     InputConfig            `yaml:"input"`
	Output    OutputConfig           `yaml:"output"`
	Options   OptionsConfig          `yaml:"options"`
	Barcodes  map[string]map[string]string `yaml:"barcodes"`
	Steps     []StepConfig           `yaml:"step"`
	Benchmark BenchmarkConfig        `yaml:"benchmark"`
}

// Load reads and parses a YAML config file, applies defaults from
// environment overrides, and validates the result. It never returns a
// config that failed validation — validation errors abort before any
// data flows (spec.md §7).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError("load", fmt.Sprintf("read config file: %v", err)).Wrap(err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.ConfigError("parse", fmt.Sprintf("parse yaml: %v", err)).Wrap(err)
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields with the engine's defaults,
// mirroring the teacher's applyDefaults staging.
func applyDefaults(cfg *Config) {
	if cfg.Input.BlockSize <= 0 {
		cfg.Input.BlockSize = 10000
	}
	if cfg.Input.BufferSize <= 0 {
		cfg.Input.BufferSize = 1 << 20
	}
	if cfg.Input.CommentSeparator == "" {
		cfg.Input.CommentSeparator = " "
	}

	if cfg.Output.Format == "" {
		cfg.Output.Format = FormatFASTQ
	}
	if cfg.Output.Compression == "" {
		cfg.Output.Compression = CompressionNone
	}

	if cfg.Options.ThreadCount <= 0 {
		cfg.Options.ThreadCount = 4
	}
	if cfg.Options.MaxInFlightBlocks <= 0 {
		cfg.Options.MaxInFlightBlocks = 16
	}
	if cfg.Options.BlockSize <= 0 {
		cfg.Options.BlockSize = cfg.Input.BlockSize
	}
	if cfg.Options.BufferSize <= 0 {
		cfg.Options.BufferSize = cfg.Input.BufferSize
	}
	if cfg.Options.SpotCheckPairing == nil {
		enabled := true
		cfg.Options.SpotCheckPairing = &enabled
	}
}

// applyEnvironmentOverrides lets a handful of hot-path knobs be
// overridden without editing the config file, matching the teacher's
// FASTQFLOW_* environment convention (teacher used SSW_*).
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("FASTQFLOW_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Options.ThreadCount = n
		}
	}
	if v := os.Getenv("FASTQFLOW_BLOCK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Options.BlockSize = n
		}
	}
}
