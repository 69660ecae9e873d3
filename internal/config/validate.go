package config

import (
	"fmt"

	"github.com/mdzesseis/fastqflow/pkg/compression"
	"github.com/mdzesseis/fastqflow/pkg/errors"
)

// Validate performs the config-level checks spec.md §7 calls out
// explicitly (missing field, unknown variant, out-of-range numeric,
// chunking into a pipe). Cross-step checks belong to the planner
// (internal/planner), which runs after this passes.
func Validate(cfg *Config) error {
	if len(cfg.Input.Segments) == 0 && cfg.Input.Interleaved == "" {
		return errors.ConfigError("validate", "input must declare at least one segment or an interleaved file")
	}
	if cfg.Input.Interleaved != "" && len(cfg.Input.SegmentOrder) == 0 {
		return errors.ConfigError("validate", "interleaved input requires segment_order")
	}
	for _, seg := range cfg.Input.Segments {
		if seg.Name == "" {
			return errors.ConfigError("validate", "segment with empty name")
		}
		if len(seg.Files) == 0 {
			return errors.ConfigError("validate", fmt.Sprintf("segment %q declares no files", seg.Name))
		}
	}

	switch cfg.Output.Format {
	case FormatFASTQ, FormatFASTA, FormatBAM, FormatNone:
	default:
		return errors.ConfigError("validate", fmt.Sprintf("unknown output format %q", cfg.Output.Format))
	}

	if _, err := compression.ParseAlgorithm(string(cfg.Output.Compression)); err != nil {
		return errors.ConfigError("validate", err.Error()).Wrap(err)
	}

	if cfg.Output.Compression == CompressionGzip {
		if cfg.Output.CompressionLevel < 0 || cfg.Output.CompressionLevel > 9 {
			return errors.ConfigError("validate", "gzip compression_level must be 0-9")
		}
	}
	if cfg.Output.Compression == CompressionZstd {
		if cfg.Output.CompressionLevel < 0 || cfg.Output.CompressionLevel > 22 {
			return errors.ConfigError("validate", "zstd compression_level must be 1-22")
		}
	}

	if cfg.Output.ChunkSize > 0 && cfg.Output.Stdout {
		return errors.ConfigError("validate", "chunked output is incompatible with stdout")
	}

	if cfg.Options.ThreadCount <= 0 {
		return errors.ConfigError("validate", "options.thread_count must be positive")
	}
	if cfg.Options.MaxInFlightBlocks <= 0 {
		return errors.ConfigError("validate", "options.max_in_flight_blocks must be positive")
	}

	seenReportLabels := map[string]bool{}
	demultiplexCount := 0
	for i, step := range cfg.Steps {
		if step.Action == "" {
			return errors.ConfigError("validate", fmt.Sprintf("step %d: missing action", i))
		}
		if step.Action == "Report" {
			label, _ := step.Params["name"].(string)
			if label == "" {
				return errors.ConfigError("validate", fmt.Sprintf("step %d: Report requires a name", i))
			}
			if seenReportLabels[label] {
				return errors.ConfigError("validate", fmt.Sprintf("duplicate report label %q", label))
			}
			seenReportLabels[label] = true
		}
		if step.Action == "Demultiplex" {
			demultiplexCount++
		}
	}
	if demultiplexCount > 1 {
		return errors.ConfigError("validate", "at most one Demultiplex step is allowed")
	}

	for name, mapping := range cfg.Barcodes {
		if len(mapping) == 0 {
			return errors.ConfigError("validate", fmt.Sprintf("barcode set %q declares no entries", name))
		}
	}

	return nil
}
