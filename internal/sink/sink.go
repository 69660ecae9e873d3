// Package sink implements the pipeline's output boundary (spec.md
// §4.5): it receives combined blocks in strict block_no order from
// the scheduler's final reorder buffer, routes each read to the
// right (segment, demultiplex bucket) output file, writes it in the
// configured record format and compression, and rotates files at the
// configured chunk size. Grounded on the teacher's internal/sinks
// registry-of-named-destinations pattern (local_file_sink.go,
// elasticsearch_sink.go), generalized from "one entry, many remote
// destinations" to "one entry, many local output files keyed by
// bucket and segment".
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/config"
	"github.com/mdzesseis/fastqflow/internal/step"
	"github.com/mdzesseis/fastqflow/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Sink writes ordered combined blocks to disk (or stdout), implementing
// internal/scheduler.Sink. The scheduler already restores block_no
// order before handing blocks here (spec.md §4.4's final reorder
// buffer feeds the sink), so Sink itself only guards against a
// misordered caller rather than re-implementing the min-heap.
type Sink struct {
	cfg     config.OutputConfig
	logger  *logrus.Logger
	segment []string // declared segment names, in plan order
	buckets *step.DemultiplexBuckets

	mu           sync.Mutex
	writers      map[writerKey]*bucketWriter
	nextExpected uint64
}

type writerKey struct {
	bucket  string
	segment string
}

// New returns a Sink for the given output config, segment names
// (spec.md §3), and demultiplex buckets (nil if the plan has none).
func New(cfg config.OutputConfig, segmentNames []string, buckets *step.DemultiplexBuckets, logger *logrus.Logger) *Sink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sink{
		cfg:          cfg,
		logger:       logger,
		segment:      segmentNames,
		buckets:      buckets,
		writers:      make(map[writerKey]*bucketWriter),
		nextExpected: 1,
	}
}

// Write routes every read of blk to its output file(s) (spec.md §4.5).
func (s *Sink) Write(blk *block.Combined) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if blk.BlockNo != s.nextExpected {
		return errors.OutputError("write", fmt.Sprintf("block %d arrived out of order, expected %d", blk.BlockNo, s.nextExpected))
	}
	s.nextExpected++

	if s.cfg.Format == config.FormatNone {
		return nil
	}

	if len(s.cfg.Interleave) > 0 {
		return s.writeInterleaved(blk)
	}
	return s.writePerSegment(blk)
}

func (s *Sink) writePerSegment(blk *block.Combined) error {
	for segIdx, segName := range s.segment {
		reads := blk.Segments[segIdx].Reads
		for i, read := range reads {
			bucket := s.bucketFor(blk, i)
			if !s.bucketAllowed(segName, bucket) {
				continue
			}
			w, err := s.writerFor(bucket, segName)
			if err != nil {
				return err
			}
			if err := w.WriteRead(read); err != nil {
				return errors.OutputError("write", err.Error()).Wrap(err)
			}
		}
	}
	return nil
}

// writeInterleaved emits one file per bucket whose records alternate
// across cfg.Interleave's segment order (spec.md §4.5 "Interleaved
// output is a single file whose records alternate across a
// user-specified segment order").
func (s *Sink) writeInterleaved(blk *block.Combined) error {
	segIdx := make([]int, len(s.cfg.Interleave))
	for i, name := range s.cfg.Interleave {
		idx := -1
		for j, n := range s.segment {
			if n == name {
				idx = j
				break
			}
		}
		if idx < 0 {
			return errors.ConfigError("write", fmt.Sprintf("interleave references unknown segment %q", name))
		}
		segIdx[i] = idx
	}

	n := blk.Len()
	for i := 0; i < n; i++ {
		bucket := s.bucketFor(blk, i)
		w, err := s.writerFor(bucket, "interleaved")
		if err != nil {
			return err
		}
		for _, si := range segIdx {
			if err := w.WriteRead(blk.Segments[si].Reads[i]); err != nil {
				return errors.OutputError("write", err.Error()).Wrap(err)
			}
		}
	}
	return nil
}

// bucketAllowed honors output.segment_filters (spec.md §6 "per-segment
// filter list"): when segName has a configured filter list, only the
// named demultiplex buckets are written for that segment; an
// unfiltered segment (or a run with no demultiplex step, bucket="")
// always writes.
func (s *Sink) bucketAllowed(segName, bucket string) bool {
	if bucket == "" || len(s.cfg.SegmentFilters) == 0 {
		return true
	}
	allowed, ok := s.cfg.SegmentFilters[segName]
	if !ok {
		return true
	}
	for _, name := range allowed {
		if name == bucket {
			return true
		}
	}
	return false
}

func (s *Sink) bucketFor(blk *block.Combined, readIdx int) string {
	if s.buckets == nil || blk.OutputTags == nil {
		return ""
	}
	idx := blk.OutputTags[readIdx]
	if idx < 0 || idx >= len(s.buckets.Names) {
		return ""
	}
	return s.buckets.Names[idx]
}

func (s *Sink) writerFor(bucket, segment string) (*bucketWriter, error) {
	key := writerKey{bucket: bucket, segment: segment}
	if w, ok := s.writers[key]; ok {
		return w, nil
	}
	w, err := newBucketWriter(s.cfg, bucket, segment, s.logger)
	if err != nil {
		return nil, err
	}
	s.writers[key] = w
	return w, nil
}

// Close flushes and closes every output file this sink opened. It is
// safe to call once, after the scheduler has finished (spec.md §4.5).
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for _, w := range s.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// outputPath builds the rotated output file path for a (bucket,
// segment, chunkIndex) triple: prefix, optional segment, optional
// bucket, a 1-based chunk index, optional suffix, and the
// format/compression extension. Per-segment output carries the
// segment name (`output_r1_aaaa_1.fq`); interleaved output omits it
// (`output_aaaa_1.fq`).
func outputPath(cfg config.OutputConfig, bucket, segment string, chunkIndex int) string {
	name := cfg.Prefix
	if segment != "" && segment != "interleaved" {
		name += "_" + segment
	}
	if bucket != "" {
		name += "_" + bucket
	}
	name += fmt.Sprintf("_%d", chunkIndex+1)
	if cfg.Suffix != "" {
		name += cfg.Suffix
	}
	name += "." + formatExtension(cfg.Format)
	name += compressionExtension(cfg.Compression)
	return filepath.Clean(name)
}

func formatExtension(f config.Format) string {
	switch f {
	case config.FormatFASTA:
		return "fa"
	case config.FormatBAM:
		return "bam"
	default:
		return "fq"
	}
}

func compressionExtension(c config.Compression) string {
	switch c {
	case config.CompressionGzip:
		return ".gz"
	case config.CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// ensureDir creates the parent directory for path if it does not
// already exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
