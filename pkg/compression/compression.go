// Package compression provides the writer/reader factory for the two
// compression algorithms spec.md §6 names for output and input:
// gzip and zstd. Grounded on the teacher's pkg/compression
// (http_compressor.go), trimmed from five codecs (gzip/zlib/zstd/lz4/
// snappy, chosen adaptively per HTTP response) to the two spec.md's
// Config.Output.Compression enumerates, since this engine picks its
// codec once from config rather than negotiating per request.
package compression

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Algorithm is one of the three output compression settings spec.md
// §6 names for Config.Output.Compression.
type Algorithm string

const (
	None Algorithm = "uncompressed"
	Gzip Algorithm = "gzip"
	Zstd Algorithm = "zstd"
)

// ParseAlgorithm validates a config string against the known set.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case None, Gzip, Zstd:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("compression: unknown algorithm %q", s)
	}
}

// NewWriter wraps w with the requested algorithm at the requested
// level. level semantics depend on the algorithm: 0-9 for gzip (spec.md
// §6), 1-22 for zstd; a level of 0 is treated as "use the library
// default" for both.
func NewWriter(w io.Writer, algo Algorithm, level int) (io.WriteCloser, error) {
	switch algo {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		gzLevel := level
		if gzLevel == 0 {
			gzLevel = gzip.DefaultCompression
		}
		if gzLevel < gzip.HuffmanOnly || gzLevel > gzip.BestCompression {
			return nil, fmt.Errorf("compression: gzip level %d out of range", level)
		}
		return gzip.NewWriterLevel(w, gzLevel)
	case Zstd:
		opts := []zstd.EOption{}
		if level > 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstdLevel(level)))
		}
		return zstd.NewWriter(w, opts...)
	default:
		return nil, fmt.Errorf("compression: unknown algorithm %q", algo)
	}
}

// NewReader wraps r with a decompressor for the requested algorithm.
// Used by input producers decoding compressed FASTQ sources
// (spec.md §1, out of scope for parsing but the codec selection itself
// is shared plumbing).
func NewReader(r io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("compression: open gzip reader: %w", err)
		}
		return gz, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("compression: open zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("compression: unknown algorithm %q", algo)
	}
}

func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 3:
		return zstd.SpeedFastest
	case level <= 9:
		return zstd.SpeedDefault
	case level <= 15:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
