package app

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/config"
	"github.com/mdzesseis/fastqflow/pkg/compression"
	"github.com/mdzesseis/fastqflow/pkg/errors"
)

// fastqSource is the one concrete Source implementation this repo
// ships: a plain FASTQ file reader, gzip/zstd-aware via
// pkg/compression. spec.md §1 places parsing out of scope ("assumed
// to produce and consume blocks with the contract in §6") — this
// exists only so cmd/fastqflow has something real to hand the
// scheduler; it makes no attempt at FASTA/BAM input or at the
// structural validation a production parser would do.
type fastqSource struct {
	name             string
	blockSize        int
	commentSeparator string

	files   []string
	fileIdx int
	rc      io.ReadCloser
	br      *bufio.Reader
	done    bool
}

// newFastqSources builds one fastqSource per declared segment (or one
// per entry in an interleaved file's segment_order, reading the same
// file repeatedly is not supported — interleaved input is handled by
// newInterleavedSources instead).
func newFastqSources(cfg *config.Config) (map[string]Source, error) {
	if cfg.Input.Interleaved != "" {
		return newInterleavedSources(cfg)
	}
	sources := make(map[string]Source, len(cfg.Input.Segments))
	for _, seg := range cfg.Input.Segments {
		sources[seg.Name] = &fastqSource{
			name:             seg.Name,
			blockSize:        blockSizeOf(cfg),
			commentSeparator: commentSeparatorOf(cfg),
			files:            seg.Files,
		}
	}
	return sources, nil
}

func blockSizeOf(cfg *config.Config) int {
	if cfg.Input.BlockSize > 0 {
		return cfg.Input.BlockSize
	}
	if cfg.Options.BlockSize > 0 {
		return cfg.Options.BlockSize
	}
	return 1000
}

func commentSeparatorOf(cfg *config.Config) string {
	if cfg.Input.CommentSeparator != "" {
		return cfg.Input.CommentSeparator
	}
	return " "
}

func (s *fastqSource) Next() (block.Segment, error) {
	if s.done {
		return block.Segment{}, io.EOF
	}

	reads := make([]block.Read, 0, s.blockSize)
	for len(reads) < s.blockSize {
		r, err := s.nextRead()
		if err == io.EOF {
			break
		}
		if err != nil {
			return block.Segment{}, err
		}
		reads = append(reads, r)
	}

	if len(reads) < s.blockSize {
		s.done = true
		return block.Segment{Name: s.name, Reads: reads, IsFinal: true}, nil
	}
	return block.Segment{Name: s.name, Reads: reads}, nil
}

// nextRead reads one 4-line FASTQ record, opening the next file in
// s.files as each one is exhausted.
func (s *fastqSource) nextRead() (block.Read, error) {
	for {
		if s.br == nil {
			if s.fileIdx >= len(s.files) {
				return block.Read{}, io.EOF
			}
			if err := s.openFile(s.files[s.fileIdx]); err != nil {
				return block.Read{}, err
			}
		}

		r, err := s.readRecord()
		if err == io.EOF {
			s.closeFile()
			s.fileIdx++
			continue
		}
		return r, err
	}
}

func (s *fastqSource) openFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.InputDataError("open", fmt.Sprintf("open %q: %v", path, err)).Wrap(err)
	}
	algo := algorithmForPath(path)
	rc, err := compression.NewReader(f, algo)
	if err != nil {
		f.Close()
		return errors.InputDataError("open", fmt.Sprintf("decompress %q: %v", path, err)).Wrap(err)
	}
	s.rc = rc
	s.br = bufio.NewReaderSize(rc, 64*1024)
	return nil
}

// algorithmForPath picks the decompression codec from a file's
// extension, since input files carry no explicit format field the way
// output.compression does (spec.md §6 only configures the sink side).
func algorithmForPath(path string) compression.Algorithm {
	switch filepath.Ext(path) {
	case ".gz":
		return compression.Gzip
	case ".zst":
		return compression.Zstd
	default:
		return compression.None
	}
}

func (s *fastqSource) closeFile() {
	if s.rc != nil {
		s.rc.Close()
		s.rc = nil
	}
	s.br = nil
}

func (s *fastqSource) readRecord() (block.Read, error) {
	header, err := s.br.ReadString('\n')
	if err != nil && header == "" {
		return block.Read{}, io.EOF
	}
	header = strings.TrimRight(header, "\r\n")
	if !strings.HasPrefix(header, "@") {
		return block.Read{}, errors.InputDataError("parse", fmt.Sprintf("expected '@' record header, got %q", header))
	}
	name, comment := splitHeader(header[1:], s.commentSeparator)

	seqLine, err := s.br.ReadString('\n')
	if err != nil && seqLine == "" {
		return block.Read{}, errors.InputDataError("parse", "truncated record: missing sequence line")
	}
	seq := []byte(strings.TrimRight(seqLine, "\r\n"))

	plusLine, err := s.br.ReadString('\n')
	if err != nil && plusLine == "" {
		return block.Read{}, errors.InputDataError("parse", "truncated record: missing '+' line")
	}
	if !strings.HasPrefix(strings.TrimRight(plusLine, "\r\n"), "+") {
		return block.Read{}, errors.InputDataError("parse", "expected '+' separator line")
	}

	qualLine, err := s.br.ReadString('\n')
	if err != nil && qualLine == "" {
		return block.Read{}, errors.InputDataError("parse", "truncated record: missing quality line")
	}
	qual := []byte(strings.TrimRight(qualLine, "\r\n"))

	if len(seq) != len(qual) {
		return block.Read{}, errors.InputDataError("parse",
			fmt.Sprintf("record %q: sequence length %d does not match quality length %d", name, len(seq), len(qual)))
	}

	return block.Read{Name: []byte(name), Comment: []byte(comment), Seq: seq, Qual: qual}, nil
}

func splitHeader(headerBody, sep string) (name, comment string) {
	if sep == "" {
		return headerBody, ""
	}
	if idx := strings.Index(headerBody, sep); idx >= 0 {
		return headerBody[:idx], headerBody[idx+len(sep):]
	}
	return headerBody, ""
}

// interleavedSource demultiplexes one file's round-robin segment
// records (segment_order) back into per-segment Sources by buffering
// one round at a time.
type interleavedSource struct {
	shared *interleavedReader
	index  int
}

type interleavedReader struct {
	inner  *fastqSource
	order  []string
	bufs   map[string][]block.Read
	finals map[string]bool
}

func newInterleavedSources(cfg *config.Config) (map[string]Source, error) {
	if len(cfg.Input.SegmentOrder) == 0 {
		return nil, errors.ConfigError("input", "interleaved input requires segment_order")
	}
	shared := &interleavedReader{
		inner: &fastqSource{
			name:             "interleaved",
			blockSize:        1,
			commentSeparator: commentSeparatorOf(cfg),
			files:            []string{cfg.Input.Interleaved},
		},
		order:  cfg.Input.SegmentOrder,
		bufs:   make(map[string][]block.Read, len(cfg.Input.SegmentOrder)),
		finals: make(map[string]bool, len(cfg.Input.SegmentOrder)),
	}
	sources := make(map[string]Source, len(cfg.Input.SegmentOrder))
	for i, name := range cfg.Input.SegmentOrder {
		sources[name] = &interleavedSource{shared: shared, index: i}
	}
	return sources, nil
}

// Next returns this segment's next single-read block, pulling one
// full round (len(order) records) from the underlying file whenever
// every segment's buffer has been drained.
func (s *interleavedSource) Next() (block.Segment, error) {
	name := s.shared.order[s.index]
	if err := s.shared.fill(name); err != nil {
		return block.Segment{}, err
	}
	reads := s.shared.bufs[name]
	if len(reads) == 0 {
		return block.Segment{Name: name, IsFinal: true}, nil
	}
	read := reads[0]
	s.shared.bufs[name] = reads[1:]
	isFinal := s.shared.finals[name] && len(s.shared.bufs[name]) == 0
	return block.Segment{Name: name, Reads: []block.Read{read}, IsFinal: isFinal}, nil
}

func (r *interleavedReader) fill(name string) error {
	if len(r.bufs[name]) > 0 || r.finals[name] {
		return nil
	}
	for _, n := range r.order {
		read, err := r.inner.nextRead()
		if err == io.EOF {
			r.finals[n] = true
			continue
		}
		if err != nil {
			return err
		}
		r.bufs[n] = append(r.bufs[n], read)
	}
	return nil
}
