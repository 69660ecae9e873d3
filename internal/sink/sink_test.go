package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/config"
	"github.com/mdzesseis/fastqflow/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func combinedBlock(blockNo uint64, segments ...block.Segment) *block.Combined {
	return &block.Combined{Segments: segments, BlockNo: blockNo, Tags: block.NewTagTable()}
}

func read(name string) block.Read {
	return block.Read{Name: []byte(name), Seq: []byte("ACGT"), Qual: []byte("IIII")}
}

func TestSinkWritesPerSegmentFastq(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.OutputConfig{Prefix: filepath.Join(tmp, "out"), Format: config.FormatFASTQ}
	s := New(cfg, []string{"r1", "r2"}, nil, nil)

	blk := combinedBlock(1,
		block.Segment{Name: "r1", Reads: []block.Read{read("a"), read("b")}},
		block.Segment{Name: "r2", Reads: []block.Read{read("a"), read("b")}},
	)
	require.NoError(t, s.Write(blk))
	require.NoError(t, s.Close())

	r1, err := os.ReadFile(filepath.Join(tmp, "out_r1_1.fq"))
	require.NoError(t, err)
	assert.Contains(t, string(r1), "@a\nACGT\n+\nIIII\n")
	assert.Contains(t, string(r1), "@b\nACGT\n+\nIIII\n")

	_, err = os.ReadFile(filepath.Join(tmp, "out_r2_1.fq"))
	require.NoError(t, err)
}

func TestSinkRejectsOutOfOrderBlocks(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.OutputConfig{Prefix: filepath.Join(tmp, "out"), Format: config.FormatFASTQ}
	s := New(cfg, []string{"r1"}, nil, nil)

	blk := combinedBlock(2, block.Segment{Name: "r1", Reads: []block.Read{read("a")}})
	err := s.Write(blk)
	assert.Error(t, err)
}

func TestSinkChunkRotation(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.OutputConfig{Prefix: filepath.Join(tmp, "out"), Format: config.FormatFASTQ, ChunkSize: 1}
	s := New(cfg, []string{"r1"}, nil, nil)

	for i := uint64(1); i <= 2; i++ {
		blk := combinedBlock(i, block.Segment{Name: "r1", Reads: []block.Read{read("a")}})
		require.NoError(t, s.Write(blk))
	}
	require.NoError(t, s.Close())

	_, err := os.Stat(filepath.Join(tmp, "out_r1_1.fq"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmp, "out_r1_2.fq"))
	assert.NoError(t, err)
}

func TestSinkDemultiplexBucketRouting(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.OutputConfig{Prefix: filepath.Join(tmp, "out"), Format: config.FormatFASTQ}
	buckets := &step.DemultiplexBuckets{Names: []string{"aaaa", "no-barcode"}}
	s := New(cfg, []string{"r1"}, buckets, nil)

	blk := combinedBlock(1, block.Segment{Name: "r1", Reads: []block.Read{read("a"), read("b")}})
	blk.OutputTags = []int{0, 1}
	require.NoError(t, s.Write(blk))
	require.NoError(t, s.Close())

	aaaa, err := os.ReadFile(filepath.Join(tmp, "out_r1_aaaa_1.fq"))
	require.NoError(t, err)
	assert.Contains(t, string(aaaa), "@a\n")

	unmatched, err := os.ReadFile(filepath.Join(tmp, "out_r1_no-barcode_1.fq"))
	require.NoError(t, err)
	assert.Contains(t, string(unmatched), "@b\n")
}

func TestSinkSegmentFiltersRestrictBuckets(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.OutputConfig{
		Prefix:         filepath.Join(tmp, "out"),
		Format:         config.FormatFASTQ,
		SegmentFilters: map[string][]string{"r1": {"aaaa"}},
	}
	buckets := &step.DemultiplexBuckets{Names: []string{"aaaa", "no-barcode"}}
	s := New(cfg, []string{"r1"}, buckets, nil)

	blk := combinedBlock(1, block.Segment{Name: "r1", Reads: []block.Read{read("a"), read("b")}})
	blk.OutputTags = []int{0, 1}
	require.NoError(t, s.Write(blk))
	require.NoError(t, s.Close())

	_, err := os.Stat(filepath.Join(tmp, "out_r1_aaaa_1.fq"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmp, "out_r1_no-barcode_1.fq"))
	assert.True(t, os.IsNotExist(err))
}

func TestSinkFormatNoneWritesNothing(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.OutputConfig{Prefix: filepath.Join(tmp, "out"), Format: config.FormatNone}
	s := New(cfg, []string{"r1"}, nil, nil)

	blk := combinedBlock(1, block.Segment{Name: "r1", Reads: []block.Read{read("a")}})
	require.NoError(t, s.Write(blk))
	require.NoError(t, s.Close())

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
