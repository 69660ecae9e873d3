package step

import (
	"bytes"
	"fmt"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/pkg/errors"
)

// pairNameSpotCheckStep verifies that paired segments carry matching
// read names (modulo a trailing "/1", "/2" mate suffix), the implicit
// step the planner injects at the head of a multi-segment pipeline
// unless the user added or disabled one (spec.md §4.3 pass 4).
// Grounded on the teacher's request-id correlation check across
// paired request/response log lines, generalized to paired reads.
type pairNameSpotCheckStep struct {
	Base
	stride int // check every Nth read; 1 means check all
}

func newPairNameSpotCheckFactory(params map[string]interface{}) (Step, error) {
	stride := paramIntOr(params, "stride", 1)
	if stride < 1 {
		stride = 1
	}
	return &pairNameSpotCheckStep{stride: stride}, nil
}

func (p *pairNameSpotCheckStep) Name() string { return "PairNameSpotCheck" }

func (p *pairNameSpotCheckStep) ValidateSegments(InputSpec) error { return nil }

func (p *pairNameSpotCheckStep) ValidateOthers(input InputSpec, output OutputSpec, allSteps []Step, selfIndex int) error {
	if len(input.SegmentNames) < 2 {
		return fmt.Errorf("PairNameSpotCheck: requires at least two segments, got %d", len(input.SegmentNames))
	}
	return nil
}

func (p *pairNameSpotCheckStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	if len(blk.Segments) < 2 {
		return true, nil
	}
	first := blk.Segments[0]
	for i := 0; i < len(first.Reads); i += p.stride {
		want := mateName(first.Reads[i].Name)
		for s := 1; s < len(blk.Segments); s++ {
			got := mateName(blk.Segments[s].Reads[i].Name)
			if !bytes.Equal(want, got) {
				return false, errors.InputDataError("apply",
					fmt.Sprintf("paired-read-name mismatch at block %d read %d: segment %s has %q, segment %s has %q",
						blockNo, i, first.Name, first.Reads[i].Name, blk.Segments[s].Name, blk.Segments[s].Reads[i].Name))
			}
		}
	}
	return true, nil
}

// mateName strips a trailing "/1" or "/2" mate suffix, the common
// paired-end naming convention, before comparing read identities.
func mateName(name []byte) []byte {
	if len(name) >= 2 && name[len(name)-2] == '/' {
		last := name[len(name)-1]
		if last == '1' || last == '2' {
			return name[:len(name)-2]
		}
	}
	return name
}
