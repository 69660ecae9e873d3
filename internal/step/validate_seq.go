package step

import (
	"fmt"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/pkg/errors"
)

// validateSeqStep rejects any read whose sequence contains a
// character outside a configured alphabet, across every segment
// unless narrowed to one.
type validateSeqStep struct {
	Base
	segment      string
	segmentIndex int
	allSegments  bool
	alphabet     map[byte]bool
}

func newValidateSeqFactory(params map[string]interface{}) (Step, error) {
	alphabet := paramStringOr(params, "alphabet", "ACGTN")
	set := make(map[byte]bool, len(alphabet))
	for i := 0; i < len(alphabet); i++ {
		set[upperByte(alphabet[i])] = true
	}
	segment := paramStringOr(params, "segment", "")
	return &validateSeqStep{segment: segment, allSegments: segment == "", alphabet: set}, nil
}

func (v *validateSeqStep) Name() string { return "ValidateSeq" }

func (v *validateSeqStep) ValidateSegments(input InputSpec) error {
	if v.allSegments {
		return nil
	}
	idx := input.SegmentIndex(v.segment)
	if idx < 0 {
		return fmt.Errorf("ValidateSeq: unknown segment %q", v.segment)
	}
	v.segmentIndex = idx
	return nil
}

func (v *validateSeqStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	segs := blk.Segments
	if !v.allSegments {
		segs = blk.Segments[v.segmentIndex : v.segmentIndex+1]
	}
	for _, seg := range segs {
		for _, read := range seg.Reads {
			for _, base := range read.Seq {
				if !v.alphabet[upperByte(base)] {
					return false, errors.StepError("apply",
						fmt.Sprintf("sequence %q in segment %s contains character %q outside the configured alphabet", read.Name, seg.Name, base))
				}
			}
		}
	}
	return true, nil
}
