package step

import (
	"fmt"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/pkg/errors"
)

var encodingRanges = map[string][2]byte{
	"sanger":       {33, 73},
	"illumina1.3":  {64, 104},
	"illumina1.5":  {66, 104},
	"illumina1.8":  {33, 74},
}

// qualityEncodingValidatorStep checks that every quality byte falls
// within the ASCII range of a named Phred encoding. It runs only where
// a config declares it; the planner does not insert it in front of
// other steps. Grounded on the teacher's input-validation
// middleware (reject out-of-range values before they reach a
// transform), generalized from HTTP payload bounds to quality bytes.
type qualityEncodingValidatorStep struct {
	Base
	encoding string
	lo, hi   byte
}

func newQualityEncodingValidatorFactory(params map[string]interface{}) (Step, error) {
	encoding := paramStringOr(params, "encoding", "sanger")
	rng, ok := encodingRanges[encoding]
	if !ok {
		return nil, fmt.Errorf("QualityEncodingValidator: unknown encoding %q", encoding)
	}
	return &qualityEncodingValidatorStep{encoding: encoding, lo: rng[0], hi: rng[1]}, nil
}

func (q *qualityEncodingValidatorStep) Name() string { return "QualityEncodingValidator" }

func (q *qualityEncodingValidatorStep) ValidateSegments(InputSpec) error { return nil }

func (q *qualityEncodingValidatorStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	for _, seg := range blk.Segments {
		for _, read := range seg.Reads {
			for _, qv := range read.Qual {
				if qv < q.lo || qv > q.hi {
					return false, errors.StepError("apply",
						fmt.Sprintf("quality byte %d outside %s encoding range [%d,%d]", qv, q.encoding, q.lo, q.hi))
				}
			}
		}
	}
	return true, nil
}
