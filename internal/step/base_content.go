package step

import (
	"fmt"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/tagvalue"
)

// calcBaseContentStep declares a Numeric tag holding the fraction of a
// segment's bases belonging to a configured base set (spec.md §4.3
// pass 4, "CalcGCContent into a parameterised CalcBaseContent").
type calcBaseContentStep struct {
	Base
	segment      string
	segmentIndex int
	bases        map[byte]bool
	tagName      string
}

func newCalcBaseContentFactory(params map[string]interface{}) (Step, error) {
	basesStr, err := paramString(params, "bases")
	if err != nil {
		return nil, err
	}
	set := make(map[byte]bool, len(basesStr))
	for i := 0; i < len(basesStr); i++ {
		set[upperByte(basesStr[i])] = true
	}
	return &calcBaseContentStep{
		segment: paramStringOr(params, "segment", ""),
		bases:   set,
		tagName: paramStringOr(params, "tag_name", "base_content"),
	}, nil
}

func upperByte(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

func (c *calcBaseContentStep) Name() string { return "CalcBaseContent" }

func (c *calcBaseContentStep) ValidateSegments(input InputSpec) error {
	if c.segment == "" {
		c.segmentIndex = 0
		return nil
	}
	idx := input.SegmentIndex(c.segment)
	if idx < 0 {
		return fmt.Errorf("CalcBaseContent: unknown segment %q", c.segment)
	}
	c.segmentIndex = idx
	return nil
}

func (c *calcBaseContentStep) DeclaresTag() (string, tagvalue.Type, bool) {
	return c.tagName, tagvalue.TypeNumeric, true
}

func (c *calcBaseContentStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	seg := blk.Segments[c.segmentIndex]
	values := make([]tagvalue.Value, len(seg.Reads))
	for i, read := range seg.Reads {
		if len(read.Seq) == 0 {
			values[i] = tagvalue.Numeric(0)
			continue
		}
		matched := 0
		for _, base := range read.Seq {
			if c.bases[upperByte(base)] {
				matched++
			}
		}
		values[i] = tagvalue.Numeric(float64(matched) / float64(len(read.Seq)))
	}
	blk.Tags.Insert(c.tagName, values)
	return true, nil
}

// calcGCContentStep is sugar for CalcBaseContent(bases="GC") (spec.md
// §4.3 pass 4).
type calcGCContentStep struct {
	Base
	segment string
	tagName string
}

func newCalcGCContentFactory(params map[string]interface{}) (Step, error) {
	return &calcGCContentStep{
		segment: paramStringOr(params, "segment", ""),
		tagName: paramStringOr(params, "tag_name", "gc_content"),
	}, nil
}

func (c *calcGCContentStep) Name() string { return "CalcGCContent" }

func (c *calcGCContentStep) ValidateSegments(InputSpec) error { return nil }

func (c *calcGCContentStep) Apply(*block.Combined, InputSpec, uint64, DemultiplexInfo) (bool, error) {
	return true, nil
}

// Expand implements Sugar.
func (c *calcGCContentStep) Expand() []Step {
	inner, _ := newCalcBaseContentFactory(map[string]interface{}{
		"segment":  c.segment,
		"bases":    "GC",
		"tag_name": c.tagName,
	})
	return []Step{inner}
}
