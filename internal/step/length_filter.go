package step

import (
	"fmt"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/tagvalue"
)

// computeLengthStep declares a Numeric tag holding one segment's read
// length, the primitive FilterEmpty expands into (spec.md §4.3 pass 4).
type computeLengthStep struct {
	Base
	segment      string
	segmentIndex int
	tagName      string
}

func newComputeLengthFactory(params map[string]interface{}) (Step, error) {
	return &computeLengthStep{
		segment: paramStringOr(params, "segment", ""),
		tagName: paramStringOr(params, "tag_name", "length"),
	}, nil
}

func (c *computeLengthStep) Name() string { return "ComputeLength" }

func (c *computeLengthStep) ValidateSegments(input InputSpec) error {
	if c.segment == "" {
		c.segmentIndex = 0
		return nil
	}
	idx := input.SegmentIndex(c.segment)
	if idx < 0 {
		return fmt.Errorf("ComputeLength: unknown segment %q", c.segment)
	}
	c.segmentIndex = idx
	return nil
}

func (c *computeLengthStep) DeclaresTag() (string, tagvalue.Type, bool) {
	return c.tagName, tagvalue.TypeNumeric, true
}

func (c *computeLengthStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	seg := blk.Segments[c.segmentIndex]
	values := make([]tagvalue.Value, len(seg.Reads))
	for i, read := range seg.Reads {
		values[i] = tagvalue.Numeric(float64(len(read.Seq)))
	}
	blk.Tags.Insert(c.tagName, values)
	return true, nil
}

// filterByNumericTagStep keeps only the reads whose named Numeric tag
// falls within [min, max] (max may be unset, meaning unbounded above).
// Grounded on spec.md §4.1's "Filter by a boolean mask" block operation.
type filterByNumericTagStep struct {
	Base
	tagName string
	min     float64
	hasMax  bool
	max     float64
}

func newFilterByNumericTagFactory(params map[string]interface{}) (Step, error) {
	tagName, err := paramString(params, "tag")
	if err != nil {
		return nil, err
	}
	s := &filterByNumericTagStep{tagName: tagName}
	if v, ok := params["min"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("FilterByNumericTag: min: %w", err)
		}
		s.min = f
	}
	if v, ok := params["max"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("FilterByNumericTag: max: %w", err)
		}
		s.max = f
		s.hasMax = true
	}
	return s, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}

func (f *filterByNumericTagStep) Name() string { return "FilterByNumericTag" }

func (f *filterByNumericTagStep) ValidateSegments(InputSpec) error { return nil }

func (f *filterByNumericTagStep) UsesTags(available map[string]TagMeta) ([]TagUse, error) {
	meta, ok := available[f.tagName]
	if !ok {
		return nil, fmt.Errorf("FilterByNumericTag: tag %q is not declared by any earlier step", f.tagName)
	}
	if meta.Type != tagvalue.TypeNumeric {
		return nil, fmt.Errorf("FilterByNumericTag: tag %q has type %s, want numeric", f.tagName, meta.Type)
	}
	return []TagUse{{Name: f.tagName, Accepted: tagvalue.TypeSet(tagvalue.TypeNumeric)}}, nil
}

func (f *filterByNumericTagStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	values, ok := blk.Tags.Get(f.tagName)
	if !ok {
		return false, fmt.Errorf("FilterByNumericTag: tag %q absent at runtime", f.tagName)
	}
	mask := make([]bool, len(values))
	for i, v := range values {
		n, isNumeric := v.Numeric()
		if !isNumeric {
			continue
		}
		if n < f.min {
			continue
		}
		if f.hasMax && n > f.max {
			continue
		}
		mask[i] = true
	}
	if err := blk.Filter(mask); err != nil {
		return false, err
	}
	return true, nil
}

// filterEmptyStep is sugar for "drop reads with zero-length sequence",
// expanded into ComputeLength + FilterByNumericTag(min=1) (spec.md
// §4.3 pass 4).
type filterEmptyStep struct {
	Base
	segment string
}

func newFilterEmptyFactory(params map[string]interface{}) (Step, error) {
	return &filterEmptyStep{segment: paramStringOr(params, "segment", "")}, nil
}

func (f *filterEmptyStep) Name() string { return "FilterEmpty" }

func (f *filterEmptyStep) ValidateSegments(InputSpec) error { return nil }

func (f *filterEmptyStep) Apply(*block.Combined, InputSpec, uint64, DemultiplexInfo) (bool, error) {
	return true, nil
}

// Expand implements Sugar.
func (f *filterEmptyStep) Expand() []Step {
	const internalTag = "__filter_empty_length"
	length, _ := newComputeLengthFactory(map[string]interface{}{"segment": f.segment, "tag_name": internalTag})
	filter, _ := newFilterByNumericTagFactory(map[string]interface{}{"tag": internalTag, "min": 1})
	return []Step{length, filter}
}
