package step

import (
	"fmt"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/tagvalue"
	"github.com/mdzesseis/fastqflow/pkg/dedup"
)

// dedupByHashStep drops or annotates reads whose sequence has already
// been observed this run, backed by either an exact set or a
// reproducibly-seeded approximate filter (spec.md §5). Grounded on
// pkg/dedup, itself grounded on the teacher's DeduplicationManager.
type dedupByHashStep struct {
	Base
	segment      string
	segmentIndex int
	filter       dedup.Filter
	tagName      string
	drop         bool
}

func newDedupByHashFactory(params map[string]interface{}) (Step, error) {
	mode := paramStringOr(params, "mode", "exact")
	var filter dedup.Filter
	switch mode {
	case "exact":
		filter = dedup.NewExactSet(paramIntOr(params, "expected_items", 0))
	case "approximate":
		expected := paramIntOr(params, "expected_items", 1_000_000)
		fpRate := 0.01
		if v, ok := params["false_positive_rate"]; ok {
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("DedupByHash: false_positive_rate: %w", err)
			}
			fpRate = f
		}
		seed := uint64(paramIntOr(params, "seed", 0))
		filter = dedup.NewApproximate(expected, fpRate, seed)
	default:
		return nil, fmt.Errorf("DedupByHash: unknown mode %q", mode)
	}
	return &dedupByHashStep{
		segment: paramStringOr(params, "segment", ""),
		filter:  filter,
		tagName: paramStringOr(params, "tag_name", "duplicate"),
		drop:    paramBoolOr(params, "drop", true),
	}, nil
}

func (d *dedupByHashStep) Name() string { return "DedupByHash" }

// NeedsSerial: first-occurrence-wins against the shared dedup.Filter
// is order-dependent on block_no, not just data-race-safe, so this
// step must run with exactly one worker (spec.md §4.4).
func (d *dedupByHashStep) NeedsSerial() bool { return true }

func (d *dedupByHashStep) ValidateSegments(input InputSpec) error {
	if d.segment == "" {
		d.segmentIndex = 0
		return nil
	}
	idx := input.SegmentIndex(d.segment)
	if idx < 0 {
		return fmt.Errorf("DedupByHash: unknown segment %q", d.segment)
	}
	d.segmentIndex = idx
	return nil
}

func (d *dedupByHashStep) DeclaresTag() (string, tagvalue.Type, bool) {
	return d.tagName, tagvalue.TypeBool, true
}

func (d *dedupByHashStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	seg := blk.Segments[d.segmentIndex]
	values := make([]tagvalue.Value, len(seg.Reads))
	mask := make([]bool, len(seg.Reads))
	for i, read := range seg.Reads {
		seen := d.filter.SeenOrAdd(read.Seq)
		values[i] = tagvalue.Bool(seen)
		mask[i] = !(d.drop && seen)
	}
	blk.Tags.Insert(d.tagName, values)
	if d.drop {
		if err := blk.Filter(mask); err != nil {
			return false, err
		}
	}
	return true, nil
}
