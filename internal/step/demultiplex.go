package step

import (
	"bytes"
	"fmt"

	"github.com/mdzesseis/fastqflow/internal/block"
)

// demultiplexStep assigns each read to an output bucket by matching a
// fixed-offset slice of one segment's sequence against a barcode-to-
// bucket mapping (spec.md §4.5, Scenario D). Grounded on the teacher's
// routing-by-key dispatch in its sink registry, generalized from
// "route by sink name" to "route by matched barcode".
type demultiplexStep struct {
	Base
	segment         string
	segmentIndex    int
	offset          int
	length          int
	mapping         map[string]string // barcode bytes (as string) -> bucket name
	barcodeSet      string            // alternative: a named set resolved from config.Barcodes at Init
	outputUnmatched bool
	unmatchedName   string
	buckets         *DemultiplexBuckets
}

func newDemultiplexFactory(params map[string]interface{}) (Step, error) {
	segment, err := paramString(params, "segment")
	if err != nil {
		return nil, err
	}
	length, err := paramInt(params, "length")
	if err != nil {
		return nil, err
	}
	offset := paramIntOr(params, "offset", 0)
	mapping := paramStringMap(params, "mapping")
	barcodeSet := paramStringOr(params, "barcode_set", "")
	if len(mapping) == 0 && barcodeSet == "" {
		return nil, fmt.Errorf("Demultiplex: requires either an inline mapping or a barcode_set reference")
	}
	return &demultiplexStep{
		segment:         segment,
		offset:          offset,
		length:          length,
		mapping:         mapping,
		barcodeSet:      barcodeSet,
		outputUnmatched: paramBoolOr(params, "output_unmatched", false),
		unmatchedName:   paramStringOr(params, "unmatched_bucket", "no-barcode"),
	}, nil
}

func (d *demultiplexStep) Name() string { return "Demultiplex" }

func (d *demultiplexStep) ValidateSegments(input InputSpec) error {
	idx := input.SegmentIndex(d.segment)
	if idx < 0 {
		return fmt.Errorf("Demultiplex: unknown segment %q", d.segment)
	}
	d.segmentIndex = idx
	return nil
}

func (d *demultiplexStep) Init(ctx InitContext) (*DemultiplexBuckets, error) {
	if len(d.mapping) == 0 && d.barcodeSet != "" {
		set, ok := ctx.Barcodes[d.barcodeSet]
		if !ok {
			return nil, fmt.Errorf("Demultiplex: unknown barcode_set %q", d.barcodeSet)
		}
		d.mapping = set
	}
	names := make([]string, 0, len(d.mapping)+1)
	seen := make(map[string]bool, len(d.mapping)+1)
	for _, bucket := range d.mapping {
		if !seen[bucket] {
			seen[bucket] = true
			names = append(names, bucket)
		}
	}
	if d.outputUnmatched && !seen[d.unmatchedName] {
		names = append(names, d.unmatchedName)
	}
	d.buckets = &DemultiplexBuckets{Names: names}
	return d.buckets, nil
}

func (d *demultiplexStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	out := blk.EnsureOutputTags()
	seg := blk.Segments[d.segmentIndex]
	for i, read := range seg.Reads {
		key := prefixKey(read.Seq, d.offset, d.length)
		bucket, matched := d.mapping[key]
		switch {
		case matched:
			out[i] = d.buckets.IndexOf(bucket)
		case d.outputUnmatched:
			out[i] = d.buckets.IndexOf(d.unmatchedName)
		default:
			out[i] = -1
		}
	}
	return true, nil
}

func prefixKey(seq []byte, offset, length int) string {
	if offset < 0 || offset >= len(seq) {
		return ""
	}
	end := offset + length
	if end > len(seq) {
		end = len(seq)
	}
	return string(bytes.Clone(seq[offset:end]))
}
