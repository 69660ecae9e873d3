package step

import (
	"testing"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/tagvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedReads(names ...string) []block.Read {
	reads := make([]block.Read, len(names))
	for i, n := range names {
		reads[i] = block.Read{Name: []byte(n), Seq: []byte("ACGT"), Qual: []byte("IIII")}
	}
	return reads
}

func oneSegmentBlock(segment string, names ...string) *block.Combined {
	return &block.Combined{
		Segments: []block.Segment{{Name: segment, Reads: namedReads(names...)}},
		Tags:     block.NewTagTable(),
	}
}

var input1Seg = InputSpec{SegmentNames: []string{"r1"}}

func TestRegistryBuildsEveryKnownStep(t *testing.T) {
	r := NewRegistry()
	actions := []string{
		"Skip", "Head", "Demultiplex", "Report", "ComputeLength",
		"FilterByNumericTag", "FilterEmpty", "CalcBaseContent", "CalcGCContent",
		"QualityEncodingValidator", "PairNameSpotCheck", "Progress", "DedupByHash", "ValidateSeq",
	}
	for _, action := range actions {
		assert.True(t, r.Known(action), "action %s should be registered", action)
		params := map[string]interface{}{}
		switch action {
		case "Skip", "Head":
			params["n"] = 1
		case "FilterByNumericTag":
			params["tag"] = "length"
		case "Report":
			params["name"] = "counts"
		case "Demultiplex":
			params["segment"] = "r1"
			params["length"] = 2
			params["mapping"] = map[string]interface{}{"AA": "bucket"}
		case "CalcBaseContent":
			params["bases"] = "GC"
		}
		_, err := r.Build(action, params)
		assert.NoError(t, err, "action %s", action)
	}
}

func TestSkipDropsFirstN(t *testing.T) {
	s, err := newSkipFactory(map[string]interface{}{"n": 3})
	require.NoError(t, err)

	blk := oneSegmentBlock("r1", "a", "b", "c", "d", "e")
	cont, err := s.Apply(blk, input1Seg, 1, DemultiplexInfo{})
	require.NoError(t, err)
	assert.True(t, cont)
	require.Equal(t, 2, blk.Len())
	assert.Equal(t, "d", string(blk.Segments[0].Reads[0].Name))
	assert.Equal(t, "e", string(blk.Segments[0].Reads[1].Name))
}

func TestSkipAcrossBlockBoundary(t *testing.T) {
	s, err := newSkipFactory(map[string]interface{}{"n": 3})
	require.NoError(t, err)

	blk1 := oneSegmentBlock("r1", "a", "b")
	cont, err := s.Apply(blk1, input1Seg, 1, DemultiplexInfo{})
	require.NoError(t, err)
	assert.True(t, cont)
	assert.Equal(t, 0, blk1.Len())

	blk2 := oneSegmentBlock("r1", "c", "d", "e")
	cont, err = s.Apply(blk2, input1Seg, 2, DemultiplexInfo{})
	require.NoError(t, err)
	assert.True(t, cont)
	require.Equal(t, 2, blk2.Len())
	assert.Equal(t, "d", string(blk2.Segments[0].Reads[0].Name))
	assert.Equal(t, "e", string(blk2.Segments[0].Reads[1].Name))
}

func TestHeadTruncatesAndStopsAtN(t *testing.T) {
	h, err := newHeadFactory(map[string]interface{}{"n": 3})
	require.NoError(t, err)

	blk := oneSegmentBlock("r1", "a", "b", "c", "d", "e")
	cont, err := h.Apply(blk, input1Seg, 1, DemultiplexInfo{})
	require.NoError(t, err)
	assert.False(t, cont)
	require.Equal(t, 3, blk.Len())

	blk2 := oneSegmentBlock("r1", "f", "g")
	cont, err = h.Apply(blk2, input1Seg, 2, DemultiplexInfo{})
	require.NoError(t, err)
	assert.False(t, cont)
	assert.Equal(t, 0, blk2.Len())
}

func TestComputeLengthAndFilterByNumericTag(t *testing.T) {
	cl, err := newComputeLengthFactory(map[string]interface{}{})
	require.NoError(t, err)
	require.NoError(t, cl.ValidateSegments(input1Seg))

	blk := &block.Combined{
		Segments: []block.Segment{{Name: "r1", Reads: []block.Read{
			{Name: []byte("a"), Seq: []byte("ACGT")},
			{Name: []byte("b"), Seq: []byte("AC")},
			{Name: []byte("c"), Seq: []byte("")},
		}}},
		Tags: block.NewTagTable(),
	}
	_, err = cl.Apply(blk, input1Seg, 1, DemultiplexInfo{})
	require.NoError(t, err)

	values, ok := blk.Tags.Get("length")
	require.True(t, ok)
	require.Len(t, values, 3)
	n0, _ := values[0].Numeric()
	assert.Equal(t, float64(4), n0)

	filter, err := newFilterByNumericTagFactory(map[string]interface{}{"tag": "length", "min": 1})
	require.NoError(t, err)
	cont, err := filter.Apply(blk, input1Seg, 1, DemultiplexInfo{})
	require.NoError(t, err)
	assert.True(t, cont)
	require.Equal(t, 2, blk.Len())
	assert.Equal(t, "a", string(blk.Segments[0].Reads[0].Name))
	assert.Equal(t, "b", string(blk.Segments[0].Reads[1].Name))
}

func TestFilterEmptyExpandsToLengthAndFilter(t *testing.T) {
	fe, err := newFilterEmptyFactory(map[string]interface{}{})
	require.NoError(t, err)
	sugar, ok := fe.(Sugar)
	require.True(t, ok)

	expanded := sugar.Expand()
	require.Len(t, expanded, 2)
	assert.Equal(t, "ComputeLength", expanded[0].Name())
	assert.Equal(t, "FilterByNumericTag", expanded[1].Name())
}

func TestCalcBaseContentFractionOfMatchedBases(t *testing.T) {
	c, err := newCalcBaseContentFactory(map[string]interface{}{"bases": "GC"})
	require.NoError(t, err)
	require.NoError(t, c.ValidateSegments(input1Seg))

	blk := &block.Combined{
		Segments: []block.Segment{{Name: "r1", Reads: []block.Read{
			{Name: []byte("a"), Seq: []byte("GCGC")},
			{Name: []byte("b"), Seq: []byte("AATT")},
		}}},
		Tags: block.NewTagTable(),
	}
	_, err = c.Apply(blk, input1Seg, 1, DemultiplexInfo{})
	require.NoError(t, err)

	values, ok := blk.Tags.Get("base_content")
	require.True(t, ok)
	n0, _ := values[0].Numeric()
	n1, _ := values[1].Numeric()
	assert.Equal(t, float64(1), n0)
	assert.Equal(t, float64(0), n1)
}

func TestCalcGCContentExpandsToParameterizedBaseContent(t *testing.T) {
	g, err := newCalcGCContentFactory(map[string]interface{}{})
	require.NoError(t, err)
	sugar, ok := g.(Sugar)
	require.True(t, ok)

	expanded := sugar.Expand()
	require.Len(t, expanded, 1)
	inner, ok := expanded[0].(*calcBaseContentStep)
	require.True(t, ok)
	assert.True(t, inner.bases['G'])
	assert.True(t, inner.bases['C'])
	assert.False(t, inner.bases['A'])
}

// A Sugar step's substitutes carry the outer step's configured segment
// string but not its resolved index: the caller (here, the planner's
// expand pass) must run ValidateSegments on every expanded step before
// using it, since resolveSegments (pass 1) only ever saw the original
// declared step.
func TestCalcGCContentExpandResolvesConfiguredSegment(t *testing.T) {
	g, err := newCalcGCContentFactory(map[string]interface{}{"segment": "r2"})
	require.NoError(t, err)
	sugar := g.(Sugar)
	inner := sugar.Expand()[0].(*calcBaseContentStep)

	twoSeg := InputSpec{SegmentNames: []string{"r1", "r2"}}
	require.NoError(t, inner.ValidateSegments(twoSeg))
	assert.Equal(t, 1, inner.segmentIndex)
}

func TestFilterEmptyExpandResolvesConfiguredSegment(t *testing.T) {
	fe, err := newFilterEmptyFactory(map[string]interface{}{"segment": "r2"})
	require.NoError(t, err)
	sugar := fe.(Sugar)
	inner := sugar.Expand()[0].(*computeLengthStep)

	twoSeg := InputSpec{SegmentNames: []string{"r1", "r2"}}
	require.NoError(t, inner.ValidateSegments(twoSeg))
	assert.Equal(t, 1, inner.segmentIndex)
}

func TestQualityEncodingValidatorRejectsOutOfRange(t *testing.T) {
	q, err := newQualityEncodingValidatorFactory(map[string]interface{}{"encoding": "sanger"})
	require.NoError(t, err)

	good := &block.Combined{Segments: []block.Segment{{Name: "r1", Reads: []block.Read{
		{Qual: []byte("III!")},
	}}}}
	_, err = q.Apply(good, input1Seg, 1, DemultiplexInfo{})
	assert.NoError(t, err)

	bad := &block.Combined{Segments: []block.Segment{{Name: "r1", Reads: []block.Read{
		{Qual: []byte{10}},
	}}}}
	cont, err := q.Apply(bad, input1Seg, 1, DemultiplexInfo{})
	assert.Error(t, err)
	assert.False(t, cont)
}

func TestPairNameSpotCheckDetectsMismatch(t *testing.T) {
	p, err := newPairNameSpotCheckFactory(map[string]interface{}{})
	require.NoError(t, err)

	twoSeg := InputSpec{SegmentNames: []string{"r1", "r2"}}
	require.NoError(t, p.ValidateOthers(twoSeg, OutputSpec{}, nil, 0))

	matched := &block.Combined{Segments: []block.Segment{
		{Name: "r1", Reads: []block.Read{{Name: []byte("read1/1")}}},
		{Name: "r2", Reads: []block.Read{{Name: []byte("read1/2")}}},
	}}
	cont, err := p.Apply(matched, twoSeg, 1, DemultiplexInfo{})
	require.NoError(t, err)
	assert.True(t, cont)

	mismatched := &block.Combined{Segments: []block.Segment{
		{Name: "r1", Reads: []block.Read{{Name: []byte("read1/1")}}},
		{Name: "r2", Reads: []block.Read{{Name: []byte("read2/2")}}},
	}}
	_, err = p.Apply(mismatched, twoSeg, 2, DemultiplexInfo{})
	assert.Error(t, err)
}

func TestPairNameSpotCheckRequiresTwoSegments(t *testing.T) {
	p, err := newPairNameSpotCheckFactory(map[string]interface{}{})
	require.NoError(t, err)
	assert.Error(t, p.ValidateOthers(input1Seg, OutputSpec{}, nil, 0))
}

func TestValidateSeqRejectsOutOfAlphabet(t *testing.T) {
	v, err := newValidateSeqFactory(map[string]interface{}{"alphabet": "ACGT"})
	require.NoError(t, err)
	require.NoError(t, v.ValidateSegments(input1Seg))

	good := &block.Combined{Segments: []block.Segment{{Name: "r1", Reads: []block.Read{{Seq: []byte("ACGT")}}}}}
	_, err = v.Apply(good, input1Seg, 1, DemultiplexInfo{})
	assert.NoError(t, err)

	bad := &block.Combined{Segments: []block.Segment{{Name: "r1", Reads: []block.Read{{Seq: []byte("ACGN")}}}}}
	cont, err := v.Apply(bad, input1Seg, 1, DemultiplexInfo{})
	assert.Error(t, err)
	assert.False(t, cont)
}

func TestDedupByHashExactModeDropsRepeats(t *testing.T) {
	d, err := newDedupByHashFactory(map[string]interface{}{"mode": "exact"})
	require.NoError(t, err)
	require.NoError(t, d.ValidateSegments(input1Seg))

	blk := &block.Combined{
		Segments: []block.Segment{{Name: "r1", Reads: []block.Read{
			{Name: []byte("a"), Seq: []byte("ACGT")},
			{Name: []byte("b"), Seq: []byte("ACGT")},
			{Name: []byte("c"), Seq: []byte("TTTT")},
		}}},
		Tags: block.NewTagTable(),
	}
	_, err = d.Apply(blk, input1Seg, 1, DemultiplexInfo{})
	require.NoError(t, err)
	require.Equal(t, 2, blk.Len())
	assert.Equal(t, "a", string(blk.Segments[0].Reads[0].Name))
	assert.Equal(t, "c", string(blk.Segments[0].Reads[1].Name))
}

func TestDedupByHashNeedsSerial(t *testing.T) {
	d, err := newDedupByHashFactory(map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, d.NeedsSerial(), "first-occurrence-wins dedup state is order-dependent on block_no")
}

func TestDedupByHashDeclaresBoolTag(t *testing.T) {
	d, err := newDedupByHashFactory(map[string]interface{}{})
	require.NoError(t, err)
	name, typ, ok := d.DeclaresTag()
	assert.True(t, ok)
	assert.Equal(t, "duplicate", name)
	assert.Equal(t, tagvalue.TypeBool, typ)
}
