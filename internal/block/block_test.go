package block

import (
	"testing"

	"github.com/mdzesseis/fastqflow/internal/tagvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCombined(n int) *Combined {
	c := New([]string{"read1", "read2"})
	for s := range c.Segments {
		reads := make([]Read, n)
		for i := 0; i < n; i++ {
			reads[i] = Read{
				Name: []byte(fmt(s, i)),
				Seq:  []byte("ACGT"),
				Qual: []byte("IIII"),
			}
		}
		c.Segments[s].Reads = reads
	}
	values := make([]tagvalue.Value, n)
	for i := range values {
		values[i] = tagvalue.Numeric(float64(i))
	}
	c.Tags.Insert("length", values)
	return c
}

func fmt(s, i int) string {
	return "r" + string(rune('0'+s)) + "_" + string(rune('0'+i))
}

func TestCombinedValidate(t *testing.T) {
	c := makeCombined(3)
	require.NoError(t, c.Validate())
}

func TestCombinedValidateMismatch(t *testing.T) {
	c := makeCombined(3)
	c.Segments[1].Reads = c.Segments[1].Reads[:2]
	require.Error(t, c.Validate())
}

func TestTruncate(t *testing.T) {
	c := makeCombined(5)
	c.Truncate(2)
	assert.Equal(t, 2, c.Len())
	for _, seg := range c.Segments {
		assert.Equal(t, 2, seg.Len())
	}
	values, ok := c.Tags.Get("length")
	require.True(t, ok)
	assert.Len(t, values, 2)
}

func TestTruncateNoop(t *testing.T) {
	c := makeCombined(3)
	c.Truncate(10)
	assert.Equal(t, 3, c.Len())
}

func TestFilter(t *testing.T) {
	c := makeCombined(4)
	mask := []bool{true, false, true, false}
	require.NoError(t, c.Filter(mask))
	assert.Equal(t, 2, c.Len())
	values, _ := c.Tags.Get("length")
	require.Len(t, values, 2)
	n0, _ := values[0].Numeric()
	n1, _ := values[1].Numeric()
	assert.Equal(t, float64(0), n0)
	assert.Equal(t, float64(2), n1)
}

func TestFilterLengthMismatch(t *testing.T) {
	c := makeCombined(3)
	require.Error(t, c.Filter([]bool{true, false}))
}

func TestTagTableDropAndDropAll(t *testing.T) {
	c := makeCombined(2)
	c.Tags.Drop("length")
	_, ok := c.Tags.Get("length")
	assert.False(t, ok)

	c2 := makeCombined(2)
	c2.Tags.DropAll()
	assert.Empty(t, c2.Tags.Names())
}

func TestEnsureOutputTags(t *testing.T) {
	c := makeCombined(3)
	tags := c.EnsureOutputTags()
	require.Len(t, tags, 3)
	for _, v := range tags {
		assert.Equal(t, -1, v)
	}
}

func TestCloneIndependence(t *testing.T) {
	c := makeCombined(2)
	clone := c.Tags.Clone()
	clone.Drop("length")
	_, ok := c.Tags.Get("length")
	assert.True(t, ok, "original table must be unaffected by mutating the clone")
}

func TestSetSeqQualMismatch(t *testing.T) {
	r := Read{}
	err := r.SetSeqQual([]byte("ACG"), []byte("II"))
	require.Error(t, err)
}
