// Package block implements the pipeline's core data model: a batch of
// reads grouped per segment and carried together through the engine as
// one Combined block (spec.md §3).
package block

import (
	"fmt"

	"github.com/mdzesseis/fastqflow/internal/tagvalue"
)

// Read is one logical sequencing record: name, comment, sequence, and
// quality. Sequence and quality always have equal length (spec.md §3).
type Read struct {
	Name    []byte
	Comment []byte
	Seq     []byte
	Qual    []byte
}

// SetSeqQual replaces the sequence and quality together, restoring the
// |sequence|=|quality| invariant before returning (spec.md §4.1).
func (r *Read) SetSeqQual(seq, qual []byte) error {
	if len(seq) != len(qual) {
		return fmt.Errorf("block: sequence length %d does not match quality length %d", len(seq), len(qual))
	}
	r.Seq = seq
	r.Qual = qual
	return nil
}

// Segment is one named stream's contribution to a combined block: an
// ordered run of reads from a single segment (spec.md §3).
type Segment struct {
	Name    string
	Reads   []Read
	IsFinal bool
}

// Len reports the number of reads carried in the segment.
func (s *Segment) Len() int { return len(s.Reads) }

// Combined is the atomic unit of scheduling, spec.md §3's "combined
// block": one per-segment Segment for every declared segment, all of
// equal length, plus the block number and tag table shared across
// segments.
type Combined struct {
	Segments    []Segment
	BlockNo     uint64
	Tags        *TagTable
	OutputTags  []int // per-read demultiplex bucket index; nil if unset
	IsFinal     bool
}

// New builds an empty combined block for the given declared segment
// names, ready to receive reads.
func New(segmentNames []string) *Combined {
	segs := make([]Segment, len(segmentNames))
	for i, name := range segmentNames {
		segs[i] = Segment{Name: name}
	}
	return &Combined{
		Segments: segs,
		Tags:     NewTagTable(),
	}
}

// Len reports the shared read count across all segments. Invariant 1
// (spec.md §3) requires every segment and tag vector to match this.
func (c *Combined) Len() int {
	if len(c.Segments) == 0 {
		return 0
	}
	return c.Segments[0].Len()
}

// Validate checks invariant 1: every segment and every tag vector has
// the same length as the first segment.
func (c *Combined) Validate() error {
	n := c.Len()
	for i, seg := range c.Segments {
		if seg.Len() != n {
			return fmt.Errorf("block: segment %d (%s) has %d reads, want %d", i, seg.Name, seg.Len(), n)
		}
	}
	return c.Tags.validateLength(n)
}

// SegmentIndex returns the index of the named segment, or -1 if unknown.
func (c *Combined) SegmentIndex(name string) int {
	for i, seg := range c.Segments {
		if seg.Name == name {
			return i
		}
	}
	return -1
}

// Truncate drops a suffix of reads, keeping the first n, applied
// atomically across every segment and every tag vector (spec.md §4.1).
func (c *Combined) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= c.Len() {
		return
	}
	for i := range c.Segments {
		c.Segments[i].Reads = c.Segments[i].Reads[:n]
	}
	c.Tags.truncate(n)
	if c.OutputTags != nil && n < len(c.OutputTags) {
		c.OutputTags = c.OutputTags[:n]
	}
}

// Filter keeps only the reads whose mask entry is true, applied to
// every segment and every tag vector in one pass (spec.md §4.1).
func (c *Combined) Filter(mask []bool) error {
	n := c.Len()
	if len(mask) != n {
		return fmt.Errorf("block: mask length %d does not match block length %d", len(mask), n)
	}
	kept := 0
	for _, keep := range mask {
		if keep {
			kept++
		}
	}
	for i := range c.Segments {
		c.Segments[i].Reads = filterReads(c.Segments[i].Reads, mask, kept)
	}
	c.Tags.filter(mask, kept)
	if c.OutputTags != nil {
		c.OutputTags = filterInts(c.OutputTags, mask, kept)
	}
	return nil
}

func filterReads(reads []Read, mask []bool, kept int) []Read {
	out := make([]Read, 0, kept)
	for i, r := range reads {
		if mask[i] {
			out = append(out, r)
		}
	}
	return out
}

func filterInts(in []int, mask []bool, kept int) []int {
	out := make([]int, 0, kept)
	for i, v := range in {
		if mask[i] {
			out = append(out, v)
		}
	}
	return out
}

// EnsureOutputTags allocates OutputTags lazily, filled with -1
// (unrouted) for every read, the first time a demultiplex step writes
// a bucket assignment.
func (c *Combined) EnsureOutputTags() []int {
	if c.OutputTags == nil {
		c.OutputTags = make([]int, c.Len())
		for i := range c.OutputTags {
			c.OutputTags[i] = -1
		}
	}
	return c.OutputTags
}

// TagTable is the per-block mapping from tag name to a per-read vector
// of tagvalue.Value (spec.md §3, §9 "Tag map"). It is never
// concurrently mutated: a Combined block has exactly one owner at a
// time (spec.md §3 Lifecycle), so no internal locking is needed.
type TagTable struct {
	vectors map[string][]tagvalue.Value
}

// NewTagTable returns an empty tag table.
func NewTagTable() *TagTable {
	return &TagTable{vectors: make(map[string][]tagvalue.Value)}
}

// Insert installs a fresh tag vector under name, overwriting any
// existing vector of that name.
func (t *TagTable) Insert(name string, values []tagvalue.Value) {
	t.vectors[name] = values
}

// Get fetches the vector for name; ok is false if the tag is absent.
func (t *TagTable) Get(name string) (values []tagvalue.Value, ok bool) {
	values, ok = t.vectors[name]
	return values, ok
}

// Drop removes a single tag by name (a no-op if absent).
func (t *TagTable) Drop(name string) {
	delete(t.vectors, name)
}

// DropAll removes every tag.
func (t *TagTable) DropAll() {
	t.vectors = make(map[string][]tagvalue.Value)
}

// Names returns the set of tag names currently present.
func (t *TagTable) Names() []string {
	names := make([]string, 0, len(t.vectors))
	for name := range t.vectors {
		names = append(names, name)
	}
	return names
}

func (t *TagTable) validateLength(n int) error {
	for name, values := range t.vectors {
		if len(values) != n {
			return fmt.Errorf("block: tag %q has %d values, want %d", name, len(values), n)
		}
	}
	return nil
}

func (t *TagTable) truncate(n int) {
	for name, values := range t.vectors {
		if n < len(values) {
			t.vectors[name] = values[:n]
		}
	}
}

func (t *TagTable) filter(mask []bool, kept int) {
	for name, values := range t.vectors {
		out := make([]tagvalue.Value, 0, kept)
		for i, v := range values {
			if mask[i] {
				out = append(out, v)
			}
		}
		t.vectors[name] = out
	}
}

// Clone returns a shallow copy of the table sharing no backing arrays
// with t (each vector is a fresh slice), so the copy can be changed
// while leaving t untouched.
func (t *TagTable) Clone() *TagTable {
	clone := NewTagTable()
	for name, values := range t.vectors {
		cp := make([]tagvalue.Value, len(values))
		copy(cp, values)
		clone.vectors[name] = cp
	}
	return clone
}
