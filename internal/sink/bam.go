package sink

import (
	"encoding/binary"
	"io"

	"github.com/mdzesseis/fastqflow/internal/block"
)

// bamEncoder writes reads as unmapped BAM alignment records (no
// reference sequences, refID=-1, flag=unmapped). The pack has no BAM
// library (none of the example repos import one), so this follows the
// published BAM binary layout directly with encoding/binary rather
// than bringing in an out-of-pack dependency; see DESIGN.md. Records
// are written into whatever compression.NewWriter stream the caller
// configured rather than BAM's own BGZF block framing, which trades
// away random-access indexing for reuse of the same compression
// plumbing every other output format uses.
type bamEncoder struct{}

var nt16Code = map[byte]byte{
	'=': 0, 'A': 1, 'C': 2, 'M': 3, 'G': 4, 'R': 5, 'S': 6, 'V': 7,
	'T': 8, 'W': 9, 'Y': 10, 'H': 11, 'K': 12, 'D': 13, 'B': 14, 'N': 15,
}

func (bamEncoder) Header(w io.Writer) error {
	text := []byte("@HD\tVN:1.6\tSO:unknown\n")
	if _, err := w.Write([]byte("BAM\x01")); err != nil {
		return err
	}
	if err := writeLE(w, int32(len(text))); err != nil {
		return err
	}
	if _, err := w.Write(text); err != nil {
		return err
	}
	// n_ref = 0: these are raw sequencing reads, never aligned to a
	// reference (spec.md's pipeline runs upstream of alignment).
	return writeLE(w, int32(0))
}

func (bamEncoder) WriteRead(w io.Writer, r block.Read) error {
	name := r.Name
	if len(r.Comment) > 0 {
		name = append(append(append([]byte{}, r.Name...), ' '), r.Comment...)
	}
	lReadName := len(name) + 1
	lSeq := len(r.Seq)

	packedSeq := packSeq(r.Seq)
	qual := make([]byte, lSeq)
	for i, q := range r.Qual {
		if q >= 33 {
			qual[i] = q - 33
		}
	}

	blockSize := 8*4 + lReadName + len(packedSeq) + lSeq

	if err := writeLE(w, int32(blockSize)); err != nil {
		return err
	}
	if err := writeLE(w, int32(-1)); err != nil { // refID
		return err
	}
	if err := writeLE(w, int32(-1)); err != nil { // pos
		return err
	}
	if err := writeLE(w, uint8(lReadName)); err != nil {
		return err
	}
	if err := writeLE(w, uint8(0)); err != nil { // mapq
		return err
	}
	if err := writeLE(w, uint16(0)); err != nil { // bin
		return err
	}
	if err := writeLE(w, uint16(0)); err != nil { // n_cigar_op
		return err
	}
	if err := writeLE(w, uint16(4)); err != nil { // flag: unmapped
		return err
	}
	if err := writeLE(w, int32(lSeq)); err != nil {
		return err
	}
	if err := writeLE(w, int32(-1)); err != nil { // next_refID
		return err
	}
	if err := writeLE(w, int32(-1)); err != nil { // next_pos
		return err
	}
	if err := writeLE(w, int32(0)); err != nil { // tlen
		return err
	}
	if _, err := w.Write(name); err != nil {
		return err
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return err
	}
	if _, err := w.Write(packedSeq); err != nil {
		return err
	}
	_, err := w.Write(qual)
	return err
}

// packSeq encodes a nucleotide sequence two bases per byte using the
// BAM 4-bit nt16 alphabet, padding an odd final base with 0.
func packSeq(seq []byte) []byte {
	out := make([]byte, (len(seq)+1)/2)
	for i := 0; i < len(seq); i++ {
		code := nt16Code[upperBase(seq[i])]
		if i%2 == 0 {
			out[i/2] = code << 4
		} else {
			out[i/2] |= code
		}
	}
	return out
}

func upperBase(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

func writeLE(w io.Writer, v interface{}) error {
	return binary.Write(w, binary.LittleEndian, v)
}
