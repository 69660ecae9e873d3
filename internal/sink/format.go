package sink

import (
	"io"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/config"
)

// encoderFor returns the record encoder for a configured output
// format (spec.md §4.5 "FASTQ, FASTA or BAM framing").
func encoderFor(f config.Format) encoder {
	switch f {
	case config.FormatFASTA:
		return fastaEncoder{}
	case config.FormatBAM:
		return bamEncoder{}
	default:
		return fastqEncoder{}
	}
}

// fastqEncoder writes the classic four-line FASTQ record, preserving
// read identity exactly (spec.md §6 "preserving per-segment read
// identities (name, comment, sequence, quality)").
type fastqEncoder struct{}

func (fastqEncoder) Header(io.Writer) error { return nil }

func (fastqEncoder) WriteRead(w io.Writer, r block.Read) error {
	if _, err := w.Write([]byte{'@'}); err != nil {
		return err
	}
	if err := writeNameAndComment(w, r); err != nil {
		return err
	}
	if _, err := w.Write([]byte{'\n'}); err != nil {
		return err
	}
	if _, err := w.Write(r.Seq); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n+\n")); err != nil {
		return err
	}
	if _, err := w.Write(r.Qual); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

// fastaEncoder writes the two-line FASTA record (no quality).
type fastaEncoder struct{}

func (fastaEncoder) Header(io.Writer) error { return nil }

func (fastaEncoder) WriteRead(w io.Writer, r block.Read) error {
	if _, err := w.Write([]byte{'>'}); err != nil {
		return err
	}
	if err := writeNameAndComment(w, r); err != nil {
		return err
	}
	if _, err := w.Write([]byte{'\n'}); err != nil {
		return err
	}
	if _, err := w.Write(r.Seq); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

func writeNameAndComment(w io.Writer, r block.Read) error {
	if _, err := w.Write(r.Name); err != nil {
		return err
	}
	if len(r.Comment) > 0 {
		if _, err := w.Write([]byte{' '}); err != nil {
			return err
		}
		if _, err := w.Write(r.Comment); err != nil {
			return err
		}
	}
	return nil
}
