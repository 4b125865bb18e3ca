// Package sam formats finished alignments as SAM records. It implements the
// align.SAMOutput interface on top of grailbio/hts record and header types,
// so flag handling, CIGAR formatting and field layout follow the hts
// conventions.
//
// A Writer is not threadsafe. Workers that run concurrently each write into
// their own buffer (the header is written once by the caller) and the caller
// stitches the buffers together in read order.
package sam

import (
	"io"

	htssam "github.com/grailbio/hts/sam"
	"github.com/pkg/errors"

	"github.com/luispedro/strobealign/align"
	"github.com/luispedro/strobealign/fasta"
	"github.com/luispedro/strobealign/fastq"
)

// Writer emits SAM text records for one worker.
type Writer struct {
	out  io.Writer
	refs []*htssam.Reference
	hdr  *htssam.Header
}

// NewWriter builds a Writer over the given references. The header is not
// written until WriteHeader is called, so per-worker Writers can share one
// header emitted by the caller.
func NewWriter(out io.Writer, refs *fasta.References) (*Writer, error) {
	hrefs := make([]*htssam.Reference, refs.Size())
	for i, name := range refs.Names {
		r, err := htssam.NewReference(name, "", "", refs.Lengths[i], nil, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "sam: reference %s", name)
		}
		hrefs[i] = r
	}
	hdr, err := htssam.NewHeader(nil, hrefs)
	if err != nil {
		return nil, errors.Wrap(err, "sam: header")
	}
	return &Writer{out: out, refs: hrefs, hdr: hdr}, nil
}

// Fork returns a Writer that shares this Writer's references and header but
// writes records to out. Used to give each worker its own buffer.
func (w *Writer) Fork(out io.Writer) *Writer {
	return &Writer{out: out, refs: w.refs, hdr: w.hdr}
}

// WriteHeader writes the @HD/@SQ header block.
func (w *Writer) WriteHeader() error {
	text, err := w.hdr.MarshalText()
	if err != nil {
		return errors.Wrap(err, "sam: header")
	}
	_, err = w.out.Write(text)
	return err
}

func (w *Writer) write(r *htssam.Record) error {
	b, err := r.MarshalSAM(htssam.FlagDecimal)
	if err != nil {
		return errors.Wrapf(err, "sam: record %s", r.Name)
	}
	b = append(b, '\n')
	_, err = w.out.Write(b)
	return err
}

// orient returns sequence and raw quality scores in output orientation.
func orient(rec fastq.Record, readRC string, isRC bool) (seq []byte, qual []byte) {
	qual = make([]byte, len(rec.Qual))
	if isRC {
		seq = []byte(readRC)
		for i := 0; i < len(rec.Qual); i++ {
			qual[len(rec.Qual)-1-i] = rec.Qual[i] - 33
		}
		return seq, qual
	}
	seq = []byte(rec.Seq)
	for i := 0; i < len(rec.Qual); i++ {
		qual[i] = rec.Qual[i] - 33
	}
	return seq, qual
}

func auxFields(aln align.Alignment) ([]htssam.Aux, error) {
	nm, err := htssam.NewAux(htssam.NewTag("NM"), aln.EditDistance)
	if err != nil {
		return nil, err
	}
	as, err := htssam.NewAux(htssam.NewTag("AS"), aln.Score)
	if err != nil {
		return nil, err
	}
	return []htssam.Aux{nm, as}, nil
}

// Add emits one single-end record.
func (w *Writer) Add(aln align.Alignment, rec fastq.Record, readRC string, isPrimary bool, details align.Details) error {
	if aln.IsUnaligned {
		return w.AddUnmapped(rec)
	}
	seq, qual := orient(rec, readRC, aln.IsRC)
	aux, err := auxFields(aln)
	if err != nil {
		return errors.Wrap(err, "sam: aux")
	}
	r, err := htssam.NewRecord(rec.Name, w.refs[aln.RefID], nil, aln.RefStart, -1, 0, byte(aln.MapQ), aln.Cigar, seq, qual, aux)
	if err != nil {
		return errors.Wrapf(err, "sam: record %s", rec.Name)
	}
	if aln.IsRC {
		r.Flags |= htssam.Reverse
	}
	if !isPrimary {
		r.Flags |= htssam.Secondary
	}
	return w.write(r)
}

// AddUnmapped emits one unmapped single-end record.
func (w *Writer) AddUnmapped(rec fastq.Record) error {
	r, err := w.unmappedRecord(rec, 0)
	if err != nil {
		return err
	}
	return w.write(r)
}

func (w *Writer) unmappedRecord(rec fastq.Record, extraFlags htssam.Flags) (*htssam.Record, error) {
	qual := make([]byte, len(rec.Qual))
	for i := 0; i < len(rec.Qual); i++ {
		qual[i] = rec.Qual[i] - 33
	}
	r, err := htssam.NewRecord(rec.Name, nil, nil, -1, -1, 0, 0, nil, []byte(rec.Seq), qual, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "sam: record %s", rec.Name)
	}
	r.Flags = htssam.Unmapped | extraFlags
	return r, nil
}

// AddUnmappedPair emits an unmapped record for each mate.
func (w *Writer) AddUnmappedPair(rec1, rec2 fastq.Record) error {
	r1, err := w.unmappedRecord(rec1, htssam.Paired|htssam.MateUnmapped|htssam.Read1)
	if err != nil {
		return err
	}
	r2, err := w.unmappedRecord(rec2, htssam.Paired|htssam.MateUnmapped|htssam.Read2)
	if err != nil {
		return err
	}
	if err := w.write(r1); err != nil {
		return err
	}
	return w.write(r2)
}

// AddPair emits one record per mate. An unaligned mate is placed at its
// partner's position with the Unmapped flag, per the SAM recommendation for
// keeping pairs together under coordinate sort.
func (w *Writer) AddPair(aln1, aln2 align.Alignment, rec1, rec2 fastq.Record, readRC1, readRC2 string, mapq1, mapq2 int, isProper, isPrimary bool, details [2]align.Details) error {
	if aln1.IsUnaligned && aln2.IsUnaligned {
		return w.AddUnmappedPair(rec1, rec2)
	}
	tlen1, tlen2 := templateLengths(aln1, aln2)
	r1, err := w.mateRecord(aln1, aln2, rec1, readRC1, mapq1, isProper, isPrimary, htssam.Read1, tlen1)
	if err != nil {
		return err
	}
	r2, err := w.mateRecord(aln2, aln1, rec2, readRC2, mapq2, isProper, isPrimary, htssam.Read2, tlen2)
	if err != nil {
		return err
	}
	if err := w.write(r1); err != nil {
		return err
	}
	return w.write(r2)
}

// templateLengths returns the signed TLEN values for the two mates.
func templateLengths(aln1, aln2 align.Alignment) (int, int) {
	if aln1.IsUnaligned || aln2.IsUnaligned || aln1.RefID != aln2.RefID {
		return 0, 0
	}
	leftmost := min(aln1.RefStart, aln2.RefStart)
	rightmost := max(aln1.RefStart+aln1.Length, aln2.RefStart+aln2.Length)
	tlen := rightmost - leftmost
	if aln1.RefStart <= aln2.RefStart {
		return tlen, -tlen
	}
	return -tlen, tlen
}

func (w *Writer) mateRecord(aln, mate align.Alignment, rec fastq.Record, readRC string, mapq int, isProper, isPrimary bool, readFlag htssam.Flags, tlen int) (*htssam.Record, error) {
	flags := htssam.Paired | readFlag
	var (
		ref, mateRef *htssam.Reference
		pos, matePos = -1, -1
		cigar        htssam.Cigar
		aux          []htssam.Aux
		mapQ         byte
		seq          []byte
		qual         []byte
	)
	if aln.IsUnaligned {
		// place the unmapped mate at its partner's coordinates
		flags |= htssam.Unmapped
		ref, pos = w.refs[mate.RefID], mate.RefStart
		seq = []byte(rec.Seq)
		qual = make([]byte, len(rec.Qual))
		for i := 0; i < len(rec.Qual); i++ {
			qual[i] = rec.Qual[i] - 33
		}
	} else {
		ref, pos = w.refs[aln.RefID], aln.RefStart
		cigar = aln.Cigar
		mapQ = byte(mapq)
		seq, qual = orient(rec, readRC, aln.IsRC)
		if aln.IsRC {
			flags |= htssam.Reverse
		}
		if isProper {
			flags |= htssam.ProperPair
		}
		var err error
		if aux, err = auxFields(aln); err != nil {
			return nil, errors.Wrap(err, "sam: aux")
		}
	}
	if mate.IsUnaligned {
		flags |= htssam.MateUnmapped
		mateRef, matePos = ref, pos
	} else {
		mateRef, matePos = w.refs[mate.RefID], mate.RefStart
		if mate.IsRC {
			flags |= htssam.MateReverse
		}
	}
	if !isPrimary {
		flags |= htssam.Secondary
	}
	r, err := htssam.NewRecord(rec.Name, ref, mateRef, pos, matePos, tlen, mapQ, cigar, seq, qual, aux)
	if err != nil {
		return nil, errors.Wrapf(err, "sam: record %s", rec.Name)
	}
	r.Flags = flags
	return r, nil
}
