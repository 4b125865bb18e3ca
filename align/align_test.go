package align

import (
	"strings"

	"github.com/luispedro/strobealign/aligner"
	"github.com/luispedro/strobealign/fasta"
	"github.com/luispedro/strobealign/fastq"
)

// testRefs builds an in-memory reference store.
func testRefs(names []string, seqs []string) *fasta.References {
	lengths := make([]int, len(seqs))
	for i, s := range seqs {
		lengths[i] = len(s)
	}
	return &fasta.References{Names: names, Sequences: seqs, Lengths: lengths}
}

func newTestMapper(refs *fasta.References, k int) *Mapper {
	return &Mapper{
		Aligner: aligner.New(aligner.DefaultScores),
		Refs:    refs,
		Opts:    DefaultMappingOpts,
		K:       k,
	}
}

func testRecord(name, seq string) fastq.Record {
	return fastq.Record{Name: name, Seq: seq, Qual: strings.Repeat("I", len(seq))}
}

// substituteBase returns a different DNA base.
func substituteBase(b byte) byte {
	switch b {
	case 'A':
		return 'C'
	case 'C':
		return 'G'
	case 'G':
		return 'T'
	default:
		return 'A'
	}
}

// randomSeq produces a deterministic pseudo-random DNA string.
func randomSeq(n int, seed uint32) string {
	const bases = "ACGT"
	buf := make([]byte, n)
	state := seed
	for i := range buf {
		state = state*1664525 + 1013904223
		buf[i] = bases[state>>30]
	}
	return string(buf)
}

type sinkSingle struct {
	aln       Alignment
	rec       fastq.Record
	isPrimary bool
}

type sinkPair struct {
	a1, a2       Alignment
	rec1, rec2   fastq.Record
	mapq1, mapq2 int
	isProper     bool
	isPrimary    bool
	details      [2]Details
}

// recordSink is an in-memory SAMOutput for driver tests.
type recordSink struct {
	singles       []sinkSingle
	pairs         []sinkPair
	unmapped      []string
	unmappedPairs [][2]string
}

func (s *recordSink) Add(aln Alignment, rec fastq.Record, readRC string, isPrimary bool, details Details) error {
	s.singles = append(s.singles, sinkSingle{aln, rec, isPrimary})
	return nil
}

func (s *recordSink) AddPair(aln1, aln2 Alignment, rec1, rec2 fastq.Record, readRC1, readRC2 string, mapq1, mapq2 int, isProper, isPrimary bool, details [2]Details) error {
	s.pairs = append(s.pairs, sinkPair{aln1, aln2, rec1, rec2, mapq1, mapq2, isProper, isPrimary, details})
	return nil
}

func (s *recordSink) AddUnmapped(rec fastq.Record) error {
	s.unmapped = append(s.unmapped, rec.Name)
	return nil
}

func (s *recordSink) AddUnmappedPair(rec1, rec2 fastq.Record) error {
	s.unmappedPairs = append(s.unmappedPairs, [2]string{rec1.Name, rec2.Name})
	return nil
}
