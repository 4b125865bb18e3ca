package index

import (
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"

	"github.com/luispedro/strobealign/align"
	"github.com/luispedro/strobealign/aligner"
	"github.com/luispedro/strobealign/fasta"
	"github.com/luispedro/strobealign/fastq"
)

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

func testRefs(seqs ...string) *fasta.References {
	refs := &fasta.References{}
	for i, s := range seqs {
		refs.Names = append(refs.Names, "chr"+string(rune('A'+i)))
		refs.Sequences = append(refs.Sequences, s)
		refs.Lengths = append(refs.Lengths, len(s))
	}
	return refs
}

func TestFindForward(t *testing.T) {
	ref := randomSeq(500, 3)
	read := ref[100:160]
	idx := New(testRefs(ref), 12)

	fraction, nams := idx.Find(read)
	expect.EQ(t, fraction, 1.0)
	expect.EQ(t, len(nams), 1)

	nam := nams[0]
	expect.EQ(t, nam.RefID, 0)
	expect.EQ(t, nam.RefStart, 100)
	expect.EQ(t, nam.RefEnd, 160)
	expect.EQ(t, nam.QueryStart, 0)
	expect.EQ(t, nam.QueryEnd, 60)
	expect.EQ(t, nam.IsRC, false)
	expect.EQ(t, nam.NHits, 60-12+1)
}

func TestFindReverseComplement(t *testing.T) {
	ref := randomSeq(500, 5)
	read := align.ReverseComplement(ref[200:260])
	idx := New(testRefs(ref), 12)

	_, nams := idx.Find(read)
	expect.EQ(t, len(nams), 1)
	expect.EQ(t, nams[0].IsRC, true)
	expect.EQ(t, nams[0].RefStart, 200)
	expect.EQ(t, nams[0].RefEnd, 260)
}

func TestFindNoHits(t *testing.T) {
	idx := New(testRefs(randomSeq(300, 7)), 12)
	_, nams := idx.Find(strings.Repeat("A", 50))
	expect.EQ(t, len(nams), 0)
}

func TestFindSkipsNBases(t *testing.T) {
	ref := randomSeq(300, 9)
	idx := New(testRefs(ref), 12)
	read := ref[50:80] + "N" + ref[81:110]
	_, nams := idx.Find(read)
	expect.True(t, len(nams) >= 1)
	expect.EQ(t, nams[0].RefID, 0)
}

func TestFindRescueCutoff(t *testing.T) {
	// A read from a 40x repeated segment is invisible below the occurrence
	// cutoff but found again by the rescue pass.
	segment := randomSeq(60, 11)
	ref := strings.Repeat(segment, 40)
	idx := New(testRefs(ref), 12)
	idx.filterCap = 10

	fraction, nams := idx.Find(segment)
	expect.EQ(t, len(nams), 0)
	expect.EQ(t, fraction, 0.0)

	rescued := idx.FindRescue(segment, 100)
	expect.True(t, len(rescued) > 0)
}

// End to end: seeds from the index drive the full alignment stage.
func TestIndexDrivesMapper(t *testing.T) {
	ref := randomSeq(1000, 13)
	read := ref[300:400]
	refs := testRefs(ref)
	idx := New(refs, 20)

	mapper := &align.Mapper{
		Aligner: aligner.New(aligner.DefaultScores),
		Refs:    refs,
		Opts:    align.DefaultMappingOpts,
		K:       idx.K(),
	}
	sink := &samSink{}
	var stats align.Statistics
	rec := fastq.Record{Name: "r1", Seq: read, Qual: strings.Repeat("I", len(read))}
	expect.NoError(t, mapper.ProcessSingle(rec, idx, sink, nil, &stats))
	expect.EQ(t, len(sink.alns), 1)
	expect.EQ(t, sink.alns[0].RefStart, 300)
	expect.EQ(t, sink.alns[0].EditDistance, 0)
	expect.EQ(t, sink.alns[0].IsUnaligned, false)
}

type samSink struct {
	alns     []align.Alignment
	unmapped []string
}

func (s *samSink) Add(aln align.Alignment, rec fastq.Record, readRC string, isPrimary bool, details align.Details) error {
	s.alns = append(s.alns, aln)
	return nil
}

func (s *samSink) AddPair(a1, a2 align.Alignment, rec1, rec2 fastq.Record, rc1, rc2 string, mapq1, mapq2 int, isProper, isPrimary bool, details [2]align.Details) error {
	s.alns = append(s.alns, a1, a2)
	return nil
}

func (s *samSink) AddUnmapped(rec fastq.Record) error {
	s.unmapped = append(s.unmapped, rec.Name)
	return nil
}

func (s *samSink) AddUnmappedPair(rec1, rec2 fastq.Record) error {
	s.unmapped = append(s.unmapped, rec1.Name, rec2.Name)
	return nil
}
