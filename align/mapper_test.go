package align

import (
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestExtendNamExactMatch(t *testing.T) {
	refs := testRefs([]string{"chrA"}, []string{"ACGTACGTACGT"})
	m := newTestMapper(refs, 4)
	read := NewRead("CGTACGTA")
	nam := Nam{RefID: 0, RefStart: 1, RefEnd: 9, QueryStart: 0, QueryEnd: 8, NHits: 1}

	aln := m.extendNam(nam, read, true)
	expect.EQ(t, aln.Cigar.String(), "8=")
	expect.EQ(t, aln.EditDistance, 0)
	expect.EQ(t, aln.GlobalED, 0)
	expect.EQ(t, aln.RefStart, 1)
	expect.EQ(t, aln.RefID, 0)
	expect.EQ(t, aln.Length, 8)
	expect.EQ(t, aln.IsRC, false)
	expect.EQ(t, aln.IsUnaligned, false)
	expect.EQ(t, aln.Gapped, false)
}

func TestExtendNamFastPathEquivalence(t *testing.T) {
	// The ungapped fast path must place the read exactly on the projected
	// window and report the raw Hamming distance.
	ref := randomSeq(500, 7)
	read := ref[200:300]
	mutated := []byte(read)
	mutated[50] = substituteBase(mutated[50])
	refs := testRefs([]string{"chrA"}, []string{ref})
	m := newTestMapper(refs, 10)

	nam := Nam{RefID: 0, RefStart: 210, RefEnd: 240, QueryStart: 10, QueryEnd: 40, NHits: 3}
	aln := m.extendNam(nam, NewRead(string(mutated)), true)
	expect.EQ(t, aln.Gapped, false)
	expect.EQ(t, aln.EditDistance, 1)
	expect.EQ(t, aln.RefStart, 200)
	expect.EQ(t, aln.Length, 100)
}

func TestExtendNamGappedOnInconsistent(t *testing.T) {
	// An inconsistent NAM forces the gapped path even when the projection
	// spans the whole read.
	ref := randomSeq(500, 11)
	read := ref[100:200]
	refs := testRefs([]string{"chrA"}, []string{ref})
	m := newTestMapper(refs, 10)

	nam := Nam{RefID: 0, RefStart: 100, RefEnd: 200, QueryStart: 0, QueryEnd: 100, NHits: 3}
	aln := m.extendNam(nam, NewRead(read), false)
	expect.EQ(t, aln.Gapped, true)
	expect.EQ(t, aln.EditDistance, 0)
	expect.EQ(t, aln.RefStart, 100)
}

func TestExtendNamDeletion(t *testing.T) {
	// Read lacks 5 reference bases in the middle; the projected window is
	// longer than the read, so the gapped aligner must run.
	ref := randomSeq(600, 13)
	read := ref[200:250] + ref[255:305]
	refs := testRefs([]string{"chrA"}, []string{ref})
	m := newTestMapper(refs, 10)

	nam := Nam{RefID: 0, RefStart: 200, RefEnd: 230, QueryStart: 0, QueryEnd: 30, NHits: 3}
	aln := m.extendNam(nam, NewRead(read), true)
	expect.EQ(t, aln.Gapped, true)
	expect.EQ(t, aln.RefStart, 200)
	expect.True(t, strings.Contains(aln.Cigar.String(), "D"))
	expect.EQ(t, aln.Length, 105)
}

func TestExtendNamProjectionClamped(t *testing.T) {
	// NAM at the contig edge: the projection must stay within reference
	// bounds and still produce an alignment.
	ref := "CC" + randomSeq(118, 17)
	read := "TT" + ref[:60] // two bases hang over the contig start
	refs := testRefs([]string{"chrA"}, []string{ref})
	m := newTestMapper(refs, 10)

	nam := Nam{RefID: 0, RefStart: 0, RefEnd: 30, QueryStart: 2, QueryEnd: 32, NHits: 3}
	aln := m.extendNam(nam, NewRead(read), true)
	expect.EQ(t, aln.IsUnaligned, false)
	expect.True(t, aln.RefStart >= 0)
	expect.True(t, aln.RefStart+aln.Length <= len(ref))
	expect.EQ(t, aln.GlobalED, aln.EditDistance+2)
}

func TestExtendNamReverseComplement(t *testing.T) {
	ref := strings.Repeat("G", 20) + "TTTTTTTTTT" + strings.Repeat("C", 20)
	refs := testRefs([]string{"chrA"}, []string{ref})
	m := newTestMapper(refs, 5)
	read := NewRead("AAAAAAAAAA")

	nam := Nam{RefID: 0, RefStart: 20, RefEnd: 30, QueryStart: 0, QueryEnd: 10, NHits: 1}
	consistent := reverseNamIfNeeded(&nam, read, refs, 5)
	expect.True(t, consistent)
	expect.True(t, nam.IsRC)

	aln := m.extendNam(nam, read, consistent)
	expect.EQ(t, aln.IsRC, true)
	expect.EQ(t, aln.RefStart, 20)
	expect.EQ(t, aln.EditDistance, 0)
	expect.EQ(t, aln.Cigar.String(), "10=")
}
