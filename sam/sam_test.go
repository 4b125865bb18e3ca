package sam

import (
	"bytes"
	"strings"
	"testing"

	htssam "github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luispedro/strobealign/align"
	"github.com/luispedro/strobealign/fasta"
	"github.com/luispedro/strobealign/fastq"
)

func testWriter(t *testing.T) (*Writer, *bytes.Buffer) {
	refs := &fasta.References{
		Names:     []string{"chrA"},
		Sequences: []string{strings.Repeat("ACGT", 25)},
		Lengths:   []int{100},
	}
	var buf bytes.Buffer
	w, err := NewWriter(&buf, refs)
	require.NoError(t, err)
	return w, &buf
}

func eqCigar(n int) htssam.Cigar {
	return htssam.Cigar{htssam.NewCigarOp(htssam.CigarEqual, n)}
}

func TestWriteHeader(t *testing.T) {
	w, buf := testWriter(t)
	require.NoError(t, w.WriteHeader())
	assert.Contains(t, buf.String(), "@SQ\tSN:chrA\tLN:100\n")
}

func TestAdd(t *testing.T) {
	w, buf := testWriter(t)
	aln := align.Alignment{
		Cigar:    eqCigar(8),
		Score:    36,
		RefStart: 1,
		Length:   8,
		MapQ:     60,
	}
	rec := fastq.Record{Name: "r1", Seq: "CGTACGTA", Qual: "IIIIIIII"}
	require.NoError(t, w.Add(aln, rec, "TACGTACG", true, align.Details{}))
	assert.Equal(t, "r1\t0\tchrA\t2\t60\t8=\t*\t0\t0\tCGTACGTA\tIIIIIIII\tNM:i:0\tAS:i:36\n", buf.String())
}

func TestAddReverse(t *testing.T) {
	w, buf := testWriter(t)
	aln := align.Alignment{
		Cigar:    eqCigar(8),
		Score:    36,
		RefStart: 4,
		Length:   8,
		IsRC:     true,
		MapQ:     60,
	}
	rec := fastq.Record{Name: "r1", Seq: "TACGTACG", Qual: "ABCDEFGH"}
	require.NoError(t, w.Add(aln, rec, "CGTACGTA", true, align.Details{}))

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	assert.Equal(t, "16", fields[1])
	assert.Equal(t, "CGTACGTA", fields[9]) // reverse complement emitted
	assert.Equal(t, "HGFEDCBA", fields[10])
}

func TestAddSecondary(t *testing.T) {
	w, buf := testWriter(t)
	aln := align.Alignment{Cigar: eqCigar(8), RefStart: 1, Length: 8, MapQ: 255}
	rec := fastq.Record{Name: "r1", Seq: "CGTACGTA", Qual: "IIIIIIII"}
	require.NoError(t, w.Add(aln, rec, "TACGTACG", false, align.Details{}))
	fields := strings.Split(buf.String(), "\t")
	assert.Equal(t, "256", fields[1])
	assert.Equal(t, "255", fields[4])
}

func TestAddUnmapped(t *testing.T) {
	w, buf := testWriter(t)
	rec := fastq.Record{Name: "r1", Seq: "ACGT", Qual: "IIII"}
	require.NoError(t, w.AddUnmapped(rec))
	assert.Equal(t, "r1\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\tIIII\n", buf.String())
}

func TestAddPairProper(t *testing.T) {
	w, buf := testWriter(t)
	a1 := align.Alignment{Cigar: eqCigar(8), Score: 36, RefStart: 2, Length: 8}
	a2 := align.Alignment{Cigar: eqCigar(8), Score: 36, RefStart: 20, Length: 8, IsRC: true}
	rec1 := fastq.Record{Name: "p", Seq: "GTACGTAC", Qual: "IIIIIIII"}
	rec2 := fastq.Record{Name: "p", Seq: "GTACGTAC", Qual: "IIIIIIII"}
	require.NoError(t, w.AddPair(a1, a2, rec1, rec2, "GTACGTAC", "GTACGTAC", 60, 60, true, true, [2]align.Details{}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	f1 := strings.Split(lines[0], "\t")
	f2 := strings.Split(lines[1], "\t")
	// Paired|ProperPair|MateReverse|Read1
	assert.Equal(t, "99", f1[1])
	// Paired|ProperPair|Reverse|Read2
	assert.Equal(t, "147", f2[1])
	assert.Equal(t, "3", f1[3])
	assert.Equal(t, "21", f2[3])
	assert.Equal(t, "=", f1[6])
	assert.Equal(t, "21", f1[7])
	assert.Equal(t, "26", f1[8])
	assert.Equal(t, "-26", f2[8])
}

func TestAddPairMateUnmapped(t *testing.T) {
	w, buf := testWriter(t)
	a1 := align.Alignment{Cigar: eqCigar(8), Score: 36, RefStart: 2, Length: 8}
	a2 := align.Alignment{IsUnaligned: true}
	rec1 := fastq.Record{Name: "p", Seq: "GTACGTAC", Qual: "IIIIIIII"}
	rec2 := fastq.Record{Name: "p", Seq: "TTTTTTTT", Qual: "IIIIIIII"}
	require.NoError(t, w.AddPair(a1, a2, rec1, rec2, "GTACGTAC", "AAAAAAAA", 60, 0, false, true, [2]align.Details{}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	f1 := strings.Split(lines[0], "\t")
	f2 := strings.Split(lines[1], "\t")
	// Paired|MateUnmapped|Read1
	assert.Equal(t, "73", f1[1])
	// Paired|Unmapped|Read2, placed at the mate's coordinates
	assert.Equal(t, "133", f2[1])
	assert.Equal(t, "chrA", f2[2])
	assert.Equal(t, "3", f2[3])
	assert.Equal(t, "*", f2[5])
	assert.Equal(t, "0", f1[8])
	assert.Equal(t, "0", f2[8])
}

func TestAddUnmappedPair(t *testing.T) {
	w, buf := testWriter(t)
	rec1 := fastq.Record{Name: "p", Seq: "ACGT", Qual: "IIII"}
	rec2 := fastq.Record{Name: "p", Seq: "TTTT", Qual: "IIII"}
	require.NoError(t, w.AddUnmappedPair(rec1, rec2))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "77", strings.Split(lines[0], "\t")[1])
	assert.Equal(t, "141", strings.Split(lines[1], "\t")[1])
}

func TestFork(t *testing.T) {
	w, buf := testWriter(t)
	var other bytes.Buffer
	fork := w.Fork(&other)
	rec := fastq.Record{Name: "r1", Seq: "ACGT", Qual: "IIII"}
	require.NoError(t, fork.AddUnmapped(rec))
	assert.Zero(t, buf.Len())
	assert.Contains(t, other.String(), "r1")
}
