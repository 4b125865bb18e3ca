// Package align implements the read-to-reference alignment core of the
// mapper: it turns ranked seed candidates (NAMs) into base-level placements,
// scores mate pairs jointly, rescues unseeded mates, estimates the insert
// size distribution online, and computes mapping qualities.
//
// The package performs no I/O. Finished records are handed to the SAMOutput
// and PAFOutput interfaces, implemented by the sam and paf packages.
package align

import (
	"sort"

	"github.com/luispedro/strobealign/aligner"
	"github.com/luispedro/strobealign/fasta"
	"github.com/luispedro/strobealign/fastq"
)

// SAMOutput consumes finished alignment records. The primary implementation
// is sam.Writer.
type SAMOutput interface {
	// Add emits a single-end record. readRC is the precomputed reverse
	// complement of the read sequence.
	Add(aln Alignment, rec fastq.Record, readRC string, isPrimary bool, details Details) error
	// AddPair emits one record per mate.
	AddPair(aln1, aln2 Alignment, rec1, rec2 fastq.Record, readRC1, readRC2 string, mapq1, mapq2 int, isProper, isPrimary bool, details [2]Details) error
	AddUnmapped(rec fastq.Record) error
	AddUnmappedPair(rec1, rec2 fastq.Record) error
}

// PAFOutput consumes the chosen NAM per read on the mapping-only path.
type PAFOutput interface {
	// AddHit emits the best NAM of the list, or nothing if the list is empty.
	AddHit(nams []Nam, name string, readLen int) error
	// AddHitPaired emits the chosen NAM of one mate; a sentinel NAM
	// (RefStart < 0) emits nothing.
	AddHitPaired(nam Nam, name string, readLen int) error
}

// NamFinder produces seed candidates for a read sequence. Find returns the
// fraction of non-repetitive seeds together with the (unsorted) NAM list;
// FindRescue retries with the given occurrence cutoff when the first pass
// came back empty or mostly repetitive.
type NamFinder interface {
	Find(seq string) (nonrepetitiveFraction float64, nams []Nam)
	FindRescue(seq string, cutoff int) []Nam
}

// Mapper drives alignment for one worker. It holds only read-only or
// worker-local state and is not safe for concurrent use; create one Mapper
// per worker goroutine.
type Mapper struct {
	Aligner *aligner.Aligner
	Refs    *fasta.References
	Opts    MappingOpts
	K       int // seed k-mer length
}

// extendNam extends a NAM so that it covers the entire read and returns the
// resulting alignment.
//
// The NAM is projected to whole-read reference coordinates. If the projected
// window has exactly the read's length and the NAM orientation was verified,
// a Hamming comparison decides whether the cheap ungapped scorer suffices
// (mismatch rate below 5%); otherwise the window is padded by up to 50 bases
// on each side and the gapped aligner runs.
func (m *Mapper) extendNam(nam Nam, read Read, consistentNam bool) Alignment {
	query := read.Seq
	if nam.IsRC {
		query = read.RC
	}
	ref := m.Refs.Sequences[nam.RefID]

	projStart := max(0, nam.RefStart-nam.QueryStart)
	projEnd := min(nam.RefEnd+(read.Len()-nam.QueryEnd), len(ref))

	var info aligner.Info
	var refStart int
	gapped := true
	if projEnd-projStart == len(query) && consistentNam {
		segment := ref[projStart : projStart+len(query)]
		hamming := aligner.HammingDistance(query, segment)
		if hamming >= 0 && float64(hamming)/float64(len(query)) < 0.05 {
			info = m.Aligner.HammingAlign(query, segment)
			refStart = projStart + info.RefStart
			gapped = false
		}
	}
	if gapped {
		diff := abs(nam.RefSpan() - nam.QuerySpan())
		extLeft := min(50, projStart)
		segStart := projStart - extLeft
		extRight := min(50, len(ref)-nam.RefEnd)
		segEnd := min(segStart+read.Len()+diff+extLeft+extRight, len(ref))
		info = m.Aligner.Align(query, ref[segStart:segEnd])
		refStart = segStart + info.RefStart
	}
	softClipped := info.QueryStart + (len(query) - info.QueryEnd)
	return Alignment{
		Cigar:        info.Cigar,
		EditDistance: info.EditDistance,
		GlobalED:     info.EditDistance + softClipped,
		Score:        info.Score,
		RefStart:     refStart,
		Length:       info.RefSpan(),
		IsRC:         nam.IsRC,
		IsUnaligned:  false,
		RefID:        nam.RefID,
		Gapped:       gapped,
	}
}

func sortAlignmentsByScore(alignments []Alignment) {
	sort.SliceStable(alignments, func(i, j int) bool {
		return alignments[i].Score > alignments[j].Score
	})
}

func (m *Mapper) secondaryDropoff() int {
	return 2*m.Aligner.Scores.Mismatch + m.Aligner.Scores.GapOpen
}
