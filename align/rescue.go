package align

import (
	"strings"

	"github.com/luispedro/strobealign/fastq"
)

// hasSharedSubstring reports (roughly) whether the read sequence has some
// l-mer (l = 2k/3) in common with the reference segment, sampling every k/3
// positions. It gates mate rescue so that hopeless windows skip the gapped
// aligner entirely.
func hasSharedSubstring(readSeq, refSeq string, k int) bool {
	subSize := 2 * k / 3
	stepSize := k / 3
	for i := 0; i+subSize < len(readSeq); i += stepSize {
		if strings.Contains(refSeq, readSeq[i:i+subSize]) {
			return true
		}
	}
	return false
}

// rescueMate computes an alignment for a mate that has no seeds of its own,
// inside a reference window derived from the guiding NAM's placement and the
// insert size estimate. The guiding NAM is re-oriented first and may be
// mutated. Returns the alignment and whether gapped alignment was actually
// attempted.
func (m *Mapper) rescueMate(nam *Nam, guide, read Read, mu, sigma float64) (Alignment, bool) {
	var a, b int
	var rTmp string
	var aIsRC bool
	readLen := read.Len()

	reverseNamIfNeeded(nam, guide, m.Refs, m.K)
	if nam.IsRC {
		rTmp = read.Seq
		a = nam.RefStart - nam.QueryStart - int(mu+5*sigma)
		b = nam.RefStart - nam.QueryStart + readLen/2 // at most half read overlap
		aIsRC = false
	} else {
		rTmp = read.RC // mate is rc since fr orientation
		a = nam.RefEnd + (readLen - nam.QueryEnd) - readLen/2 // at most half read overlap
		b = nam.RefEnd + (readLen - nam.QueryEnd) + int(mu+5*sigma)
		aIsRC = true
	}

	refLen := m.Refs.Lengths[nam.RefID]
	refStart := max(0, min(a, refLen))
	refEnd := min(refLen, max(0, b))

	unmapped := Alignment{
		EditDistance: readLen,
		IsRC:         nam.IsRC,
		RefID:        nam.RefID,
		IsUnaligned:  true,
	}
	if refEnd < refStart+m.K {
		return unmapped, false
	}
	segment := m.Refs.Sequences[nam.RefID][refStart:refEnd]
	if !hasSharedSubstring(rTmp, segment, m.K) {
		return unmapped, false
	}
	info := m.Aligner.Align(rTmp, segment)
	return Alignment{
		Cigar:        info.Cigar,
		EditDistance: info.EditDistance,
		Score:        info.Score,
		RefStart:     refStart + info.RefStart,
		IsRC:         aIsRC,
		RefID:        nam.RefID,
		IsUnaligned:  len(info.Cigar) == 0,
		Length:       info.RefSpan(),
	}, true
}

// rescueRead aligns the mate that has NAMs (read1 here) and rescues the
// other from each candidate placement. Inside this function index 0 of
// details refers to the anchored read and index 1 to the rescued one; when
// swapR1R2 is set the emitted records and details are swapped back so that
// mate identity is preserved.
func (m *Mapper) rescueRead(
	read2, read1 Read, // read2 is rescued, read1 has NAMs
	nams1 []Nam,
	rec1, rec2 fastq.Record,
	est *InsertSizeEstimator,
	out SAMOutput,
	details *[2]Details,
	swapR1R2 bool,
) error {
	mu, sigma := est.Mu, est.Sigma
	nMax1 := nams1[0]
	tries := 0

	var alignments1, alignments2 []Alignment
	for i := range nams1 {
		nam := &nams1[i]
		scoreDropoff := float64(nam.NHits) / float64(nMax1.NHits)
		// only consider top hits and stop below the dropoff cutoff
		if tries >= m.Opts.MaxTries || scoreDropoff < m.Opts.DropoffThreshold {
			break
		}

		consistent := reverseNamIfNeeded(nam, read1, m.Refs, m.K)
		if !consistent {
			details[0].NAMInconsistent++
		}
		a1 := m.extendNam(*nam, read1, consistent)
		if a1.Gapped {
			details[0].Gapped++
		}
		alignments1 = append(alignments1, a1)
		details[0].TriedAlignment++

		a2, attempted := m.rescueMate(nam, read1, read2, mu, sigma)
		if attempted {
			details[1].MateRescue++
		}
		alignments2 = append(alignments2, a2)

		tries++
	}
	sortAlignmentsByScore(alignments1)
	sortAlignmentsByScore(alignments2)

	highScores := bestScoringPairs(alignments1, alignments2, mu, sigma)

	mapq1, mapq2 := 60, 60
	if len(highScores) > 1 {
		mapq1, mapq2 = jointMapqFromAlignmentScores(highScores[0].Score, highScores[1].Score)
	}

	emit := func(a1, a2 Alignment, mq1, mq2 int, isPrimary bool) error {
		if swapR1R2 {
			isProper := IsProperPair(a2, a1, mu, sigma)
			swapped := [2]Details{details[1], details[0]}
			return out.AddPair(a2, a1, rec2, rec1, read2.RC, read1.RC, mq2, mq1, isProper, isPrimary, swapped)
		}
		isProper := IsProperPair(a1, a2, mu, sigma)
		return out.AddPair(a1, a2, rec1, rec2, read1.RC, read2.RC, mq1, mq2, isProper, isPrimary, *details)
	}

	if m.Opts.MaxSecondary == 0 {
		best := highScores[0]
		return emit(best.A1, best.A2, mapq1, mapq2, true)
	}
	maxOut := min(len(highScores), m.Opts.MaxSecondary+1)
	sMax := highScores[0].Score
	for i := 0; i < maxOut; i++ {
		isPrimary := i == 0
		if !isPrimary {
			mapq1, mapq2 = 0, 0
		}
		pair := highScores[i]
		if sMax-pair.Score >= float64(m.secondaryDropoff()) {
			break
		}
		if err := emit(pair.A1, pair.A2, mapq1, mapq2, isPrimary); err != nil {
			return err
		}
	}
	return nil
}
