package align

import (
	"math"

	"github.com/luispedro/strobealign/fastq"
)

// singleEndMapq derives the mapping quality from the score spread of the top
// two NAMs, following the minimap2 heuristic:
// MAPQ = 40 (1 - s2/s1) min{1, |M|/10} log s1.
func singleEndMapq(nams []Nam) int {
	if len(nams) <= 1 {
		return 60
	}
	s1 := nams[0].Score
	s2 := nams[1].Score
	minMatches := math.Min(float64(nams[0].NHits)/10.0, 1.0)
	uncapped := int(40 * (1 - s2/s1) * minMatches * math.Log(s1))
	return min(uncapped, 60)
}

// AlignSingleEnd walks the score-ranked NAM list, extends candidates until
// the dropoff or attempt caps hit, and emits a primary record plus up to
// MaxSecondary secondaries. An empty NAM list yields one unmapped record.
func (m *Mapper) AlignSingleEnd(nams []Nam, rec fastq.Record, out SAMOutput, details *Details) error {
	if len(nams) == 0 {
		return out.AddUnmapped(rec)
	}

	read := NewRead(rec.Seq)
	var alignments []Alignment
	tries := 0
	nMax := nams[0]

	bestEditDistance := math.MaxInt32
	bestScore := -1000
	best := Alignment{Score: -100000, IsUnaligned: true}
	minMapqDiff := bestEditDistance

	for i := range nams {
		nam := &nams[i]
		scoreDropoff := float64(nam.NHits) / float64(nMax.NHits)
		if tries >= m.Opts.MaxTries || (tries > 1 && bestEditDistance == 0) || scoreDropoff < m.Opts.DropoffThreshold {
			break
		}
		consistent := reverseNamIfNeeded(nam, read, m.Refs, m.K)
		if !consistent {
			details.NAMInconsistent++
		}
		alignment := m.extendNam(*nam, read, consistent)
		details.TriedAlignment++
		if alignment.Gapped {
			details.Gapped++
		}

		diffToBest := abs(bestScore - alignment.Score)
		minMapqDiff = min(minMapqDiff, diffToBest)

		if m.Opts.MaxSecondary > 0 {
			alignments = append(alignments, alignment)
		}
		if alignment.Score > bestScore {
			minMapqDiff = max(0, alignment.Score-bestScore) // new distance to next best match
			bestScore = alignment.Score
			best = alignment
			if m.Opts.MaxSecondary == 0 {
				bestEditDistance = best.GlobalED
			}
		}
		tries++
	}
	if m.Opts.MaxSecondary == 0 {
		best.MapQ = min(minMapqDiff, 60)
		return out.Add(best, rec, read.RC, true, *details)
	}

	sortAlignmentsByScore(alignments)
	maxOut := min(len(alignments), m.Opts.MaxSecondary+1)
	for i := 0; i < maxOut; i++ {
		alignment := alignments[i]
		if bestScore-alignment.Score > m.secondaryDropoff() {
			break
		}
		isPrimary := i == 0
		if isPrimary {
			alignment.MapQ = min(minMapqDiff, 60)
		} else {
			alignment.MapQ = 255
		}
		if err := out.Add(alignment, rec, read.RC, isPrimary, *details); err != nil {
			return err
		}
	}
	return nil
}
