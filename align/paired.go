package align

import (
	"math"
	"sort"

	"github.com/luispedro/strobealign/fastq"
)

// scoredPair is a jointly scored placement of the two mates.
type scoredPair struct {
	Score  float64
	A1, A2 Alignment
}

// namPair is a joint seed candidate. Either side may be the sentinel NAM
// (RefStart == -1) when only one mate has a seed at that location.
type namPair struct {
	JointHits int
	N1, N2    Nam
}

// IsProperPair reports whether the two alignments are placed like a proper
// read pair: same contig, opposite strands in the expected orientation, and
// within mu + 10 sigma of each other.
func IsProperPair(a1, a2 Alignment, mu, sigma float64) bool {
	dist := a2.RefStart - a1.RefStart
	sameRef := a1.RefID == a2.RefID
	bothAligned := sameRef && !a1.IsUnaligned && !a2.IsUnaligned
	r1r2 := !a1.IsRC && a2.IsRC && dist >= 0 // r1 ---> <--- r2
	r2r1 := !a2.IsRC && a1.IsRC && dist <= 0 // r2 ---> <--- r1
	orientationGood := r1r2 || r2r1
	insertGood := float64(abs(dist)) <= mu+10*sigma
	return bothAligned && insertGood && orientationGood
}

// bestScoringPairs combines the per-mate alignment sets into jointly scored
// pairs. Geometrically consistent pairs get an insert-size log-likelihood
// term; all others are treated as independent mappings.
func bestScoringPairs(alignments1, alignments2 []Alignment, mu, sigma float64) []scoredPair {
	var pairs []scoredPair
	for _, a1 := range alignments1 {
		for _, a2 := range alignments2 {
			dist := float64(abs(a1.RefStart - a2.RefStart))
			score := float64(a1.Score) + float64(a2.Score)
			if (a1.IsRC != a2.IsRC) && dist < mu+4*sigma {
				score += math.Log(normalPdf(dist, mu, sigma))
			} else {
				// 10 corresponds to a log density more than 4 stddevs out
				score -= 10
			}
			pairs = append(pairs, scoredPair{score, a1, a2})
		}
	}
	sortScoredPairs(pairs)
	return pairs
}

func sortScoredPairs(pairs []scoredPair) {
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })
}

// bestScoringNamLocations builds the ranked joint candidate list for the
// full paired search: all proper NAM pairs scored by their summed hit
// counts, plus leftover single-sided NAMs paired with a sentinel, gated by
// half the highest joint hit count seen.
func bestScoringNamLocations(nams1, nams2 []Nam, mu, sigma float64) []namPair {
	var jointScores []namPair
	if len(nams1) == 0 && len(nams2) == 0 {
		return jointScores
	}

	added1 := make(map[int]struct{})
	added2 := make(map[int]struct{})
	hjss := 0 // highest joint score seen
	for _, n1 := range nams1 {
		for _, n2 := range nams2 {
			if n1.NHits+n2.NHits < hjss/2 {
				break
			}
			if isProperNamPair(n1, n2, mu, sigma) {
				jointHits := n1.NHits + n2.NHits
				jointScores = append(jointScores, namPair{jointHits, n1, n2})
				added1[n1.ID] = struct{}{}
				added2[n2.ID] = struct{}{}
				if jointHits > hjss {
					hjss = jointHits
				}
			}
		}
	}

	sentinel := Nam{RefStart: -1}
	if len(nams1) > 0 {
		hjss1 := hjss
		if hjss1 == 0 {
			hjss1 = nams1[0].NHits
		}
		for _, n1 := range nams1 {
			if n1.NHits < hjss1/2 {
				break
			}
			if _, ok := added1[n1.ID]; ok {
				continue
			}
			jointScores = append(jointScores, namPair{n1.NHits, n1, sentinel})
		}
	}
	if len(nams2) > 0 {
		hjss2 := hjss
		if hjss2 == 0 {
			hjss2 = nams2[0].NHits
		}
		for _, n2 := range nams2 {
			if n2.NHits < hjss2/2 {
				break
			}
			if _, ok := added2[n2.ID]; ok {
				continue
			}
			jointScores = append(jointScores, namPair{n2.NHits, sentinel, n2})
		}
	}

	sort.SliceStable(jointScores, func(i, j int) bool {
		return jointScores[i].JointHits > jointScores[j].JointHits
	})
	return jointScores
}

// jointMapqFromAlignmentScores turns the top-two pair scores into a shared
// mapping quality for both mates.
func jointMapqFromAlignmentScores(score1, score2 float64) (int, int) {
	var mapq int
	switch {
	case score1 == score2: // at least two identical placements
		mapq = 0
	case score1 > 0 && score2 > 0:
		mapq = min(60, int(score1-score2))
	case score1 > 0:
		mapq = 60
	default: // both negative, one is better
		mapq = 1
	}
	return mapq, mapq
}

// jointMapqFromHighScores computes the paired mapping quality from the
// ranked pair list. When the two best entries are the same placement (the
// individually best alignments can duplicate the joint best), the third
// entry is used as the runner-up instead.
func jointMapqFromHighScores(highScores []scoredPair) (int, int) {
	if len(highScores) <= 1 {
		return 60, 60
	}
	first := highScores[0]
	second := highScores[1]
	samePos := first.A1.RefStart == second.A1.RefStart && first.A2.RefStart == second.A2.RefStart
	sameRef := first.A1.RefID == second.A1.RefID && first.A2.RefID == second.A2.RefID
	if !samePos || !sameRef {
		return jointMapqFromAlignmentScores(first.Score, second.Score)
	}
	if len(highScores) > 2 {
		return jointMapqFromAlignmentScores(first.Score, highScores[2].Score)
	}
	// there was no other alignment
	return 60, 60
}

// AlignPairedEnd maps one read pair. There are four regimes: neither mate
// has NAMs (unmapped pair), exactly one has NAMs (rescue from the anchored
// side), both have NAMs with a dominant proper NAM pair (extend the two top
// NAMs directly), and the general case (joint search over NAM combinations
// with memoized extensions and sentinel-driven rescue).
func (m *Mapper) AlignPairedEnd(
	nams1, nams2 []Nam,
	rec1, rec2 fastq.Record,
	est *InsertSizeEstimator,
	out SAMOutput,
	details *[2]Details,
) error {
	mu, sigma := est.Mu, est.Sigma
	read1 := NewRead(rec1.Seq)
	read2 := NewRead(rec2.Seq)

	if len(nams1) == 0 && len(nams2) == 0 {
		// none of the reads have any NAMs
		return out.AddUnmappedPair(rec1, rec2)
	}

	if len(nams1) > 0 && len(nams2) == 0 {
		// only read 1 has NAMs: attempt to rescue read 2
		return m.rescueRead(read2, read1, nams1, rec1, rec2, est, out, details, false)
	}
	if len(nams1) == 0 && len(nams2) > 0 {
		// only read 2 has NAMs: attempt to rescue read 1
		return m.rescueRead(read1, read2, nams2, rec2, rec1, est, out, details, true)
	}

	if topDropoff(nams1) < m.Opts.DropoffThreshold && topDropoff(nams2) < m.Opts.DropoffThreshold &&
		isProperNamPair(nams1[0], nams2[0], mu, sigma) {
		// fast path: both reads have a dominant NAM and the two top NAMs
		// already form a proper pair
		nMax1 := nams1[0]
		nMax2 := nams2[0]

		consistent1 := reverseNamIfNeeded(&nMax1, read1, m.Refs, m.K)
		if !consistent1 {
			details[0].NAMInconsistent++
		}
		consistent2 := reverseNamIfNeeded(&nMax2, read2, m.Refs, m.K)
		if !consistent2 {
			details[1].NAMInconsistent++
		}

		a1 := m.extendNam(nMax1, read1, consistent1)
		details[0].TriedAlignment++
		if a1.Gapped {
			details[0].Gapped++
		}
		a2 := m.extendNam(nMax2, read2, consistent2)
		details[1].TriedAlignment++
		if a2.Gapped {
			details[1].Gapped++
		}
		mapq1 := singleEndMapq(nams1)
		mapq2 := singleEndMapq(nams2)
		isProper := IsProperPair(a1, a2, mu, sigma)
		if err := out.AddPair(a1, a2, rec1, rec2, read1.RC, read2.RC, mapq1, mapq2, isProper, true, *details); err != nil {
			return err
		}
		if est.SampleSize < 400 && a1.EditDistance+a2.EditDistance < 3 && isProper {
			est.Update(abs(a1.RefStart - a2.RefStart))
		}
		return nil
	}

	// do full search for the highest scoring pair
	tries := 0
	jointNamScores := bestScoringNamLocations(nams1, nams2, mu, sigma)
	maxScore := jointNamScores[0].JointHits

	isAligned1 := make(map[int]Alignment)
	isAligned2 := make(map[int]Alignment)

	n1Max := nams1[0]
	consistent1 := reverseNamIfNeeded(&n1Max, read1, m.Refs, m.K)
	if !consistent1 {
		details[0].NAMInconsistent++
	}
	a1IndvMax := m.extendNam(n1Max, read1, consistent1)
	isAligned1[n1Max.ID] = a1IndvMax
	details[0].TriedAlignment++
	if a1IndvMax.Gapped {
		details[0].Gapped++
	}

	n2Max := nams2[0]
	consistent2 := reverseNamIfNeeded(&n2Max, read2, m.Refs, m.K)
	if !consistent2 {
		details[1].NAMInconsistent++
	}
	a2IndvMax := m.extendNam(n2Max, read2, consistent2)
	isAligned2[n2Max.ID] = a2IndvMax
	details[1].TriedAlignment++
	if a2IndvMax.Gapped {
		details[1].Gapped++
	}

	var highScores []scoredPair
	for _, joint := range jointNamScores {
		scoreDropoff := float64(joint.JointHits) / float64(maxScore)
		if tries >= m.Opts.MaxTries || scoreDropoff < m.Opts.DropoffThreshold {
			break
		}
		n1, n2 := joint.N1, joint.N2

		var a1 Alignment
		if n1.RefStart >= 0 {
			if cached, ok := isAligned1[n1.ID]; ok {
				a1 = cached
			} else {
				consistent := reverseNamIfNeeded(&n1, read1, m.Refs, m.K)
				if !consistent {
					details[0].NAMInconsistent++
				}
				a1 = m.extendNam(n1, read1, consistent)
				isAligned1[n1.ID] = a1
				details[0].TriedAlignment++
				if a1.Gapped {
					details[0].Gapped++
				}
			}
		} else {
			// force gapped alignment to rescue the mate
			var attempted bool
			a1, attempted = m.rescueMate(&n2, read2, read1, mu, sigma)
			if attempted {
				details[0].MateRescue++
				details[0].TriedAlignment++
			}
		}
		if a1.Score > a1IndvMax.Score {
			a1IndvMax = a1
		}

		var a2 Alignment
		if n2.RefStart >= 0 {
			if cached, ok := isAligned2[n2.ID]; ok {
				a2 = cached
			} else {
				consistent := reverseNamIfNeeded(&n2, read2, m.Refs, m.K)
				if !consistent {
					details[1].NAMInconsistent++
				}
				a2 = m.extendNam(n2, read2, consistent)
				isAligned2[n2.ID] = a2
				details[1].TriedAlignment++
				if a2.Gapped {
					details[1].Gapped++
				}
			}
		} else {
			// force gapped alignment to rescue the mate
			var attempted bool
			a2, attempted = m.rescueMate(&n1, read1, read2, mu, sigma)
			if attempted {
				details[1].MateRescue++
				details[1].TriedAlignment++
			}
		}
		if a2.Score > a2IndvMax.Score {
			a2IndvMax = a2
		}

		r1r2 := a2.IsRC && a1.RefStart <= a2.RefStart && float64(a2.RefStart-a1.RefStart) < mu+10*sigma // r1 ---> <--- r2
		r2r1 := a1.IsRC && a2.RefStart <= a1.RefStart && float64(a1.RefStart-a2.RefStart) < mu+10*sigma // r2 ---> <--- r1

		var s float64
		if r1r2 || r2r1 {
			x := float64(abs(a1.RefStart - a2.RefStart))
			s = float64(a1.Score) + float64(a2.Score) + math.Log(normalPdf(x, mu, sigma))
		} else {
			// 20 corresponds to a log density more than 5 stddevs out
			s = float64(a1.Score) + float64(a2.Score) - 20
		}
		highScores = append(highScores, scoredPair{s, a1, a2})
		tries++
	}

	// finally, add the highest scores of both mates as individually mapped
	s := float64(a1IndvMax.Score) + float64(a2IndvMax.Score) - 20
	highScores = append(highScores, scoredPair{s, a1IndvMax, a2IndvMax})
	sortScoredPairs(highScores)

	mapq1, mapq2 := jointMapqFromHighScores(highScores)

	best := highScores[0]
	alignment1, alignment2 := best.A1, best.A2
	if m.Opts.MaxSecondary == 0 {
		isProper := IsProperPair(alignment1, alignment2, mu, sigma)
		return out.AddPair(alignment1, alignment2, rec1, rec2, read1.RC, read2.RC, mapq1, mapq2, isProper, true, *details)
	}

	maxOut := min(len(highScores), m.Opts.MaxSecondary+1)
	sMax := best.Score
	prevStart1, prevStart2 := alignment1.RefStart, alignment2.RefStart
	prevRef1, prevRef2 := alignment1.RefID, alignment2.RefID
	for i := 0; i < maxOut; i++ {
		pair := highScores[i]
		alignment1, alignment2 = pair.A1, pair.A2
		isPrimary := i == 0
		if !isPrimary {
			mapq1, mapq2 = 255, 255
			// skip exact duplicates of the previous placement; they come
			// from adding the individually best alignments above
			samePos := prevStart1 == alignment1.RefStart && prevStart2 == alignment2.RefStart
			sameRef := prevRef1 == alignment1.RefID && prevRef2 == alignment2.RefID
			if samePos && sameRef {
				continue
			}
		}
		if sMax-pair.Score >= float64(m.secondaryDropoff()) {
			break
		}
		isProper := IsProperPair(alignment1, alignment2, mu, sigma)
		if err := out.AddPair(alignment1, alignment2, rec1, rec2, read1.RC, read2.RC, mapq1, mapq2, isProper, isPrimary, *details); err != nil {
			return err
		}
		prevStart1, prevStart2 = alignment1.RefStart, alignment2.RefStart
		prevRef1, prevRef2 = alignment1.RefID, alignment2.RefID
	}
	return nil
}

// BestMapLocation chooses the NAM reported for each mate on the mapping-only
// (PAF) path: the best geometrically consistent joint placement if it beats
// the individually best NAMs after halving their scores, the individual tops
// otherwise. Confident joint choices also feed the insert size estimator
// during warm-up. Sentinel NAMs (RefStart == -1) mean unmapped.
func (m *Mapper) BestMapLocation(nams1, nams2 []Nam, est *InsertSizeEstimator) (Nam, Nam) {
	best1 := Nam{RefStart: -1}
	best2 := Nam{RefStart: -1}
	jointNamScores := bestScoringNamLocations(nams1, nams2, est.Mu, est.Sigma)
	if len(jointNamScores) == 0 {
		return best1, best2
	}

	var n1Joint, n2Joint Nam
	scoreJoint := 0.0
	scoreIndiv := 0.0
	for _, joint := range jointNamScores { // already sorted by descending score
		if joint.N1.RefStart >= 0 && joint.N2.RefStart >= 0 { // valid pair
			scoreJoint = joint.N1.Score + joint.N2.Score
			n1Joint, n2Joint = joint.N1, joint.N2
			break
		}
	}

	if len(nams1) > 0 {
		// halved score penalizes being mapped individually
		scoreIndiv += nams1[0].Score / 2
		best1 = nams1[0]
	}
	if len(nams2) > 0 {
		scoreIndiv += nams2[0].Score / 2
		best2 = nams2[0]
	}
	if scoreJoint > scoreIndiv {
		best1, best2 = n1Joint, n2Joint
	}

	if est.SampleSize < 400 && scoreJoint > scoreIndiv {
		est.Update(abs(n1Joint.RefStart - n2Joint.RefStart))
	}
	return best1, best2
}
