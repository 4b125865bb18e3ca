package align

import (
	"sort"

	"github.com/luispedro/strobealign/fasta"
)

// Nam is a Non-overlapping Approximate Match: a merged seed hit covering an
// interval of the reference and an interval of the query. NAMs are produced
// by the seeding stage and consumed here; the only mutation the alignment
// stage performs is the orientation fix in reverseNamIfNeeded.
//
// A Nam with RefStart == -1 is the "no seed available" sentinel used in
// joint pair candidates.
type Nam struct {
	ID         int
	RefID      int
	RefStart   int
	RefEnd     int
	QueryStart int
	QueryEnd   int
	NHits      int
	Score      float64
	IsRC       bool
}

// RefSpan returns the number of reference bases the NAM covers.
func (n Nam) RefSpan() int { return n.RefEnd - n.RefStart }

// QuerySpan returns the number of query bases the NAM covers.
func (n Nam) QuerySpan() int { return n.QueryEnd - n.QueryStart }

// SortByScore sorts NAMs by score, highest first. The sort is stable so that
// score ties preserve the seeder's order.
func SortByScore(nams []Nam) {
	sort.SliceStable(nams, func(i, j int) bool { return nams[i].Score > nams[j].Score })
}

// reverseNamIfNeeded determines whether the NAM represents a match to the
// forward or reverse-complemented read by checking in which orientation its
// first and last k-mer match the reference.
//
//   - If both end k-mers match in the recorded orientation, return true.
//   - If they match in the opposite orientation, update the NAM in place
//     (flip the strand, mirror the query coordinates) and return true.
//   - Otherwise return false.
//
// The second check is needed because symmetric seed hashes can register a
// hit in the wrong orientation.
func reverseNamIfNeeded(nam *Nam, read Read, refs *fasta.References, k int) bool {
	ref := refs.Sequences[nam.RefID]
	refStartKmer := ref[nam.RefStart : nam.RefStart+k]
	refEndKmer := ref[nam.RefEnd-k : nam.RefEnd]

	seq, seqRC := read.Seq, read.RC
	if nam.IsRC {
		seq, seqRC = read.RC, read.Seq
	}
	if seq[nam.QueryStart:nam.QueryStart+k] == refStartKmer &&
		seq[nam.QueryEnd-k:nam.QueryEnd] == refEndKmer {
		return true
	}

	qStart := read.Len() - nam.QueryEnd
	qEnd := read.Len() - nam.QueryStart
	if seqRC[qStart:qStart+k] == refStartKmer && seqRC[qEnd-k:qEnd] == refEndKmer {
		nam.IsRC = !nam.IsRC
		nam.QueryStart = qStart
		nam.QueryEnd = qEnd
		return true
	}
	return false
}

// topDropoff computes the hit-count dropoff of the first (top) NAM relative
// to the second.
func topDropoff(nams []Nam) float64 {
	nMax := nams[0]
	if nMax.NHits <= 2 {
		return 1.0
	}
	if len(nams) > 1 {
		return float64(nams[1].NHits) / float64(nMax.NHits)
	}
	return 0.0
}

// isProperNamPair reports whether two NAMs are placed like a proper read
// pair: same contig, opposite strands, and the forward mate's extrapolated
// start preceding the reverse mate's by less than mu + 10 sigma.
func isProperNamPair(nam1, nam2 Nam, mu, sigma float64) bool {
	if nam1.RefID != nam2.RefID || nam1.IsRC == nam2.IsRC {
		return false
	}
	a := max(0, nam1.RefStart-nam1.QueryStart)
	b := max(0, nam2.RefStart-nam2.QueryStart)

	// r1 ---> <--- r2
	r1r2 := nam2.IsRC && a <= b && float64(b-a) < mu+10*sigma

	// r2 ---> <--- r1
	r2r1 := nam1.IsRC && b <= a && float64(a-b) < mu+10*sigma

	return r1r2 || r2r1
}
