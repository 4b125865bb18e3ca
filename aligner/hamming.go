package aligner

import (
	"github.com/grailbio/hts/sam"
)

// HammingDistance returns the number of mismatching positions between a and
// b, or -1 if the sequences differ in length.
func HammingDistance(a, b string) int {
	if len(a) != len(b) {
		return -1
	}
	d := 0
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// HammingAlign finds the best-scoring ungapped segment of query against ref
// (which must have equal lengths) and reports it with soft clips outside the
// segment. A segment anchored at the first or last base of the query earns
// Scores.EndBonus, matching the gapped aligner's end handling.
func (a *Aligner) HammingAlign(query, ref string) Info {
	if len(query) != len(ref) {
		return Info{}
	}
	n := len(query)

	bestScore, bestStart, bestEnd := 0, 0, 0
	score := a.Scores.EndBonus
	start := 0
	for i := 0; i < n; i++ {
		if query[i] == ref[i] {
			score += a.Scores.Match
		} else {
			score -= a.Scores.Mismatch
		}
		if score < 0 {
			score = 0
			start = i + 1
			continue
		}
		cand := score
		if i == n-1 {
			cand += a.Scores.EndBonus
		}
		if cand > bestScore {
			bestScore, bestStart, bestEnd = cand, start, i+1
		}
	}
	if bestEnd <= bestStart {
		return Info{}
	}

	var cigar sam.Cigar
	push := func(t sam.CigarOpType, n int) {
		if n == 0 {
			return
		}
		cigar = append(cigar, sam.NewCigarOp(t, n))
	}
	push(sam.CigarSoftClipped, bestStart)
	ed := 0
	runType := sam.CigarEqual
	runLen := 0
	for i := bestStart; i < bestEnd; i++ {
		t := sam.CigarEqual
		if query[i] != ref[i] {
			t = sam.CigarMismatch
			ed++
		}
		if t == runType {
			runLen++
			continue
		}
		push(runType, runLen)
		runType, runLen = t, 1
	}
	push(runType, runLen)
	push(sam.CigarSoftClipped, n-bestEnd)

	return Info{
		Cigar:        cigar,
		EditDistance: ed,
		Score:        bestScore,
		RefStart:     bestStart,
		QueryStart:   bestStart,
		QueryEnd:     bestEnd,
	}
}
