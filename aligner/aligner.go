// Package aligner implements the base-level alignment kernel used by the
// extension stage: an affine-gap local (Smith-Waterman) aligner with soft
// clipping and an end bonus, and a cheaper ungapped (Hamming) variant for
// reads whose seed projection already spans the whole read.
package aligner

import (
	"github.com/grailbio/hts/sam"
)

// Scores holds the alignment scoring parameters. All values are positive;
// Mismatch, GapOpen and GapExtend are penalties. EndBonus rewards alignments
// that reach the first or last base of the query, which biases the aligner
// against needless soft clipping.
type Scores struct {
	Match     int
	Mismatch  int
	GapOpen   int
	GapExtend int
	EndBonus  int
}

// DefaultScores are the default mapping scores.
var DefaultScores = Scores{
	Match:     2,
	Mismatch:  8,
	GapOpen:   12,
	GapExtend: 1,
	EndBonus:  10,
}

// Info is the result of one kernel invocation. An empty Cigar means no
// alignment with positive score was found.
//
// RefStart is relative to the start of the reference segment handed to the
// kernel; the caller translates it to contig coordinates. QueryStart and
// QueryEnd delimit the aligned (not soft-clipped) part of the query.
type Info struct {
	Cigar        sam.Cigar
	EditDistance int
	Score        int
	RefStart     int
	QueryStart   int
	QueryEnd     int
}

// RefSpan returns the number of reference bases the alignment consumes.
func (i Info) RefSpan() int {
	ref, _ := i.Cigar.Lengths()
	return ref
}

// Aligner carries the scoring parameters. One Aligner is owned by each
// worker; it has no mutable state beyond scratch buffers.
type Aligner struct {
	Scores Scores

	// scratch matrices, grown on demand
	h, e, f    []int
	th, te, tf []uint8
}

// New returns an Aligner with the given scores.
func New(s Scores) *Aligner {
	return &Aligner{Scores: s}
}

// traceback codes for the H matrix
const (
	tbStop uint8 = iota
	tbDiag
	tbFromE
	tbFromF
)

func (a *Aligner) grow(cells int) {
	if cap(a.h) < cells {
		a.h = make([]int, cells)
		a.e = make([]int, cells)
		a.f = make([]int, cells)
		a.th = make([]uint8, cells)
		a.te = make([]uint8, cells)
		a.tf = make([]uint8, cells)
	}
	a.h = a.h[:cells]
	a.e = a.e[:cells]
	a.f = a.f[:cells]
	a.th = a.th[:cells]
	a.te = a.te[:cells]
	a.tf = a.tf[:cells]
}

// Align performs local alignment of query against ref with affine gap
// penalties and full traceback. Bases of the query outside the aligned
// segment are reported as soft clips. Alignments that reach the query start
// or end collect Scores.EndBonus, so the returned Score may exceed the sum of
// per-column scores.
func (a *Aligner) Align(query, ref string) Info {
	m, n := len(query), len(ref)
	if m == 0 || n == 0 {
		return Info{}
	}
	w := n + 1
	a.grow((m + 1) * w)
	h, e, f := a.h, a.e, a.f
	th, te, tf := a.th, a.te, a.tf

	// Row 0 carries the end bonus: an alignment whose path starts there
	// begins at query position 0.
	for j := 0; j <= n; j++ {
		h[j] = a.Scores.EndBonus
		e[j] = negInf
		f[j] = negInf
		th[j] = tbStop
	}
	for i := 1; i <= m; i++ {
		h[i*w] = 0
		e[i*w] = negInf
		f[i*w] = negInf
		th[i*w] = tbStop
	}

	bestScore, bestI, bestJ := 0, 0, 0
	for i := 1; i <= m; i++ {
		qc := query[i-1]
		for j := 1; j <= n; j++ {
			c := i*w + j

			eOpen := h[c-1] - a.Scores.GapOpen
			eExt := e[c-1] - a.Scores.GapExtend
			if eExt > eOpen {
				e[c] = eExt
				te[c] = 1
			} else {
				e[c] = eOpen
				te[c] = 0
			}

			fOpen := h[c-w] - a.Scores.GapOpen
			fExt := f[c-w] - a.Scores.GapExtend
			if fExt > fOpen {
				f[c] = fExt
				tf[c] = 1
			} else {
				f[c] = fOpen
				tf[c] = 0
			}

			sub := -a.Scores.Mismatch
			if qc == ref[j-1] {
				sub = a.Scores.Match
			}
			diag := h[c-w-1] + sub

			best, tb := 0, tbStop
			if diag > best {
				best, tb = diag, tbDiag
			}
			if e[c] > best {
				best, tb = e[c], tbFromE
			}
			if f[c] > best {
				best, tb = f[c], tbFromF
			}
			h[c] = best
			th[c] = tb

			cand := best
			if i == m {
				cand += a.Scores.EndBonus
			}
			if cand > bestScore {
				bestScore, bestI, bestJ = cand, i, j
			}
		}
	}
	if bestScore <= 0 {
		return Info{}
	}
	return a.traceback(query, bestScore, bestI, bestJ, w)
}

const negInf = -(1 << 30)

func (a *Aligner) traceback(query string, score, bi, bj, w int) Info {
	m := len(query)
	h, th, te, tf := a.h, a.th, a.te, a.tf

	var rev []sam.CigarOp
	push := func(t sam.CigarOpType, n int) {
		if n == 0 {
			return
		}
		if len(rev) > 0 && rev[len(rev)-1].Type() == t {
			rev[len(rev)-1] = sam.NewCigarOp(t, rev[len(rev)-1].Len()+n)
			return
		}
		rev = append(rev, sam.NewCigarOp(t, n))
	}

	i, j := bi, bj
	ed := 0
	const (
		stH = iota
		stE
		stF
	)
	state := stH
loop:
	for i > 0 {
		c := i*w + j
		switch state {
		case stH:
			switch th[c] {
			case tbDiag:
				if h[c]-h[c-w-1] == a.Scores.Match {
					push(sam.CigarEqual, 1)
				} else {
					push(sam.CigarMismatch, 1)
					ed++
				}
				i--
				j--
			case tbFromE:
				state = stE
			case tbFromF:
				state = stF
			default:
				break loop
			}
		case stE:
			push(sam.CigarDeletion, 1)
			ed++
			if te[c] == 0 {
				state = stH
			}
			j--
		case stF:
			push(sam.CigarInsertion, 1)
			ed++
			if tf[c] == 0 {
				state = stH
			}
			i--
		}
	}

	qs, qe := i, bi
	var cigar sam.Cigar
	if qs > 0 {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, qs))
	}
	for k := len(rev) - 1; k >= 0; k-- {
		cigar = append(cigar, rev[k])
	}
	if qe < m {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, m-qe))
	}
	return Info{
		Cigar:        cigar,
		EditDistance: ed,
		Score:        score,
		RefStart:     j,
		QueryStart:   qs,
		QueryEnd:     qe,
	}
}
