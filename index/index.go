// Package index provides an exact k-mer seed index over the references. It
// produces merged, score-ranked NAM candidates for a query in both
// orientations, plus the non-repetitive seed fraction that drives rescue
// re-seeding. It implements align.NamFinder.
package index

import (
	"sort"

	"github.com/luispedro/strobealign/align"
	"github.com/luispedro/strobealign/fasta"
)

const invalidBase = uint8(255)

var baseBits [256]uint8

func init() {
	for i := range baseBits {
		baseBits[i] = invalidBase
	}
	baseBits['A'] = 0
	baseBits['a'] = 0
	baseBits['C'] = 1
	baseBits['c'] = 1
	baseBits['G'] = 2
	baseBits['g'] = 2
	baseBits['T'] = 3
	baseBits['t'] = 3
}

type location struct {
	refID int
	pos   int
}

// KmerIndex maps each k-mer of the references to its occurrence list.
// Read-only after construction and shared across workers.
type KmerIndex struct {
	k         int
	refs      *fasta.References
	occ       map[uint64][]location
	filterCap int
}

// DefaultFilterCap is the occurrence cutoff above which a seed is considered
// repetitive on the regular seeding pass.
const DefaultFilterCap = 100

// New builds the index with k-mer length k (k <= 32).
func New(refs *fasta.References, k int) *KmerIndex {
	x := &KmerIndex{
		k:         k,
		refs:      refs,
		occ:       make(map[uint64][]location),
		filterCap: DefaultFilterCap,
	}
	for refID, seq := range refs.Sequences {
		eachKmer(seq, k, func(pos int, kmer uint64) {
			x.occ[kmer] = append(x.occ[kmer], location{refID, pos})
		})
	}
	return x
}

// K returns the seed k-mer length.
func (x *KmerIndex) K() int { return x.k }

// eachKmer calls fn for every k-mer of seq that contains only ACGT bases,
// using a rolling 2-bit encoding.
func eachKmer(seq string, k int, fn func(pos int, kmer uint64)) {
	if len(seq) < k {
		return
	}
	mask := ^uint64(0) >> uint(64-2*k)
	var kmer uint64
	valid := 0
	for i := 0; i < len(seq); i++ {
		b := baseBits[seq[i]]
		if b == invalidBase {
			valid = 0
			continue
		}
		kmer = (kmer<<2 | uint64(b)) & mask
		valid++
		if valid >= k {
			fn(i-k+1, kmer)
		}
	}
}

// Find returns the fraction of non-repetitive seeds and the merged NAM list
// for the query, searching both orientations.
func (x *KmerIndex) Find(seq string) (float64, []align.Nam) {
	return x.scan(seq, x.filterCap)
}

// FindRescue retries seeding with the given (higher) occurrence cutoff.
func (x *KmerIndex) FindRescue(seq string, cutoff int) []align.Nam {
	_, nams := x.scan(seq, cutoff)
	return nams
}

type hit struct {
	qpos, rpos int
}

type diagKey struct {
	refID int
	diag  int
	rc    bool
}

func (x *KmerIndex) scan(seq string, cutoff int) (float64, []align.Nam) {
	hits := make(map[diagKey][]hit)

	total, nonrepetitive := 0, 0
	eachKmer(seq, x.k, func(qpos int, kmer uint64) {
		total++
		locs := x.occ[kmer]
		if len(locs) > cutoff {
			return
		}
		nonrepetitive++
		for _, loc := range locs {
			key := diagKey{loc.refID, loc.pos - qpos, false}
			hits[key] = append(hits[key], hit{qpos, loc.pos})
		}
	})
	eachKmer(align.ReverseComplement(seq), x.k, func(qpos int, kmer uint64) {
		locs := x.occ[kmer]
		if len(locs) > cutoff {
			return
		}
		for _, loc := range locs {
			key := diagKey{loc.refID, loc.pos - qpos, true}
			hits[key] = append(hits[key], hit{qpos, loc.pos})
		}
	})

	// Map iteration order is random; canonicalize so that NAM IDs and
	// tie-breaking are deterministic for a given query.
	keys := make([]diagKey, 0, len(hits))
	for key := range hits {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.refID != b.refID {
			return a.refID < b.refID
		}
		if a.rc != b.rc {
			return !a.rc
		}
		return a.diag < b.diag
	})

	var nams []align.Nam
	for _, key := range keys {
		group := hits[key]
		sort.Slice(group, func(i, j int) bool { return group[i].qpos < group[j].qpos })
		start := 0
		for i := 1; i <= len(group); i++ {
			// split the diagonal run when consecutive hits are more than
			// one seed length apart
			if i < len(group) && group[i].qpos-group[i-1].qpos <= x.k {
				continue
			}
			run := group[start:i]
			nams = append(nams, align.Nam{
				ID:         len(nams),
				RefID:      key.refID,
				RefStart:   run[0].rpos,
				RefEnd:     run[len(run)-1].rpos + x.k,
				QueryStart: run[0].qpos,
				QueryEnd:   run[len(run)-1].qpos + x.k,
				NHits:      len(run),
				Score:      float64(len(run) * x.k),
				IsRC:       key.rc,
			})
			start = i
		}
	}

	fraction := 1.0
	if total > 0 {
		fraction = float64(nonrepetitive) / float64(total)
	}
	return fraction, nams
}
