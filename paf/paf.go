// Package paf formats mapping-only results as PAF lines. It implements the
// align.PAFOutput interface: one line per mapped read, reporting the chosen
// NAM rather than a base-level alignment.
package paf

import (
	"fmt"
	"io"

	"github.com/luispedro/strobealign/align"
	"github.com/luispedro/strobealign/fasta"
)

// Writer emits PAF lines.
type Writer struct {
	out  io.Writer
	refs *fasta.References
	k    int
}

// NewWriter returns a PAF writer over the given references. k is the seed
// length, used to approximate the match count.
func NewWriter(out io.Writer, refs *fasta.References, k int) *Writer {
	return &Writer{out: out, refs: refs, k: k}
}

// AddHit writes the single best hit of the list; an empty list writes
// nothing.
func (w *Writer) AddHit(nams []align.Nam, name string, readLen int) error {
	if len(nams) == 0 {
		return nil
	}
	return w.AddHitPaired(nams[0], name, readLen)
}

// AddHitPaired writes the chosen NAM of one mate. A sentinel NAM
// (RefStart < 0) means the mate is unmapped and writes nothing.
func (w *Writer) AddHitPaired(n align.Nam, name string, readLen int) error {
	if n.RefStart < 0 {
		return nil
	}
	strand := "+"
	if n.IsRC {
		strand = "-"
	}
	// The residue-match column is approximated by hit count times seed
	// length; the mapping quality column is fixed at 255 (missing).
	_, err := fmt.Fprintf(w.out, "%s\t%d\t%d\t%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
		name, readLen, n.QueryStart, n.QueryEnd, strand,
		w.refs.Names[n.RefID], w.refs.Lengths[n.RefID], n.RefStart, n.RefEnd,
		n.NHits*w.k, n.RefSpan(), 255)
	return err
}
