package align

import (
	"github.com/grailbio/hts/sam"
)

// Alignment is one finished base-level placement of a read. Produced by the
// extension stage or mate rescue; immutable afterwards except for MapQ,
// which the drivers fill in.
type Alignment struct {
	Cigar        sam.Cigar
	EditDistance int
	// GlobalED is EditDistance plus the number of soft-clipped bases. It is
	// the distance used for early termination in the single-end driver.
	GlobalED    int
	Score       int
	RefStart    int
	RefID       int
	Length      int // reference span
	IsRC        bool
	IsUnaligned bool
	Gapped      bool
	MapQ        int
}
