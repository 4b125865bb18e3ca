// Package fastq provides FASTQ read records and scanners for the mapper.
// Scanning is line oriented and performs light validation: ID lines must
// begin with "@" and line 3 must begin with "+". Sequence content is not
// validated here.
package fastq

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

// A Record is one FASTQ read. Name is the record ID with the leading "@"
// stripped and truncated at the first whitespace, so it can be used directly
// as a SAM QNAME.
type Record struct {
	Name string
	Seq  string
	Qual string
}

var errEOF = errors.New("eof")

// Scanner reads FASTQ records sequentially. The Scan method fills the next
// record, returning a boolean indicating whether the read succeeded. Scanners
// are not threadsafe.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan the next record into the provided record. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it never
// returns true again. Upon completion, the user should check the Err method
// to determine whether scanning stopped because of an error or because the
// end of the stream was reached.
func (f *Scanner) Scan(rec *Record) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Text()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	rec.Name = trimName(id[1:])
	if !f.scan() {
		return false
	}
	rec.Seq = f.b.Text()
	if !f.scan() {
		return false
	}
	unk := f.b.Bytes()
	if len(unk) == 0 || unk[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	if !f.scan() {
		return false
	}
	rec.Qual = f.b.Text()
	if len(rec.Qual) != len(rec.Seq) {
		f.err = ErrInvalid
		return false
	}
	return true
}

func (f *Scanner) scan() bool {
	if f.b.Scan() {
		return true
	}
	if f.err = f.b.Err(); f.err == nil {
		f.err = ErrShort
	}
	return false
}

// Err returns the error that caused scanning to stop, or nil if scanning
// ended at the end of the input.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

func trimName(id string) string {
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		return id[:i]
	}
	return id
}

// PairScanner reads a pair of FASTQ streams (R1 and R2) in lockstep. The two
// streams must contain the same number of records with matching names, modulo
// a trailing "/1" or "/2" suffix.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner constructs a PairScanner reading from the two readers.
func NewPairScanner(r1, r2 io.Reader) *PairScanner {
	return &PairScanner{r1: NewScanner(r1), r2: NewScanner(r2)}
}

// Scan fills the next record pair. It returns false at the end of either
// stream or on error; check Err to distinguish.
func (p *PairScanner) Scan(rec1, rec2 *Record) bool {
	if p.err != nil {
		return false
	}
	ok1 := p.r1.Scan(rec1)
	ok2 := p.r2.Scan(rec2)
	if ok1 != ok2 {
		p.err = ErrDiscordant
		return false
	}
	if !ok1 {
		if err := p.r1.Err(); err != nil {
			p.err = err
		} else if err := p.r2.Err(); err != nil {
			p.err = err
		}
		return false
	}
	if trimMateSuffix(rec1.Name) != trimMateSuffix(rec2.Name) {
		p.err = errors.Wrapf(ErrDiscordant, "%q vs %q", rec1.Name, rec2.Name)
		return false
	}
	return true
}

// Err returns the error that caused scanning to stop, if any.
func (p *PairScanner) Err() error { return p.err }

func trimMateSuffix(name string) string {
	if strings.HasSuffix(name, "/1") || strings.HasSuffix(name, "/2") {
		return name[:len(name)-2]
	}
	return name
}
