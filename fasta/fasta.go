// Package fasta loads reference sequences for alignment. References are held
// uncompressed in memory; contigs are addressed by a dense integer ID in file
// order, which is what the alignment core and the SAM header use.
//
// Sequence names are the stretch of characters excluding spaces immediately
// after '>'. Any text appearing after a space is ignored. For example,
// '>chr1 assembled from ...' becomes 'chr1'.
package fasta

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const bufferInitSize = 1024 * 1024 * 16

// References is the read-only reference sequence store. The three slices are
// parallel and indexed by reference ID.
type References struct {
	Names     []string
	Sequences []string
	Lengths   []int
}

// FromFasta reads all FASTA data from the given reader into memory.
// Sequences are upper-cased so that alignment is case insensitive.
func FromFasta(r io.Reader) (*References, error) {
	refs := &References{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var name string
	var seq strings.Builder
	flush := func() error {
		if seq.Len() == 0 {
			if name == "" {
				return nil
			}
			return errors.Errorf("fasta: contig %q has no sequence", name)
		}
		if name == "" {
			return errors.New("fasta: sequence without a preceding '>' header")
		}
		s := strings.ToUpper(seq.String())
		refs.Names = append(refs.Names, name)
		refs.Sequences = append(refs.Sequences, s)
		refs.Lengths = append(refs.Lengths, len(s))
		seq.Reset()
		return nil
	}
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.Split(line[1:], " ")[0]
			continue
		}
		seq.WriteString(line)
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "fasta: couldn't read FASTA data")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(refs.Names) == 0 {
		return nil, errors.New("fasta: no sequences found")
	}
	return refs, nil
}

// Open loads a FASTA file from path. Files ending in ".gz" are decompressed
// on the fly.
func Open(path string) (*References, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "fasta: open %s", path)
	}
	defer f.Close() // nolint: errcheck
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "fasta: gunzip %s", path)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	return FromFasta(r)
}

// Size returns the number of contigs.
func (r *References) Size() int { return len(r.Names) }

// TotalLength returns the summed length of all contigs.
func (r *References) TotalLength() int {
	n := 0
	for _, l := range r.Lengths {
		n += l
	}
	return n
}
