// strobealign maps short reads against a reference.
//
// Example 1: paired-end reads to SAM
//
//	strobealign -o aln.sam ref.fa reads.1.fastq.gz reads.2.fastq.gz
//
// Example 2: single-end mapping-only output (PAF)
//
//	strobealign -x ref.fa reads.fastq > hits.paf
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/luispedro/strobealign/align"
	"github.com/luispedro/strobealign/aligner"
	"github.com/luispedro/strobealign/fasta"
	"github.com/luispedro/strobealign/fastq"
	"github.com/luispedro/strobealign/index"
	"github.com/luispedro/strobealign/paf"
	"github.com/luispedro/strobealign/sam"
)

// A uint64 sequence number defines a total ordering of reads so that output
// records can be restored to input order after parallel mapping.
const invalidSeq = ^uint64(0)

type request struct {
	seq        uint64
	rec1, rec2 fastq.Record
	paired     bool
}

type result struct {
	seq uint64
	out []byte

	// stats is sent as the very last record, with seq == invalidSeq.
	stats align.Statistics
}

func processRequests(
	reqCh chan request,
	resCh chan result,
	refs *fasta.References,
	idx *index.KmerIndex,
	samw *sam.Writer,
	opts align.MappingOpts,
	scores aligner.Scores,
) {
	mapper := &align.Mapper{
		Aligner: aligner.New(scores),
		Refs:    refs,
		Opts:    opts,
		K:       idx.K(),
	}
	est := align.NewInsertSizeEstimator()
	stats := align.Statistics{}
	var buf bytes.Buffer
	for req := range reqCh {
		buf.Reset()
		samOut := samw.Fork(&buf)
		pafOut := paf.NewWriter(&buf, refs, idx.K())
		var err error
		if req.paired {
			err = mapper.ProcessPaired(req.rec1, req.rec2, idx, est, samOut, pafOut, &stats)
		} else {
			err = mapper.ProcessSingle(req.rec1, idx, samOut, pafOut, &stats)
		}
		if err != nil {
			log.Panicf("map %s: %v", req.rec1.Name, err)
		}
		out := make([]byte, buf.Len())
		copy(out, buf.Bytes())
		resCh <- result{seq: req.seq, out: out}
	}
	resCh <- result{seq: invalidSeq, stats: stats}
}

func openInput(path string) (io.Reader, func()) {
	f, err := os.Open(path)
	if err != nil {
		log.Panicf("open %v: %v", path, err)
	}
	var r io.Reader = f
	if u := compress.NewReaderPath(r, path); u != nil {
		r = u
	}
	return r, func() {
		if err := f.Close(); err != nil {
			log.Panicf("close %v: %v", path, err)
		}
	}
}

func readSingle(reqCh chan request, path string) {
	in, cleanup := openInput(path)
	defer cleanup()
	sc := fastq.NewScanner(in)
	var rec fastq.Record
	var nRead uint64
	for sc.Scan(&rec) {
		reqCh <- request{seq: nRead, rec1: rec}
		nRead++
		if nRead%(1024*1024) == 0 {
			log.Printf("%s: %dMi reads", path, nRead/(1024*1024))
		}
	}
	if err := sc.Err(); err != nil {
		log.Panicf("read %v: %v", path, err)
	}
	log.Printf("Processed %d reads in %s", nRead, path)
}

func readPaired(reqCh chan request, path1, path2 string) {
	in1, cleanup1 := openInput(path1)
	defer cleanup1()
	in2, cleanup2 := openInput(path2)
	defer cleanup2()
	sc := fastq.NewPairScanner(in1, in2)
	var rec1, rec2 fastq.Record
	var nRead uint64
	for sc.Scan(&rec1, &rec2) {
		reqCh <- request{seq: nRead, rec1: rec1, rec2: rec2, paired: true}
		nRead++
		if nRead%(1024*1024) == 0 {
			log.Printf("%s: %dMi readpairs", path1, nRead/(1024*1024))
		}
	}
	if err := sc.Err(); err != nil {
		log.Panicf("read %v,%v: %v", path1, path2, err)
	}
	log.Printf("Processed %d readpairs in %s", nRead, path1)
}

func usage() {
	fmt.Fprint(os.Stderr, `
strobealign maps short single-end or paired-end reads to a reference.

Usage:
  strobealign [flags] <ref.fa> <reads1.fastq> [reads2.fastq]

Inputs may be gzip compressed. Output is SAM unless -x is given.
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage

	var (
		outputPath string
		pafOut     bool
		k          int
		threads    int
	)
	opts := align.DefaultMappingOpts
	scores := aligner.DefaultScores
	flag.StringVar(&outputPath, "o", "", "Output file. Defaults to stdout.")
	flag.BoolVar(&pafOut, "x", false, "Mapping-only mode: output PAF instead of aligned SAM.")
	flag.IntVar(&k, "k", 20, "Seed k-mer length.")
	flag.IntVar(&threads, "t", runtime.NumCPU(), "Number of mapping threads.")
	flag.Float64Var(&opts.DropoffThreshold, "f", align.DefaultMappingOpts.DropoffThreshold, "Candidate dropoff threshold.")
	flag.IntVar(&opts.MaxTries, "max-tries", align.DefaultMappingOpts.MaxTries, "Max extension attempts per read.")
	flag.IntVar(&opts.MaxSecondary, "N", align.DefaultMappingOpts.MaxSecondary, "Max number of secondary alignments to output.")
	flag.IntVar(&opts.RescueLevel, "R", align.DefaultMappingOpts.RescueLevel, "Rescue level; values > 1 enable rescue seeding.")
	flag.IntVar(&opts.RescueCutoff, "rescue-cutoff", align.DefaultMappingOpts.RescueCutoff, "Seed occurrence cutoff for rescue seeding.")
	flag.IntVar(&scores.Match, "A", aligner.DefaultScores.Match, "Match score.")
	flag.IntVar(&scores.Mismatch, "B", aligner.DefaultScores.Mismatch, "Mismatch penalty.")
	flag.IntVar(&scores.GapOpen, "O", aligner.DefaultScores.GapOpen, "Gap open penalty.")
	flag.IntVar(&scores.GapExtend, "E", aligner.DefaultScores.GapExtend, "Gap extend penalty.")
	flag.IntVar(&scores.EndBonus, "L", aligner.DefaultScores.EndBonus, "End bonus.")

	cleanup := grail.Init()
	defer cleanup()

	if flag.NArg() < 2 || flag.NArg() > 3 {
		usage()
	}
	if k < 8 || k > 32 {
		log.Fatal("-k must be between 8 and 32")
	}
	opts.SAMOut = !pafOut

	refPath := flag.Arg(0)
	refs, err := fasta.Open(refPath)
	if err != nil {
		log.Panicf("load references %v: %v", refPath, err)
	}
	log.Printf("Loaded %d contigs (%d bases) from %s", refs.Size(), refs.TotalLength(), refPath)
	idx := index.New(refs, k)
	log.Printf("Indexed references with k=%d", k)

	out := os.Stdout
	if outputPath != "" {
		out, err = os.Create(outputPath)
		if err != nil {
			log.Panicf("create %v: %v", outputPath, err)
		}
	}
	w := bufio.NewWriter(out)
	samw, err := sam.NewWriter(w, refs)
	if err != nil {
		log.Panic(err)
	}
	if opts.SAMOut {
		if err := samw.WriteHeader(); err != nil {
			log.Panic(err)
		}
	}

	reqCh := make(chan request, 1024)
	resCh := make(chan result, 1024)

	wg1 := sync.WaitGroup{}
	for i := 0; i < threads; i++ {
		wg1.Add(1)
		go func() {
			processRequests(reqCh, resCh, refs, idx, samw, opts, scores)
			wg1.Done()
		}()
	}

	var (
		results []result
		stats   align.Statistics
	)
	wg2 := sync.WaitGroup{}
	wg2.Add(1)
	go func() {
		for res := range resCh {
			if res.seq == invalidSeq {
				stats = stats.Merge(res.stats)
				continue
			}
			results = append(results, res)
		}
		wg2.Done()
	}()

	if flag.NArg() == 2 {
		readSingle(reqCh, flag.Arg(1))
	} else {
		readPaired(reqCh, flag.Arg(1), flag.Arg(2))
	}
	close(reqCh)
	wg1.Wait()
	close(resCh)
	wg2.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].seq < results[j].seq })
	for _, res := range results {
		if _, err := w.Write(res.out); err != nil {
			log.Panicf("write output: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		log.Panicf("flush output: %v", err)
	}
	if outputPath != "" {
		if err := out.Close(); err != nil {
			log.Panicf("close %v: %v", outputPath, err)
		}
	}
	log.Printf("Stats: %+v", stats)
	log.Printf("All done")
}
