package align

import (
	"github.com/luispedro/strobealign/fastq"
)

// nonrepetitiveRescueFraction triggers rescue seeding when fewer than this
// fraction of a read's seeds are non-repetitive.
const nonrepetitiveRescueFraction = 0.7

// ProcessSingle maps one single-end read: seed, optionally re-seed with the
// rescue cutoff, sort candidates, then align to SAM or report the best hit
// to PAF depending on Opts.SAMOut.
func (m *Mapper) ProcessSingle(rec fastq.Record, finder NamFinder, samOut SAMOutput, pafOut PAFOutput, stats *Statistics) error {
	var details Details
	fraction, nams := finder.Find(rec.Seq)
	if m.Opts.RescueLevel > 1 && (len(nams) == 0 || fraction < nonrepetitiveRescueFraction) {
		details.NAMRescue = true
		nams = finder.FindRescue(rec.Seq, m.Opts.RescueCutoff)
	}
	details.NAMs = len(nams)
	SortByScore(nams)

	var err error
	if !m.Opts.SAMOut {
		err = pafOut.AddHit(nams, rec.Name, len(rec.Seq))
	} else {
		err = m.AlignSingleEnd(nams, rec, samOut, &details)
	}
	stats.Reads++
	stats.AddDetails(details)
	return err
}

// ProcessPaired maps one read pair. The worker's insert size estimator is
// both consulted and, for confident proper pairs during warm-up, updated.
func (m *Mapper) ProcessPaired(rec1, rec2 fastq.Record, finder NamFinder, est *InsertSizeEstimator, samOut SAMOutput, pafOut PAFOutput, stats *Statistics) error {
	var details [2]Details
	fraction1, nams1 := finder.Find(rec1.Seq)
	fraction2, nams2 := finder.Find(rec2.Seq)
	if m.Opts.RescueLevel > 1 {
		if len(nams1) == 0 || fraction1 < nonrepetitiveRescueFraction {
			details[0].NAMRescue = true
			nams1 = finder.FindRescue(rec1.Seq, m.Opts.RescueCutoff)
		}
		if len(nams2) == 0 || fraction2 < nonrepetitiveRescueFraction {
			details[1].NAMRescue = true
			nams2 = finder.FindRescue(rec2.Seq, m.Opts.RescueCutoff)
		}
	}
	details[0].NAMs = len(nams1)
	details[1].NAMs = len(nams2)
	SortByScore(nams1)
	SortByScore(nams2)

	var err error
	if !m.Opts.SAMOut {
		nam1, nam2 := m.BestMapLocation(nams1, nams2, est)
		err = pafOut.AddHitPaired(nam1, rec1.Name, len(rec1.Seq))
		if err == nil {
			err = pafOut.AddHitPaired(nam2, rec2.Name, len(rec2.Seq))
		}
	} else {
		err = m.AlignPairedEnd(nams1, nams2, rec1, rec2, est, samOut, &details)
	}
	stats.Reads += 2
	stats.AddDetails(details[0])
	stats.AddDetails(details[1])
	return err
}
