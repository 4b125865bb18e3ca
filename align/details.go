package align

// Details are per-read telemetry counters filled in while one read (or one
// mate of a pair) is aligned.
type Details struct {
	// NAMs is the number of NAMs the seeder produced for this read.
	NAMs int
	// NAMRescue records whether the more expensive rescue seeding pass ran.
	NAMRescue bool
	// NAMInconsistent counts NAMs whose end k-mers did not match the
	// reference in either orientation.
	NAMInconsistent int
	// MateRescue counts rescue attempts for this read, from its mate's
	// position, in which the gapped aligner ran; the result may still be
	// unaligned.
	MateRescue int
	// TriedAlignment counts NAM extensions, plus the mate rescues of the
	// joint paired search in which the gapped aligner ran.
	TriedAlignment int
	// Gapped counts extension attempts that needed the gapped aligner.
	Gapped int
}

// Statistics aggregates Details across all reads processed by one worker.
type Statistics struct {
	Reads           int
	NAMs            int
	NAMRescues      int
	NAMInconsistent int
	MateRescue      int
	TriedAlignment  int
	Gapped          int
}

// AddDetails folds one read's counters into the totals.
func (s *Statistics) AddDetails(d Details) {
	s.NAMs += d.NAMs
	if d.NAMRescue {
		s.NAMRescues++
	}
	s.NAMInconsistent += d.NAMInconsistent
	s.MateRescue += d.MateRescue
	s.TriedAlignment += d.TriedAlignment
	s.Gapped += d.Gapped
}

// Merge adds the field values of the two Statistics objects and returns the
// result.
func (s Statistics) Merge(o Statistics) Statistics {
	s.Reads += o.Reads
	s.NAMs += o.NAMs
	s.NAMRescues += o.NAMRescues
	s.NAMInconsistent += o.NAMInconsistent
	s.MateRescue += o.MateRescue
	s.TriedAlignment += o.TriedAlignment
	s.Gapped += o.Gapped
	return s
}
