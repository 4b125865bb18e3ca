package align

// MappingOpts are the mapping-stage parameters.
type MappingOpts struct {
	// DropoffThreshold stops the candidate walk once a NAM's hit count falls
	// below this fraction of the top NAM's.
	DropoffThreshold float64
	// MaxTries caps the number of extension attempts per read.
	MaxTries int
	// MaxSecondary is the number of secondary records emitted in addition to
	// the primary.
	MaxSecondary int
	// RescueLevel enables rescue seeding when > 1.
	RescueLevel int
	// RescueCutoff is the seed occurrence cutoff used by rescue seeding.
	RescueCutoff int
	// SAMOut selects SAM output; PAF otherwise.
	SAMOut bool
}

// DefaultMappingOpts sets the default values to MappingOpts.
var DefaultMappingOpts = MappingOpts{
	DropoffThreshold: 0.5,
	MaxTries:         20,
	MaxSecondary:     0,
	RescueLevel:      2,
	RescueCutoff:     1000,
	SAMOut:           true,
}
