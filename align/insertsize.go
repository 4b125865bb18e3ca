package align

import (
	"math"

	"github.com/grailbio/base/log"
)

// insertSizeCap discards implausibly large observations.
const insertSizeCap = 2000

// InsertSizeEstimator keeps a Welford-style online estimate of the insert
// size distribution of proper pairs. Each worker owns one estimator; updates
// are fed only from confident proper pairs during the warm-up window.
type InsertSizeEstimator struct {
	SampleSize float64
	Mu         float64
	Sigma      float64
	V          float64
	SSE        float64
}

// NewInsertSizeEstimator returns an estimator warm-started with a broad
// prior so that the very first reads already have a usable window.
func NewInsertSizeEstimator() *InsertSizeEstimator {
	return &InsertSizeEstimator{
		SampleSize: 1,
		Mu:         300,
		Sigma:      100,
		V:          10000,
		SSE:        10000,
	}
}

// Update adds a new observation. Observations >= 2000 are discarded.
func (e *InsertSizeEstimator) Update(dist int) {
	if dist >= insertSizeCap {
		return
	}
	d := float64(dist)
	diff := d - e.Mu
	e.Mu += diff / e.SampleSize
	e.SSE += diff * (d - e.Mu)
	if e.SampleSize > 1 {
		e.V = e.SSE / (e.SampleSize - 1)
	} else {
		e.V = e.SSE
	}
	e.Sigma = math.Sqrt(e.V)
	e.SampleSize++
	if e.Mu < 0 {
		log.Error.Printf("insert size estimate: mu negative, mu: %v sigma: %v SSE: %v sample size: %v", e.Mu, e.Sigma, e.SSE, e.SampleSize)
	}
	if e.SSE < 0 {
		log.Error.Printf("insert size estimate: SSE negative, mu: %v sigma: %v SSE: %v sample size: %v", e.Mu, e.Sigma, e.SSE, e.SampleSize)
	}
}
