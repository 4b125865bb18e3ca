package align

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestInsertSizeEstimatorWarmStart(t *testing.T) {
	est := NewInsertSizeEstimator()
	expect.EQ(t, est.SampleSize, 1.0)
	expect.EQ(t, est.Mu, 300.0)
	expect.EQ(t, est.Sigma, 100.0)
}

func TestInsertSizeEstimatorUpdate(t *testing.T) {
	est := NewInsertSizeEstimator()

	// The very first observation replaces the prior mean entirely
	// (sample_size starts at 1).
	est.Update(100)
	expect.EQ(t, est.Mu, 100.0)
	expect.EQ(t, est.SampleSize, 2.0)
	expect.EQ(t, est.Sigma, 100.0)

	est.Update(200)
	expect.EQ(t, est.Mu, 150.0)
	expect.EQ(t, est.SampleSize, 3.0)
	expect.EQ(t, est.SSE, 15000.0)
	expect.EQ(t, est.Sigma, math.Sqrt(15000))
}

func TestInsertSizeEstimatorDiscardsLarge(t *testing.T) {
	est := NewInsertSizeEstimator()
	before := *est
	est.Update(2000)
	expect.EQ(t, *est, before)
	est.Update(12345)
	expect.EQ(t, *est, before)
}

func TestInsertSizeEstimatorMonotonic(t *testing.T) {
	est := NewInsertSizeEstimator()
	prev := est.SampleSize
	for _, d := range []int{250, 310, 275, 290, 1999, 0, 305} {
		est.Update(d)
		expect.True(t, est.SampleSize >= prev)
		expect.True(t, est.Mu >= 0)
		expect.True(t, est.Sigma >= 0)
		prev = est.SampleSize
	}
}
