package calibration

import (
	"context"

	"gonum.org/v1/gonum/stat/distuv"
)

// negligibleProb is the binomial probability below which a k is skipped
const negligibleProb = 1e-15

// ExactCoverage returns the coverage EstimateCoverage converges to:
// the sum of Binomial(n, q) probabilities of the k whose interval contains q.
// Interval failures abort the computation regardless of SkipFailedIntervals.
func (e *Estimator) ExactCoverage(ctx context.Context, n int, q, mass float64) (float64, error) {
	if err := e.validate(n, q, mass); err != nil {
		return 0, err
	}

	if q == 0 || q == 1 {
		k := 0
		if q == 1 {
			k = n
		}
		iv, err := e.Interval(n, k, mass)
		if err != nil {
			return 0, err
		}
		if iv.Contains(q) {
			return 1, nil
		}
		return 0, nil
	}

	binom := distuv.Binomial{N: float64(n), P: q}
	var covered float64
	for k := 0; k <= n; k++ {
		if k%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		p := binom.Prob(float64(k))
		if p < negligibleProb {
			continue
		}
		iv, err := e.Interval(n, k, mass)
		if err != nil {
			return 0, err
		}
		if iv.Contains(q) {
			covered += p
		}
	}

	// summation error can overshoot by an ulp
	if covered > 1 {
		covered = 1
	}
	return covered, nil
}
