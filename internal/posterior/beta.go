// Package posterior holds the conjugate Beta posterior of a binomial proportion.
package posterior

import (
	"fmt"
	"math"

	"credcal/domain/core"

	"gonum.org/v1/gonum/stat/distuv"
)

// Prior is a Beta(Alpha, Beta) prior on the success probability
type Prior struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// UniformPrior returns Beta(1,1), the flat prior on [0,1]
func UniformPrior() Prior {
	return Prior{Alpha: 1, Beta: 1}
}

// Validate checks both shape parameters are positive and finite
func (p Prior) Validate() error {
	if !(p.Alpha > 0) || math.IsInf(p.Alpha, 0) {
		return core.NewInvalidArgumentError("prior alpha", p.Alpha, "must be positive and finite")
	}
	if !(p.Beta > 0) || math.IsInf(p.Beta, 0) {
		return core.NewInvalidArgumentError("prior beta", p.Beta, "must be positive and finite")
	}
	return nil
}

func (p Prior) String() string {
	return fmt.Sprintf("Beta(%g, %g)", p.Alpha, p.Beta)
}

// Beta is a Beta distribution on [0,1]
type Beta struct {
	Alpha float64
	Beta  float64
	dist  distuv.Beta
}

// NewBeta creates a Beta(alpha, beta) distribution
func NewBeta(alpha, beta float64) (*Beta, error) {
	if err := (Prior{Alpha: alpha, Beta: beta}).Validate(); err != nil {
		return nil, err
	}
	return &Beta{
		Alpha: alpha,
		Beta:  beta,
		dist:  distuv.Beta{Alpha: alpha, Beta: beta},
	}, nil
}

// Conjugate updates prior with k successes out of n Bernoulli trials.
// The result is Beta(prior.Alpha+k, prior.Beta+n-k); k = 0 and k = n are valid.
func Conjugate(prior Prior, n, k int) (*Beta, error) {
	if err := prior.Validate(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, core.NewInvalidArgumentError("n", n, "must be >= 0")
	}
	if k < 0 || k > n {
		return nil, core.NewInvalidArgumentError("k", k, fmt.Sprintf("must lie in [0, %d]", n))
	}
	return NewBeta(prior.Alpha+float64(k), prior.Beta+float64(n-k))
}

// CDF returns P(X <= x)
func (b *Beta) CDF(x float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 1
	}
	return b.dist.CDF(x)
}

// Quantile returns the x with CDF(x) = p, clamped to [0,1]
func (b *Beta) Quantile(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return math.NaN()
	case p <= 0:
		return 0
	case p >= 1:
		return 1
	}
	x := b.dist.Quantile(p)
	return math.Min(1, math.Max(0, x))
}

// Prob returns the density at x
func (b *Beta) Prob(x float64) float64 {
	switch {
	case x < 0 || x > 1:
		return 0
	case x == 0:
		return boundaryDensity(b.Alpha, b.Beta)
	case x == 1:
		return boundaryDensity(b.Beta, b.Alpha)
	}
	return b.dist.Prob(x)
}

// boundaryDensity is the density at the endpoint whose exponent is a-1
func boundaryDensity(a, other float64) float64 {
	switch {
	case a < 1:
		return math.Inf(1)
	case a == 1:
		// 1/B(1, other) = other
		return other
	default:
		return 0
	}
}

// Mean returns alpha / (alpha + beta)
func (b *Beta) Mean() float64 {
	return b.Alpha / (b.Alpha + b.Beta)
}

// Mode returns the density maximizer; for a flat density it returns 0.5
func (b *Beta) Mode() float64 {
	switch {
	case b.Alpha > 1 && b.Beta > 1:
		return (b.Alpha - 1) / (b.Alpha + b.Beta - 2)
	case b.Alpha <= 1 && b.Beta > 1:
		return 0
	case b.Alpha > 1 && b.Beta <= 1:
		return 1
	case b.Alpha == 1 && b.Beta == 1:
		return 0.5
	default:
		// U-shaped, both endpoints are modes
		return math.NaN()
	}
}

func (b *Beta) String() string {
	return fmt.Sprintf("Beta(%g, %g)", b.Alpha, b.Beta)
}
