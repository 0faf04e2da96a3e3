// Package hdi places credible intervals on one-dimensional distributions.
//
// The highest-density interval is found by minimizing its width over the
// lower tail probability p in [0, 1-mass], where the interval is
// [Q(p), Q(p+mass)] for the quantile function Q. For unimodal densities the
// width is unimodal in p, so golden-section search converges to the
// global minimum.
package hdi

import (
	"errors"
	"fmt"
	"math"

	"credcal/domain/core"
	"credcal/domain/coverage"
)

// Distribution is the part of a continuous distribution the search needs
type Distribution interface {
	CDF(x float64) float64
	Quantile(p float64) float64
}

// Options tunes the golden-section search
type Options struct {
	Tolerance     float64 // bracket width on the tail probability at which the search stops
	MaxIterations int
}

// DefaultOptions returns the search settings used by the estimator
func DefaultOptions() Options {
	return Options{
		Tolerance:     1e-10,
		MaxIterations: 200,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = def.Tolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	return o
}

// MassTolerance bounds |realized mass - target mass| for an accepted interval
const MassTolerance = 1e-6

// invPhi is 1/φ, the golden-section shrink factor
var invPhi = (math.Sqrt(5) - 1) / 2

var (
	ErrMaxIterations = errors.New("maximum iterations reached")
	ErrNaNQuantile   = errors.New("quantile returned NaN")
	ErrMassMismatch  = errors.New("interval mass deviates from target")
)

// ValidateMass checks the target mass lies strictly inside (0,1)
func ValidateMass(mass float64) error {
	if !(mass > 0 && mass < 1) {
		return core.NewInvalidArgumentError("target mass", mass, "must lie in (0, 1)")
	}
	return nil
}

// Find dispatches to the interval constructor for method
func Find(d Distribution, mass float64, method coverage.Method, opts Options) (coverage.Interval, error) {
	switch method {
	case coverage.MethodHDI, "":
		return HighestDensity(d, mass, opts)
	case coverage.MethodEqualTailed:
		return EqualTailed(d, mass)
	default:
		return coverage.Interval{}, core.NewInvalidArgumentError("method", method, "is not supported")
	}
}

// HighestDensity returns the narrowest interval holding mass under d
func HighestDensity(d Distribution, mass float64, opts Options) (coverage.Interval, error) {
	if err := ValidateMass(mass); err != nil {
		return coverage.Interval{}, err
	}
	opts = opts.withDefaults()

	maxTail := 1 - mass
	width := func(p float64) float64 {
		return d.Quantile(math.Min(1, p+mass)) - d.Quantile(p)
	}

	a, b := 0.0, maxTail
	c := b - invPhi*(b-a)
	e := a + invPhi*(b-a)
	fc, fe := width(c), width(e)

	iterations := 0
	for b-a > opts.Tolerance {
		if math.IsNaN(fc) || math.IsNaN(fe) {
			return coverage.Interval{}, fmt.Errorf("%w: %w near tail probability %g", core.ErrNonConvergence, ErrNaNQuantile, c)
		}
		if iterations >= opts.MaxIterations {
			return coverage.Interval{}, fmt.Errorf("%w: %w (%d) with bracket width %g > %g",
				core.ErrNonConvergence, ErrMaxIterations, opts.MaxIterations, b-a, opts.Tolerance)
		}
		iterations++

		if fc <= fe {
			b, e, fe = e, c, fc
			c = b - invPhi*(b-a)
			fc = width(c)
		} else {
			a, c, fc = c, e, fe
			e = a + invPhi*(b-a)
			fe = width(e)
		}
	}

	// Monotone densities put the optimum on a bracket endpoint
	bestP := (a + b) / 2
	bestW := width(bestP)
	for _, p := range [...]float64{0, maxTail} {
		if w := width(p); w < bestW {
			bestP, bestW = p, w
		}
	}
	if math.IsNaN(bestW) {
		return coverage.Interval{}, fmt.Errorf("%w: %w at tail probability %g", core.ErrNonConvergence, ErrNaNQuantile, bestP)
	}

	iv, err := intervalAt(d, bestP, math.Min(1, bestP+mass), mass)
	if err != nil {
		return coverage.Interval{}, err
	}
	iv.Iterations = iterations
	return iv, nil
}

// EqualTailed returns the interval between the (1-mass)/2 and (1+mass)/2 quantiles
func EqualTailed(d Distribution, mass float64) (coverage.Interval, error) {
	if err := ValidateMass(mass); err != nil {
		return coverage.Interval{}, err
	}
	tail := (1 - mass) / 2
	return intervalAt(d, tail, 1-tail, mass)
}

func intervalAt(d Distribution, pLo, pHi, mass float64) (coverage.Interval, error) {
	lo, hi := d.Quantile(pLo), d.Quantile(pHi)
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return coverage.Interval{}, fmt.Errorf("%w: %w for tail probabilities %g, %g", core.ErrNonConvergence, ErrNaNQuantile, pLo, pHi)
	}
	if lo > hi {
		lo, hi = hi, lo
	}

	realized := d.CDF(hi) - d.CDF(lo)
	if math.IsNaN(realized) || math.Abs(realized-mass) > MassTolerance {
		return coverage.Interval{}, fmt.Errorf("%w: %w, realized %g for target %g", core.ErrNonConvergence, ErrMassMismatch, realized, mass)
	}
	return coverage.Interval{Lower: lo, Upper: hi, Mass: realized}, nil
}
