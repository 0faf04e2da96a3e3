package coverage

import (
	"fmt"
	"math"
	"strings"
	"time"

	"credcal/domain/core"
)

// Method selects how a credible interval is placed on the posterior
type Method string

const (
	MethodHDI         Method = "hdi"          // shortest interval holding the target mass
	MethodEqualTailed Method = "equal-tailed" // equal posterior mass in each tail
)

// ParseMethod parses a method name, accepting a few common spellings
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hdi", "hpd", "highest-density":
		return MethodHDI, nil
	case "equal-tailed", "equal_tailed", "eti", "central":
		return MethodEqualTailed, nil
	default:
		return "", core.NewInvalidArgumentError("method", s, "must be hdi or equal-tailed")
	}
}

// Interval is a closed credible interval [Lower, Upper] on a proportion
type Interval struct {
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Mass       float64 `json:"mass"`                 // posterior mass actually enclosed
	Iterations int     `json:"iterations,omitempty"` // search iterations spent, 0 for closed forms
}

// Width returns Upper - Lower
func (iv Interval) Width() float64 {
	return iv.Upper - iv.Lower
}

// Contains reports whether x lies in the closed interval
func (iv Interval) Contains(x float64) bool {
	return iv.Lower <= x && x <= iv.Upper
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%.6f, %.6f] (mass %.6f)", iv.Lower, iv.Upper, iv.Mass)
}

// Estimate is the Monte Carlo coverage of one (n, q) configuration.
// INVARIANTS:
// - 0 <= Excluded < Realizations
// - 0 <= Contained <= Realizations - Excluded
// - 0 <= Coverage <= 1
type Estimate struct {
	N            int     `json:"n"`
	TrueQ        float64 `json:"q_true"`
	TargetMass   float64 `json:"target_mass"`
	Method       Method  `json:"method"`
	Realizations int     `json:"realizations"`
	Contained    int     `json:"contained"`
	Excluded     int     `json:"excluded"`
	Coverage     float64 `json:"coverage"`
	StdErr       float64 `json:"std_err"`
	WilsonLower  float64 `json:"wilson_lower"`
	WilsonUpper  float64 `json:"wilson_upper"`
}

// Used returns the number of realizations that entered the coverage fraction
func (e Estimate) Used() int {
	return e.Realizations - e.Excluded
}

// Gap returns Coverage - TargetMass
func (e Estimate) Gap() float64 {
	return e.Coverage - e.TargetMass
}

// NewEstimate derives the coverage fraction and its uncertainty from raw counts
func NewEstimate(n int, q float64, mass float64, method Method, realizations, contained, excluded int) Estimate {
	est := Estimate{
		N:            n,
		TrueQ:        q,
		TargetMass:   mass,
		Method:       method,
		Realizations: realizations,
		Contained:    contained,
		Excluded:     excluded,
	}
	used := est.Used()
	if used <= 0 {
		return est
	}
	p := float64(contained) / float64(used)
	est.Coverage = p
	est.StdErr = math.Sqrt(p * (1 - p) / float64(used))
	est.WilsonLower, est.WilsonUpper = WilsonInterval(contained, used, WilsonZ95)
	return est
}

// WilsonZ95 is the standard normal quantile for a two-sided 95% interval
const WilsonZ95 = 1.959963984540054

// WilsonInterval returns the Wilson score interval for successes out of n trials
func WilsonInterval(successes, n int, z float64) (lower, upper float64) {
	if n == 0 {
		return 0, 1
	}
	p := float64(successes) / float64(n)
	fn := float64(n)
	den := 1.0 + (z*z)/fn
	center := p + (z*z)/(2.0*fn)
	rad := z * math.Sqrt((p*(1.0-p)+(z*z)/(4.0*fn))/fn)
	lower = math.Max(0, math.Min(p, (center-rad)/den))
	upper = math.Min(1, math.Max(p, (center+rad)/den))
	if successes <= 0 {
		lower = 0
	}
	if successes >= n {
		upper = 1
	}
	return lower, upper
}

// SweepPoint is one grid cell of a calibration sweep
type SweepPoint struct {
	Estimate
	ExactCoverage float64 `json:"exact_coverage"`
}

// SeriesSummary condenses the points of one q value across the n grid
type SeriesSummary struct {
	TrueQ          float64 `json:"q_true"`
	Points         int     `json:"points"`
	MeanAbsGap     float64 `json:"mean_abs_gap"`
	MaxAbsGap      float64 `json:"max_abs_gap"`
	FinalGap       float64 `json:"final_gap"` // gap at the largest n
	CoverageStdDev float64 `json:"coverage_std_dev"`
}

// SweepReport is the complete output of a calibration sweep
type SweepReport struct {
	RunID        core.RunID      `json:"run_id"`
	Fingerprint  core.Hash       `json:"fingerprint"`
	Seed         int64           `json:"seed"`
	TargetMass   float64         `json:"target_mass"`
	Method       Method          `json:"method"`
	Prior        string          `json:"prior"`
	Realizations int             `json:"realizations"`
	NValues      []int           `json:"n_values"`
	QValues      []float64       `json:"q_values"`
	Points       []SweepPoint    `json:"points"`
	Summaries    []SeriesSummary `json:"summaries"`
	CreatedAt    time.Time       `json:"created_at"`
}
