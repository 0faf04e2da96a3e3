package config

import (
	"fmt"
	"math"
	"os"

	"credcal/domain/core"

	"gopkg.in/yaml.v3"
)

// Grid is the set of (n, q) pairs a sweep evaluates
type Grid struct {
	NValues   []int     `yaml:"n,omitempty"`
	NLogSpace *LogSpace `yaml:"n_log_space,omitempty"`
	QValues   []float64 `yaml:"q"`

	// Optional overrides of the calibration config; zero means unset
	TargetMass   float64 `yaml:"mass,omitempty"`
	Realizations int     `yaml:"realizations,omitempty"`
}

// LogSpace describes n = int(10^x) for Points values of x evenly spaced over [MinExp, MaxExp]
type LogSpace struct {
	MinExp float64 `yaml:"min_exp"`
	MaxExp float64 `yaml:"max_exp"`
	Points int     `yaml:"points"`
}

// DefaultGrid is the reference sweep: 12 log-spaced n from 10^0.5 to 10^4 and four q values
func DefaultGrid() Grid {
	return Grid{
		NValues: LogSpacedN(0.5, 4, 12),
		QValues: []float64{0.04, 0.4, 0.6, 0.96},
	}
}

// LogSpacedN truncates 10^x for points evenly spaced exponents.
// Truncation can repeat small n values; duplicates are kept.
func LogSpacedN(minExp, maxExp float64, points int) []int {
	if points <= 0 {
		return nil
	}
	if points == 1 {
		return []int{int(math.Pow(10, minExp))}
	}
	out := make([]int, points)
	for i := 0; i < points; i++ {
		x := minExp + (maxExp-minExp)*float64(i)/float64(points-1)
		out[i] = int(math.Pow(10, x))
	}
	return out
}

// LoadGrid reads a YAML grid file
func LoadGrid(path string) (Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, fmt.Errorf("read grid file %s: %w", path, err)
	}
	return ParseGrid(data)
}

// ParseGrid decodes YAML and resolves the n values
func ParseGrid(data []byte) (Grid, error) {
	var g Grid
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Grid{}, fmt.Errorf("%w: %v", core.ErrInvalidGrid, err)
	}
	return g.Resolve()
}

// Resolve expands NLogSpace into NValues and validates the result
func (g Grid) Resolve() (Grid, error) {
	if g.NLogSpace != nil {
		if len(g.NValues) > 0 {
			return Grid{}, fmt.Errorf("%w: set either n or n_log_space, not both", core.ErrInvalidGrid)
		}
		ls := g.NLogSpace
		if ls.Points < 1 || ls.MaxExp < ls.MinExp || ls.MinExp < 0 {
			return Grid{}, fmt.Errorf("%w: n_log_space needs points >= 1 and 0 <= min_exp <= max_exp", core.ErrInvalidGrid)
		}
		g.NValues = LogSpacedN(ls.MinExp, ls.MaxExp, ls.Points)
		g.NLogSpace = nil
	}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// Validate checks the grid values lie in their domains
func (g Grid) Validate() error {
	if len(g.NValues) == 0 {
		return fmt.Errorf("%w: no n values", core.ErrInvalidGrid)
	}
	if len(g.QValues) == 0 {
		return fmt.Errorf("%w: no q values", core.ErrInvalidGrid)
	}
	for _, n := range g.NValues {
		if n < 1 {
			return fmt.Errorf("%w: n=%d must be >= 1", core.ErrInvalidGrid, n)
		}
	}
	for _, q := range g.QValues {
		if !(q >= 0 && q <= 1) {
			return fmt.Errorf("%w: q=%g must lie in [0, 1]", core.ErrInvalidGrid, q)
		}
	}
	if g.TargetMass != 0 && !(g.TargetMass > 0 && g.TargetMass < 1) {
		return fmt.Errorf("%w: mass=%g must lie in (0, 1)", core.ErrInvalidGrid, g.TargetMass)
	}
	if g.Realizations < 0 {
		return fmt.Errorf("%w: realizations=%d must be >= 1", core.ErrInvalidGrid, g.Realizations)
	}
	return nil
}
