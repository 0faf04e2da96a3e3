// Package calibration estimates how often Bayesian credible intervals for a
// binomial proportion contain the true proportion.
//
// Each realization draws k ~ Binomial(n, q), forms the conjugate Beta
// posterior, places a credible interval of the target mass on it and records
// whether q falls inside. The Monte Carlo standard error of the resulting
// fraction is sqrt(p(1-p)/realizations): about 0.0022 at p = 0.95 with 1e4
// realizations. Differences smaller than a few standard errors are noise, so
// pick realizations for the resolution the comparison needs.
package calibration

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"credcal/domain/core"
	"credcal/domain/coverage"
	"credcal/internal"
	"credcal/internal/hdi"
	"credcal/internal/posterior"
	"credcal/ports"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// DefaultStreams is the number of fixed partitions a run is split into
	DefaultStreams = 8

	stageCoverage = "coverage"
	cancelCheck   = 1024
)

// Estimator runs coverage experiments
type Estimator struct {
	rng        ports.RNGPort
	runKey     string
	seed       int64
	streams    int
	workers    int
	method     coverage.Method
	search     hdi.Options
	prior      posterior.Prior
	skipFailed bool
	logger     *internal.Logger
	cache      *intervalCache

	// find places the interval on a posterior; replaced in tests
	find func(d hdi.Distribution, mass float64, method coverage.Method, opts hdi.Options) (coverage.Interval, error)
}

// Option configures an Estimator
type Option func(*Estimator)

// WithSeed sets the base seed of every random stream
func WithSeed(seed int64) Option { return func(e *Estimator) { e.seed = seed } }

// WithRunKey namespaces the random streams
func WithRunKey(key string) Option { return func(e *Estimator) { e.runKey = key } }

// WithStreams sets the number of independent partitions; results depend on it
func WithStreams(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.streams = n
		}
	}
}

// WithWorkers bounds how many partitions run at once; results do not depend on it
func WithWorkers(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMethod selects the interval rule
func WithMethod(m coverage.Method) Option { return func(e *Estimator) { e.method = m } }

// WithSearchOptions tunes the highest-density search
func WithSearchOptions(o hdi.Options) Option { return func(e *Estimator) { e.search = o } }

// WithPrior replaces the uniform prior
func WithPrior(p posterior.Prior) Option { return func(e *Estimator) { e.prior = p } }

// WithSkipFailedIntervals excludes realizations whose interval search fails
// instead of aborting. Exclusions are counted in Estimate.Excluded.
func WithSkipFailedIntervals(skip bool) Option { return func(e *Estimator) { e.skipFailed = skip } }

// WithLogger sets the logger
func WithLogger(l *internal.Logger) Option { return func(e *Estimator) { e.logger = l } }

// NewEstimator creates an estimator drawing randomness from rng
func NewEstimator(rng ports.RNGPort, opts ...Option) *Estimator {
	e := &Estimator{
		rng:     rng,
		runKey:  "credcal",
		seed:    42,
		streams: DefaultStreams,
		workers: runtime.GOMAXPROCS(0),
		method:  coverage.MethodHDI,
		search:  hdi.DefaultOptions(),
		prior:   posterior.UniformPrior(),
		logger:  internal.NopLogger(),
		cache:   newIntervalCache(),
		find:    hdi.Find,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Method returns the interval rule in use
func (e *Estimator) Method() coverage.Method { return e.method }

// Seed returns the base seed
func (e *Estimator) Seed() int64 { return e.seed }

// Prior returns the Beta prior updated by each realization
func (e *Estimator) Prior() posterior.Prior { return e.prior }

// CachedIntervals reports how many intervals are memoized
func (e *Estimator) CachedIntervals() int { return e.cache.len() }

// ResetCache drops memoized intervals
func (e *Estimator) ResetCache() { e.cache.reset() }

func (e *Estimator) validate(n int, q float64, mass float64) error {
	if n < 1 {
		return core.NewInvalidArgumentError("n", n, "must be >= 1")
	}
	if !(q >= 0 && q <= 1) {
		return core.NewInvalidArgumentError("q_true", q, "must lie in [0, 1]")
	}
	if err := hdi.ValidateMass(mass); err != nil {
		return err
	}
	switch e.method {
	case coverage.MethodHDI, coverage.MethodEqualTailed:
	default:
		return core.NewInvalidArgumentError("method", e.method, "must be hdi or equal-tailed")
	}
	return e.prior.Validate()
}

// Interval returns the credible interval of the posterior after k successes in n trials
func (e *Estimator) Interval(n, k int, mass float64) (coverage.Interval, error) {
	if err := hdi.ValidateMass(mass); err != nil {
		return coverage.Interval{}, err
	}
	key := intervalKey{n: n, k: k, mass: mass, method: e.method, prior: e.prior}
	return e.cache.get(key, func() (coverage.Interval, error) {
		post, err := posterior.Conjugate(e.prior, n, k)
		if err != nil {
			return coverage.Interval{}, err
		}
		iv, err := e.find(post, mass, e.method, e.search)
		if err != nil {
			if core.IsInvalidArgument(err) {
				return coverage.Interval{}, err
			}
			return coverage.Interval{}, core.NewConvergenceError(n, k, err)
		}
		return iv, nil
	})
}

// partitionSizes splits total into parts sizes differing by at most one
func partitionSizes(total, parts int) []int {
	if parts > total {
		parts = total
	}
	sizes := make([]int, parts)
	base, extra := total/parts, total%parts
	for i := range sizes {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return sizes
}

type partitionResult struct {
	contained int
	excluded  int
}

// EstimateCoverage returns the fraction of realizations whose credible
// interval of the given mass contains q.
func (e *Estimator) EstimateCoverage(ctx context.Context, n int, q float64, realizations int, mass float64) (coverage.Estimate, error) {
	if err := e.validate(n, q, mass); err != nil {
		return coverage.Estimate{}, err
	}
	if realizations < 1 {
		return coverage.Estimate{}, core.NewInvalidArgumentError("realizations", realizations, "must be >= 1")
	}

	configKey := fmt.Sprintf("n=%d/q=%s/mass=%s/%s", n,
		strconv.FormatFloat(q, 'g', -1, 64), strconv.FormatFloat(mass, 'g', -1, 64), e.method)
	sizes := partitionSizes(realizations, e.streams)
	results := make([]partitionResult, len(sizes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, size := range sizes {
		g.Go(func() error {
			src, err := e.rng.Stream(gctx, e.runKey, stageCoverage, configKey+"/"+strconv.Itoa(i), e.seed)
			if err != nil {
				return err
			}
			res, err := e.runPartition(gctx, n, q, mass, size, distuv.Binomial{N: float64(n), P: q, Src: src})
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return coverage.Estimate{}, err
	}

	var contained, excluded int
	for _, r := range results {
		contained += r.contained
		excluded += r.excluded
	}
	if excluded == realizations {
		return coverage.Estimate{}, fmt.Errorf("%w: n=%d q=%g, %d realizations", core.ErrAllExcluded, n, q, realizations)
	}
	if excluded > 0 {
		e.logger.Warn("n=%d q=%g: excluded %d of %d realizations after failed interval searches", n, q, excluded, realizations)
	}

	est := coverage.NewEstimate(n, q, mass, e.method, realizations, contained, excluded)
	e.logger.Debug("n=%d q=%g coverage=%.4f (±%.4f)", n, q, est.Coverage, est.StdErr)
	return est, nil
}

func (e *Estimator) runPartition(ctx context.Context, n int, q, mass float64, size int, binom distuv.Binomial) (partitionResult, error) {
	var res partitionResult
	for j := 0; j < size; j++ {
		if j%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		k := drawSuccesses(n, q, binom)
		iv, err := e.Interval(n, k, mass)
		if err != nil {
			if e.skipFailed && core.IsConvergenceError(err) {
				res.excluded++
				continue
			}
			return res, err
		}
		if iv.Contains(q) {
			res.contained++
		}
	}
	return res, nil
}

// drawSuccesses samples k; q at 0 or 1 is deterministic
func drawSuccesses(n int, q float64, binom distuv.Binomial) int {
	switch q {
	case 0:
		return 0
	case 1:
		return n
	}
	k := int(binom.Rand())
	if k < 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}
