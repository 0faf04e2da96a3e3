package calibration

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"credcal/adapters/rng"
	"credcal/domain/core"
	"credcal/domain/coverage"
	"credcal/internal/hdi"
	"credcal/internal/posterior"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRNG records stream requests
type MockRNG struct {
	mock.Mock
}

func (m *MockRNG) Stream(ctx context.Context, runKey, stageName, partitionKey string, baseSeed int64) (*rand.Rand, error) {
	args := m.Called(ctx, runKey, stageName, partitionKey, baseSeed)
	r, _ := args.Get(0).(*rand.Rand)
	return r, args.Error(1)
}

func newTestEstimator(opts ...Option) *Estimator {
	return NewEstimator(rng.NewSeededAdapter(), append([]Option{WithSeed(20240601)}, opts...)...)
}

func TestEstimateCoverage_WithinUnitInterval(t *testing.T) {
	ctx := context.Background()
	est := newTestEstimator()

	tests := []struct {
		n    int
		q    float64
		mass float64
	}{
		{1, 0.5, 0.95},
		{3, 0.04, 0.95},
		{10, 0.96, 0.95},
		{59, 0.4, 0.5},
		{200, 0.6, 0.99},
	}
	for _, tt := range tests {
		res, err := est.EstimateCoverage(ctx, tt.n, tt.q, 2000, tt.mass)
		require.NoError(t, err, "n=%d q=%g", tt.n, tt.q)
		assert.GreaterOrEqual(t, res.Coverage, 0.0)
		assert.LessOrEqual(t, res.Coverage, 1.0)
		assert.Equal(t, 2000, res.Realizations)
		assert.Equal(t, 0, res.Excluded)
		assert.LessOrEqual(t, res.Contained, res.Realizations)
		assert.LessOrEqual(t, res.WilsonLower, res.Coverage)
		assert.GreaterOrEqual(t, res.WilsonUpper, res.Coverage)
	}
}

func TestEstimateCoverage_ReferenceScenario(t *testing.T) {
	est := newTestEstimator()
	res, err := est.EstimateCoverage(context.Background(), 1000, 0.5, 10000, 0.95)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Coverage, 0.93)
	assert.LessOrEqual(t, res.Coverage, 0.97)
}

func TestEstimateCoverage_DeterministicForSeed(t *testing.T) {
	ctx := context.Background()

	first, err := newTestEstimator().EstimateCoverage(ctx, 100, 0.4, 5000, 0.95)
	require.NoError(t, err)
	second, err := newTestEstimator().EstimateCoverage(ctx, 100, 0.4, 5000, 0.95)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// worker count changes scheduling only
	serial, err := newTestEstimator(WithWorkers(1)).EstimateCoverage(ctx, 100, 0.4, 5000, 0.95)
	require.NoError(t, err)
	wide, err := newTestEstimator(WithWorkers(16)).EstimateCoverage(ctx, 100, 0.4, 5000, 0.95)
	require.NoError(t, err)
	assert.Equal(t, first, serial)
	assert.Equal(t, first, wide)

	// a warm interval cache does not change the draws
	warm := newTestEstimator()
	_, err = warm.ExactCoverage(ctx, 100, 0.4, 0.95)
	require.NoError(t, err)
	again, err := warm.EstimateCoverage(ctx, 100, 0.4, 5000, 0.95)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestEstimateCoverage_AgreesWithExactCoverage(t *testing.T) {
	ctx := context.Background()
	est := newTestEstimator()
	const realizations = 10000

	for _, q := range []float64{0.04, 0.4, 0.96} {
		for _, n := range []int{10, 100, 1000, 10000} {
			exact, err := est.ExactCoverage(ctx, n, q, 0.95)
			require.NoError(t, err)

			mc, err := est.EstimateCoverage(ctx, n, q, realizations, 0.95)
			require.NoError(t, err)

			se := math.Max(math.Sqrt(exact*(1-exact)/realizations), 1.0/realizations)
			assert.InDelta(t, exact, mc.Coverage, 4*se,
				"n=%d q=%g: Monte Carlo %.4f vs exact %.4f", n, q, mc.Coverage, exact)
		}
	}
}

func TestExactCoverage_ApproachesTargetMass(t *testing.T) {
	ctx := context.Background()
	est := newTestEstimator()

	for _, q := range []float64{0.04, 0.4} {
		gaps := make(map[int]float64)
		for _, n := range []int{10, 100, 1000, 10000} {
			exact, err := est.ExactCoverage(ctx, n, q, 0.95)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, exact, 0.0)
			assert.LessOrEqual(t, exact, 1.0)
			gaps[n] = math.Abs(exact - 0.95)
		}

		assert.Less(t, gaps[10000], 0.01, "q=%g: large-n gap %g", q, gaps[10000])
		small := math.Max(gaps[10], gaps[100])
		large := math.Max(gaps[1000], gaps[10000])
		assert.LessOrEqual(t, large, small+0.005, "q=%g: gaps %v", q, gaps)
	}
}

func TestEstimateCoverage_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	mockRNG := &MockRNG{}
	est := NewEstimator(mockRNG)

	tests := []struct {
		name         string
		n            int
		q            float64
		realizations int
		mass         float64
	}{
		{"zero n", 0, 0.5, 100, 0.95},
		{"negative n", -3, 0.5, 100, 0.95},
		{"zero realizations", 10, 0.5, 0, 0.95},
		{"mass zero", 10, 0.5, 100, 0},
		{"mass one", 10, 0.5, 100, 1},
		{"mass above one", 10, 0.5, 100, 1.5},
		{"q below zero", 10, -0.1, 100, 0.95},
		{"q above one", 10, 1.1, 100, 0.95},
		{"q NaN", 10, math.NaN(), 100, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := est.EstimateCoverage(ctx, tt.n, tt.q, tt.realizations, tt.mass)
			assert.True(t, core.IsInvalidArgument(err), "got %v", err)
		})
	}
	mockRNG.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	_, err := NewEstimator(mockRNG, WithMethod("bootstrap")).EstimateCoverage(ctx, 10, 0.5, 100, 0.95)
	assert.True(t, core.IsInvalidArgument(err))
	_, err = NewEstimator(mockRNG, WithPrior(posterior.Prior{Alpha: -1, Beta: 1})).EstimateCoverage(ctx, 10, 0.5, 100, 0.95)
	assert.True(t, core.IsInvalidArgument(err))
}

func TestEstimateCoverage_StreamErrorPropagates(t *testing.T) {
	mockRNG := &MockRNG{}
	boom := errors.New("entropy exhausted")
	mockRNG.On("Stream", mock.Anything, "credcal", "coverage", mock.Anything, int64(42)).Return(nil, boom)

	_, err := NewEstimator(mockRNG).EstimateCoverage(context.Background(), 10, 0.5, 100, 0.95)
	assert.ErrorIs(t, err, boom)
	mockRNG.AssertExpectations(t)
}

func TestEstimateCoverage_DegenerateProportions(t *testing.T) {
	ctx := context.Background()
	est := newTestEstimator()

	for _, q := range []float64{0, 1} {
		res, err := est.EstimateCoverage(ctx, 25, q, 500, 0.95)
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.Coverage, "q=%g", q)

		exact, err := est.ExactCoverage(ctx, 25, q, 0.95)
		require.NoError(t, err)
		assert.Equal(t, 1.0, exact, "q=%g", q)
	}
}

// failOnZeroSuccesses fails the search for the k = 0 posterior Beta(1, n+1)
func failOnZeroSuccesses(d hdi.Distribution, mass float64, method coverage.Method, opts hdi.Options) (coverage.Interval, error) {
	if b, ok := d.(*posterior.Beta); ok && b.Alpha == 1 {
		return coverage.Interval{}, hdi.ErrMaxIterations
	}
	return hdi.Find(d, mass, method, opts)
}

func TestEstimateCoverage_FailedIntervalAborts(t *testing.T) {
	est := newTestEstimator()
	est.find = failOnZeroSuccesses

	// P(k = 0) = 0.9^5 ≈ 0.59, so some realization hits the failure
	_, err := est.EstimateCoverage(context.Background(), 5, 0.1, 200, 0.95)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNonConvergence)
	assert.Contains(t, err.Error(), "n=5 k=0")
}

func TestEstimateCoverage_FailedIntervalsExcludedWhenSkipping(t *testing.T) {
	est := newTestEstimator(WithSkipFailedIntervals(true))
	est.find = failOnZeroSuccesses

	res, err := est.EstimateCoverage(context.Background(), 5, 0.1, 2000, 0.95)
	require.NoError(t, err)
	assert.Greater(t, res.Excluded, 0)
	assert.Less(t, res.Excluded, res.Realizations)
	assert.InDelta(t, float64(res.Contained)/float64(res.Used()), res.Coverage, 1e-12)
	// roughly 59% of draws have k = 0
	assert.InDelta(t, 0.59, float64(res.Excluded)/float64(res.Realizations), 0.05)
}

func TestEstimateCoverage_AllExcluded(t *testing.T) {
	est := newTestEstimator(WithSkipFailedIntervals(true))
	est.find = func(hdi.Distribution, float64, coverage.Method, hdi.Options) (coverage.Interval, error) {
		return coverage.Interval{}, hdi.ErrNaNQuantile
	}

	_, err := est.EstimateCoverage(context.Background(), 5, 0.1, 50, 0.95)
	assert.ErrorIs(t, err, core.ErrAllExcluded)
}

func TestEstimateCoverage_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEstimator().EstimateCoverage(ctx, 100, 0.4, 10000, 0.95)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = newTestEstimator().ExactCoverage(ctx, 100, 0.4, 0.95)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIntervalMemo(t *testing.T) {
	est := newTestEstimator()
	assert.Equal(t, 0, est.CachedIntervals())

	iv, err := est.Interval(10, 5, 0.95)
	require.NoError(t, err)
	b, err := posterior.Conjugate(posterior.UniformPrior(), 10, 5)
	require.NoError(t, err)
	direct, err := hdi.HighestDensity(b, 0.95, hdi.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, direct, iv)
	assert.Equal(t, 1, est.CachedIntervals())

	_, err = est.EstimateCoverage(context.Background(), 50, 0.3, 1000, 0.95)
	require.NoError(t, err)
	assert.Greater(t, est.CachedIntervals(), 1)
	assert.LessOrEqual(t, est.CachedIntervals(), 1+51)

	est.ResetCache()
	assert.Equal(t, 0, est.CachedIntervals())

	_, err = est.Interval(10, 11, 0.95)
	assert.True(t, core.IsInvalidArgument(err))
	assert.Equal(t, 0, est.CachedIntervals())
}

func TestEqualTailedAndPriorOptions(t *testing.T) {
	ctx := context.Background()

	eti := newTestEstimator(WithMethod(coverage.MethodEqualTailed))
	res, err := eti.EstimateCoverage(ctx, 30, 0.2, 2000, 0.95)
	require.NoError(t, err)
	assert.Equal(t, coverage.MethodEqualTailed, res.Method)
	assert.GreaterOrEqual(t, res.Coverage, 0.0)
	assert.LessOrEqual(t, res.Coverage, 1.0)

	uniform, err := newTestEstimator().Interval(10, 0, 0.95)
	require.NoError(t, err)
	jeffreys, err := newTestEstimator(WithPrior(posterior.Prior{Alpha: 0.5, Beta: 0.5})).Interval(10, 0, 0.95)
	require.NoError(t, err)
	assert.NotEqual(t, uniform.Upper, jeffreys.Upper)
}

func TestPartitionSizes(t *testing.T) {
	assert.Equal(t, []int{4, 3, 3}, partitionSizes(10, 3))
	assert.Equal(t, []int{1, 1}, partitionSizes(2, 8))
	assert.Equal(t, []int{5}, partitionSizes(5, 1))

	total := 0
	for _, s := range partitionSizes(10007, 8) {
		total += s
	}
	assert.Equal(t, 10007, total)
}
