package app

import (
	"context"
	"math"
	"time"

	"credcal/domain/core"
	"credcal/domain/coverage"
	"credcal/internal"
	"credcal/internal/calibration"
	"credcal/internal/errors"
	"credcal/internal/hdi"
	"credcal/ports"

	"github.com/montanaflynn/stats"
)

// CalibrationService runs coverage sweeps over (n, q) grids
type CalibrationService struct {
	estimator *calibration.Estimator
	exporter  ports.ReportExporter
	logger    *internal.Logger
}

// SweepRequest defines the inputs for one calibration sweep
type SweepRequest struct {
	NValues      []int
	QValues      []float64
	TargetMass   float64
	Realizations int
	SkipExact    bool       // leave ExactCoverage at zero
	OutputPath   string     // optional; requires an exporter
	RunID        core.RunID // optional, generated if empty
}

// NewCalibrationService creates a calibration service. exporter may be nil
// when reports are never written to disk.
func NewCalibrationService(estimator *calibration.Estimator, exporter ports.ReportExporter, logger *internal.Logger) *CalibrationService {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &CalibrationService{
		estimator: estimator,
		exporter:  exporter,
		logger:    logger,
	}
}

// Estimate runs a single coverage experiment
func (s *CalibrationService) Estimate(ctx context.Context, n int, q float64, realizations int, mass float64) (coverage.Estimate, error) {
	est, err := s.estimator.EstimateCoverage(ctx, n, q, realizations, mass)
	if err != nil {
		return coverage.Estimate{}, errors.Wrapf(err, "coverage estimate failed for n=%d q=%g", n, q)
	}
	return est, nil
}

// Exact computes the limiting coverage of a configuration
func (s *CalibrationService) Exact(ctx context.Context, n int, q, mass float64) (float64, error) {
	exact, err := s.estimator.ExactCoverage(ctx, n, q, mass)
	if err != nil {
		return 0, errors.Wrapf(err, "exact coverage failed for n=%d q=%g", n, q)
	}
	return exact, nil
}

// Interval returns the credible interval after k successes in n trials
func (s *CalibrationService) Interval(n, k int, mass float64) (coverage.Interval, error) {
	iv, err := s.estimator.Interval(n, k, mass)
	if err != nil {
		return coverage.Interval{}, errors.Wrapf(err, "interval failed for n=%d k=%d", n, k)
	}
	return iv, nil
}

func validateRequest(req SweepRequest) error {
	if len(req.NValues) == 0 {
		return core.NewInvalidArgumentError("n values", req.NValues, "must not be empty")
	}
	if len(req.QValues) == 0 {
		return core.NewInvalidArgumentError("q values", req.QValues, "must not be empty")
	}
	if req.Realizations < 1 {
		return core.NewInvalidArgumentError("realizations", req.Realizations, "must be >= 1")
	}
	if err := hdi.ValidateMass(req.TargetMass); err != nil {
		return err
	}
	for _, n := range req.NValues {
		if n < 1 {
			return core.NewInvalidArgumentError("n", n, "must be >= 1")
		}
	}
	for _, q := range req.QValues {
		if !(q >= 0 && q <= 1) {
			return core.NewInvalidArgumentError("q_true", q, "must lie in [0, 1]")
		}
	}
	return nil
}

// Sweep evaluates every (q, n) in the request and optionally exports the report
func (s *CalibrationService) Sweep(ctx context.Context, req SweepRequest) (*coverage.SweepReport, error) {
	if err := validateRequest(req); err != nil {
		return nil, errors.Wrap(err, "invalid sweep request")
	}
	if req.OutputPath != "" && s.exporter == nil {
		return nil, errors.InvalidInput("an output path was given but no exporter is configured")
	}

	startTime := time.Now()
	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}

	prior := s.estimator.Prior().String()
	fingerprint := core.ComputeSweepFingerprint(req.NValues, req.QValues, req.TargetMass,
		string(s.estimator.Method()), prior, req.Realizations, s.estimator.Seed())

	report := &coverage.SweepReport{
		RunID:        runID,
		Fingerprint:  fingerprint,
		Seed:         s.estimator.Seed(),
		TargetMass:   req.TargetMass,
		Method:       s.estimator.Method(),
		Prior:        prior,
		Realizations: req.Realizations,
		NValues:      append([]int(nil), req.NValues...),
		QValues:      append([]float64(nil), req.QValues...),
		Points:       make([]coverage.SweepPoint, 0, len(req.NValues)*len(req.QValues)),
		CreatedAt:    startTime.UTC(),
	}

	s.logger.Info("sweep %s: %d n values x %d q values, %d realizations each",
		runID, len(req.NValues), len(req.QValues), req.Realizations)

	for _, q := range req.QValues {
		series := make([]coverage.SweepPoint, 0, len(req.NValues))
		for _, n := range req.NValues {
			est, err := s.Estimate(ctx, n, q, req.Realizations, req.TargetMass)
			if err != nil {
				return nil, err
			}
			point := coverage.SweepPoint{Estimate: est}
			if !req.SkipExact {
				if point.ExactCoverage, err = s.Exact(ctx, n, q, req.TargetMass); err != nil {
					return nil, err
				}
			}
			s.logger.Debug("sweep %s: n=%d q=%g coverage=%.4f exact=%.4f", runID, n, q, est.Coverage, point.ExactCoverage)
			series = append(series, point)
		}

		summary, err := summarize(q, series)
		if err != nil {
			return nil, errors.Wrapf(err, "summary failed for q=%g", q)
		}
		report.Points = append(report.Points, series...)
		report.Summaries = append(report.Summaries, summary)
		s.logger.Info("sweep %s: q=%g max |gap|=%.4f final gap=%+.4f", runID, q, summary.MaxAbsGap, summary.FinalGap)
	}

	if req.OutputPath != "" {
		if err := s.exporter.Export(ctx, req.OutputPath, report); err != nil {
			return nil, errors.ExportError(req.OutputPath, err)
		}
		s.logger.Info("sweep %s: report written to %s", runID, req.OutputPath)
	}

	s.logger.Info("sweep %s: finished in %s", runID, time.Since(startTime).Round(time.Millisecond))
	return report, nil
}

// summarize condenses one q series; points must be in grid order
func summarize(q float64, points []coverage.SweepPoint) (coverage.SeriesSummary, error) {
	absGaps := make(stats.Float64Data, len(points))
	coverages := make(stats.Float64Data, len(points))
	finalIdx := 0
	for i, p := range points {
		absGaps[i] = math.Abs(p.Gap())
		coverages[i] = p.Coverage
		if p.N >= points[finalIdx].N {
			finalIdx = i
		}
	}

	meanGap, err := stats.Mean(absGaps)
	if err != nil {
		return coverage.SeriesSummary{}, err
	}
	maxGap, err := stats.Max(absGaps)
	if err != nil {
		return coverage.SeriesSummary{}, err
	}
	stdDev, err := stats.StandardDeviation(coverages)
	if err != nil {
		return coverage.SeriesSummary{}, err
	}

	return coverage.SeriesSummary{
		TrueQ:          q,
		Points:         len(points),
		MeanAbsGap:     meanGap,
		MaxAbsGap:      maxGap,
		FinalGap:       points[finalIdx].Gap(),
		CoverageStdDev: stdDev,
	}, nil
}
