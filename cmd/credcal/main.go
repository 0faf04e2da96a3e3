package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"credcal/adapters/excel"
	"credcal/adapters/rng"
	"credcal/app"
	"credcal/domain/coverage"
	"credcal/internal"
	"credcal/internal/calibration"
	"credcal/internal/config"
	"credcal/internal/errors"
	"credcal/internal/hdi"
	"credcal/internal/posterior"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps error codes to process status: 2 for bad input, 1 otherwise
func exitCode(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput, errors.CodeConfigInvalid:
		return 2
	default:
		return 1
	}
}

// globalFlags override values loaded from the environment when set
type globalFlags struct {
	seed       int64
	mass       float64
	method     string
	workers    int
	priorAlpha float64
	priorBeta  float64
	skipFailed bool
}

// session bundles what every subcommand needs after config is resolved
type session struct {
	cfg     *config.Config
	logger  *internal.Logger
	service *app.CalibrationService
	prior   posterior.Prior
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "credcal",
		Short: "Calibration of Bayesian credible intervals for binomial proportions",
		Long: `credcal measures how often the highest-density credible interval of a
Beta posterior actually contains the true success probability.

Defaults are read from the environment (and a .env file when present):
  CREDCAL_REALIZATIONS, CREDCAL_TARGET_MASS, CREDCAL_SEED, CREDCAL_STREAMS,
  CREDCAL_WORKERS, CREDCAL_METHOD, CREDCAL_TOLERANCE, CREDCAL_MAX_ITERATIONS,
  CREDCAL_SKIP_FAILED, CREDCAL_OUTPUT, CREDCAL_OUTPUT_FORMAT, LOG_LEVEL.
Flags override the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.init(cmd, flags)
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.WithCode(errors.CodeInvalidInput, err)
	})

	pf := rootCmd.PersistentFlags()
	pf.Int64Var(&flags.seed, "seed", config.DefaultSeed, "Random seed for deterministic operations")
	pf.Float64Var(&flags.mass, "mass", config.DefaultTargetMass, "Target credible mass in (0, 1)")
	pf.StringVar(&flags.method, "method", string(coverage.MethodHDI), "Interval method: hdi|equal-tailed")
	pf.IntVar(&flags.workers, "workers", 0, "Concurrent partitions (0 keeps CREDCAL_WORKERS)")
	pf.Float64Var(&flags.priorAlpha, "prior-alpha", 1, "Alpha of the Beta prior")
	pf.Float64Var(&flags.priorBeta, "prior-beta", 1, "Beta of the Beta prior")
	pf.BoolVar(&flags.skipFailed, "skip-failed", false, "Exclude realizations whose interval search fails instead of aborting")

	rootCmd.AddCommand(
		newHDICmd(s),
		newEstimateCmd(s),
		newExactCmd(s),
		newSweepCmd(s),
		newInspectCmd(s),
	)
	return rootCmd
}

func (s *session) init(cmd *cobra.Command, flags *globalFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	if changed("seed") {
		cfg.Calibration.Seed = flags.seed
	}
	if changed("mass") {
		cfg.Calibration.TargetMass = flags.mass
	}
	if changed("method") {
		method, err := coverage.ParseMethod(flags.method)
		if err != nil {
			return errors.WithCode(errors.CodeInvalidInput, err)
		}
		cfg.Calibration.Method = method
	}
	if changed("workers") {
		cfg.Calibration.Workers = flags.workers
	}
	if changed("skip-failed") {
		cfg.Calibration.SkipFailed = flags.skipFailed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	prior := posterior.Prior{Alpha: flags.priorAlpha, Beta: flags.priorBeta}
	if err := prior.Validate(); err != nil {
		return errors.Wrap(err, "invalid prior")
	}

	logger := internal.NewLoggerTo(cmd.ErrOrStderr(), cfg.Log.Level)
	c := cfg.Calibration
	estimator := calibration.NewEstimator(rng.NewSeededAdapter(),
		calibration.WithSeed(c.Seed),
		calibration.WithStreams(c.Streams),
		calibration.WithWorkers(c.Workers),
		calibration.WithMethod(c.Method),
		calibration.WithSearchOptions(hdi.Options{Tolerance: c.Tolerance, MaxIterations: c.MaxIterations}),
		calibration.WithPrior(prior),
		calibration.WithSkipFailedIntervals(c.SkipFailed),
		calibration.WithLogger(logger),
	)

	format, _ := excel.ParseFormat(cfg.Output.Format)
	exporter := excel.NewDataWriter(format, logger)

	s.cfg = cfg
	s.logger = logger
	s.prior = prior
	s.service = app.NewCalibrationService(estimator, exporter, logger)
	logger.Debug("config: seed=%d mass=%g method=%s workers=%d streams=%d",
		c.Seed, c.TargetMass, c.Method, c.Workers, c.Streams)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// requireFlags reports missing flags as invalid input
func requireFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		if !cmd.Flags().Changed(name) {
			return errors.InvalidInput(fmt.Sprintf("required flag --%s not set", name))
		}
	}
	return nil
}
