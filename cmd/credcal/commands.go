package main

import (
	"fmt"
	"math"

	"credcal/adapters/excel"
	"credcal/app"
	"credcal/domain/core"
	"credcal/domain/coverage"
	"credcal/internal/config"
	"credcal/internal/errors"
	"credcal/internal/posterior"

	"github.com/spf13/cobra"
)

type intervalOutput struct {
	N         int             `json:"n"`
	K         int             `json:"k"`
	Method    coverage.Method `json:"method"`
	Posterior string          `json:"posterior"`
	Mean      float64         `json:"posterior_mean"`
	Mode      *float64        `json:"posterior_mode,omitempty"` // absent for U-shaped posteriors
	Lower     float64         `json:"lower"`
	Upper     float64         `json:"upper"`
	Width     float64         `json:"width"`
	Mass      float64         `json:"mass"`
}

func newHDICmd(s *session) *cobra.Command {
	var n, k int

	cmd := &cobra.Command{
		Use:   "hdi",
		Short: "Print the credible interval after k successes in n trials",
		Long: `Compute the credible interval of the Beta posterior after k successes in
n trials under the configured prior.

Example: credcal hdi --n 10 --k 3 --mass 0.9`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "n", "k"); err != nil {
				return err
			}
			mass := s.cfg.Calibration.TargetMass
			iv, err := s.service.Interval(n, k, mass)
			if err != nil {
				return err
			}
			post, err := posterior.Conjugate(s.prior, n, k)
			if err != nil {
				return errors.Wrap(err, "invalid counts")
			}
			out := intervalOutput{
				N: n, K: k, Method: s.cfg.Calibration.Method, Posterior: post.String(), Mean: post.Mean(),
				Lower: iv.Lower, Upper: iv.Upper, Width: iv.Width(), Mass: iv.Mass,
			}
			if mode := post.Mode(); !math.IsNaN(mode) {
				out.Mode = &mode
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().IntVar(&n, "n", 0, "Number of trials")
	cmd.Flags().IntVar(&k, "k", 0, "Number of successes")
	return cmd
}

func newEstimateCmd(s *session) *cobra.Command {
	var n, realizations int
	var q float64

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate coverage by Monte Carlo simulation",
		Long: `Simulate binomial experiments at the true probability q and report the
fraction whose credible interval contains q.

Example: credcal estimate --n 1000 --q 0.5 --realizations 10000 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "n", "q"); err != nil {
				return err
			}
			if !cmd.Flags().Changed("realizations") {
				realizations = s.cfg.Calibration.Realizations
			}
			est, err := s.service.Estimate(cmd.Context(), n, q, realizations, s.cfg.Calibration.TargetMass)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), est)
		},
	}

	cmd.Flags().IntVar(&n, "n", 0, "Number of trials per realization")
	cmd.Flags().Float64Var(&q, "q", 0, "True success probability in [0, 1]")
	cmd.Flags().IntVar(&realizations, "realizations", config.DefaultRealizations, "Number of Monte Carlo realizations")
	return cmd
}

type exactOutput struct {
	N             int             `json:"n"`
	TrueQ         float64         `json:"q_true"`
	TargetMass    float64         `json:"target_mass"`
	Method        coverage.Method `json:"method"`
	ExactCoverage float64         `json:"exact_coverage"`
	Gap           float64         `json:"gap"`
}

func newExactCmd(s *session) *cobra.Command {
	var n int
	var q float64

	cmd := &cobra.Command{
		Use:   "exact",
		Short: "Compute the exact coverage by summing over all outcomes",
		Long: `Compute the coverage probability exactly as the binomial-weighted sum over
every success count whose interval contains q.

Example: credcal exact --n 100 --q 0.04`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(cmd, "n", "q"); err != nil {
				return err
			}
			mass := s.cfg.Calibration.TargetMass
			exact, err := s.service.Exact(cmd.Context(), n, q, mass)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), exactOutput{
				N: n, TrueQ: q, TargetMass: mass, Method: s.cfg.Calibration.Method,
				ExactCoverage: exact, Gap: exact - mass,
			})
		},
	}

	cmd.Flags().IntVar(&n, "n", 0, "Number of trials")
	cmd.Flags().Float64Var(&q, "q", 0, "True success probability in [0, 1]")
	return cmd
}

func newSweepCmd(s *session) *cobra.Command {
	var gridPath, outPath, runID string
	var realizations int
	var skipExact bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run coverage over a grid of sample sizes and true probabilities",
		Long: `Run the coverage experiment for every (q, n) of a grid and summarize how the
gap to the target mass closes as n grows.

Without --grid the reference grid is used: 12 log-spaced n from 3 to 10000
and q in {0.04, 0.4, 0.6, 0.96}. Grid files are YAML:

  n_log_space: {min_exp: 0.5, max_exp: 4, points: 12}
  q: [0.04, 0.4, 0.6, 0.96]
  mass: 0.95
  realizations: 10000

Example: credcal sweep --grid grid.yaml --out report.xlsx --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			grid := config.DefaultGrid()
			if gridPath != "" {
				loaded, err := config.LoadGrid(gridPath)
				if err != nil {
					return errors.WithCode(errors.CodeInvalidInput, err)
				}
				grid = loaded
			}

			req := app.SweepRequest{
				NValues:      grid.NValues,
				QValues:      grid.QValues,
				TargetMass:   s.cfg.Calibration.TargetMass,
				Realizations: s.cfg.Calibration.Realizations,
				SkipExact:    skipExact,
				OutputPath:   s.cfg.Output.Path,
			}
			// Precedence: flags, then grid file, then environment.
			if grid.TargetMass != 0 && !cmd.Flags().Changed("mass") {
				req.TargetMass = grid.TargetMass
			}
			if grid.Realizations != 0 {
				req.Realizations = grid.Realizations
			}
			if cmd.Flags().Changed("realizations") {
				req.Realizations = realizations
			}
			if outPath != "" {
				req.OutputPath = outPath
			}
			if runID != "" {
				parsed, err := core.ParseRunID(runID)
				if err != nil {
					return errors.WithCode(errors.CodeInvalidInput, err)
				}
				req.RunID = parsed
			}

			report, err := s.service.Sweep(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&gridPath, "grid", "", "YAML grid file")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the report to an .xlsx or .csv file")
	cmd.Flags().IntVar(&realizations, "realizations", config.DefaultRealizations, "Realizations per grid point")
	cmd.Flags().StringVar(&runID, "run-id", "", "UUID to label the report with (generated when empty)")
	cmd.Flags().BoolVar(&skipExact, "skip-exact", false, "Skip the exact coverage reference column")
	return cmd
}

func newInspectCmd(s *session) *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "inspect [report-file]",
		Short: "Print a previously exported report table as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := excel.NewDataReader(args[0]).ReadSheet(sheet)
			if err != nil {
				return errors.WithCode(errors.CodeInvalidInput, err)
			}
			s.logger.Debug("inspect: %d rows from %s", len(data.Rows), args[0])
			return writeJSON(cmd.OutOrStdout(), data.Rows)
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", excel.SheetCoverage, fmt.Sprintf("Table to print: %s|%s", excel.SheetCoverage, excel.SheetSummary))
	return cmd
}
