package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/config"
)

// runFlags are the configuration overrides shared by run, resume and bench.
type runFlags struct {
	configPath string

	problem    string
	dimension  int
	algorithm  string
	acceptance string
	roster     string
	iters      int
	interval   int
	budget     int
	seed       uint64
	threshold  float64
	trackFront bool
	patience   int
}

// addRunFlags registers the override flags on cmd.
func addRunFlags(cmd *cobra.Command, f *runFlags) {
	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "Run configuration file (YAML or JSON)")
	fs.StringVar(&f.problem, "problem", "", "Problem: onemax, sphere, rastrigin, zdt1, moving-peaks")
	fs.IntVar(&f.dimension, "dim", 0, "Problem dimension")
	fs.StringVar(&f.algorithm, "algo", "", "Generator tag, e.g. tabu or portfolio")
	fs.StringVar(&f.acceptance, "accept", "", "Acceptance policy override (best, threshold, temperature, pareto, multicase)")
	fs.StringVar(&f.roster, "roster", "", "Comma-separated portfolio members")
	fs.IntVar(&f.iters, "iters", 0, "Max iterations")
	fs.IntVar(&f.interval, "change-interval", 0, "Iterations between environment changes (0 = static)")
	fs.IntVar(&f.budget, "budget", 0, "Operator budget per candidate")
	fs.Uint64Var(&f.seed, "seed", 0, "Random seed")
	fs.Float64Var(&f.threshold, "threshold", 0, "Relative gain for threshold acceptance")
	fs.BoolVar(&f.trackFront, "front", false, "Track the Pareto front")
	fs.IntVar(&f.patience, "patience", 0, "Stop after N iterations without significant improvement (0 = off)")
}

// load reads the configuration file, or the defaults, and applies the flags
// that were set explicitly.
func (f *runFlags) load(cmd *cobra.Command) (config.RunConfig, error) {
	cfg := config.Defaults()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return cfg, err
		}
	}
	f.apply(cmd, &cfg)
	return cfg, nil
}

// apply overrides cfg with the flags set on the command line.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.RunConfig) {
	changed := cmd.Flags().Changed

	if changed("problem") {
		cfg.Problem.Name = f.problem
	}
	if changed("dim") {
		cfg.Problem.Dimension = f.dimension
	}
	if changed("algo") {
		cfg.Algorithm = f.algorithm
	}
	if changed("accept") {
		cfg.Acceptance = f.acceptance
	}
	if changed("roster") {
		cfg.Roster = nil
		for _, m := range strings.Split(f.roster, ",") {
			if m = strings.TrimSpace(m); m != "" {
				cfg.Roster = append(cfg.Roster, m)
			}
		}
	}
	if changed("iters") {
		cfg.MaxIterations = f.iters
	}
	if changed("change-interval") {
		cfg.ChangeInterval = f.interval
	}
	if changed("budget") {
		cfg.OperatorBudget = f.budget
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("threshold") {
		cfg.Threshold = f.threshold
	}
	if changed("front") {
		cfg.TrackFront = f.trackFront
	}
	if changed("patience") {
		cfg.Convergence.Patience = f.patience
	}
}

// describe is a one-line summary of a configuration for log output.
func describe(cfg config.RunConfig) string {
	return fmt.Sprintf("%s/%d %s", cfg.Problem.Name, cfg.Problem.Dimension, cfg.Algorithm)
}
