package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"text/tabwriter"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/config"
)

var (
	benchOpts     runFlags
	benchSeeds    int
	benchParallel int
	benchJSON     bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run one configuration over several seeds",
	Long: `Runs the configuration once per seed, concurrently, and reports the
best value and mean offline performance of each run plus their averages.
Seeds are consecutive, starting at the configured seed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := benchOpts.load(cmd)
		if err != nil {
			return err
		}
		results, err := bench(cfg, benchSeeds, benchParallel)
		if err != nil {
			return err
		}
		if benchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		printBench(cmd.OutOrStdout(), results)
		return nil
	},
}

func init() {
	addRunFlags(benchCmd, &benchOpts)
	benchCmd.Flags().IntVar(&benchSeeds, "seeds", 10, "Number of seeds")
	benchCmd.Flags().IntVar(&benchParallel, "parallel", 4, "Maximum concurrent runs")
	benchCmd.Flags().BoolVar(&benchJSON, "json", false, "Print results as JSON")
	rootCmd.AddCommand(benchCmd)
}

// benchResult summarizes one seeded run.
type benchResult struct {
	Seed       uint64        `json:"seed"`
	Best       float64       `json:"best"`
	Offline    float64       `json:"offline"`
	Iterations int           `json:"iterations"`
	Elapsed    time.Duration `json:"elapsed"`
}

// bench runs cfg for seeds consecutive seeds with at most parallel runs in
// flight. Results are in seed order.
func bench(cfg config.RunConfig, seeds, parallel int) ([]benchResult, error) {
	if seeds <= 0 {
		return nil, fmt.Errorf("--seeds must be positive")
	}
	if parallel <= 0 {
		parallel = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Starting bench", "config", describe(cfg), "seeds", seeds, "parallel", parallel)

	results := make([]benchResult, seeds)
	p := pool.New().WithErrors().WithMaxGoroutines(parallel)
	for i := range seeds {
		c := cfg
		c.Seed = cfg.Seed + uint64(i)
		p.Go(func() error {
			run, err := c.Build(config.Hooks{})
			if err != nil {
				return err
			}
			res, err := run.Strategy.Run()
			if err != nil {
				return fmt.Errorf("seed %d: %w", c.Seed, err)
			}
			results[i] = benchResult{
				Seed:       c.Seed,
				Best:       res.Best.Last(),
				Offline:    mean(res.Offline),
				Iterations: res.Iterations,
				Elapsed:    res.Elapsed,
			}
			slog.Debug("Bench run finished", "seed", c.Seed, "best", results[i].Best)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// printBench writes the per-seed table and the averages.
func printBench(w io.Writer, results []benchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEED\tBEST\tOFFLINE\tITERATIONS\tELAPSED")
	fmt.Fprintln(tw, "----\t----\t-------\t----------\t-------")

	best := make([]float64, len(results))
	offline := make([]float64, len(results))
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%.6g\t%.6g\t%d\t%s\n", r.Seed, r.Best, r.Offline, r.Iterations, r.Elapsed.Round(time.Millisecond))
		best[i] = r.Best
		offline[i] = r.Offline
	}
	fmt.Fprintf(tw, "mean\t%.6g\t%.6g\t\t\n", mean(best), mean(offline))
	tw.Flush()
}
