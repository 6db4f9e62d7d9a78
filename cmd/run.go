package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/store"
	"github.com/cwbudde/metaopt/internal/strategy"
)

// outputFlags control where a run's results go.
type outputFlags struct {
	storePath string
	traceDir  string
	traceEnc  bool
	logEvery  int
	jsonOut   bool
}

func addOutputFlags(cmd *cobra.Command, o *outputFlags) {
	fs := cmd.Flags()
	fs.StringVar(&o.storePath, "store", "", "Save the run record (directory, or .db/.sqlite file)")
	fs.StringVar(&o.traceDir, "trace", "", "Write an improvement trace under this directory")
	fs.BoolVar(&o.traceEnc, "trace-encoding", false, "Include encodings in trace entries")
	fs.IntVar(&o.logEvery, "log-every", 0, "Log progress every N iterations (0 = off)")
	fs.BoolVar(&o.jsonOut, "json", false, "Print the result as JSON")
}

var (
	runOpts   runFlags
	runOutput outputFlags
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization",
	Long: `Runs one optimization from a configuration file and/or flags.
Flags override values from the file. Ctrl-C stops the run after the
current iteration and still reports the partial result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := runOpts.load(cmd)
		if err != nil {
			return err
		}
		_, err = execute(cmd, cfg, runOutput, "")
		return err
	},
}

func init() {
	addRunFlags(runCmd, &runOpts)
	addOutputFlags(runCmd, &runOutput)
	rootCmd.AddCommand(runCmd)
}

// execute builds and runs cfg, then reports and optionally saves the result.
func execute(cmd *cobra.Command, cfg config.RunConfig, out outputFlags, parentID string) (*store.RunRecord, error) {
	var runStore store.Store
	if out.storePath != "" {
		s, err := store.Open(out.storePath)
		if err != nil {
			return nil, err
		}
		runStore = s
		if c, ok := s.(io.Closer); ok {
			defer c.Close()
		}
	}

	runID := uuid.New().String()

	var trace *store.TraceWriter
	if out.traceDir != "" {
		w, err := store.NewTraceWriter(out.traceDir, runID, false)
		if err != nil {
			return nil, err
		}
		trace = w
		defer trace.Close()
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	run, err := cfg.Build(config.Hooks{
		Stop: func(int) bool { return ctx.Err() != nil },
		OnIteration: func(p strategy.Progress) {
			if trace != nil && p.Improved {
				if err := trace.Write(store.NewTraceEntry(p.Best, out.traceEnc)); err != nil {
					slog.Warn("Failed to write trace entry", "error", err)
				}
			}
			if out.logEvery > 0 && p.Iteration%out.logEvery == 0 {
				slog.Info("Progress", "iteration", p.Iteration, "best", p.Best.Fitness, "origin", p.Best.Origin)
			}
			if p.Boundary {
				slog.Debug("Environment changed", "iteration", p.Iteration, "best", p.Best.Fitness)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Starting run", "run_id", runID, "config", describe(cfg), "iterations", cfg.MaxIterations, "seed", cfg.Seed)

	res, err := run.Strategy.Run()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if res.Stopped && ctx.Err() == context.Canceled {
		slog.Warn("Run interrupted", "run_id", runID, "iterations", res.Iterations)
	}

	record := store.NewRunRecord(runID, cfg, res)
	record.ParentID = parentID

	if runStore != nil {
		if err := runStore.SaveRun(record); err != nil {
			return record, fmt.Errorf("failed to save run: %w", err)
		}
		slog.Info("Run saved", "run_id", runID, "store", out.storePath)
	}

	if out.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return record, enc.Encode(record)
	}
	printRecord(cmd.OutOrStdout(), record)
	return record, nil
}

// printRecord writes a human-readable summary of a run.
func printRecord(w io.Writer, r *store.RunRecord) {
	fmt.Fprintf(w, "Run:        %s\n", r.ID)
	if r.ParentID != "" {
		fmt.Fprintf(w, "Resumed:    %s\n", r.ParentID)
	}
	if r.Converged {
		fmt.Fprintf(w, "Status:     %s (converged)\n", r.Status)
	} else {
		fmt.Fprintf(w, "Status:     %s\n", r.Status)
	}
	fmt.Fprintf(w, "Config:     %s\n", describe(r.Config))
	fmt.Fprintf(w, "Iterations: %d (%d ms)\n", r.Iterations, r.ElapsedMs)
	fmt.Fprintf(w, "Best:       %v (iteration %d, %s)\n", r.Best.Fitness, r.Best.Iteration, r.Best.Origin)
	fmt.Fprintf(w, "Offline:    %v\n", r.Offline)
	if len(r.Front) > 0 {
		fmt.Fprintf(w, "Front:      %d members\n", len(r.Front))
	}

	if len(r.Generators) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GENERATOR\tWEIGHT\tUSAGE\tIMPROVEMENTS")
	fmt.Fprintln(tw, "---------\t------\t-----\t------------")
	for _, g := range r.Generators {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%d\n", g.Type, g.Weight, g.TotalUsage, g.TotalImprovements)
	}
	tw.Flush()
}
