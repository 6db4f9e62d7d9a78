package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/store"
)

var (
	resumeOpts   runFlags
	resumeOutput outputFlags
)

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Start a new run from a stored run's best state",
	Long: `Loads a stored run and starts a new run whose initial state is the
stored best encoding. The stored configuration is reused; flags override it,
but the problem and its dimension must stay the same. The new run records
the stored run as its parent. By default it is saved to the same store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if resumeOutput.storePath == "" {
			return fmt.Errorf("--store is required")
		}
		cfg, parent, err := resumeConfig(cmd, args[0])
		if err != nil {
			return err
		}
		_, err = execute(cmd, cfg, resumeOutput, parent.ID)
		return err
	},
}

func init() {
	addRunFlags(resumeCmd, &resumeOpts)
	addOutputFlags(resumeCmd, &resumeOutput)
	rootCmd.AddCommand(resumeCmd)
}

// resumeConfig loads the parent run and derives the configuration of the
// resumed run.
func resumeConfig(cmd *cobra.Command, runID string) (config.RunConfig, *store.RunRecord, error) {
	s, err := store.Open(resumeOutput.storePath)
	if err != nil {
		return config.RunConfig{}, nil, err
	}
	if c, ok := s.(io.Closer); ok {
		defer c.Close()
	}

	parent, err := s.LoadRun(runID)
	if err != nil {
		return config.RunConfig{}, nil, fmt.Errorf("failed to load run: %w", err)
	}

	cfg := parent.Config
	if resumeOpts.configPath != "" {
		if cfg, err = config.Load(resumeOpts.configPath); err != nil {
			return cfg, nil, err
		}
	}
	resumeOpts.apply(cmd, &cfg)

	if err := parent.IsCompatible(cfg); err != nil {
		return cfg, nil, err
	}
	cfg.InitialEncoding = parent.Best.Encoding

	slog.Info("Resuming", "parent", parent.ID, "best", parent.Best.Fitness, "config", describe(cfg))
	return cfg, parent, nil
}
