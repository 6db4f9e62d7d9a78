package config

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/cwbudde/metaopt/internal/accept"
	"github.com/cwbudde/metaopt/internal/opt"
	"github.com/cwbudde/metaopt/internal/pareto"
	"github.com/cwbudde/metaopt/internal/problem"
	"github.com/cwbudde/metaopt/internal/search"
	"github.com/cwbudde/metaopt/internal/strategy"
)

// seedMix decorrelates the two PCG seed words.
const seedMix = 0x9e3779b97f4a7c15

// Hooks lets callers observe and stop a run.
type Hooks struct {
	Stop        func(iteration int) bool
	OnIteration func(strategy.Progress)
}

// Run is an assembled, ready-to-run configuration.
type Run struct {
	Config    RunConfig
	Instance  search.Instance
	Generator search.Generator
	Front     *pareto.Front
	Strategy  *strategy.Strategy
}

// Build validates the configuration and wires the problem, the generator
// with its acceptance policy, the optional front and the strategy.
func (c RunConfig) Build(hooks Hooks) (*Run, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	inst, err := problem.New(problem.Options{
		Name:          c.Problem.Name,
		Dimension:     c.Problem.Dimension,
		Peaks:         c.Problem.Peaks,
		ShiftSeverity: c.Problem.ShiftSeverity,
		Seed:          c.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("build problem: %w", err)
	}

	rng := rand.New(rand.NewPCG(c.Seed, c.Seed^seedMix))

	var front *pareto.Front
	if c.TrackFront {
		front = pareto.NewFront(inst.Sense(), pareto.WithCapacity(c.FrontCapacity))
	}

	roster := make([]search.AlgorithmType, 0, len(c.Roster))
	for _, m := range c.Roster {
		roster = append(roster, search.AlgorithmType(m))
	}

	env := opt.Env{
		Instance:       inst,
		Rand:           rng,
		Acceptance:     accept.Kind(c.Acceptance),
		Front:          front,
		Schedule:       opt.NewSchedule(c.Temperature.Initial, c.Temperature.Cooling, c.Temperature.Min),
		Threshold:      c.Threshold,
		PopulationSize: c.PopulationSize,
		TabuTenure:     c.TabuTenure,
		MayflyIters:    c.MayflyIters,
		Roster:         roster,
		Baseline:       c.Portfolio.Baseline,
		Floor:          c.Portfolio.Floor,
		LearningRate:   c.Portfolio.LearningRate,
	}
	gen, err := opt.NewRegistry().New(search.AlgorithmType(c.Algorithm), env)
	if err != nil {
		return nil, fmt.Errorf("build generator: %w", err)
	}

	s, err := strategy.New(inst, gen, rng, front, strategy.Config{
		MaxIterations:   c.MaxIterations,
		ChangeInterval:  c.ChangeInterval,
		OperatorBudget:  c.OperatorBudget,
		TrackFront:      c.TrackFront,
		InitialEncoding: c.InitialEncoding,
		Convergence:     c.Convergence,
		Stop:            hooks.Stop,
		OnIteration:     hooks.OnIteration,
	})
	if err != nil {
		return nil, fmt.Errorf("build strategy: %w", err)
	}

	slog.Debug("Run assembled",
		"problem", c.Problem.Name,
		"dimension", c.Problem.Dimension,
		"algorithm", c.Algorithm,
		"acceptance", c.Acceptance,
		"seed", c.Seed,
	)
	return &Run{Config: c, Instance: inst, Generator: gen, Front: front, Strategy: s}, nil
}
