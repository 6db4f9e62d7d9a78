package opt

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/cwbudde/metaopt/internal/accept"
	"github.com/cwbudde/metaopt/internal/pareto"
	"github.com/cwbudde/metaopt/internal/portfolio"
	"github.com/cwbudde/metaopt/internal/search"
)

// Env holds everything a generator constructor may draw on.
type Env struct {
	// Instance is the problem being solved, with its codification
	Instance search.Instance

	// Rand is the run's random source, shared by all generators
	Rand *rand.Rand

	// Acceptance overrides the native policy of trajectory generators.
	// Empty selects each generator's own default.
	Acceptance accept.Kind

	// Front is the run's tracked Pareto front (nil when not tracked)
	Front *pareto.Front

	// Schedule is the shared cooling schedule
	Schedule *Schedule

	Threshold      float64
	PopulationSize int
	TabuTenure     int
	MayflyIters    int

	// Roster lists the members built for a portfolio
	Roster []search.AlgorithmType

	// Portfolio settings, used only when building a portfolio
	Baseline     float64
	Floor        float64
	LearningRate float64
}

// Constructor builds a generator from an environment.
type Constructor func(env Env) (search.Generator, error)

// Registry maps algorithm tags to constructors.
type Registry struct {
	ctors map[search.AlgorithmType]Constructor
}

// NewRegistry returns a registry with every built-in generator registered.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[search.AlgorithmType]Constructor)}
	r.Register(search.Random, NewRandomSearch)
	r.Register(search.HillClimbing, NewHillClimbing)
	r.Register(search.SimulatedAnnealing, NewAnnealing)
	r.Register(search.Tabu, NewTabuSearch)
	r.Register(search.Genetic, NewGenetic)
	r.Register(search.ParticleSwarm, NewSwarm)
	r.Register(search.Distribution, NewEDA)
	r.Register(search.Mayfly, NewMayfly)
	r.Register(search.Portfolio, r.newPortfolio)
	return r
}

// Register adds or replaces the constructor for a tag.
func (r *Registry) Register(t search.AlgorithmType, ctor Constructor) {
	r.ctors[t] = ctor
}

// New builds the generator registered for t.
func (r *Registry) New(t search.AlgorithmType, env Env) (search.Generator, error) {
	ctor, ok := r.ctors[t]
	if !ok {
		return nil, &search.ConfigError{
			Field:  "algorithm",
			Value:  string(t),
			Reason: "no generator registered",
			Kind:   search.ErrUnknownAlgorithm,
		}
	}
	if env.Instance == nil || env.Rand == nil {
		return nil, &search.ConfigError{Field: "algorithm", Value: string(t), Reason: "missing problem or random source", Kind: search.ErrUnsupported}
	}
	if err := supports(t, env.Instance); err != nil {
		return nil, err
	}
	if env.Schedule == nil {
		env.Schedule = DefaultSchedule()
	}

	g, err := ctor(env)
	if err != nil {
		return nil, err
	}
	slog.Debug("Generator created", "type", t)
	return g, nil
}

// DefaultRoster returns every non-composite generator that can run on inst.
func (r *Registry) DefaultRoster(env Env) []search.AlgorithmType {
	var roster []search.AlgorithmType
	for _, t := range search.AlgorithmTypes {
		if t == search.Random || t == search.Portfolio {
			continue
		}
		if _, ok := r.ctors[t]; !ok {
			continue
		}
		if err := supports(t, env.Instance); err != nil {
			continue
		}
		roster = append(roster, t)
	}
	return roster
}

// supports reports whether a tag can be built for inst.
func supports(t search.AlgorithmType, inst search.Instance) error {
	switch t {
	case search.ParticleSwarm, search.Distribution:
		if _, ok := inst.(search.Bounded); !ok {
			return unsupported(t, "requires a bounded real-vector codification")
		}
	case search.Mayfly:
		if _, ok := inst.(search.Bounded); !ok {
			return unsupported(t, "requires a bounded real-vector codification")
		}
		if inst.ObjectiveCount() != 1 {
			return unsupported(t, "supports single-objective problems only")
		}
	}
	return nil
}

func unsupported(t search.AlgorithmType, reason string) error {
	return &search.ConfigError{Field: "algorithm", Value: string(t), Reason: reason, Kind: search.ErrUnsupported}
}

// policy resolves the acceptance policy for a trajectory generator.
func policy(env Env, native accept.Kind, temp search.TemperatureSource) (accept.Policy, error) {
	kind := env.Acceptance
	if kind == "" {
		kind = native
	}
	if kind.NeedsFront() && env.Front == nil {
		return nil, &search.ConfigError{
			Field:  "acceptance",
			Value:  string(kind),
			Reason: "requires front tracking",
			Kind:   search.ErrUnsupported,
		}
	}
	if temp == nil && env.Schedule != nil {
		temp = env.Schedule
	}
	p, err := accept.New(kind, accept.Deps{
		Sense:       env.Instance.Sense(),
		Rand:        env.Rand,
		Front:       env.Front,
		Temperature: temp,
		Threshold:   env.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("acceptance policy: %w", err)
	}
	return p, nil
}

// nativeKind picks a single- or multi-objective default.
func nativeKind(env Env, single, multi accept.Kind) accept.Kind {
	if env.Instance.ObjectiveCount() > 1 && env.Front != nil {
		return multi
	}
	return single
}

// newPortfolio builds every roster member through the registry and wraps
// them in an adaptive portfolio.
func (r *Registry) newPortfolio(env Env) (search.Generator, error) {
	roster := env.Roster
	if len(roster) == 0 {
		roster = r.DefaultRoster(env)
	}

	members := make([]search.Generator, 0, len(roster))
	for _, t := range roster {
		if t == search.Portfolio {
			return nil, &search.ConfigError{Field: "roster", Value: string(t), Reason: "portfolios cannot be nested", Kind: search.ErrUnsupported}
		}
		g, err := r.New(t, env)
		if err != nil {
			return nil, fmt.Errorf("roster member %s: %w", t, err)
		}
		members = append(members, g)
	}

	p, err := portfolio.New(members, env.Rand, portfolio.Config{
		Sense:        env.Instance.Sense(),
		Baseline:     env.Baseline,
		Floor:        env.Floor,
		LearningRate: env.LearningRate,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
