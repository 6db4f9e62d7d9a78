// Package config defines the run configuration file format and assembles a
// ready-to-run strategy from it.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/metaopt/internal/accept"
	"github.com/cwbudde/metaopt/internal/opt"
	"github.com/cwbudde/metaopt/internal/portfolio"
	"github.com/cwbudde/metaopt/internal/problem"
	"github.com/cwbudde/metaopt/internal/search"
	"github.com/cwbudde/metaopt/internal/strategy"
)

// ProblemConfig selects a built-in problem.
type ProblemConfig struct {
	Name      string `yaml:"name" json:"name"`
	Dimension int    `yaml:"dimension" json:"dimension"`

	// Moving peaks only
	Peaks         int     `yaml:"peaks,omitempty" json:"peaks,omitempty"`
	ShiftSeverity float64 `yaml:"shiftSeverity,omitempty" json:"shiftSeverity,omitempty"`
}

// TemperatureConfig is the geometric cooling schedule.
type TemperatureConfig struct {
	Initial float64 `yaml:"initial" json:"initial"`
	Cooling float64 `yaml:"cooling" json:"cooling"`
	Min     float64 `yaml:"min" json:"min"`
}

// PortfolioConfig holds the adaptive weighting parameters.
type PortfolioConfig struct {
	Baseline     float64 `yaml:"baseline" json:"baseline"`
	Floor        float64 `yaml:"floor" json:"floor"`
	LearningRate float64 `yaml:"learningRate" json:"learningRate"`
}

// RunConfig is the complete description of one run.
type RunConfig struct {
	Problem ProblemConfig `yaml:"problem" json:"problem"`

	// Algorithm is a generator tag such as "tabu" or "portfolio"
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	// Acceptance overrides the native acceptance policy of trajectory
	// generators. Empty keeps each generator's default.
	Acceptance string `yaml:"acceptance,omitempty" json:"acceptance,omitempty"`

	// Roster lists the portfolio members. Empty selects every generator
	// that supports the problem.
	Roster []string `yaml:"roster,omitempty" json:"roster,omitempty"`

	MaxIterations  int    `yaml:"maxIterations" json:"maxIterations"`
	ChangeInterval int    `yaml:"changeInterval" json:"changeInterval"`
	OperatorBudget int    `yaml:"operatorBudget" json:"operatorBudget"`
	Seed           uint64 `yaml:"seed" json:"seed"`

	Threshold   float64           `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Temperature TemperatureConfig `yaml:"temperature" json:"temperature"`
	Portfolio   PortfolioConfig   `yaml:"portfolio" json:"portfolio"`

	PopulationSize int `yaml:"populationSize,omitempty" json:"populationSize,omitempty"`
	TabuTenure     int `yaml:"tabuTenure,omitempty" json:"tabuTenure,omitempty"`
	MayflyIters    int `yaml:"mayflyIters,omitempty" json:"mayflyIters,omitempty"`

	// Convergence stops the run once the best state stagnates
	Convergence strategy.ConvergenceConfig `yaml:"convergence,omitempty" json:"convergence,omitempty"`

	TrackFront    bool `yaml:"trackFront" json:"trackFront"`
	FrontCapacity int  `yaml:"frontCapacity,omitempty" json:"frontCapacity,omitempty"`

	// InitialEncoding replaces the random initial state, e.g. on resume
	InitialEncoding []float64 `yaml:"initialEncoding,omitempty" json:"initialEncoding,omitempty"`
}

// Defaults returns a configuration that runs hill climbing on a
// 10-dimensional sphere.
func Defaults() RunConfig {
	s := opt.DefaultSchedule()
	return RunConfig{
		Problem:        ProblemConfig{Name: problem.NameSphere, Dimension: 10},
		Algorithm:      string(search.HillClimbing),
		MaxIterations:  1000,
		OperatorBudget: 1,
		Seed:           1,
		Temperature:    TemperatureConfig{Initial: s.Initial, Cooling: s.Factor, Min: s.Min},
		Portfolio: PortfolioConfig{
			Baseline:     portfolio.DefaultBaseline,
			Floor:        portfolio.DefaultFloor,
			LearningRate: portfolio.DefaultLearningRate,
		},
	}
}

// Load reads a YAML (or JSON) configuration file on top of the defaults.
func Load(path string) (RunConfig, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string

	// Err is the underlying classification, if any
	Err error
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks every field. It stops at the first problem found.
func (c RunConfig) Validate() error {
	if !slices.Contains(problem.Names, c.Problem.Name) {
		return &ValidationError{Field: "problem.name", Reason: fmt.Sprintf("must be one of %v", problem.Names)}
	}
	if c.Problem.Dimension <= 0 {
		return &ValidationError{Field: "problem.dimension", Reason: "must be positive"}
	}
	if c.Problem.Peaks < 0 || c.Problem.ShiftSeverity < 0 {
		return &ValidationError{Field: "problem", Reason: "peaks and shiftSeverity cannot be negative"}
	}

	if _, err := search.ParseAlgorithmType(c.Algorithm); err != nil {
		return &ValidationError{Field: "algorithm", Reason: fmt.Sprintf("unknown algorithm %q", c.Algorithm), Err: err}
	}
	for _, member := range c.Roster {
		t, err := search.ParseAlgorithmType(member)
		if err != nil {
			return &ValidationError{Field: "roster", Reason: fmt.Sprintf("unknown algorithm %q", member), Err: err}
		}
		if t == search.Portfolio {
			return &ValidationError{Field: "roster", Reason: "cannot contain a portfolio", Err: search.ErrUnsupported}
		}
	}

	if c.Acceptance != "" {
		kind, err := accept.ParseKind(c.Acceptance)
		if err != nil {
			return &ValidationError{Field: "acceptance", Reason: fmt.Sprintf("unknown policy %q", c.Acceptance), Err: err}
		}
		if kind.NeedsFront() && !c.TrackFront {
			return &ValidationError{Field: "acceptance", Reason: c.Acceptance + " requires trackFront", Err: search.ErrUnsupported}
		}
	}

	if c.MaxIterations <= 0 {
		return &ValidationError{Field: "maxIterations", Reason: "must be positive"}
	}
	if c.ChangeInterval < 0 {
		return &ValidationError{Field: "changeInterval", Reason: "cannot be negative"}
	}
	if c.OperatorBudget <= 0 {
		return &ValidationError{Field: "operatorBudget", Reason: "must be positive"}
	}
	if c.Threshold < 0 {
		return &ValidationError{Field: "threshold", Reason: "cannot be negative"}
	}

	t := c.Temperature
	if t.Initial <= 0 || t.Min < 0 || t.Min > t.Initial {
		return &ValidationError{Field: "temperature", Reason: "requires initial > 0 and 0 <= min <= initial"}
	}
	if t.Cooling <= 0 || t.Cooling > 1 {
		return &ValidationError{Field: "temperature.cooling", Reason: "must be in (0, 1]"}
	}

	p := c.Portfolio
	if p.Baseline <= 0 || p.Floor <= 0 || p.Floor > p.Baseline {
		return &ValidationError{Field: "portfolio", Reason: "requires baseline > 0 and 0 < floor <= baseline"}
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return &ValidationError{Field: "portfolio.learningRate", Reason: "must be in (0, 1]"}
	}

	if c.Convergence.Patience < 0 || c.Convergence.Threshold < 0 {
		return &ValidationError{Field: "convergence", Reason: "patience and threshold cannot be negative"}
	}
	if c.FrontCapacity < 0 {
		return &ValidationError{Field: "frontCapacity", Reason: "cannot be negative"}
	}
	if c.InitialEncoding != nil && len(c.InitialEncoding) != c.Problem.Dimension {
		return &ValidationError{
			Field:  "initialEncoding",
			Reason: fmt.Sprintf("has %d values, problem dimension is %d", len(c.InitialEncoding), c.Problem.Dimension),
		}
	}
	return nil
}

// IsValidation reports whether err is a configuration validation error.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
