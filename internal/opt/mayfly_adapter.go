package opt

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
	"github.com/cwbudde/metaopt/internal/accept"
	"github.com/cwbudde/metaopt/internal/search"
)

const (
	// mayflyPopSize is the smallest population mayfly v0.1.0 accepts
	mayflyPopSize = 20

	defaultMayflyIters = 10
)

// MayflyGenerator wraps the external Mayfly library. Each Generate runs a
// short inner Mayfly search against the problem and proposes its global best.
type MayflyGenerator struct {
	trajectory
	lower, upper []float64
	iters        int
}

// NewMayfly creates a new Mayfly generator. The problem must be a bounded,
// single-objective real-vector problem.
func NewMayfly(env Env) (search.Generator, error) {
	b, ok := env.Instance.(search.Bounded)
	if !ok {
		return nil, unsupported(search.Mayfly, "requires a bounded real-vector codification")
	}
	lower, upper := b.Bounds()

	iters := env.MayflyIters
	if iters <= 0 {
		iters = defaultMayflyIters
	}
	return &MayflyGenerator{
		trajectory: trajectory{
			tag:    search.Mayfly,
			inst:   env.Instance,
			rng:    env.Rand,
			policy: accept.NewBest(env.Instance.Sense()),
		},
		lower: lower,
		upper: upper,
		iters: iters,
	}, nil
}

// Generate runs max(budget, iters) Mayfly iterations.
func (m *MayflyGenerator) Generate(budget int) (*search.State, error) {
	var evalErr error
	objective := func(x []float64) float64 {
		if evalErr != nil {
			return math.Inf(1)
		}
		s := search.NewState(x)
		search.Clamp(s.Encoding, m.lower, m.upper)
		if err := m.inst.Evaluate(s); err != nil {
			evalErr = err
			return math.Inf(1)
		}
		// Mayfly minimizes
		if m.inst.Sense() == search.Maximize {
			return -s.Primary()
		}
		return s.Primary()
	}

	// Create config for external Mayfly library
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = objective
	config.ProblemSize = m.inst.Dimension()
	config.MaxIterations = max(budget, m.iters)
	config.NPop = mayflyPopSize

	// External library uses scalar bounds; the widest box is used and
	// proposals are clamped back per coordinate
	config.LowerBound = minOf(m.lower)
	config.UpperBound = maxOf(m.upper)
	config.Rand = rand.New(rand.NewSource(m.rng.Int64()))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, fmt.Errorf("mayfly search: %w", err)
	}
	if evalErr != nil {
		return nil, fmt.Errorf("mayfly objective: %w", evalErr)
	}

	enc := search.Encoding(result.GlobalBest.Position)
	if len(enc) != m.inst.Dimension() {
		return nil, search.ErrEmptyCandidate
	}
	c := search.NewState(enc)
	search.Clamp(c.Encoding, m.lower, m.upper)
	return c, nil
}

func minOf(v []float64) float64 {
	out := v[0]
	for _, x := range v[1:] {
		out = min(out, x)
	}
	return out
}

func maxOf(v []float64) float64 {
	out := v[0]
	for _, x := range v[1:] {
		out = max(out, x)
	}
	return out
}
