package search

import "math/rand/v2"

// Problem is the optimization problem being solved.
type Problem interface {
	// Evaluate fills in the fitness of an unevaluated state.
	// Implementations must not touch the encoding.
	Evaluate(s *State) error

	// Sense reports whether objectives are minimized or maximized
	Sense() Sense

	// ObjectiveCount is the length of every fitness vector
	ObjectiveCount() int
}

// Codification is the solution encoding and its neighborhood operator.
// The core only reaches it through generators.
type Codification interface {
	// Dimension is the fixed encoding length
	Dimension() int

	// RandomEncoding draws a uniformly random encoding
	RandomEncoding(rng *rand.Rand) Encoding

	// Neighbor returns a new encoding one move away from enc.
	// enc must not be modified.
	Neighbor(enc Encoding, rng *rand.Rand) Encoding
}

// Bounded is implemented by real-vector codifications with box constraints.
type Bounded interface {
	Bounds() (lower, upper []float64)
}

// Dynamic is implemented by problems whose landscape shifts at every
// environment change. Shift is called with the ordinal of the period that
// is about to start.
type Dynamic interface {
	Shift(period int) error
}

// Instance bundles a problem with its codification.
type Instance interface {
	Problem
	Codification
}

// Evaluate returns an evaluated copy of s, leaving s untouched.
func Evaluate(p Problem, s *State) (*State, error) {
	c := s.Unevaluated()
	if err := p.Evaluate(c); err != nil {
		return nil, err
	}
	if len(c.Fitness) != p.ObjectiveCount() {
		return nil, &ObjectiveCountError{Expected: p.ObjectiveCount(), Actual: len(c.Fitness)}
	}
	return c, nil
}

// Clamp limits every coordinate of enc to the given box, in place.
func Clamp(enc Encoding, lower, upper []float64) {
	for i := range enc {
		if enc[i] < lower[i] {
			enc[i] = lower[i]
		} else if enc[i] > upper[i] {
			enc[i] = upper[i]
		}
	}
}
