package search

import "slices"

// Encoding is the problem-specific representation of a solution.
// The orchestration core never interprets its contents.
type Encoding []float64

// State represents one candidate solution.
//
// States are immutable by convention: once Fitness is set it is never
// modified in place. Use WithFitness or Stamp to derive a new State.
type State struct {
	// Encoding is fixed for a given problem instance
	Encoding Encoding `json:"encoding"`

	// Fitness holds one value per objective, nil until evaluated
	Fitness []float64 `json:"fitness,omitempty"`

	// Iteration is the iteration at which the state was produced
	Iteration int `json:"iteration"`

	// Origin identifies the generator that produced the state
	Origin AlgorithmType `json:"origin,omitempty"`
}

// NewState creates an unevaluated state holding a copy of enc.
func NewState(enc Encoding) *State {
	return &State{Encoding: slices.Clone(enc)}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	return &State{
		Encoding:  slices.Clone(s.Encoding),
		Fitness:   slices.Clone(s.Fitness),
		Iteration: s.Iteration,
		Origin:    s.Origin,
	}
}

// WithFitness returns a copy of the state carrying the given fitness vector.
func (s *State) WithFitness(fitness []float64) *State {
	c := s.Clone()
	c.Fitness = slices.Clone(fitness)
	return c
}

// Unevaluated returns a copy of the state with its fitness stripped.
func (s *State) Unevaluated() *State {
	c := s.Clone()
	c.Fitness = nil
	return c
}

// Stamp returns a copy of the state stamped with provenance.
func (s *State) Stamp(iteration int, origin AlgorithmType) *State {
	c := s.Clone()
	c.Iteration = iteration
	c.Origin = origin
	return c
}

// Evaluated reports whether a fitness vector is present.
func (s *State) Evaluated() bool {
	return s != nil && len(s.Fitness) > 0
}

// Equal reports whether two states hold the same encoding.
// Fitness is ignored: identical encodings are the same solution.
func (s *State) Equal(other *State) bool {
	if s == nil || other == nil {
		return s == other
	}
	return slices.Equal(s.Encoding, other.Encoding)
}

// Primary returns the first objective value.
func (s *State) Primary() float64 {
	return s.Fitness[0]
}

// Last returns the last objective value.
func (s *State) Last() float64 {
	return s.Fitness[len(s.Fitness)-1]
}

// Dimension returns the encoding length.
func (s *State) Dimension() int {
	return len(s.Encoding)
}
