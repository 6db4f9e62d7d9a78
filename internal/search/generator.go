package search

import "fmt"

// AlgorithmType is the stable identity of a generator.
type AlgorithmType string

const (
	Random             AlgorithmType = "random"
	HillClimbing       AlgorithmType = "hill-climbing"
	SimulatedAnnealing AlgorithmType = "simulated-annealing"
	Tabu               AlgorithmType = "tabu"
	Genetic            AlgorithmType = "genetic"
	ParticleSwarm      AlgorithmType = "particle-swarm"
	Distribution       AlgorithmType = "distribution"
	Mayfly             AlgorithmType = "mayfly"
	Portfolio          AlgorithmType = "portfolio"
)

// AlgorithmTypes lists every known tag in a stable order.
var AlgorithmTypes = []AlgorithmType{
	Random,
	HillClimbing,
	SimulatedAnnealing,
	Tabu,
	Genetic,
	ParticleSwarm,
	Distribution,
	Mayfly,
	Portfolio,
}

// ParseAlgorithmType validates a tag from configuration.
func ParseAlgorithmType(v string) (AlgorithmType, error) {
	for _, t := range AlgorithmTypes {
		if string(t) == v {
			return t, nil
		}
	}
	return "", &ConfigError{Field: "algorithm", Value: v, Reason: "unknown algorithm type", Kind: ErrUnknownAlgorithm}
}

// Evaluator returns a freshly evaluated copy of a state.
type Evaluator func(*State) (*State, error)

// Generator is one unit of search behavior.
type Generator interface {
	// Generate produces a new unevaluated candidate using at most budget
	// operator applications. It must not alter the reference state.
	Generate(budget int) (*State, error)

	// UpdateReference hands the generator an evaluated candidate so it can
	// update its current solution(s).
	UpdateReference(candidate *State, iteration int) error

	// Reference returns the generator's incumbent solution
	Reference() *State

	// ReferenceList returns all incumbent solutions. The returned slice is
	// owned by the caller.
	ReferenceList() []*State

	// Type returns the generator's algorithm tag
	Type() AlgorithmType

	// Reevaluate replaces every stored reference with ev(reference). It is
	// used when the environment changes underneath the generator.
	Reevaluate(ev Evaluator) error
}

// Seeder installs the initial reference of a generator.
type Seeder interface {
	Initialize(seed *State) error
}

// TemperatureSource exposes the current value of a cooling schedule.
type TemperatureSource interface {
	Temperature() float64
}

// ReevaluateAll applies ev to each state and returns the new slice.
func ReevaluateAll(states []*State, ev Evaluator) ([]*State, error) {
	out := make([]*State, len(states))
	for i, s := range states {
		r, err := ev(s)
		if err != nil {
			return nil, fmt.Errorf("reevaluate reference %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}
