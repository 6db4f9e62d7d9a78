// Package pareto implements Pareto dominance and non-dominated front
// maintenance over evaluated search states.
package pareto

import (
	"errors"
	"fmt"

	"github.com/cwbudde/metaopt/internal/search"
)

// ErrObjectiveMismatch is returned when two fitness vectors of different
// length are compared.
var ErrObjectiveMismatch = errors.New("fitness vectors have different lengths")

// Dominates reports whether x dominates y: x is at least as good as y on
// every objective and strictly better on at least one. Comparison is exact.
//
// Dominates panics if the vectors differ in length; use Check first when
// the inputs are not known to be consistent.
func Dominates(x, y []float64, sense search.Sense) bool {
	if len(x) != len(y) {
		panic(fmt.Errorf("%w: %d vs %d", ErrObjectiveMismatch, len(x), len(y)))
	}

	strictlyBetter := false
	for i := range x {
		if !sense.AtLeastAsGood(x[i], y[i]) {
			return false
		}
		if sense.Better(x[i], y[i]) {
			strictlyBetter = true
		}
	}
	return strictlyBetter
}

// StateDominates is Dominates over the fitness of two states.
func StateDominates(x, y *search.State, sense search.Sense) bool {
	return Dominates(x.Fitness, y.Fitness, sense)
}

// Check verifies that every state is evaluated and carries the same number
// of objectives.
func Check(states ...*search.State) error {
	if err := search.RequireEvaluated(states...); err != nil {
		return err
	}
	for _, s := range states[1:] {
		if len(s.Fitness) != len(states[0].Fitness) {
			return fmt.Errorf("%w: %d vs %d", ErrObjectiveMismatch, len(states[0].Fitness), len(s.Fitness))
		}
	}
	return nil
}
