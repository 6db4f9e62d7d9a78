package accept

import (
	"math"
	"math/rand/v2"

	"github.com/cwbudde/metaopt/internal/search"
)

// Best accepts a candidate that is at least as good as current on the
// primary objective.
type Best struct {
	sense search.Sense
}

// NewBest creates a best-only policy for the given sense.
func NewBest(sense search.Sense) *Best {
	return &Best{sense: sense}
}

// Accept reports whether candidate is at least as good as current.
func (p *Best) Accept(current, candidate *search.State) (bool, error) {
	if err := compare(current, candidate); err != nil {
		return false, err
	}
	return p.sense.AtLeastAsGood(candidate.Primary(), current.Primary()), nil
}

// Threshold accepts a candidate that is no more than an absolute amount
// worse than current.
type Threshold struct {
	sense     search.Sense
	threshold float64
}

// NewThreshold creates a threshold policy. The sign of threshold is ignored.
func NewThreshold(sense search.Sense, threshold float64) *Threshold {
	return &Threshold{sense: sense, threshold: math.Abs(threshold)}
}

// Accept reports whether candidate is within the threshold of current.
func (p *Threshold) Accept(current, candidate *search.State) (bool, error) {
	if err := compare(current, candidate); err != nil {
		return false, err
	}
	if p.sense == search.Maximize {
		return candidate.Primary() >= current.Primary()-p.threshold, nil
	}
	return candidate.Primary() <= current.Primary()+p.threshold, nil
}

// Temperature is the simulated annealing (Metropolis) criterion.
// Improvements are always accepted; a worse candidate is accepted with
// probability exp(gain/T).
type Temperature struct {
	sense  search.Sense
	source search.TemperatureSource
	rng    *rand.Rand
}

// NewTemperature creates a Metropolis policy that reads the temperature
// from source at every decision.
func NewTemperature(sense search.Sense, source search.TemperatureSource, rng *rand.Rand) *Temperature {
	return &Temperature{sense: sense, source: source, rng: rng}
}

// Accept takes improvements and draws for deteriorations.
func (p *Temperature) Accept(current, candidate *search.State) (bool, error) {
	if err := compare(current, candidate); err != nil {
		return false, err
	}
	gain := p.sense.Gain(candidate.Primary(), current.Primary())
	if gain > 0 {
		return true, nil
	}
	return p.rng.Float64() < Probability(gain, p.source.Temperature()), nil
}

// Probability is the Metropolis acceptance probability for a non-positive
// gain at temperature t. A non-positive temperature freezes the search.
func Probability(gain, t float64) float64 {
	if gain >= 0 {
		return 1
	}
	if t <= 0 {
		return 0
	}
	return math.Exp(gain / t)
}
