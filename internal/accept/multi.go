package accept

import (
	"math"
	"math/rand/v2"

	"github.com/cwbudde/metaopt/internal/pareto"
	"github.com/cwbudde/metaopt/internal/search"
)

// minScale keeps relative gaps finite when an objective sits at zero.
const minScale = 1e-12

// Pareto accepts a candidate that current does not dominate and that
// enters the tracked front.
type Pareto struct {
	front *pareto.Front
}

// NewPareto creates a policy that accepts into front.
func NewPareto(front *pareto.Front) *Pareto {
	return &Pareto{front: front}
}

// Accept inserts candidate into the front unless current dominates it.
func (p *Pareto) Accept(current, candidate *search.State) (bool, error) {
	if err := compare(current, candidate); err != nil {
		return false, err
	}
	if pareto.StateDominates(current, candidate, p.front.Sense()) {
		return false, nil
	}
	return p.front.Insert(candidate)
}

// Multicase layers Pareto dominance over an annealing criterion:
//
//  1. candidate dominates current: accept
//  2. candidate dominates a front member: accept
//  3. otherwise compare dominance ranks against the front. A lower rank is
//     accepted; an equal rank is accepted with exp(gap/T) where gap is the
//     mean relative objective gain; a higher rank is accepted with
//     exp(-(rc-rk)/T) unless current itself is non-dominated (rank 0).
//
// Every accepted candidate is offered to the front.
type Multicase struct {
	front  *pareto.Front
	source search.TemperatureSource
	rng    *rand.Rand
}

// NewMulticase creates a multicase policy over front, cooled by source.
func NewMulticase(front *pareto.Front, source search.TemperatureSource, rng *rand.Rand) *Multicase {
	return &Multicase{front: front, source: source, rng: rng}
}

// Accept decides by the cases above and offers accepted candidates to the front.
func (p *Multicase) Accept(current, candidate *search.State) (bool, error) {
	if err := compare(current, candidate); err != nil {
		return false, err
	}

	accepted, err := p.decide(current, candidate)
	if err != nil || !accepted {
		return false, err
	}
	if _, err := p.front.Insert(candidate); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Multicase) decide(current, candidate *search.State) (bool, error) {
	sense := p.front.Sense()
	if pareto.StateDominates(candidate, current, sense) {
		return true, nil
	}

	dominatesMember, err := p.front.DominatesAny(candidate)
	if err != nil || dominatesMember {
		return dominatesMember, err
	}

	rc, err := p.front.Rank(candidate)
	if err != nil {
		return false, err
	}
	rk, err := p.front.Rank(current)
	if err != nil {
		return false, err
	}

	t := p.source.Temperature()
	switch {
	case rc < rk:
		return true, nil
	case rc == rk:
		return p.draw(Probability(RelativeGain(current, candidate, sense), t)), nil
	case rk != 0:
		return p.draw(Probability(-float64(rc-rk), t)), nil
	default:
		return false, nil
	}
}

func (p *Multicase) draw(prob float64) bool {
	if prob >= 1 {
		return true
	}
	return p.rng.Float64() < prob
}

// RelativeGain averages the sense-adjusted relative change of each
// objective from current to candidate. Positive means improvement.
func RelativeGain(current, candidate *search.State, sense search.Sense) float64 {
	var sum float64
	for i := range candidate.Fitness {
		scale := math.Max(math.Abs(current.Fitness[i]), minScale)
		sum += sense.Gain(candidate.Fitness[i], current.Fitness[i]) / scale
	}
	return sum / float64(len(candidate.Fitness))
}
