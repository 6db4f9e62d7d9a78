package opt

import (
	"math"

	"github.com/cwbudde/metaopt/internal/search"
)

// EDA is a univariate Gaussian estimation-of-distribution algorithm. Each
// candidate is sampled from per-coordinate normal marginals fitted to the
// better half of the population.
type EDA struct {
	population
	lower, upper []float64
}

func NewEDA(env Env) (search.Generator, error) {
	b, ok := env.Instance.(search.Bounded)
	if !ok {
		return nil, unsupported(search.Distribution, "requires a bounded real-vector codification")
	}
	lower, upper := b.Bounds()
	return &EDA{population: newPopulation(search.Distribution, env), lower: lower, upper: upper}, nil
}

func (e *EDA) Generate(int) (*search.State, error) {
	if e.filling() {
		return search.NewState(e.inst.RandomEncoding(e.rng)), nil
	}

	elite := e.sorted()
	elite = elite[:max(2, len(elite)/2)]

	dim := len(elite[0].Encoding)
	enc := make(search.Encoding, dim)
	for i := 0; i < dim; i++ {
		mean, std := marginal(elite, i)
		std = math.Max(std, 1e-3*(e.upper[i]-e.lower[i]))
		enc[i] = mean + std*e.rng.NormFloat64()
	}
	search.Clamp(enc, e.lower, e.upper)
	return search.NewState(enc), nil
}

// marginal returns the mean and standard deviation of coordinate i.
func marginal(states []*search.State, i int) (float64, float64) {
	var sum, sq float64
	for _, s := range states {
		sum += s.Encoding[i]
	}
	mean := sum / float64(len(states))
	for _, s := range states {
		d := s.Encoding[i] - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(states)))
}
