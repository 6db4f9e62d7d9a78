package problem

import (
	"math/rand/v2"

	"github.com/cwbudde/metaopt/internal/search"
)

// OneMax counts the set bits of a binary string. Encodings hold 0 or 1 in
// every coordinate. Maximized; the optimum equals the dimension.
type OneMax struct {
	dim int
}

func NewOneMax(dim int) *OneMax {
	return &OneMax{dim: dim}
}

func (p *OneMax) Evaluate(s *search.State) error {
	var ones float64
	for _, b := range s.Encoding {
		if b >= 0.5 {
			ones++
		}
	}
	s.Fitness = []float64{ones}
	return nil
}

func (p *OneMax) Sense() search.Sense { return search.Maximize }

func (p *OneMax) ObjectiveCount() int { return 1 }

func (p *OneMax) Dimension() int { return p.dim }

func (p *OneMax) RandomEncoding(rng *rand.Rand) search.Encoding {
	enc := make(search.Encoding, p.dim)
	for i := range enc {
		if rng.IntN(2) == 1 {
			enc[i] = 1
		}
	}
	return enc
}

// Neighbor flips one bit.
func (p *OneMax) Neighbor(enc search.Encoding, rng *rand.Rand) search.Encoding {
	next := append(search.Encoding(nil), enc...)
	i := rng.IntN(len(next))
	next[i] = 1 - next[i]
	return next
}
