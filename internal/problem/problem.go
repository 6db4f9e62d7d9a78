// Package problem provides the built-in benchmark problems and their
// codifications.
package problem

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/cwbudde/metaopt/internal/search"
)

// Names of the built-in problems.
const (
	NameOneMax      = "onemax"
	NameSphere      = "sphere"
	NameRastrigin   = "rastrigin"
	NameZDT1        = "zdt1"
	NameMovingPeaks = "moving-peaks"
)

// Names lists every built-in problem.
var Names = []string{NameOneMax, NameSphere, NameRastrigin, NameZDT1, NameMovingPeaks}

// Options selects and sizes a built-in problem.
type Options struct {
	Name      string
	Dimension int

	// Peaks and ShiftSeverity apply to moving-peaks only
	Peaks         int
	ShiftSeverity float64

	// Seed drives the landscape of randomized problems
	Seed uint64
}

// New builds the named problem.
func New(opts Options) (search.Instance, error) {
	if opts.Dimension <= 0 {
		return nil, &search.ConfigError{
			Field:  "problem.dimension",
			Value:  fmt.Sprint(opts.Dimension),
			Reason: "must be positive",
			Kind:   search.ErrUnsupported,
		}
	}

	switch strings.ToLower(opts.Name) {
	case NameOneMax:
		return NewOneMax(opts.Dimension), nil
	case NameSphere:
		return NewSphere(opts.Dimension), nil
	case NameRastrigin:
		return NewRastrigin(opts.Dimension), nil
	case NameZDT1:
		if opts.Dimension < 2 {
			return nil, &search.ConfigError{
				Field:  "problem.dimension",
				Value:  fmt.Sprint(opts.Dimension),
				Reason: "zdt1 needs at least 2 variables",
				Kind:   search.ErrUnsupported,
			}
		}
		return NewZDT1(opts.Dimension), nil
	case NameMovingPeaks:
		return NewMovingPeaks(opts.Dimension, opts.Peaks, opts.ShiftSeverity, opts.Seed), nil
	}
	return nil, &search.ConfigError{
		Field:  "problem.name",
		Value:  opts.Name,
		Reason: "unknown problem, expected one of " + strings.Join(Names, ", "),
		Kind:   search.ErrUnsupported,
	}
}

// vector is the box-constrained real-vector codification shared by the
// continuous problems. Neighbor moves one coordinate by a Gaussian step.
type vector struct {
	lower []float64
	upper []float64
	step  float64
}

func newVector(dim int, lo, hi, step float64) vector {
	v := vector{lower: make([]float64, dim), upper: make([]float64, dim), step: step}
	for i := range dim {
		v.lower[i] = lo
		v.upper[i] = hi
	}
	return v
}

func (v vector) Dimension() int {
	return len(v.lower)
}

func (v vector) Bounds() (lower, upper []float64) {
	return v.lower, v.upper
}

func (v vector) RandomEncoding(rng *rand.Rand) search.Encoding {
	enc := make(search.Encoding, len(v.lower))
	for i := range enc {
		enc[i] = v.lower[i] + rng.Float64()*(v.upper[i]-v.lower[i])
	}
	return enc
}

func (v vector) Neighbor(enc search.Encoding, rng *rand.Rand) search.Encoding {
	next := append(search.Encoding(nil), enc...)
	i := rng.IntN(len(next))
	next[i] += rng.NormFloat64() * v.step * (v.upper[i] - v.lower[i])
	search.Clamp(next, v.lower, v.upper)
	return next
}
