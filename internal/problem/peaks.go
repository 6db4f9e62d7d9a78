package problem

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cwbudde/metaopt/internal/search"
)

// Moving peaks landscape constants.
const (
	peaksLower     = 0.0
	peaksUpper     = 100.0
	minHeight      = 30.0
	maxHeight      = 70.0
	minWidth       = 1.0
	maxWidth       = 12.0
	heightSeverity = 7.0
	widthSeverity  = 1.0

	DefaultPeaks         = 10
	DefaultShiftSeverity = 1.0
)

type peak struct {
	position []float64
	height   float64
	width    float64
}

// MovingPeaks is a dynamic maximization problem: the landscape is the upper
// envelope of cone-like peaks whose positions, heights and widths change
// at every environment change.
type MovingPeaks struct {
	vector
	peaks    []peak
	severity float64
	rng      *rand.Rand
	period   int
}

// NewMovingPeaks builds a landscape with n peaks. The seed fixes both the
// initial landscape and the sequence of shifts.
func NewMovingPeaks(dim, n int, severity float64, seed uint64) *MovingPeaks {
	if n <= 0 {
		n = DefaultPeaks
	}
	if severity <= 0 {
		severity = DefaultShiftSeverity
	}
	p := &MovingPeaks{
		vector:   newVector(dim, peaksLower, peaksUpper, 0.01),
		severity: severity,
		rng:      rand.New(rand.NewPCG(seed^0x5851f42d4c957f2d, seed)),
	}
	for range n {
		p.peaks = append(p.peaks, peak{
			position: p.vector.RandomEncoding(p.rng),
			height:   minHeight + p.rng.Float64()*(maxHeight-minHeight),
			width:    minWidth + p.rng.Float64()*(maxWidth-minWidth),
		})
	}
	return p
}

func (p *MovingPeaks) Evaluate(s *search.State) error {
	if len(s.Encoding) != p.Dimension() {
		return fmt.Errorf("moving peaks: encoding length %d, want %d", len(s.Encoding), p.Dimension())
	}
	best := math.Inf(-1)
	for _, pk := range p.peaks {
		var d2 float64
		for i, x := range s.Encoding {
			d := x - pk.position[i]
			d2 += d * d
		}
		if v := pk.height / (1 + pk.width*d2); v > best {
			best = v
		}
	}
	s.Fitness = []float64{best}
	return nil
}

func (p *MovingPeaks) Sense() search.Sense { return search.Maximize }

func (p *MovingPeaks) ObjectiveCount() int { return 1 }

// Shift moves every peak by a random vector of length severity and
// perturbs heights and widths. Shifts must be applied in period order.
func (p *MovingPeaks) Shift(period int) error {
	if period != p.period+1 {
		return fmt.Errorf("moving peaks: shift to period %d from period %d", period, p.period)
	}
	for i := range p.peaks {
		pk := &p.peaks[i]

		dir := make([]float64, len(pk.position))
		var norm float64
		for j := range dir {
			dir[j] = p.rng.NormFloat64()
			norm += dir[j] * dir[j]
		}
		norm = math.Sqrt(norm)
		for j := range dir {
			if norm > 0 {
				pk.position[j] += p.severity * dir[j] / norm
			}
		}
		search.Clamp(pk.position, p.lower, p.upper)

		pk.height = clamp(pk.height+heightSeverity*p.rng.NormFloat64(), minHeight, maxHeight)
		pk.width = clamp(pk.width+widthSeverity*p.rng.NormFloat64(), minWidth, maxWidth)
	}
	p.period = period
	return nil
}

// Optimum returns the current global maximum, which sits on the highest peak.
func (p *MovingPeaks) Optimum() float64 {
	best := math.Inf(-1)
	for _, pk := range p.peaks {
		best = max(best, pk.height)
	}
	return best
}

// Period returns the ordinal of the current landscape.
func (p *MovingPeaks) Period() int {
	return p.period
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
