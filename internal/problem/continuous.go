package problem

import (
	"math"

	"github.com/cwbudde/metaopt/internal/search"
)

const rastriginBound = 5.12

// Sphere is the sum of squares over [-5.12, 5.12]^n, minimized at the origin.
type Sphere struct {
	vector
}

func NewSphere(dim int) *Sphere {
	return &Sphere{vector: newVector(dim, -rastriginBound, rastriginBound, 0.05)}
}

func (p *Sphere) Evaluate(s *search.State) error {
	var sum float64
	for _, x := range s.Encoding {
		sum += x * x
	}
	s.Fitness = []float64{sum}
	return nil
}

func (p *Sphere) Sense() search.Sense { return search.Minimize }

func (p *Sphere) ObjectiveCount() int { return 1 }

// Rastrigin is the multimodal Rastrigin function, minimized at the origin
// with value 0.
type Rastrigin struct {
	vector
}

func NewRastrigin(dim int) *Rastrigin {
	return &Rastrigin{vector: newVector(dim, -rastriginBound, rastriginBound, 0.05)}
}

func (p *Rastrigin) Evaluate(s *search.State) error {
	sum := 10 * float64(len(s.Encoding))
	for _, x := range s.Encoding {
		sum += x*x - 10*math.Cos(2*math.Pi*x)
	}
	s.Fitness = []float64{sum}
	return nil
}

func (p *Rastrigin) Sense() search.Sense { return search.Minimize }

func (p *Rastrigin) ObjectiveCount() int { return 1 }

// ZDT1 is the two-objective Zitzler-Deb-Thiele test problem over [0,1]^n.
// Its Pareto-optimal front is f2 = 1 - sqrt(f1), reached when every
// variable but the first is zero.
type ZDT1 struct {
	vector
}

func NewZDT1(dim int) *ZDT1 {
	return &ZDT1{vector: newVector(dim, 0, 1, 0.1)}
}

func (p *ZDT1) Evaluate(s *search.State) error {
	x := s.Encoding
	f1 := x[0]
	var sum float64
	for _, v := range x[1:] {
		sum += v
	}
	g := 1 + 9*sum/float64(len(x)-1)
	f2 := g * (1 - math.Sqrt(f1/g))
	s.Fitness = []float64{f1, f2}
	return nil
}

func (p *ZDT1) Sense() search.Sense { return search.Minimize }

func (p *ZDT1) ObjectiveCount() int { return 2 }
