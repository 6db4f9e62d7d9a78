package opt

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/cwbudde/metaopt/internal/problem"
	"github.com/cwbudde/metaopt/internal/search"
)

func newMayfly(t *testing.T, inst search.Instance, iters int, seed uint64) *MayflyGenerator {
	t.Helper()

	g, err := NewMayfly(Env{Instance: inst, Rand: rand.New(rand.NewPCG(seed, seed)), MayflyIters: iters})
	if err != nil {
		t.Fatalf("NewMayfly failed: %v", err)
	}
	return g.(*MayflyGenerator)
}

func TestMayflyOnSphere(t *testing.T) {
	inst := problem.NewSphere(3)
	g := newMayfly(t, inst, 100, 42)

	c, err := g.Generate(1)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if c.Evaluated() {
		t.Error("Generate should return an unevaluated state")
	}
	if c.Dimension() != 3 {
		t.Fatalf("Expected %d parameters, got %d", 3, c.Dimension())
	}

	s, err := search.Evaluate(inst, c)
	if err != nil {
		t.Fatal(err)
	}
	// Should converge close to zero
	if s.Primary() > 0.1 {
		t.Errorf("Expected cost near 0, got %f", s.Primary())
	}
	for i, v := range c.Encoding {
		if math.Abs(v) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 0", i, v)
		}
	}
}

func TestMayflyMaximizes(t *testing.T) {
	inst := problem.NewMovingPeaks(2, 3, 1, 7)
	g := newMayfly(t, inst, 60, 1)

	c, err := g.Generate(1)
	if err != nil {
		t.Fatal(err)
	}
	s, err := search.Evaluate(inst, c)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewPCG(2, 2))
	var mean float64
	for range 100 {
		r, err := search.Evaluate(inst, search.NewState(inst.RandomEncoding(rng)))
		if err != nil {
			t.Fatal(err)
		}
		mean += r.Primary() / 100
	}
	if s.Primary() <= mean {
		t.Errorf("Mayfly reached %v, random sampling averages %v", s.Primary(), mean)
	}
}

func TestMayflyDeterministic(t *testing.T) {
	inst := problem.NewRastrigin(2)

	c1, err := newMayfly(t, inst, 50, 123).Generate(1)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := newMayfly(t, inst, 50, 123).Generate(1)
	if err != nil {
		t.Fatal(err)
	}

	if !c1.Equal(c2) {
		t.Errorf("Non-deterministic: %v vs %v", c1.Encoding, c2.Encoding)
	}
}

// brokenSphere fails every evaluation.
type brokenSphere struct {
	*problem.Sphere
}

var errEvaluate = errors.New("evaluate failed")

func (brokenSphere) Evaluate(*search.State) error {
	return errEvaluate
}

func TestMayflyPropagatesEvaluationError(t *testing.T) {
	g := newMayfly(t, brokenSphere{problem.NewSphere(2)}, 5, 1)

	_, err := g.Generate(1)
	if !errors.Is(err, errEvaluate) {
		t.Errorf("Expected evaluation error, got %v", err)
	}
}

func TestMayflyRequiresSingleObjective(t *testing.T) {
	_, err := NewRegistry().New(search.Mayfly, Env{Instance: problem.NewZDT1(3), Rand: rand.New(rand.NewPCG(1, 1))})
	if !errors.Is(err, search.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}
