package accept

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/cwbudde/metaopt/internal/pareto"
	"github.com/cwbudde/metaopt/internal/search"
)

var encodings float64

// state returns an evaluated state with a fresh encoding.
func state(fitness ...float64) *search.State {
	encodings++
	return search.NewState(search.Encoding{encodings}).WithFitness(fitness)
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 1))
}

func mustAccept(t *testing.T, p Policy, current, candidate *search.State) bool {
	t.Helper()

	ok, err := p.Accept(current, candidate)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	return ok
}

func TestBest(t *testing.T) {
	current, candidate := state(10), state(7)

	if !mustAccept(t, NewBest(search.Minimize), current, candidate) {
		t.Error("Minimize: 7 should replace 10")
	}
	if mustAccept(t, NewBest(search.Maximize), current, candidate) {
		t.Error("Maximize: 7 should not replace 10")
	}
	if !mustAccept(t, NewBest(search.Maximize), current, state(10)) {
		t.Error("An equal candidate should be accepted")
	}
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		name      string
		sense     search.Sense
		candidate float64
		want      bool
	}{
		{"minimize within", search.Minimize, 11.5, true},
		{"minimize at limit", search.Minimize, 12, true},
		{"minimize beyond", search.Minimize, 12.5, false},
		{"maximize within", search.Maximize, 8.5, true},
		{"maximize beyond", search.Maximize, 7.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewThreshold(tt.sense, 2)
			for range 3 {
				if got := mustAccept(t, p, state(10), state(tt.candidate)); got != tt.want {
					t.Errorf("Accept(10, %v) = %v, want %v", tt.candidate, got, tt.want)
				}
			}
		})
	}
}

func TestTemperature(t *testing.T) {
	frozen := NewTemperature(search.Minimize, FixedTemperature(0), newRand())
	if !mustAccept(t, frozen, state(10), state(9)) {
		t.Error("An improvement must be accepted even when frozen")
	}
	if mustAccept(t, frozen, state(10), state(11)) {
		t.Error("A worse candidate must be rejected when frozen")
	}

	hot := NewTemperature(search.Maximize, FixedTemperature(1e12), newRand())
	accepted := 0
	for range 100 {
		if mustAccept(t, hot, state(10), state(9)) {
			accepted++
		}
	}
	if accepted < 95 {
		t.Errorf("Hot schedule accepted %d of 100 slightly worse candidates", accepted)
	}
}

func TestProbability(t *testing.T) {
	if Probability(1, 5) != 1 || Probability(0, 0) != 1 {
		t.Error("Non-negative gains must have probability 1")
	}
	if Probability(-1, 0) != 0 {
		t.Error("Zero temperature must reject")
	}
	if got := Probability(-2, 2); math.Abs(got-math.Exp(-1)) > 1e-12 {
		t.Errorf("Probability(-2, 2) = %v", got)
	}
}

func TestUnevaluatedStatesAreRejected(t *testing.T) {
	unevaluated := search.NewState(search.Encoding{1})
	front := pareto.NewFront(search.Minimize)

	for _, p := range []Policy{
		NewBest(search.Minimize),
		NewThreshold(search.Minimize, 1),
		NewTemperature(search.Minimize, FixedTemperature(1), newRand()),
		NewPareto(front),
		NewMulticase(front, FixedTemperature(1), newRand()),
	} {
		if _, err := p.Accept(state(1), unevaluated); !errors.Is(err, search.ErrNotEvaluated) {
			t.Errorf("%T: expected ErrNotEvaluated, got %v", p, err)
		}
	}

	if _, err := NewBest(search.Minimize).Accept(state(1, 2), state(1)); !errors.Is(err, pareto.ErrObjectiveMismatch) {
		t.Errorf("Expected ErrObjectiveMismatch, got %v", err)
	}
}

func TestPareto(t *testing.T) {
	front := pareto.NewFront(search.Minimize)
	p := NewPareto(front)

	current := state(5, 5)
	_, _ = front.Insert(current)

	if mustAccept(t, p, current, state(6, 6)) {
		t.Error("A candidate dominated by current was accepted")
	}
	if !mustAccept(t, p, current, state(1, 9)) {
		t.Error("A trade-off candidate should enter the front")
	}
	if !mustAccept(t, p, current, state(4, 4)) {
		t.Error("A dominating candidate should be accepted")
	}
	if front.Len() != 2 {
		t.Errorf("Front size = %d, want 2", front.Len())
	}
}

func TestMulticase(t *testing.T) {
	tests := []struct {
		name      string
		front     [][]float64
		current   []float64
		candidate []float64
		temp      float64
		want      bool
	}{
		{"candidate dominates current", nil, []float64{5, 5}, []float64{4, 4}, 0, true},
		{"candidate dominates a member", [][]float64{{3, 3}}, []float64{1, 10}, []float64{2, 2}, 0, true},
		{"lower rank", [][]float64{{2, 2}, {1, 5}}, []float64{3, 6}, []float64{4, 2.5}, 0, true},
		{"equal rank with gain", [][]float64{{1, 5}}, []float64{10, 1}, []float64{2, 1.5}, 0, true},
		{"equal rank with loss when frozen", [][]float64{{1, 5}}, []float64{5, 1}, []float64{4, 2}, 0, false},
		{"higher rank against non-dominated current", [][]float64{{1, 5}}, []float64{5, 1}, []float64{2, 6}, math.Inf(1), false},
		{"higher rank when hot", [][]float64{{1, 5}, {5, 1}}, []float64{6, 2}, []float64{6, 6}, math.Inf(1), true},
		{"higher rank when frozen", [][]float64{{1, 5}, {5, 1}}, []float64{6, 2}, []float64{6, 6}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			front := pareto.NewFront(search.Minimize)
			for _, f := range tt.front {
				if _, err := front.Insert(state(f...)); err != nil {
					t.Fatal(err)
				}
			}

			p := NewMulticase(front, FixedTemperature(tt.temp), newRand())
			if got := mustAccept(t, p, state(tt.current...), state(tt.candidate...)); got != tt.want {
				t.Errorf("Accept = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMulticaseInsertsAccepted(t *testing.T) {
	front := pareto.NewFront(search.Minimize)
	_, _ = front.Insert(state(3, 3))
	p := NewMulticase(front, FixedTemperature(1), newRand())

	if !mustAccept(t, p, state(1, 10), state(2, 2)) {
		t.Fatal("Candidate should be accepted")
	}
	if front.Len() != 1 || front.Members()[0].Fitness[0] != 2 {
		t.Errorf("Front = %v, want the accepted candidate only", front.Members())
	}
}

func TestRelativeGain(t *testing.T) {
	got := RelativeGain(state(10, 1), state(2, 1.5), search.Minimize)
	if math.Abs(got-0.15) > 1e-12 {
		t.Errorf("RelativeGain = %v, want 0.15", got)
	}
}

func TestNew(t *testing.T) {
	front := pareto.NewFront(search.Minimize)
	full := Deps{Sense: search.Minimize, Rand: newRand(), Front: front, Temperature: FixedTemperature(1), Threshold: 1}

	for _, kind := range Kinds {
		if _, err := New(kind, full); err != nil {
			t.Errorf("New(%s) failed: %v", kind, err)
		}
	}

	if _, err := New(KindPareto, Deps{}); !errors.Is(err, search.ErrUnsupported) {
		t.Errorf("Pareto without front: expected ErrUnsupported, got %v", err)
	}
	if _, err := New("greedy", full); !errors.Is(err, search.ErrUnknownPolicy) {
		t.Errorf("Expected ErrUnknownPolicy, got %v", err)
	}
	if _, err := ParseKind("multicase"); err != nil {
		t.Errorf("ParseKind failed: %v", err)
	}
}
