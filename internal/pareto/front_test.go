package pareto

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/cwbudde/metaopt/internal/search"
)

func state(enc float64, fitness ...float64) *search.State {
	return search.NewState(search.Encoding{enc}).WithFitness(fitness)
}

func TestDominates(t *testing.T) {
	tests := []struct {
		name  string
		x, y  []float64
		sense search.Sense
		want  bool
	}{
		{"maximize better on both", []float64{5, 5}, []float64{3, 4}, search.Maximize, true},
		{"maximize reversed", []float64{3, 4}, []float64{5, 5}, search.Maximize, false},
		{"minimize better on both", []float64{3, 4}, []float64{5, 5}, search.Minimize, true},
		{"equal vectors", []float64{1, 2}, []float64{1, 2}, search.Minimize, false},
		{"better on one equal on other", []float64{1, 2}, []float64{1, 3}, search.Minimize, true},
		{"trade-off", []float64{1, 5}, []float64{5, 1}, search.Minimize, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dominates(tt.x, tt.y, tt.sense); got != tt.want {
				t.Errorf("Dominates(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestDominanceIsAntisymmetricAndIrreflexive(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 500 {
		x := []float64{float64(rng.IntN(4)), float64(rng.IntN(4)), float64(rng.IntN(4))}
		y := []float64{float64(rng.IntN(4)), float64(rng.IntN(4)), float64(rng.IntN(4))}
		for _, sense := range []search.Sense{search.Minimize, search.Maximize} {
			if Dominates(x, x, sense) {
				t.Fatalf("%v dominates itself", x)
			}
			if Dominates(x, y, sense) && Dominates(y, x, sense) {
				t.Fatalf("%v and %v dominate each other", x, y)
			}
		}
	}
}

func TestDominatesPanicsOnMismatch(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrObjectiveMismatch) {
			t.Errorf("Expected ErrObjectiveMismatch panic, got %v", r)
		}
	}()
	Dominates([]float64{1}, []float64{1, 2}, search.Minimize)
}

func TestCheck(t *testing.T) {
	if err := Check(state(0, 1, 2), state(1, 1)); !errors.Is(err, ErrObjectiveMismatch) {
		t.Errorf("Expected ErrObjectiveMismatch, got %v", err)
	}
	if err := Check(state(0, 1), search.NewState(search.Encoding{1})); !errors.Is(err, search.ErrNotEvaluated) {
		t.Errorf("Expected ErrNotEvaluated, got %v", err)
	}
}

func TestInsertRemovesDominated(t *testing.T) {
	f := NewFront(search.Maximize)
	if ok, err := f.Insert(state(0, 3, 4)); !ok || err != nil {
		t.Fatalf("First insert = %v, %v", ok, err)
	}

	ok, err := f.Insert(state(1, 5, 5))
	if err != nil || !ok {
		t.Fatalf("Insert = %v, %v", ok, err)
	}
	if f.Len() != 1 || f.Members()[0].Encoding[0] != 1 {
		t.Errorf("Front = %v, want only [5 5]", f.Members())
	}
}

func TestInsertRejectsDominatedAndDuplicates(t *testing.T) {
	f := NewFront(search.Minimize)
	_, _ = f.Insert(state(0, 1, 5))
	_, _ = f.Insert(state(1, 5, 1))

	if ok, _ := f.Insert(state(2, 6, 6)); ok {
		t.Error("Dominated candidate was accepted")
	}

	// Same encoding, better fitness: still the same solution.
	if ok, _ := f.Insert(state(0, 0, 4)); ok {
		t.Error("Duplicate encoding was accepted")
	}
	if f.Len() != 2 {
		t.Errorf("Front size = %d, want 2", f.Len())
	}
}

func TestFrontStaysNonDominated(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	f := NewFront(search.Minimize, WithCrowding(true))

	for i := range 400 {
		if _, err := f.Insert(state(float64(i), rng.Float64(), rng.Float64())); err != nil {
			t.Fatal(err)
		}

		members := f.Members()
		if len(f.Crowding()) != len(members) {
			t.Fatalf("Crowding has %d entries for %d members", len(f.Crowding()), len(members))
		}
		for a := range members {
			for b := range members {
				if a != b && StateDominates(members[a], members[b], search.Minimize) {
					t.Fatalf("Member %v dominates %v", members[a].Fitness, members[b].Fitness)
				}
				if a != b && members[a].Equal(members[b]) {
					t.Fatalf("Duplicate encoding %v", members[a].Encoding)
				}
			}
		}
	}
}

func TestInsertStoresCopy(t *testing.T) {
	f := NewFront(search.Minimize)
	s := state(0, 1, 1)
	_, _ = f.Insert(s)
	s.Fitness[0] = 100

	if f.Members()[0].Fitness[0] != 1 {
		t.Error("Front shares the candidate's fitness")
	}
}

func TestInsertValidates(t *testing.T) {
	f := NewFront(search.Minimize)
	if _, err := f.Insert(search.NewState(search.Encoding{1})); !errors.Is(err, search.ErrNotEvaluated) {
		t.Errorf("Expected ErrNotEvaluated, got %v", err)
	}

	_, _ = f.Insert(state(0, 1, 2))
	if _, err := f.Insert(state(1, 1)); !errors.Is(err, ErrObjectiveMismatch) {
		t.Errorf("Expected ErrObjectiveMismatch, got %v", err)
	}
}

func TestRank(t *testing.T) {
	f := NewFront(search.Minimize)
	_, _ = f.Insert(state(0, 2, 2))
	_, _ = f.Insert(state(1, 1, 5))

	tests := []struct {
		name string
		s    *search.State
		want int
	}{
		{"non-dominated", state(9, 0, 9), 0},
		{"dominated by one", state(9, 3, 3), 1},
		{"dominated by both", state(9, 3, 6), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Rank(tt.s)
			if err != nil || got != tt.want {
				t.Errorf("Rank = %d, %v; want %d", got, err, tt.want)
			}
		})
	}

	if ok, _ := f.DominatesAny(state(9, 1.5, 1.5)); !ok {
		t.Error("[1.5 1.5] should dominate [2 2]")
	}
}

func TestCapacityEvictsMostCrowded(t *testing.T) {
	f := NewFront(search.Minimize, WithCapacity(3))
	for i, p := range [][]float64{{0, 10}, {10, 0}, {5, 5}, {4.9, 5.2}} {
		if _, err := f.Insert(state(float64(i), p...)); err != nil {
			t.Fatal(err)
		}
	}

	if f.Len() != 3 {
		t.Fatalf("Front size = %d, want 3", f.Len())
	}
	var extremes int
	for _, m := range f.Members() {
		if m.Encoding[0] == 0 || m.Encoding[0] == 1 {
			extremes++
		}
	}
	if extremes != 2 {
		t.Errorf("Boundary points were evicted: %v", f.Members())
	}
}

func TestRebuild(t *testing.T) {
	f := NewFront(search.Minimize)
	_, _ = f.Insert(state(0, 1, 5))
	_, _ = f.Insert(state(1, 5, 1))

	// After a change the first member now dominates the second.
	if err := f.Rebuild([]*search.State{state(0, 1, 1), state(1, 5, 1)}); err != nil {
		t.Fatal(err)
	}
	if f.Len() != 1 || f.Members()[0].Encoding[0] != 0 {
		t.Errorf("Front after rebuild = %v", f.Members())
	}
}
