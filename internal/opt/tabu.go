package opt

import (
	"log/slog"
	"slices"

	"github.com/cwbudde/metaopt/internal/accept"
	"github.com/cwbudde/metaopt/internal/search"
)

const (
	defaultTenure = 16

	// maxTabuRetries bounds the search for a non-tabu neighbor
	maxTabuRetries = 32
)

// TabuSearch is a trajectory search that refuses to revisit the encodings
// of its recent references.
type TabuSearch struct {
	trajectory
	tenure int
	recent []search.Encoding

	// restarts counts how often the neighborhood was exhausted
	restarts int
}

// NewTabuSearch builds a tabu search with a recency list of env.TabuTenure
// encodings.
func NewTabuSearch(env Env) (search.Generator, error) {
	p, err := policy(env, nativeKind(env, accept.KindBest, accept.KindPareto), nil)
	if err != nil {
		return nil, err
	}
	tenure := env.TabuTenure
	if tenure <= 0 {
		tenure = defaultTenure
	}
	return &TabuSearch{
		trajectory: trajectory{
			tag:    search.Tabu,
			inst:   env.Instance,
			rng:    env.Rand,
			policy: p,
		},
		tenure: tenure,
	}, nil
}

func (t *TabuSearch) Initialize(seed *search.State) error {
	if err := t.trajectory.Initialize(seed); err != nil {
		return err
	}
	t.remember(seed.Encoding)
	return nil
}

// Generate returns a neighbor that is not on the tabu list. When every
// sampled neighbor is tabu the search restarts from a random encoding.
func (t *TabuSearch) Generate(budget int) (*search.State, error) {
	if t.ref == nil {
		return t.trajectory.Generate(budget)
	}
	for i := 0; i < maxTabuRetries; i++ {
		enc := walk(t.inst, t.ref.Encoding, budget, t.rng)
		if !t.isTabu(enc) {
			return search.NewState(enc), nil
		}
	}

	t.restarts++
	slog.Debug("Tabu neighborhood exhausted, restarting", "restarts", t.restarts, "tenure", t.tenure)
	return search.NewState(t.inst.RandomEncoding(t.rng)), nil
}

func (t *TabuSearch) UpdateReference(candidate *search.State, iteration int) error {
	prev := t.ref
	if err := t.trajectory.UpdateReference(candidate, iteration); err != nil {
		return err
	}
	if t.ref != prev {
		t.remember(t.ref.Encoding)
	}
	return nil
}

// Restarts returns how many times the neighborhood was exhausted.
func (t *TabuSearch) Restarts() int {
	return t.restarts
}

func (t *TabuSearch) isTabu(enc search.Encoding) bool {
	return slices.ContainsFunc(t.recent, func(e search.Encoding) bool {
		return slices.Equal(e, enc)
	})
}

func (t *TabuSearch) remember(enc search.Encoding) {
	t.recent = append(t.recent, slices.Clone(enc))
	if len(t.recent) > t.tenure {
		t.recent = t.recent[len(t.recent)-t.tenure:]
	}
}
