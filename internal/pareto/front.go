package pareto

import (
	"math"
	"slices"
	"sort"

	"github.com/cwbudde/metaopt/internal/search"
)

// boundaryDistance marks the extreme points of each objective.
const boundaryDistance = math.MaxFloat64

// Front is a set of mutually non-dominated states.
//
// Front is not safe for concurrent use; it is owned by a single run.
type Front struct {
	sense    search.Sense
	members  []*search.State
	crowding []float64

	withCrowding bool
	capacity     int
}

// Option configures a Front.
type Option func(*Front)

// WithCrowding enables crowding distance bookkeeping. Distances are
// recomputed after every removal and insertion.
func WithCrowding(enabled bool) Option {
	return func(f *Front) {
		f.withCrowding = enabled
	}
}

// WithCapacity bounds the front size. When an insertion exceeds it, the
// most crowded member is evicted. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(f *Front) {
		f.capacity = n
	}
}

// NewFront creates an empty front for the given sense.
func NewFront(sense search.Sense, opts ...Option) *Front {
	f := &Front{sense: sense}
	for _, opt := range opts {
		opt(f)
	}
	if f.capacity > 0 {
		f.withCrowding = true
	}
	return f
}

// Sense returns the optimization direction of the front.
func (f *Front) Sense() search.Sense {
	return f.sense
}

// Len returns the number of members.
func (f *Front) Len() int {
	return len(f.members)
}

// Members returns the current members. The slice is fresh; the states are
// shared and must be treated as read-only.
func (f *Front) Members() []*search.State {
	return slices.Clone(f.members)
}

// Crowding returns the crowding distance of each member, aligned with
// Members. It is nil unless crowding is enabled.
func (f *Front) Crowding() []float64 {
	return slices.Clone(f.crowding)
}

// Contains reports whether a member with the same encoding exists.
func (f *Front) Contains(s *search.State) bool {
	return slices.ContainsFunc(f.members, s.Equal)
}

// Insert offers candidate to the front.
//
// Members dominated by candidate are removed first. If a remaining member
// dominates candidate, or a member with an identical encoding exists, the
// candidate is rejected. Otherwise a deep copy is appended and Insert
// returns true.
func (f *Front) Insert(candidate *search.State) (bool, error) {
	if err := f.validate(candidate); err != nil {
		return false, err
	}

	kept := f.members[:0]
	removed := false
	rejected := false
	for _, m := range f.members {
		if StateDominates(candidate, m, f.sense) {
			removed = true
			continue
		}
		if !rejected && StateDominates(m, candidate, f.sense) {
			rejected = true
		}
		kept = append(kept, m)
	}
	clear(f.members[len(kept):])
	f.members = kept

	if removed && f.withCrowding {
		f.updateCrowding()
	}
	if rejected || f.Contains(candidate) {
		return false, nil
	}

	f.members = append(f.members, candidate.Clone())
	if f.capacity > 0 && len(f.members) > f.capacity {
		f.updateCrowding()
		f.evictMostCrowded()
	}
	if f.withCrowding {
		f.updateCrowding()
	}
	return f.Contains(candidate), nil
}

// Rank returns the number of members that dominate s.
func (f *Front) Rank(s *search.State) (int, error) {
	if err := f.validate(s); err != nil {
		return 0, err
	}
	rank := 0
	for _, m := range f.members {
		if StateDominates(m, s, f.sense) {
			rank++
		}
	}
	return rank, nil
}

// DominatesAny reports whether s dominates at least one member.
func (f *Front) DominatesAny(s *search.State) (bool, error) {
	if err := f.validate(s); err != nil {
		return false, err
	}
	for _, m := range f.members {
		if StateDominates(s, m, f.sense) {
			return true, nil
		}
	}
	return false, nil
}

// Rebuild empties the front and re-inserts the given states. It is used
// after an environment change when member fitness has been refreshed.
func (f *Front) Rebuild(states []*search.State) error {
	f.members = nil
	f.crowding = nil
	for _, s := range states {
		if _, err := f.Insert(s); err != nil {
			return err
		}
	}
	return nil
}

func (f *Front) validate(s *search.State) error {
	if len(f.members) == 0 {
		return search.RequireEvaluated(s)
	}
	return Check(f.members[0], s)
}

// updateCrowding recomputes NSGA-II crowding distances for all members.
func (f *Front) updateCrowding() {
	n := len(f.members)
	f.crowding = make([]float64, n)
	if n == 0 {
		return
	}
	if n <= 2 {
		for i := range f.crowding {
			f.crowding[i] = boundaryDistance
		}
		return
	}

	objectives := len(f.members[0].Fitness)
	indices := make([]int, n)
	for obj := 0; obj < objectives; obj++ {
		for i := range indices {
			indices[i] = i
		}
		sort.Slice(indices, func(a, b int) bool {
			return f.members[indices[a]].Fitness[obj] < f.members[indices[b]].Fitness[obj]
		})

		lo := f.members[indices[0]].Fitness[obj]
		hi := f.members[indices[n-1]].Fitness[obj]
		f.crowding[indices[0]] = boundaryDistance
		f.crowding[indices[n-1]] = boundaryDistance

		span := hi - lo
		if span == 0 {
			continue
		}
		for i := 1; i < n-1; i++ {
			if f.crowding[indices[i]] == boundaryDistance {
				continue
			}
			gap := f.members[indices[i+1]].Fitness[obj] - f.members[indices[i-1]].Fitness[obj]
			f.crowding[indices[i]] += gap / span
		}
	}
}

// evictMostCrowded drops the member with the smallest crowding distance.
func (f *Front) evictMostCrowded() {
	worst := 0
	for i, d := range f.crowding {
		if d < f.crowding[worst] {
			worst = i
		}
	}
	f.members = slices.Delete(f.members, worst, worst+1)
}
