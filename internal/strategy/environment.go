package strategy

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/cwbudde/metaopt/internal/search"
)

// changeEnvironment handles a change boundary: it lets a dynamic problem
// shift, re-evaluates every reference, resets the best state from the
// refreshed references and resets the adaptive weights. The offline period
// is closed by Step once the boundary iteration has completed.
func (s *Strategy) changeEnvironment() error {
	next := s.period + 1
	if d, ok := s.inst.(search.Dynamic); ok {
		if err := d.Shift(next); err != nil {
			return &EvaluationError{Iteration: s.iteration, Err: fmt.Errorf("shift environment: %w", err)}
		}
	}

	ev := func(st *search.State) (*search.State, error) {
		r, err := search.Evaluate(s.inst, st)
		if err != nil {
			return nil, err
		}
		r.Iteration = st.Iteration
		r.Origin = st.Origin
		return r, nil
	}

	if err := s.gen.Reevaluate(ev); err != nil {
		return &EvaluationError{Iteration: s.iteration, Err: err}
	}

	best, err := s.bestOf(s.gen.ReferenceList(), ev)
	if err != nil {
		return &EvaluationError{Iteration: s.iteration, Err: err}
	}
	s.best = best

	if s.cfg.TrackFront {
		members, err := search.ReevaluateAll(s.front.Members(), ev)
		if err != nil {
			return &EvaluationError{Iteration: s.iteration, Err: err}
		}
		if err := s.front.Rebuild(members); err != nil {
			return err
		}
	}

	if s.adaptive != nil {
		s.closeSubPeriod()
		s.adaptive.ResetWeights()
	}

	slog.Debug("Environment changed",
		"iteration", s.iteration,
		"period", next,
		"best", s.best.Fitness,
		"offline", s.periodSum/float64(s.cfg.ChangeInterval),
	)
	return nil
}

// bestOf picks the best of the re-evaluated references. Without references
// the previous best is re-evaluated instead.
func (s *Strategy) bestOf(refs []*search.State, ev search.Evaluator) (*search.State, error) {
	refs = slices.DeleteFunc(refs, func(r *search.State) bool { return !r.Evaluated() })
	if len(refs) == 0 {
		return ev(s.best)
	}
	best := refs[0]
	for _, r := range refs[1:] {
		if s.inst.Sense().Better(r.Last(), best.Last()) {
			best = r
		}
	}
	return best, nil
}
