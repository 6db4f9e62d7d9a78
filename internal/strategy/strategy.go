// Package strategy implements the orchestration loop that drives a
// generator against a problem, tracks the best state and the Pareto front,
// and handles periodic environment changes.
package strategy

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/cwbudde/metaopt/internal/pareto"
	"github.com/cwbudde/metaopt/internal/search"
)

// subPeriods is the number of sub-periods per change interval.
const subPeriods = 10

// Strategy owns the state of one run. It is not safe for concurrent use;
// independent runs use independent Strategy values.
type Strategy struct {
	inst  search.Instance
	gen   search.Generator
	rng   *rand.Rand
	cfg   Config
	front *pareto.Front

	adaptive Adaptive
	conv     *ConvergenceTracker

	// subOffsets are the sub-period boundaries relative to the start of the
	// current change period
	subOffsets []int

	phase        Phase
	best         *search.State
	iteration    int
	nextChangeAt int
	periodStart  int
	lastRoll     int
	stopped      bool
	converged    bool
	start        time.Time

	// offline performance bookkeeping
	period    int
	periodSum float64
	offline   []float64
	written   []bool
}

// New validates the configuration and prepares a run. front may be nil; it
// is required when cfg.TrackFront is set and should be the same front the
// acceptance policies use.
func New(inst search.Instance, gen search.Generator, rng *rand.Rand, front *pareto.Front, cfg Config) (*Strategy, error) {
	if inst == nil {
		return nil, &search.ConfigError{Field: "problem", Reason: "is required", Kind: search.ErrUnsupported}
	}
	if gen == nil {
		return nil, &search.ConfigError{Field: "algorithm", Reason: "is required", Kind: search.ErrUnknownAlgorithm}
	}
	if rng == nil {
		return nil, &search.ConfigError{Field: "seed", Reason: "random source is required", Kind: search.ErrUnsupported}
	}
	if cfg.MaxIterations <= 0 {
		return nil, &search.ConfigError{Field: "maxIterations", Value: fmt.Sprint(cfg.MaxIterations), Reason: "must be positive"}
	}
	if cfg.ChangeInterval < 0 {
		return nil, &search.ConfigError{Field: "changeInterval", Value: fmt.Sprint(cfg.ChangeInterval), Reason: "cannot be negative"}
	}
	if cfg.Convergence.Patience < 0 || cfg.Convergence.Threshold < 0 {
		return nil, &search.ConfigError{Field: "convergence", Reason: "patience and threshold cannot be negative"}
	}
	if cfg.OperatorBudget <= 0 {
		cfg.OperatorBudget = 1
	}
	if cfg.TrackFront && front == nil {
		front = pareto.NewFront(inst.Sense())
	}
	if cfg.InitialEncoding != nil && len(cfg.InitialEncoding) != inst.Dimension() {
		return nil, &search.ConfigError{
			Field:  "initialEncoding",
			Reason: fmt.Sprintf("length %d does not match problem dimension %d", len(cfg.InitialEncoding), inst.Dimension()),
		}
	}

	s := &Strategy{
		inst:  inst,
		gen:   gen,
		rng:   rng,
		cfg:   cfg,
		front: front,
		phase: PhaseInitializing,
	}
	s.adaptive, _ = gen.(Adaptive)
	if cfg.Convergence.Enabled() {
		s.conv = NewConvergenceTracker(cfg.Convergence, inst.Sense())
	}

	span := cfg.ChangeInterval
	if span == 0 {
		span = cfg.MaxIterations
	}
	s.subOffsets = subPeriodOffsets(span)

	periods := 1
	if cfg.ChangeInterval > 0 {
		periods = (cfg.MaxIterations + cfg.ChangeInterval - 1) / cfg.ChangeInterval
	}
	s.offline = make([]float64, periods)
	s.written = make([]bool, periods)
	return s, nil
}

// Run executes the whole run: initialization, iterations until the stop
// criterion holds, then final bookkeeping.
func (s *Strategy) Run() (*Result, error) {
	if err := s.Initialize(); err != nil {
		return nil, err
	}
	for !s.Done() {
		if err := s.Step(); err != nil {
			return nil, err
		}
	}
	return s.Finish(), nil
}

// Initialize evaluates the initial state and installs it as the reference
// of the generator and as the best-known state.
func (s *Strategy) Initialize() error {
	if s.phase != PhaseInitializing {
		return errors.New("strategy: already initialized")
	}
	s.start = time.Now()

	enc := s.cfg.InitialEncoding
	if enc == nil {
		enc = s.inst.RandomEncoding(s.rng)
	}
	seed, err := search.Evaluate(s.inst, search.NewState(enc))
	if err != nil {
		return s.fail(&EvaluationError{Iteration: 0, Err: err})
	}
	seed.Origin = search.Random

	if seeder, ok := s.gen.(search.Seeder); ok {
		err = seeder.Initialize(seed)
	} else {
		err = s.gen.UpdateReference(seed, 0)
	}
	if err != nil {
		return s.fail(fmt.Errorf("install initial reference: %w", err))
	}

	if s.cfg.TrackFront {
		if _, err := s.front.Insert(seed); err != nil {
			return s.fail(err)
		}
	}

	s.best = seed
	if s.conv != nil {
		s.conv.Update(seed.Last())
	}
	s.nextChangeAt = s.cfg.ChangeInterval
	s.phase = PhaseIterating

	slog.Debug("Run initialized",
		"algorithm", s.gen.Type(),
		"max_iterations", s.cfg.MaxIterations,
		"change_interval", s.cfg.ChangeInterval,
		"initial", seed.Fitness,
	)
	return nil
}

// Done reports whether the stop criterion holds.
func (s *Strategy) Done() bool {
	if s.phase == PhaseTerminated || s.phase == PhaseFailed || s.iteration >= s.cfg.MaxIterations {
		return true
	}
	if s.cfg.Stop != nil && s.cfg.Stop(s.iteration) {
		s.stopped = true
		return true
	}
	if s.conv != nil && s.conv.Converged() {
		s.converged = true
		return true
	}
	return false
}

// Step runs one iteration, including the environment change when the
// iteration counter has reached the next change boundary.
//
// An iteration either completes or fails as a whole: the offline sample of
// the closing period and the period advance are committed only once the
// boundary iteration has succeeded. Any error moves the run to PhaseFailed.
func (s *Strategy) Step() error {
	switch s.phase {
	case PhaseInitializing:
		return errors.New("strategy: not initialized")
	case PhaseTerminated:
		return errors.New("strategy: run has terminated")
	case PhaseFailed:
		return fmt.Errorf("strategy: run failed at iteration %d", s.iteration)
	}

	boundary := s.cfg.ChangeInterval > 0 && s.iteration == s.nextChangeAt
	if boundary {
		s.phase = PhaseChangeBoundary
		if err := s.changeEnvironment(); err != nil {
			return s.fail(err)
		}
	}

	evaluated, improved, err := s.tick()
	if err != nil {
		return s.fail(err)
	}

	phase := s.phase
	if boundary {
		s.recordOffline(s.cfg.ChangeInterval)
		s.period++
		s.periodSum = 0
		s.periodStart = s.iteration
		s.nextChangeAt += s.cfg.ChangeInterval
		s.phase = PhaseIterating
	}

	if s.conv != nil {
		if boundary {
			s.conv.Reset()
		}
		s.conv.Update(s.best.Last())
	}
	s.periodSum += s.best.Last()
	s.iteration++

	if s.cfg.OnIteration != nil {
		s.cfg.OnIteration(Progress{
			Iteration: s.iteration,
			Phase:     phase,
			Candidate: evaluated,
			Best:      s.best,
			Improved:  improved,
			Boundary:  boundary,
		})
	}
	return nil
}

// fail moves the run to its terminal failed phase.
func (s *Strategy) fail(err error) error {
	s.phase = PhaseFailed
	slog.Debug("Run failed", "iteration", s.iteration, "error", err)
	return err
}

// tick produces, evaluates and records one candidate.
func (s *Strategy) tick() (*search.State, bool, error) {
	s.rollIfDue()

	candidate, err := s.gen.Generate(s.cfg.OperatorBudget)
	if err != nil {
		return nil, false, fmt.Errorf("generate at iteration %d: %w", s.iteration, err)
	}
	if candidate == nil {
		return nil, false, fmt.Errorf("iteration %d: %w", s.iteration, search.ErrEmptyCandidate)
	}

	origin := candidate.Origin
	if origin == "" {
		origin = s.gen.Type()
	}
	evaluated, err := search.Evaluate(s.inst, candidate)
	if err != nil {
		return nil, false, &EvaluationError{Iteration: s.iteration, Err: err}
	}
	evaluated.Iteration = s.iteration
	evaluated.Origin = origin

	if err := s.gen.UpdateReference(evaluated, s.iteration); err != nil {
		return nil, false, fmt.Errorf("update reference at iteration %d: %w", s.iteration, err)
	}
	if s.cfg.TrackFront {
		if _, err := s.front.Insert(evaluated); err != nil {
			return nil, false, fmt.Errorf("front insertion at iteration %d: %w", s.iteration, err)
		}
	}

	improved := s.inst.Sense().Better(evaluated.Last(), s.best.Last())
	if s.adaptive != nil {
		s.adaptive.Observe(evaluated, improved)
	}
	if improved {
		s.best = evaluated
	}
	return evaluated, improved, nil
}

// subPeriodOffsets splits span into subPeriods parts of near-equal length.
// The last part ends at span itself, which is the change boundary (or the
// end of a static run). Short spans yield fewer, one-iteration parts.
func subPeriodOffsets(span int) []int {
	var offsets []int
	for k := 1; k < subPeriods; k++ {
		o := int(math.Round(float64(k*span) / subPeriods))
		if o <= 0 || o >= span || slices.Contains(offsets, o) {
			continue
		}
		offsets = append(offsets, o)
	}
	return offsets
}

// rollIfDue closes the portfolio sub-period when the iteration counter sits
// on a sub-period boundary of the current change period.
func (s *Strategy) rollIfDue() {
	if slices.Contains(s.subOffsets, s.iteration-s.periodStart) {
		s.closeSubPeriod()
	}
}

// closeSubPeriod rolls the portfolio at most once per iteration.
func (s *Strategy) closeSubPeriod() {
	if s.adaptive == nil || s.iteration == 0 || s.iteration == s.lastRoll {
		return
	}
	s.adaptive.RollPeriod()
	s.lastRoll = s.iteration
}

// Finish closes the open sub-period and offline period, and produces the
// result record. A failed run keeps its log as it was at the failure.
func (s *Strategy) Finish() *Result {
	if s.phase != PhaseTerminated && s.phase != PhaseFailed {
		s.closeSubPeriod()
		s.recordOffline(s.divisor())
		s.phase = PhaseTerminated
	}

	res := &Result{
		Best:       s.best,
		References: s.gen.ReferenceList(),
		Offline:    s.Offline(),
		Iterations: s.iteration,
		Stopped:    s.stopped,
		Converged:  s.converged,
		Elapsed:    time.Since(s.start),
	}
	if s.cfg.TrackFront {
		res.Front = s.front.Members()
	}
	if s.adaptive != nil {
		res.Generators = s.adaptive.Records()
	}

	slog.Debug("Run finished", "iterations", s.iteration, "best", s.best.Fitness, "elapsed", res.Elapsed)
	return res
}

// Best returns the best-known state.
func (s *Strategy) Best() *search.State {
	return s.best
}

// Iteration returns the number of completed iterations.
func (s *Strategy) Iteration() int {
	return s.iteration
}

// NextChangeAt returns the iteration of the next environment change.
func (s *Strategy) NextChangeAt() int {
	return s.nextChangeAt
}

// Phase returns the current phase of the loop.
func (s *Strategy) Phase() Phase {
	return s.phase
}

// Front returns the tracked Pareto front (nil when not tracked).
func (s *Strategy) Front() *pareto.Front {
	return s.front
}

// Generator returns the driven generator.
func (s *Strategy) Generator() search.Generator {
	return s.gen
}
