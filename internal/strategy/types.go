package strategy

import (
	"fmt"
	"time"

	"github.com/cwbudde/metaopt/internal/portfolio"
	"github.com/cwbudde/metaopt/internal/search"
)

// Phase is the state of the control loop.
type Phase string

const (
	PhaseInitializing   Phase = "initializing"
	PhaseIterating      Phase = "iterating"
	PhaseChangeBoundary Phase = "change-boundary"
	PhaseTerminated     Phase = "terminated"

	// PhaseFailed is entered when an iteration returns an error. It is
	// terminal: the run cannot be stepped again.
	PhaseFailed Phase = "failed"
)

// Config holds the run parameters.
type Config struct {
	// MaxIterations is the stop criterion: the loop ends once this many
	// iterations have run
	MaxIterations int

	// ChangeInterval is the number of iterations between environment
	// changes. Zero means a static environment.
	ChangeInterval int

	// OperatorBudget bounds the operator applications per candidate
	OperatorBudget int

	// TrackFront inserts every evaluated candidate into the Pareto front
	TrackFront bool

	// InitialEncoding replaces the random initial state when set
	InitialEncoding search.Encoding

	// Stop is consulted before every iteration; returning true ends the run
	// early. It lets callers observe externally set state.
	Stop func(iteration int) bool

	// Convergence stops the run early once the best state stagnates.
	// It is reset at every change boundary.
	Convergence ConvergenceConfig

	// OnIteration is called after every completed iteration
	OnIteration func(Progress)
}

// Progress describes one completed iteration.
type Progress struct {
	Iteration int           `json:"iteration"`
	Phase     Phase         `json:"phase"`
	Candidate *search.State `json:"candidate"`
	Best      *search.State `json:"best"`
	Improved  bool          `json:"improved"`
	Boundary  bool          `json:"boundary"`
}

// Result is the record returned by a completed run.
type Result struct {
	Best       *search.State      `json:"best"`
	References []*search.State    `json:"references"`
	Front      []*search.State    `json:"front,omitempty"`
	Offline    []float64          `json:"offline"`
	Generators []portfolio.Record `json:"generators,omitempty"`
	Iterations int                `json:"iterations"`
	Stopped    bool               `json:"stopped"`
	Converged  bool               `json:"converged,omitempty"`
	Elapsed    time.Duration      `json:"elapsed"`
}

// EvaluationError wraps a failure of the problem collaborator together
// with the iteration that triggered it.
type EvaluationError struct {
	Iteration int
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Adaptive is implemented by generators that learn from the outcome of
// their candidates, such as the portfolio.
type Adaptive interface {
	Observe(candidate *search.State, improved bool)
	RollPeriod()
	ResetWeights()
	Records() []portfolio.Record
}
