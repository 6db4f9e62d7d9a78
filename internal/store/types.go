package store

import (
	"fmt"
	"slices"
	"time"

	"github.com/cwbudde/metaopt/internal/config"
	"github.com/cwbudde/metaopt/internal/portfolio"
	"github.com/cwbudde/metaopt/internal/search"
	"github.com/cwbudde/metaopt/internal/strategy"
)

// Run status values.
const (
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
)

// RunRecord is the persisted outcome of a run.
//
// Only the best state and the reporting data are kept, not the internal
// state of the generators. Resuming a run therefore starts a fresh run
// whose initial state is the stored best encoding.
type RunRecord struct {
	// ID is the unique identifier of the run
	ID string `json:"id"`

	// Status is StatusCompleted, or StatusStopped for runs ended early
	Status string `json:"status"`

	// Config is the configuration the run was built from
	Config config.RunConfig `json:"config"`

	Best       *search.State      `json:"best"`
	Front      []*search.State    `json:"front,omitempty"`
	Offline    []float64          `json:"offline"`
	Generators []portfolio.Record `json:"generators,omitempty"`
	Iterations int                `json:"iterations"`

	// Converged is set when the run stopped on stagnation
	Converged bool `json:"converged,omitempty"`

	// ElapsedMs is the wall-clock duration of the run
	ElapsedMs int64 `json:"elapsedMs"`

	// ParentID is set for runs resumed from another run
	ParentID string `json:"parentId,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// RunInfo contains the metadata of a run without its states.
type RunInfo struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Problem    string    `json:"problem"`
	Algorithm  string    `json:"algorithm"`
	Best       []float64 `json:"best"`
	Iterations int       `json:"iterations"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewRunRecord creates a record from a finished run.
func NewRunRecord(id string, cfg config.RunConfig, res *strategy.Result) *RunRecord {
	status := StatusCompleted
	if res.Stopped {
		status = StatusStopped
	}
	return &RunRecord{
		ID:         id,
		Status:     status,
		Config:     cfg,
		Best:       res.Best,
		Front:      res.Front,
		Offline:    res.Offline,
		Generators: res.Generators,
		Iterations: res.Iterations,
		Converged:  res.Converged,
		ElapsedMs:  res.Elapsed.Milliseconds(),
		Timestamp:  time.Now(),
	}
}

// ToInfo converts a full RunRecord to RunInfo.
func (r *RunRecord) ToInfo() RunInfo {
	info := RunInfo{
		ID:         r.ID,
		Status:     r.Status,
		Problem:    r.Config.Problem.Name,
		Algorithm:  r.Config.Algorithm,
		Iterations: r.Iterations,
		Timestamp:  r.Timestamp,
	}
	if r.Best != nil {
		info.Best = slices.Clone(r.Best.Fitness)
	}
	return info
}

// Validate checks if the record has valid data.
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Status != StatusCompleted && r.Status != StatusStopped {
		return &ValidationError{Field: "Status", Reason: fmt.Sprintf("unknown status %q", r.Status)}
	}
	if !r.Best.Evaluated() {
		return &ValidationError{Field: "Best", Reason: "must be an evaluated state"}
	}
	if len(r.Best.Encoding) != r.Config.Problem.Dimension {
		return &ValidationError{
			Field:  "Best",
			Reason: fmt.Sprintf("encoding length mismatch: expected %d for problem dimension", r.Config.Problem.Dimension),
		}
	}
	if r.Iterations < 0 {
		return &ValidationError{Field: "Iterations", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if err := r.Config.Validate(); err != nil {
		return &ValidationError{Field: "Config", Reason: err.Error()}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether the record's best state can seed a run with
// the given configuration.
func (r *RunRecord) IsCompatible(cfg config.RunConfig) error {
	if r.Config.Problem.Name != cfg.Problem.Name {
		return &CompatibilityError{
			Field:    "Problem.Name",
			Expected: r.Config.Problem.Name,
			Actual:   cfg.Problem.Name,
		}
	}
	if r.Config.Problem.Dimension != cfg.Problem.Dimension {
		return &CompatibilityError{
			Field:    "Problem.Dimension",
			Expected: fmt.Sprintf("%d", r.Config.Problem.Dimension),
			Actual:   fmt.Sprintf("%d", cfg.Problem.Dimension),
		}
	}
	return nil
}

// CompatibilityError represents a resume compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
