package search

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAlgorithm is the kind of ConfigError for unresolvable generator tags
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrUnknownPolicy is the kind of ConfigError for unresolvable acceptance policies
	ErrUnknownPolicy = errors.New("unknown acceptance policy")

	// ErrUnsupported is the kind of ConfigError for collaborators that cannot
	// be built for the given problem
	ErrUnsupported = errors.New("unsupported configuration")

	// ErrNotEvaluated is returned when a state without fitness reaches a
	// comparison
	ErrNotEvaluated = errors.New("state has not been evaluated")

	// ErrEmptyCandidate is returned when a generator produces no candidate
	ErrEmptyCandidate = errors.New("generator produced no candidate")
)

// ConfigError reports a setup failure detected before any iteration runs.
// Use errors.Is(err, ErrUnknownAlgorithm) etc. to test the kind.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
	Kind   error
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error: %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Kind
}

// ObjectiveCountError reports a fitness vector of unexpected length.
type ObjectiveCountError struct {
	Expected int
	Actual   int
}

func (e *ObjectiveCountError) Error() string {
	return fmt.Sprintf("objective count mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// RequireEvaluated returns ErrNotEvaluated if any state lacks fitness.
func RequireEvaluated(states ...*State) error {
	for _, s := range states {
		if !s.Evaluated() {
			return ErrNotEvaluated
		}
	}
	return nil
}
