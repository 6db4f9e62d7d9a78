package strategy

import (
	"log/slog"
	"math"

	"github.com/cwbudde/metaopt/internal/search"
)

// ConvergenceConfig defines the stagnation stop criterion.
type ConvergenceConfig struct {
	// Patience is the number of iterations without significant improvement
	// of the best state before the run stops. Zero disables detection.
	Patience int `yaml:"patience" json:"patience"`

	// Threshold is the minimum relative improvement that counts as progress.
	// Example: 0.001 = 0.1% improvement required
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// Enabled reports whether stagnation detection is active.
func (c ConvergenceConfig) Enabled() bool {
	return c.Patience > 0
}

// ConvergenceTracker follows the best objective value and detects when the
// run has stopped making significant progress.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	sense           search.Sense
	lastSignificant float64 // Last value that was a significant improvement
	started         bool
	staleCount      int
}

// NewConvergenceTracker creates a tracker for values optimized in sense.
func NewConvergenceTracker(config ConvergenceConfig, sense search.Sense) *ConvergenceTracker {
	return &ConvergenceTracker{config: config, sense: sense}
}

// Update records the current best value and reports whether the run has
// converged.
func (c *ConvergenceTracker) Update(value float64) bool {
	if !c.config.Enabled() {
		return false
	}
	if !c.started {
		c.started = true
		c.lastSignificant = value
		return false
	}

	if g := c.relativeGain(value); g > 0 && g >= c.config.Threshold {
		c.lastSignificant = value
		c.staleCount = 0
		return false
	}

	c.staleCount++
	if c.staleCount == c.config.Patience {
		slog.Debug("Convergence detected",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best", c.lastSignificant,
		)
	}
	return c.Converged()
}

// relativeGain is the improvement of value over the last significant value,
// relative to its magnitude. Any gain over zero is infinite.
func (c *ConvergenceTracker) relativeGain(value float64) float64 {
	gain := c.sense.Gain(value, c.lastSignificant)
	if gain <= 0 {
		return gain
	}
	ref := math.Abs(c.lastSignificant)
	if ref == 0 {
		return math.Inf(1)
	}
	return gain / ref
}

// Converged reports whether the patience has been exhausted.
func (c *ConvergenceTracker) Converged() bool {
	return c.config.Enabled() && c.staleCount >= c.config.Patience
}

// StaleCount returns the current number of iterations without improvement
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker's state. The next update starts a new baseline.
func (c *ConvergenceTracker) Reset() {
	c.started = false
	c.lastSignificant = 0
	c.staleCount = 0
}
