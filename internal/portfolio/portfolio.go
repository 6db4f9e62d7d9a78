// Package portfolio implements a composite generator that spreads
// iterations over a fixed roster of generators and adapts the share each
// one receives from its observed success rate.
package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/cwbudde/metaopt/internal/search"
)

// Default weighting parameters.
const (
	DefaultBaseline     = 50.0
	DefaultFloor        = 5.0
	DefaultLearningRate = 0.5
)

// Config holds the weighting parameters.
type Config struct {
	// Sense is used to pick the aggregate reference
	Sense search.Sense

	// Baseline is the weight every member starts with and returns to at
	// every environment change
	Baseline float64

	// Floor is the minimum weight, so no member is starved for good
	Floor float64

	// LearningRate blends the previous weight with the last sub-period's
	// success rate, in (0, 1]; 1 uses the rate alone
	LearningRate float64
}

// Defaults fills zero fields with the default values.
func (c Config) Defaults() Config {
	if c.Baseline <= 0 {
		c.Baseline = DefaultBaseline
	}
	if c.Floor <= 0 {
		c.Floor = DefaultFloor
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		c.LearningRate = DefaultLearningRate
	}
	return c
}

// Portfolio is a Generator that delegates each iteration to one roster
// member, chosen by weighted random draw.
type Portfolio struct {
	cfg     Config
	rng     *rand.Rand
	roster  []search.Generator
	records []*Record
	period  int
	last    int
}

// New creates a portfolio over roster. Each algorithm type may appear once.
func New(roster []search.Generator, rng *rand.Rand, cfg Config) (*Portfolio, error) {
	if len(roster) == 0 {
		return nil, &search.ConfigError{Field: "roster", Reason: "portfolio needs at least one generator", Kind: search.ErrUnsupported}
	}

	cfg = cfg.Defaults()
	p := &Portfolio{cfg: cfg, rng: rng, last: -1}
	seen := make(map[search.AlgorithmType]bool)
	for _, g := range roster {
		t := g.Type()
		if t == search.Portfolio {
			return nil, &search.ConfigError{Field: "roster", Value: string(t), Reason: "portfolios cannot be nested", Kind: search.ErrUnsupported}
		}
		if seen[t] {
			return nil, &search.ConfigError{Field: "roster", Value: string(t), Reason: "duplicate roster member", Kind: search.ErrUnsupported}
		}
		seen[t] = true
		p.roster = append(p.roster, g)
		p.records = append(p.records, &Record{Type: t, Weight: cfg.Baseline})
	}
	return p, nil
}

// Type returns search.Portfolio.
func (p *Portfolio) Type() search.AlgorithmType {
	return search.Portfolio
}

// Initialize seeds every roster member that accepts a seed.
func (p *Portfolio) Initialize(seed *search.State) error {
	for _, g := range p.roster {
		if s, ok := g.(search.Seeder); ok {
			if err := s.Initialize(seed); err != nil {
				return fmt.Errorf("seed %s: %w", g.Type(), err)
			}
		}
	}
	return nil
}

// Generate selects a member and asks it for a candidate. The candidate is
// tagged with the member's type. Usage is counted by Observe, once the
// candidate has been evaluated.
func (p *Portfolio) Generate(budget int) (*search.State, error) {
	i := p.pick()
	p.last = i

	c, err := p.roster[i].Generate(budget)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.roster[i].Type(), err)
	}
	if c == nil {
		return nil, search.ErrEmptyCandidate
	}
	c.Origin = p.roster[i].Type()
	return c, nil
}

// UpdateReference forwards the candidate to the member that produced it.
func (p *Portfolio) UpdateReference(candidate *search.State, iteration int) error {
	i := p.indexOf(candidate.Origin)
	if i < 0 {
		i = p.last
	}
	if i < 0 {
		return fmt.Errorf("portfolio: no member produced candidate from %q", candidate.Origin)
	}
	return p.roster[i].UpdateReference(candidate, iteration)
}

// Observe counts one use of the member that produced the evaluated
// candidate, and one improvement when it beat the best-known state.
func (p *Portfolio) Observe(candidate *search.State, improved bool) {
	i := p.indexOf(candidate.Origin)
	if i < 0 {
		i = p.last
	}
	if i < 0 {
		return
	}
	r := p.records[i]
	r.Usage++
	r.TotalUsage++
	if improved {
		r.Improvements++
		r.TotalImprovements++
	}
}

// Reference returns the best reference across the roster.
func (p *Portfolio) Reference() *search.State {
	var best *search.State
	for _, g := range p.roster {
		r := g.Reference()
		if !r.Evaluated() {
			continue
		}
		if best == nil || p.cfg.Sense.Better(r.Last(), best.Last()) {
			best = r
		}
	}
	return best
}

// ReferenceList concatenates the reference lists of every member.
func (p *Portfolio) ReferenceList() []*search.State {
	var out []*search.State
	for _, g := range p.roster {
		out = append(out, g.ReferenceList()...)
	}
	return out
}

// Reevaluate refreshes the references of every member.
func (p *Portfolio) Reevaluate(ev search.Evaluator) error {
	for _, g := range p.roster {
		if err := g.Reevaluate(ev); err != nil {
			return fmt.Errorf("reevaluate %s: %w", g.Type(), err)
		}
	}
	return nil
}

// Temperature reports the cooling value of the first member that has one.
func (p *Portfolio) Temperature() float64 {
	for _, g := range p.roster {
		if t, ok := g.(search.TemperatureSource); ok {
			return t.Temperature()
		}
	}
	return 0
}

// Members returns the roster in selection order.
func (p *Portfolio) Members() []search.Generator {
	out := make([]search.Generator, len(p.roster))
	copy(out, p.roster)
	return out
}

func (p *Portfolio) indexOf(t search.AlgorithmType) int {
	for i, g := range p.roster {
		if g.Type() == t {
			return i
		}
	}
	return -1
}

// pick draws a member with probability proportional to its weight.
func (p *Portfolio) pick() int {
	var total float64
	for _, r := range p.records {
		total += r.Weight
	}
	x := p.rng.Float64() * total
	for i, r := range p.records {
		x -= r.Weight
		if x < 0 {
			return i
		}
	}
	return len(p.records) - 1
}

func (p *Portfolio) logWeights(msg string) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := make([]any, 0, 2*len(p.records)+2)
	attrs = append(attrs, "period", p.period)
	for _, r := range p.records {
		attrs = append(attrs, string(r.Type), r.Weight)
	}
	slog.Debug(msg, attrs...)
}
