package portfolio

import (
	"math"

	"github.com/cwbudde/metaopt/internal/search"
)

// PeriodStat is the usage profile of one member over one sub-period.
type PeriodStat struct {
	Period       int     `json:"period"`
	Usage        int     `json:"usage"`
	Improvements int     `json:"improvements"`
	Weight       float64 `json:"weight"`
}

// Record is the adaptive bookkeeping kept for one roster member.
type Record struct {
	Type              search.AlgorithmType `json:"type"`
	Weight            float64              `json:"weight"`
	Usage             int                  `json:"usage"`
	Improvements      int                  `json:"improvements"`
	TotalUsage        int                  `json:"totalUsage"`
	TotalImprovements int                  `json:"totalImprovements"`
	History           []PeriodStat         `json:"history,omitempty"`
}

// RollPeriod closes the current sub-period: each member's weight is moved
// toward its success rate, the counters are appended to its history and
// then reset.
//
// A member used n times with k improvements gets
//
//	w = max(Floor, (1-a)*w + a*2*Baseline*k/n)
//
// so a 50% success rate holds a member at Baseline. Unused members keep
// their weight.
func (p *Portfolio) RollPeriod() {
	a := p.cfg.LearningRate
	for _, r := range p.records {
		if r.Usage > 0 {
			rate := float64(r.Improvements) / float64(r.Usage)
			r.Weight = math.Max(p.cfg.Floor, (1-a)*r.Weight+a*2*p.cfg.Baseline*rate)
		}
		r.History = append(r.History, PeriodStat{
			Period:       p.period,
			Usage:        r.Usage,
			Improvements: r.Improvements,
			Weight:       r.Weight,
		})
		r.Usage = 0
		r.Improvements = 0
	}
	p.logWeights("Portfolio sub-period closed")
	p.period++
}

// ResetWeights returns every member to the baseline weight.
func (p *Portfolio) ResetWeights() {
	for _, r := range p.records {
		r.Weight = p.cfg.Baseline
	}
	p.logWeights("Portfolio weights reset")
}

// Weights returns the current weight of each member in roster order.
func (p *Portfolio) Weights() []float64 {
	out := make([]float64, len(p.records))
	for i, r := range p.records {
		out[i] = r.Weight
	}
	return out
}

// Records returns a deep copy of the bookkeeping of every member.
func (p *Portfolio) Records() []Record {
	out := make([]Record, len(p.records))
	for i, r := range p.records {
		out[i] = *r
		out[i].History = append([]PeriodStat(nil), r.History...)
	}
	return out
}

// Period returns the ordinal of the open sub-period.
func (p *Portfolio) Period() int {
	return p.period
}
