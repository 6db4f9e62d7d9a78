package strategy

import "slices"

// divisor is the length of one offline performance period.
func (s *Strategy) divisor() int {
	if s.cfg.ChangeInterval > 0 {
		return s.cfg.ChangeInterval
	}
	return s.cfg.MaxIterations
}

// recordOffline stores the mean best value of the open period. Every
// ordinal is written at most once.
func (s *Strategy) recordOffline(length int) {
	if s.period >= len(s.offline) || s.written[s.period] {
		return
	}
	s.offline[s.period] = s.periodSum / float64(length)
	s.written[s.period] = true
}

// Offline returns the offline performance log, one entry per change period.
func (s *Strategy) Offline() []float64 {
	return slices.Clone(s.offline)
}
