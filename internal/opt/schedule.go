package opt

// Schedule is a geometric cooling schedule: every Cool call multiplies the
// temperature by Factor, never going below Min.
type Schedule struct {
	Initial float64
	Factor  float64
	Min     float64

	current float64
}

// NewSchedule creates a schedule starting at initial.
func NewSchedule(initial, factor, min float64) *Schedule {
	return &Schedule{Initial: initial, Factor: factor, Min: min, current: initial}
}

// DefaultSchedule starts at 100 and cools by 0.5% per step.
func DefaultSchedule() *Schedule {
	return NewSchedule(100, 0.995, 1e-3)
}

// Temperature returns the current temperature.
func (s *Schedule) Temperature() float64 {
	return s.current
}

// Cool advances the schedule by one step.
func (s *Schedule) Cool() {
	s.current *= s.Factor
	if s.current < s.Min {
		s.current = s.Min
	}
}

// Reheat restores the initial temperature.
func (s *Schedule) Reheat() {
	s.current = s.Initial
}
