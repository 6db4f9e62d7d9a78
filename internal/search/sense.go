package search

import (
	"encoding/json"
	"fmt"
)

// Sense is the optimization direction of a problem.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	switch s {
	case Maximize:
		return "maximize"
	default:
		return "minimize"
	}
}

// Better reports whether a is strictly better than b.
func (s Sense) Better(a, b float64) bool {
	if s == Maximize {
		return a > b
	}
	return a < b
}

// AtLeastAsGood reports whether a is better than or equal to b.
func (s Sense) AtLeastAsGood(a, b float64) bool {
	if s == Maximize {
		return a >= b
	}
	return a <= b
}

// Gain returns the sense-adjusted difference between candidate and current.
// A positive gain means the candidate improves on current.
func (s Sense) Gain(candidate, current float64) float64 {
	if s == Maximize {
		return candidate - current
	}
	return current - candidate
}

// ParseSense converts "minimize"/"maximize" (or "min"/"max") to a Sense.
func ParseSense(v string) (Sense, error) {
	switch v {
	case "min", "minimize":
		return Minimize, nil
	case "max", "maximize":
		return Maximize, nil
	}
	return Minimize, fmt.Errorf("unknown sense: %q", v)
}

func (s Sense) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Sense) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseSense(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
