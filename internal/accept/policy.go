// Package accept implements the acceptance decisions that tell a generator
// whether a freshly evaluated candidate replaces its current reference.
package accept

import (
	"fmt"
	"math/rand/v2"

	"github.com/cwbudde/metaopt/internal/pareto"
	"github.com/cwbudde/metaopt/internal/search"
)

// Policy decides whether candidate replaces current.
type Policy interface {
	Accept(current, candidate *search.State) (bool, error)
}

// Kind identifies an acceptance policy.
type Kind string

const (
	KindBest        Kind = "best"
	KindThreshold   Kind = "threshold"
	KindTemperature Kind = "temperature"
	KindPareto      Kind = "pareto"
	KindMulticase   Kind = "multicase"
)

// Kinds lists every acceptance policy in a stable order.
var Kinds = []Kind{KindBest, KindThreshold, KindTemperature, KindPareto, KindMulticase}

// Deps carries the collaborators a policy may need.
type Deps struct {
	Sense       search.Sense
	Rand        *rand.Rand
	Front       *pareto.Front
	Temperature search.TemperatureSource
	Threshold   float64
}

type constructor func(Deps) (Policy, error)

var registry = map[Kind]constructor{
	KindBest: func(d Deps) (Policy, error) {
		return NewBest(d.Sense), nil
	},
	KindThreshold: func(d Deps) (Policy, error) {
		return NewThreshold(d.Sense, d.Threshold), nil
	},
	KindTemperature: func(d Deps) (Policy, error) {
		if d.Rand == nil {
			return nil, missing(KindTemperature, "random source")
		}
		if d.Temperature == nil {
			return nil, missing(KindTemperature, "temperature source")
		}
		return NewTemperature(d.Sense, d.Temperature, d.Rand), nil
	},
	KindPareto: func(d Deps) (Policy, error) {
		if d.Front == nil {
			return nil, missing(KindPareto, "pareto front")
		}
		return NewPareto(d.Front), nil
	},
	KindMulticase: func(d Deps) (Policy, error) {
		if d.Front == nil {
			return nil, missing(KindMulticase, "pareto front")
		}
		if d.Rand == nil {
			return nil, missing(KindMulticase, "random source")
		}
		if d.Temperature == nil {
			return nil, missing(KindMulticase, "temperature source")
		}
		return NewMulticase(d.Front, d.Temperature, d.Rand), nil
	},
}

// New builds the policy registered for kind.
func New(kind Kind, deps Deps) (Policy, error) {
	ctor, ok := registry[kind]
	if !ok {
		return nil, &search.ConfigError{
			Field:  "acceptance",
			Value:  string(kind),
			Reason: "unknown acceptance policy",
			Kind:   search.ErrUnknownPolicy,
		}
	}
	return ctor(deps)
}

// ParseKind validates a policy name from configuration.
func ParseKind(v string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == v {
			return k, nil
		}
	}
	return "", &search.ConfigError{
		Field:  "acceptance",
		Value:  v,
		Reason: "unknown acceptance policy",
		Kind:   search.ErrUnknownPolicy,
	}
}

// NeedsFront reports whether the policy requires a tracked Pareto front.
func (k Kind) NeedsFront() bool {
	return k == KindPareto || k == KindMulticase
}

func missing(kind Kind, what string) error {
	return &search.ConfigError{
		Field:  "acceptance",
		Value:  string(kind),
		Reason: fmt.Sprintf("requires a %s", what),
		Kind:   search.ErrUnsupported,
	}
}

// FixedTemperature is a constant TemperatureSource.
type FixedTemperature float64

func (t FixedTemperature) Temperature() float64 {
	return float64(t)
}

// compare validates the two states for a single-objective decision.
func compare(current, candidate *search.State) error {
	if err := search.RequireEvaluated(current, candidate); err != nil {
		return err
	}
	return pareto.Check(current, candidate)
}
