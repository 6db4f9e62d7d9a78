package opt

import (
	"math/rand/v2"

	"github.com/cwbudde/metaopt/internal/accept"
	"github.com/cwbudde/metaopt/internal/search"
)

// trajectory is the shared core of single-reference generators.
type trajectory struct {
	tag    search.AlgorithmType
	inst   search.Instance
	rng    *rand.Rand
	policy accept.Policy
	ref    *search.State
}

func (t *trajectory) Initialize(seed *search.State) error {
	if err := search.RequireEvaluated(seed); err != nil {
		return err
	}
	t.ref = seed
	return nil
}

// Generate applies the neighborhood operator budget times to the reference.
func (t *trajectory) Generate(budget int) (*search.State, error) {
	if t.ref == nil {
		return search.NewState(t.inst.RandomEncoding(t.rng)), nil
	}
	return search.NewState(walk(t.inst, t.ref.Encoding, budget, t.rng)), nil
}

func (t *trajectory) UpdateReference(candidate *search.State, _ int) error {
	if t.ref == nil {
		t.ref = candidate
		return nil
	}
	ok, err := t.policy.Accept(t.ref, candidate)
	if err != nil {
		return err
	}
	if ok {
		t.ref = candidate
	}
	return nil
}

func (t *trajectory) Reference() *search.State {
	return t.ref
}

func (t *trajectory) ReferenceList() []*search.State {
	if t.ref == nil {
		return nil
	}
	return []*search.State{t.ref}
}

func (t *trajectory) Type() search.AlgorithmType {
	return t.tag
}

func (t *trajectory) Reevaluate(ev search.Evaluator) error {
	if t.ref == nil {
		return nil
	}
	ref, err := ev(t.ref)
	if err != nil {
		return err
	}
	t.ref = ref
	return nil
}

// walk chains budget neighbor moves starting from enc.
func walk(c search.Codification, enc search.Encoding, budget int, rng *rand.Rand) search.Encoding {
	budget = max(budget, 1)
	for i := 0; i < budget; i++ {
		enc = c.Neighbor(enc, rng)
	}
	return enc
}

// HillClimbing moves to a neighbor whenever the acceptance policy allows it.
type HillClimbing struct {
	trajectory
}

// NewHillClimbing builds a hill climber. Its native policy is best-only
// (Pareto-based for tracked multi-objective runs).
func NewHillClimbing(env Env) (search.Generator, error) {
	p, err := policy(env, nativeKind(env, accept.KindBest, accept.KindPareto), nil)
	if err != nil {
		return nil, err
	}
	return &HillClimbing{trajectory{
		tag:    search.HillClimbing,
		inst:   env.Instance,
		rng:    env.Rand,
		policy: p,
	}}, nil
}

// Annealing is simulated annealing over the shared cooling schedule.
type Annealing struct {
	trajectory
	schedule *Schedule
}

// NewAnnealing builds a simulated annealing generator. Its native policy is
// the temperature criterion (multicase for tracked multi-objective runs).
func NewAnnealing(env Env) (search.Generator, error) {
	if env.Schedule == nil {
		env.Schedule = DefaultSchedule()
	}
	p, err := policy(env, nativeKind(env, accept.KindTemperature, accept.KindMulticase), env.Schedule)
	if err != nil {
		return nil, err
	}
	return &Annealing{
		trajectory: trajectory{
			tag:    search.SimulatedAnnealing,
			inst:   env.Instance,
			rng:    env.Rand,
			policy: p,
		},
		schedule: env.Schedule,
	}, nil
}

func (a *Annealing) UpdateReference(candidate *search.State, iteration int) error {
	if err := a.trajectory.UpdateReference(candidate, iteration); err != nil {
		return err
	}
	a.schedule.Cool()
	return nil
}

// Reevaluate refreshes the reference and reheats the schedule.
func (a *Annealing) Reevaluate(ev search.Evaluator) error {
	if err := a.trajectory.Reevaluate(ev); err != nil {
		return err
	}
	a.schedule.Reheat()
	return nil
}

// Temperature reports the current cooling value.
func (a *Annealing) Temperature() float64 {
	return a.schedule.Temperature()
}

// RandomSearch samples the space uniformly and keeps the best sample.
type RandomSearch struct {
	trajectory
}

// NewRandomSearch builds a random sampler. It always keeps the best sample,
// whatever acceptance policy the run selects.
func NewRandomSearch(env Env) (search.Generator, error) {
	return &RandomSearch{trajectory{
		tag:    search.Random,
		inst:   env.Instance,
		rng:    env.Rand,
		policy: accept.NewBest(env.Instance.Sense()),
	}}, nil
}

func (r *RandomSearch) Generate(int) (*search.State, error) {
	return search.NewState(r.inst.RandomEncoding(r.rng)), nil
}
