package opt

import (
	"math/rand/v2"
	"slices"

	"github.com/cwbudde/metaopt/internal/search"
)

const defaultPopulationSize = 20

// population is the shared core of steady-state population generators.
// While the population is still filling, Generate returns random samples;
// afterwards every accepted candidate replaces the worst member.
type population struct {
	tag     search.AlgorithmType
	inst    search.Instance
	rng     *rand.Rand
	size    int
	members []*search.State
}

func newPopulation(tag search.AlgorithmType, env Env) population {
	size := env.PopulationSize
	if size <= 1 {
		size = defaultPopulationSize
	}
	return population{tag: tag, inst: env.Instance, rng: env.Rand, size: size}
}

func (p *population) Initialize(seed *search.State) error {
	if err := search.RequireEvaluated(seed); err != nil {
		return err
	}
	p.members = []*search.State{seed}
	return nil
}

func (p *population) filling() bool {
	return len(p.members) < p.size
}

func (p *population) UpdateReference(candidate *search.State, _ int) error {
	if err := search.RequireEvaluated(candidate); err != nil {
		return err
	}
	if slices.ContainsFunc(p.members, candidate.Equal) {
		return nil
	}
	if p.filling() {
		p.members = append(p.members, candidate)
		return nil
	}

	worst := p.worst()
	if p.inst.Sense().AtLeastAsGood(candidate.Primary(), p.members[worst].Primary()) {
		p.members[worst] = candidate
	}
	return nil
}

func (p *population) Reference() *search.State {
	if len(p.members) == 0 {
		return nil
	}
	best := p.members[0]
	for _, m := range p.members[1:] {
		if p.inst.Sense().Better(m.Primary(), best.Primary()) {
			best = m
		}
	}
	return best
}

func (p *population) ReferenceList() []*search.State {
	return slices.Clone(p.members)
}

func (p *population) Type() search.AlgorithmType {
	return p.tag
}

func (p *population) Reevaluate(ev search.Evaluator) error {
	members, err := search.ReevaluateAll(p.members, ev)
	if err != nil {
		return err
	}
	p.members = members
	return nil
}

func (p *population) worst() int {
	worst := 0
	for i, m := range p.members {
		if p.inst.Sense().Better(p.members[worst].Primary(), m.Primary()) {
			worst = i
		}
	}
	return worst
}

// sorted returns the members ordered best first.
func (p *population) sorted() []*search.State {
	out := slices.Clone(p.members)
	sense := p.inst.Sense()
	slices.SortStableFunc(out, func(a, b *search.State) int {
		switch {
		case sense.Better(a.Primary(), b.Primary()):
			return -1
		case sense.Better(b.Primary(), a.Primary()):
			return 1
		}
		return 0
	})
	return out
}

// Genetic is a steady-state genetic algorithm: binary tournament selection,
// uniform crossover, and mutation through the codification's neighborhood.
type Genetic struct {
	population
	tournament int
}

func NewGenetic(env Env) (search.Generator, error) {
	return &Genetic{population: newPopulation(search.Genetic, env), tournament: 2}, nil
}

func (g *Genetic) Generate(budget int) (*search.State, error) {
	if g.filling() {
		return search.NewState(g.inst.RandomEncoding(g.rng)), nil
	}

	a := g.selectParent()
	b := g.selectParent()
	child := make(search.Encoding, len(a.Encoding))
	for i := range child {
		if g.rng.IntN(2) == 0 {
			child[i] = a.Encoding[i]
		} else {
			child[i] = b.Encoding[i]
		}
	}
	return search.NewState(walk(g.inst, child, budget, g.rng)), nil
}

func (g *Genetic) selectParent() *search.State {
	winner := g.members[g.rng.IntN(len(g.members))]
	for i := 1; i < g.tournament; i++ {
		c := g.members[g.rng.IntN(len(g.members))]
		if g.inst.Sense().Better(c.Primary(), winner.Primary()) {
			winner = c
		}
	}
	return winner
}
