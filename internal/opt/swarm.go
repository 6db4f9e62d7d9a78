package opt

import (
	"slices"

	"github.com/cwbudde/metaopt/internal/search"
)

const (
	inertia   = 0.72
	cognitive = 1.49
	social    = 1.49

	// maxVelocityFraction caps velocity to a share of each coordinate range
	maxVelocityFraction = 0.2
)

type particle struct {
	pos  search.Encoding
	vel  []float64
	best *search.State
}

// Swarm is particle swarm optimization where each Generate moves one
// particle, in round-robin order.
type Swarm struct {
	population
	lower, upper []float64

	particles []*particle
	global    *search.State
	next      int

	// pending is the particle moved by the last Generate, -1 for a new one
	pending    int
	pendingPos search.Encoding
	pendingVel []float64
}

func NewSwarm(env Env) (search.Generator, error) {
	b, ok := env.Instance.(search.Bounded)
	if !ok {
		return nil, unsupported(search.ParticleSwarm, "requires a bounded real-vector codification")
	}
	lower, upper := b.Bounds()
	return &Swarm{
		population: newPopulation(search.ParticleSwarm, env),
		lower:      lower,
		upper:      upper,
		pending:    -1,
	}, nil
}

func (s *Swarm) Initialize(seed *search.State) error {
	if err := search.RequireEvaluated(seed); err != nil {
		return err
	}
	s.particles = []*particle{{pos: seed.Encoding, vel: make([]float64, len(seed.Encoding)), best: seed}}
	s.global = seed
	return nil
}

func (s *Swarm) Generate(int) (*search.State, error) {
	if len(s.particles) < s.size {
		s.pending = -1
		s.pendingPos = s.inst.RandomEncoding(s.rng)
		s.pendingVel = make([]float64, len(s.pendingPos))
		return search.NewState(s.pendingPos), nil
	}

	i := s.next
	s.next = (s.next + 1) % len(s.particles)
	p := s.particles[i]

	pos := slices.Clone(p.pos)
	vel := make([]float64, len(pos))
	for d := range pos {
		limit := maxVelocityFraction * (s.upper[d] - s.lower[d])
		v := inertia*p.vel[d] +
			cognitive*s.rng.Float64()*(p.best.Encoding[d]-pos[d]) +
			social*s.rng.Float64()*(s.global.Encoding[d]-pos[d])
		vel[d] = min(max(v, -limit), limit)
		pos[d] += vel[d]
	}
	search.Clamp(pos, s.lower, s.upper)

	s.pending = i
	s.pendingPos = pos
	s.pendingVel = vel
	return search.NewState(pos), nil
}

func (s *Swarm) UpdateReference(candidate *search.State, _ int) error {
	if err := search.RequireEvaluated(candidate); err != nil {
		return err
	}

	if slices.Equal(candidate.Encoding, s.pendingPos) {
		if s.pending < 0 {
			s.particles = append(s.particles, &particle{pos: candidate.Encoding, vel: s.pendingVel, best: candidate})
		} else {
			p := s.particles[s.pending]
			p.pos = candidate.Encoding
			p.vel = s.pendingVel
			if s.better(candidate, p.best) {
				p.best = candidate
			}
		}
		s.pendingPos = nil
	}

	if s.global == nil || s.better(candidate, s.global) {
		s.global = candidate
	}
	return nil
}

func (s *Swarm) Reference() *search.State {
	return s.global
}

// ReferenceList returns the personal best of every particle.
func (s *Swarm) ReferenceList() []*search.State {
	out := make([]*search.State, len(s.particles))
	for i, p := range s.particles {
		out[i] = p.best
	}
	return out
}

func (s *Swarm) Reevaluate(ev search.Evaluator) error {
	s.global = nil
	for _, p := range s.particles {
		best, err := ev(p.best)
		if err != nil {
			return err
		}
		p.best = best
		if s.global == nil || s.better(best, s.global) {
			s.global = best
		}
	}
	return nil
}

func (s *Swarm) better(a, b *search.State) bool {
	return s.inst.Sense().Better(a.Primary(), b.Primary())
}
