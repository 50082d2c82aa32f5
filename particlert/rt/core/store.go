package core

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrInvalidCount  = errors.New("particle count must not be negative")
	ErrInvalidParams = errors.New("invalid simulation parameters")
)

type SimParams struct {
	ParticleSize float32    // quad edge in pixels
	Gravity      mgl32.Vec2 // pixels/s^2, +Y is down
	Damping      float32    // speed kept after a bounce, [0,1)
	InitialSpeed float32    // per-axis velocity bound at spawn
	ColorMin     float32
	ColorMax     float32
}

func DefaultSimParams() SimParams {
	return SimParams{
		ParticleSize: 3.0,
		Gravity:      mgl32.Vec2{0, 9.8},
		Damping:      0.7,
		InitialSpeed: 50.0,
		ColorMin:     0.3,
		ColorMax:     1.0,
	}
}

func (p *SimParams) Radius() float32 { return p.ParticleSize / 2 }

func (p *SimParams) Validate() error {
	switch {
	case p.ParticleSize <= 0:
		return fmt.Errorf("%w: particle size %g", ErrInvalidParams, p.ParticleSize)
	case p.Damping < 0 || p.Damping >= 1:
		return fmt.Errorf("%w: damping %g outside [0,1)", ErrInvalidParams, p.Damping)
	case p.InitialSpeed < 0:
		return fmt.Errorf("%w: initial speed %g", ErrInvalidParams, p.InitialSpeed)
	case p.ColorMin >= p.ColorMax:
		return fmt.Errorf("%w: empty color range [%g,%g)", ErrInvalidParams, p.ColorMin, p.ColorMax)
	}
	return nil
}

// Store owns every particle of the simulation. The slice is allocated once and never grows.
type Store struct {
	particles []Particle
	params    SimParams
}

// NewStore spawns count particles uniformly over [0,width)x[0,height).
// A nil rng seeds a private source from the clock.
func NewStore(count int, width, height float32, params SimParams, rng *rand.Rand) (*Store, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Store{
		particles: make([]Particle, count),
		params:    params,
	}
	v := params.InitialSpeed
	for i := range s.particles {
		s.particles[i] = Particle{
			Position: mgl32.Vec2{randRange(rng, 0, width), randRange(rng, 0, height)},
			Velocity: mgl32.Vec2{randRange(rng, -v, v), randRange(rng, -v, v)},
			Color: [4]float32{
				randRange(rng, params.ColorMin, params.ColorMax),
				randRange(rng, params.ColorMin, params.ColorMax),
				randRange(rng, params.ColorMin, params.ColorMax),
				1.0,
			},
		}
	}
	return s, nil
}

// NewStoreFrom wraps existing particles without copying them.
func NewStoreFrom(particles []Particle, params SimParams) (*Store, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Store{particles: particles, params: params}, nil
}

// randRange samples [lo,hi). float32 rounding can land exactly on hi, which is pulled back.
func randRange(rng *rand.Rand, lo, hi float32) float32 {
	if hi <= lo {
		return lo
	}
	v := lo + rng.Float32()*(hi-lo)
	if v >= hi {
		v = math.Nextafter32(hi, lo)
	}
	return v
}

func (s *Store) Len() int { return len(s.particles) }

func (s *Store) At(i int) Particle { return s.particles[i] }

func (s *Store) Params() SimParams { return s.params }

// Integrate advances every particle by dt seconds inside a width x height box.
// dt <= 0 leaves the state untouched.
func (s *Store) Integrate(dt, width, height float32) {
	if dt <= 0 {
		return
	}
	for i := range s.particles {
		s.particles[i].Step(dt, width, height, &s.params)
	}
}

// Project writes one instance per particle, in store order, into dst and returns it.
// dst is reused when its capacity allows, so steady-state frames do not allocate.
func (s *Store) Project(dst []ParticleInstance) []ParticleInstance {
	if cap(dst) < len(s.particles) {
		dst = make([]ParticleInstance, len(s.particles))
	}
	dst = dst[:len(s.particles)]
	for i := range s.particles {
		dst[i] = s.particles[i].Instance()
	}
	return dst
}
