package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/stockflow-editor/model"
)

// body is one simulated node.
type body struct {
	id   model.NodeID
	typ  model.NodeType
	pos  r2.Vec
	vel  r2.Vec
	fix  *r2.Vec
	r    float64
	edge int // number of links touching the body
}

// spring is one link between two bodies.
type spring struct {
	source, target int
	bias           float64
}

// simulation is a velocity-Verlet style force layout in the manner of
// d3-force: forces adjust velocities scaled by alpha, velocities decay,
// and alpha cools geometrically toward zero.
type simulation struct {
	cfg     Config
	bodies  []*body
	springs []spring
	alpha   float64
	rng     lcg
}

func newSimulation(cfg Config) *simulation {
	return &simulation{cfg: cfg, rng: lcg{s: 1}}
}

// reset replaces bodies and springs and restarts at full energy.
func (s *simulation) reset(bodies []*body, springs []spring) {
	s.bodies = bodies
	for i := range springs {
		src, tgt := bodies[springs[i].source], bodies[springs[i].target]
		src.edge++
		tgt.edge++
	}
	for i := range springs {
		src, tgt := bodies[springs[i].source], bodies[springs[i].target]
		springs[i].bias = float64(src.edge) / float64(src.edge+tgt.edge)
	}
	s.springs = springs
	s.alpha = 1
}

func (s *simulation) settled() bool { return s.alpha < s.cfg.AlphaMin }

// step advances one tick.
func (s *simulation) step() {
	s.alpha += (0 - s.alpha) * s.cfg.AlphaDecay

	s.collide()
	s.repel()
	s.center()
	s.pull()

	retain := 1 - s.cfg.VelocityDecay
	for _, b := range s.bodies {
		if b.fix != nil {
			b.pos = *b.fix
			b.vel = r2.Vec{}
			continue
		}
		b.vel = r2.Scale(retain, b.vel)
		b.pos = r2.Add(b.pos, b.vel)
	}
}

// collide separates bodies closer than twice the collision radius.
func (s *simulation) collide() {
	r := 2 * s.cfg.CollideRadius
	for i, a := range s.bodies {
		ai := r2.Add(a.pos, a.vel)
		for _, b := range s.bodies[i+1:] {
			d := r2.Sub(ai, r2.Add(b.pos, b.vel))
			l := r2.Norm2(d)
			if l >= r*r {
				continue
			}
			if d.X == 0 {
				d.X = s.rng.jiggle()
				l += d.X * d.X
			}
			if d.Y == 0 {
				d.Y = s.rng.jiggle()
				l += d.Y * d.Y
			}
			l = math.Sqrt(l)
			d = r2.Scale((r-l)/l*s.cfg.CollideStrength, d)
			// equal radii split the push evenly
			a.vel = r2.Add(a.vel, r2.Scale(0.5, d))
			b.vel = r2.Sub(b.vel, r2.Scale(0.5, d))
		}
	}
}

// repel pushes every pair apart with a force falling off with the square
// of the distance.
func (s *simulation) repel() {
	const distanceMin2 = 1
	for i, a := range s.bodies {
		for j, b := range s.bodies {
			if i == j {
				continue
			}
			d := r2.Sub(b.pos, a.pos)
			if d.X == 0 {
				d.X = s.rng.jiggle()
			}
			if d.Y == 0 {
				d.Y = s.rng.jiggle()
			}
			l := r2.Norm2(d)
			if l < distanceMin2 {
				l = math.Sqrt(distanceMin2 * l)
			}
			w := s.cfg.RepelStrength * s.alpha / l
			a.vel = r2.Sub(a.vel, r2.Scale(w, d))
		}
	}
}

// center translates every body so their mean sits at the viewport centre.
// Pinned bodies snap back during integration.
func (s *simulation) center() {
	if len(s.bodies) == 0 {
		return
	}
	var sum r2.Vec
	for _, b := range s.bodies {
		sum = r2.Add(sum, b.pos)
	}
	mid := r2.Vec{X: s.cfg.Width / 2, Y: s.cfg.Height / 2}
	shift := r2.Sub(r2.Scale(1/float64(len(s.bodies)), sum), mid)
	for _, b := range s.bodies {
		b.pos = r2.Sub(b.pos, shift)
	}
}

// pull draws linked bodies toward the rest distance.
func (s *simulation) pull() {
	for _, sp := range s.springs {
		src, tgt := s.bodies[sp.source], s.bodies[sp.target]
		d := r2.Sub(r2.Add(tgt.pos, tgt.vel), r2.Add(src.pos, src.vel))
		if d.X == 0 {
			d.X = s.rng.jiggle()
		}
		if d.Y == 0 {
			d.Y = s.rng.jiggle()
		}
		l := r2.Norm(d)
		d = r2.Scale((l-s.cfg.LinkDistance)/l*s.alpha*s.cfg.LinkStrength, d)
		tgt.vel = r2.Sub(tgt.vel, r2.Scale(sp.bias, d))
		src.vel = r2.Add(src.vel, r2.Scale(1-sp.bias, d))
	}
}

// lcg is the linear congruential generator used to break ties between
// coincident bodies. It keeps layouts reproducible.
type lcg struct{ s uint32 }

func (g *lcg) next() float64 {
	g.s = 1664525*g.s + 1013904223
	return float64(g.s) / 4294967296
}

func (g *lcg) jiggle() float64 { return (g.next() - 0.5) * 1e-6 }
