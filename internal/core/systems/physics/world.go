package physics

import "math"

var (
	_ World = (*SphereWorld)(nil)
	_ Body  = (*Sphere)(nil)
)

// Sphere is a dynamic sphere body.
type Sphere struct {
	Radius         float64
	Mass           float64
	LinearDamping  float64
	AngularDamping float64

	position Vec3
	velocity Vec3
	angular  Vec3
}

// NewSphere creates a sphere resting at position.
func NewSphere(position Vec3, radius, mass float64) *Sphere {
	return &Sphere{
		Radius:   radius,
		Mass:     mass,
		position: position,
	}
}

func (s *Sphere) Position() Vec3            { return s.position }
func (s *Sphere) SetPosition(p Vec3)        { s.position = p }
func (s *Sphere) Velocity() Vec3            { return s.velocity }
func (s *Sphere) SetVelocity(v Vec3)        { s.velocity = v }
func (s *Sphere) AngularVelocity() Vec3     { return s.angular }
func (s *Sphere) SetAngularVelocity(v Vec3) { s.angular = v }

// SphereWorld is a minimal headless world: spheres under uniform gravity
// resting on an infinite ground plane. It stands in for a full engine when the
// simulation runs without a renderer attached.
type SphereWorld struct {
	gravity     Vec3
	groundY     float64
	restitution float64
	accumulator float64
	bodies      []*Sphere
}

// NewSphereWorld creates a world with the given gravity and a ground plane at y=0.
func NewSphereWorld(gravity Vec3) *SphereWorld {
	return &SphereWorld{gravity: gravity}
}

// AddSphere registers a body with the world.
func (w *SphereWorld) AddSphere(s *Sphere) {
	w.bodies = append(w.bodies, s)
}

func (w *SphereWorld) Gravity() Vec3     { return w.gravity }
func (w *SphereWorld) SetGravity(g Vec3) { w.gravity = g }
func (w *SphereWorld) BodyCount() int    { return len(w.bodies) }

// Step consumes dt in fixed increments, carrying the remainder to the next call.
func (w *SphereWorld) Step(fixed, dt float64, maxSubSteps int) {
	if fixed <= 0 || dt <= 0 {
		return
	}
	if maxSubSteps < 1 {
		maxSubSteps = 1
	}

	w.accumulator += dt
	steps := 0
	for w.accumulator >= fixed && steps < maxSubSteps {
		w.integrate(fixed)
		w.accumulator -= fixed
		steps++
	}
	w.accumulator = math.Mod(w.accumulator, fixed)
}

func (w *SphereWorld) integrate(h float64) {
	for _, b := range w.bodies {
		if b.Mass <= 0 {
			continue
		}
		b.velocity = b.velocity.Add(w.gravity.Scale(h))
		b.velocity = b.velocity.Scale(math.Pow(1-b.LinearDamping, h))
		b.angular = b.angular.Scale(math.Pow(1-b.AngularDamping, h))
		b.position = b.position.Add(b.velocity.Scale(h))

		// ground contact
		if floor := w.groundY + b.Radius; b.position.Y < floor {
			b.position.Y = floor
			if b.velocity.Y < 0 {
				b.velocity.Y = -b.velocity.Y * w.restitution
			}
		}
	}
}
