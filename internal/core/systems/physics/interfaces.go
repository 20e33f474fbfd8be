package physics

// Lightweight physics contracts. The process core only reads body positions
// each frame and nudges them, so any rigid-body engine can sit behind these
// interfaces.

// Body is a single rigid body owned by a World.
type Body interface {
	Position() Vec3
	SetPosition(Vec3)
	Velocity() Vec3
	SetVelocity(Vec3)
	AngularVelocity() Vec3
	SetAngularVelocity(Vec3)
}

// World advances every body it owns.
type World interface {
	// Step advances the world by dt seconds using fixed sub-steps of size
	// fixed, performing at most maxSubSteps of them.
	Step(fixed, dt float64, maxSubSteps int)

	Gravity() Vec3
	SetGravity(Vec3)

	// BodyCount reports how many bodies are simulated.
	BodyCount() int
}
