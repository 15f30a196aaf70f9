package collide

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Mover is the query surface a controller needs. World implements it.
type Mover interface {
	ResolveMovement(current, velocity mgl64.Vec3, radius, height float64) MovementResult
	ResolveGround(feetPos mgl64.Vec3, currentY float64) (float64, bool)
}

// CharacterController is a minimal first-person body: horizontal moves go
// through the resolver, vertical position follows the ground snap or
// gravity when there is no ground within reach.
type CharacterController struct {
	// Position is the feet position.
	Position mgl64.Vec3
	Height   float64
	Radius   float64

	// Gravity is the vertical acceleration, negative for down.
	Gravity      float64
	MaxFallSpeed float64

	VerticalSpeed float64
	Grounded      bool
}

func NewCharacterController(feet mgl64.Vec3) *CharacterController {
	return &CharacterController{
		Position:     feet,
		Height:       1.8,
		Radius:       0.4,
		Gravity:      -9.81,
		MaxFallSpeed: 50,
	}
}

// Jump starts an upward move if the controller stands on ground.
func (c *CharacterController) Jump(speed float64) bool {
	if !c.Grounded {
		return false
	}
	c.VerticalSpeed = speed
	c.Grounded = false
	return true
}

// Move advances one step of dt seconds with a horizontal wish velocity in
// units per second. The Y component of wish is ignored.
func (c *CharacterController) Move(m Mover, wish mgl64.Vec3, dt float64) MovementResult {
	step := mgl64.Vec3{wish.X() * dt, 0, wish.Z() * dt}
	res := m.ResolveMovement(c.Position, step, c.Radius, c.Height)
	c.Position = res.Position

	if c.VerticalSpeed <= 0 {
		if y, ok := m.ResolveGround(c.Position, c.Position.Y()); ok {
			c.Position[1] = y
			c.VerticalSpeed = 0
			c.Grounded = true
			return res
		}
	}

	c.Grounded = false
	c.VerticalSpeed += c.Gravity * dt
	if c.VerticalSpeed < -c.MaxFallSpeed {
		c.VerticalSpeed = -c.MaxFallSpeed
	}
	c.Position[1] += c.VerticalSpeed * dt
	return res
}
