package physics

import (
	"math"

	"github.com/layer-3/hoopgate/core"
)

const (
	DefaultGravity      = 0.25
	DefaultPowerScale   = 1.0
	DefaultScreenWidth  = 1920
	DefaultScreenHeight = 1080

	// MaxVelocity is the launch speed in px/step at full power and unit power scale
	MaxVelocity = 22.0
	// Tolerance is the hit radius around the hoop in pixels
	Tolerance = 55.0
	// MaxSteps bounds the integration
	MaxSteps = 200

	launchOffset = 80.0  // Ball starts this far above the bottom edge
	floorMargin  = 200.0 // Flight ends this far below the bottom edge
)

// Shot is the launch a client reports
type Shot struct {
	Angle float64 // Radians, 0 points right, pi/2 straight up
	Power float64 // 0..1
}

// Screen is the client viewport in pixels
type Screen struct {
	Width  float64
	Height float64
}

func (s Screen) normalized() Screen {
	if s.Width <= 0 {
		s.Width = DefaultScreenWidth
	}
	if s.Height <= 0 {
		s.Height = DefaultScreenHeight
	}
	return s
}

// Point is a sampled ball position
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Target maps the hoop ratio to absolute pixels for the given screen
func Target(h core.Hoop, s Screen) Point {
	s = s.normalized()
	return Point{
		X: s.Width * (0.5 + h.X*0.35),
		Y: s.Height * (0.2 + h.Y*0.4),
	}
}

// Simulate reports whether the shot reaches the hoop under p.
// It is the authoritative check: callers must pass the challenge's hidden physics.
func Simulate(h core.Hoop, shot Shot, s Screen, p core.Physics) bool {
	hit, _ := integrate(h, shot, s, p, nil)
	return hit
}

// integrate steps the ball with explicit Euler, velocity first. When visit is
// non-nil it receives every position. Returns the hit flag and steps taken.
func integrate(h core.Hoop, shot Shot, s Screen, p core.Physics, visit func(Point)) (bool, int) {
	s = s.normalized()
	gravity := p.Gravity
	if gravity == 0 {
		gravity = DefaultGravity
	}
	scale := p.PowerScale
	if scale == 0 {
		scale = DefaultPowerScale
	}

	target := Target(h, s)
	v := shot.Power * MaxVelocity * scale
	vx := v * math.Cos(shot.Angle)
	vy := -v * math.Sin(shot.Angle)
	x, y := s.Width*0.5, s.Height-launchOffset

	for i := 0; i < MaxSteps; i++ {
		vy += gravity
		x += vx
		y += vy
		if visit != nil {
			visit(Point{X: x, Y: y})
		}

		if math.Hypot(x-target.X, y-target.Y) < Tolerance {
			return true, i + 1
		}
		if y > s.Height+floorMargin {
			return false, i + 1
		}
	}
	return false, MaxSteps
}
