// Package gatetest builds shots and drag traces for tests.
package gatetest

import (
	"math"
	"math/rand/v2"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/physics"
)

// Aim solves for the shot that puts the ball exactly on the hoop after the
// given number of steps under p.
func Aim(h core.Hoop, s physics.Screen, p core.Physics, steps int) physics.Shot {
	target := physics.Target(h, s)
	n := float64(steps)
	x0, y0 := s.Width*0.5, s.Height-80

	// y_n = y0 + n*vy + g*n(n+1)/2 with velocity updated before position
	vx := (target.X - x0) / n
	vy := (target.Y - y0 - p.Gravity*n*(n+1)/2) / n

	return physics.Shot{
		Angle: math.Atan2(-vy, vx),
		Power: math.Hypot(vx, vy) / (physics.MaxVelocity * p.PowerScale),
	}
}

// HumanTrace is a curved drag with jittered timing and position
func HumanTrace(seed uint64, n int) ([]core.TracePoint, float64) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	points := make([]core.TracePoint, 0, n)
	x, y, t := 400.0, 700.0, 0.0
	for i := 0; i < n; i++ {
		points = append(points, core.TracePoint{
			X: x + r.Float64()*4 - 2,
			Y: y + r.Float64()*4 - 2,
			T: t,
		})
		step := 3 + r.Float64()*6
		bend := float64(i) * 0.08
		x -= step * math.Cos(bend)
		y += step * math.Sin(bend)
		t += 8 + math.Round(r.Float64()*16)
	}
	return points, points[len(points)-1].T - points[0].T
}

// LinearTrace is a drag at constant velocity along a straight line
func LinearTrace(n int, dx, dt float64) ([]core.TracePoint, float64) {
	points := make([]core.TracePoint, n)
	for i := range points {
		points[i] = core.TracePoint{X: 400 + float64(i)*dx, Y: 700, T: float64(i) * dt}
	}
	return points, float64(n-1) * dt
}
