package physics

import "github.com/layer-3/hoopgate/core"

// Path is a cosmetic trajectory for the game client to draw
type Path struct {
	Points []Point `json:"points"`
	Hit    bool    `json:"hit"`
}

// Preview runs the same integration as Simulate and records the flight.
// It is advisory only: pass the visual physics, and never use the result to
// decide a verdict.
func Preview(h core.Hoop, shot Shot, s Screen, visual core.Physics) Path {
	points := make([]Point, 0, 64)
	hit, _ := integrate(h, shot, s, visual, func(p Point) {
		points = append(points, p)
	})
	return Path{Points: points, Hit: hit}
}
