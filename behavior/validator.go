// Package behavior separates human pointer drags from scripted ones.
//
// The checks are heuristics over velocity, jerk and turning angle of the drag
// trace. They filter naive bots; they do not prove anything.
package behavior

import (
	"math"

	"github.com/layer-3/hoopgate/core"
)

// Reason explains a rejection. ReasonNone means the trace looks human.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonMissingTrace     Reason = "missing_trace"
	ReasonTooShort         Reason = "too_short"
	ReasonConstantVelocity Reason = "constant_velocity"
	ReasonLowJerk          Reason = "low_jerk"
	ReasonStraightLine     Reason = "straight_line"
)

// Thresholds are tuned empirically and are expected to be recalibrated
type Thresholds struct {
	MinDurationMs      float64 `yaml:"min_duration_ms"`
	MinPoints          int     `yaml:"min_points"`
	MinVelocitySamples int     `yaml:"min_velocity_samples"` // Velocity checks need more samples than this
	MaxVelocityVar     float64 `yaml:"max_velocity_var"`     // Below this with a moving pointer is mechanical
	MinVelocityMean    float64 `yaml:"min_velocity_mean"`
	MinJerkMean        float64 `yaml:"min_jerk_mean"`
	MinAngleSamples    int     `yaml:"min_angle_samples"` // Angle check needs more samples than this
	MinAngleVar        float64 `yaml:"min_angle_var"`
}

// DefaultThresholds returns the calibration the game client was tuned against
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDurationMs:      150,
		MinPoints:          8,
		MinVelocitySamples: 5,
		MaxVelocityVar:     0.000005,
		MinVelocityMean:    0.1,
		MinJerkMean:        0.0004,
		MinAngleSamples:    10,
		MinAngleVar:        0.0000001,
	}
}

// Validator classifies drag traces
type Validator struct {
	t Thresholds
}

// NewValidator creates a validator with the given thresholds
func NewValidator(t Thresholds) *Validator {
	return &Validator{t: t}
}

// IsHuman reports whether the trace passes every check
func (v *Validator) IsHuman(trace []core.TracePoint, durationMs float64) bool {
	return v.Classify(trace, durationMs) == ReasonNone
}

// Classify returns the first check the trace fails, or ReasonNone
func (v *Validator) Classify(trace []core.TracePoint, durationMs float64) Reason {
	if trace == nil {
		return ReasonMissingTrace
	}
	if durationMs < v.t.MinDurationMs || len(trace) < v.t.MinPoints {
		return ReasonTooShort
	}

	n := len(trace) - 2
	velocities := make([]float64, 0, n)
	jerks := make([]float64, 0, n)
	angles := make([]float64, 0, n)

	for i := 2; i < len(trace); i++ {
		p1, p2, p3 := trace[i-2], trace[i-1], trace[i]
		dt1 := nonZero(p2.T - p1.T)
		dt2 := nonZero(p3.T - p2.T)

		d1x, d1y := p2.X-p1.X, p2.Y-p1.Y
		d2x, d2y := p3.X-p2.X, p3.Y-p2.Y
		m1, m2 := math.Hypot(d1x, d1y), math.Hypot(d2x, d2y)

		v1, v2 := m1/dt1, m2/dt2
		velocities = append(velocities, v1)
		jerks = append(jerks, math.Abs(v2-v1)/dt2)

		if m1 > 0 && m2 > 0 {
			cos := (d1x*d2x + d1y*d2y) / (m1 * m2)
			angles = append(angles, math.Acos(math.Max(-1, math.Min(1, cos))))
		}
	}

	if len(velocities) > v.t.MinVelocitySamples {
		vMean, vVar := meanVar(velocities)
		if vVar < v.t.MaxVelocityVar && vMean > v.t.MinVelocityMean {
			return ReasonConstantVelocity
		}
		if jMean, _ := meanVar(jerks); jMean < v.t.MinJerkMean {
			return ReasonLowJerk
		}
	}

	if len(angles) > v.t.MinAngleSamples {
		if _, aVar := meanVar(angles); aVar < v.t.MinAngleVar {
			return ReasonStraightLine
		}
	}

	return ReasonNone
}

// nonZero treats coincident timestamps as one millisecond apart
func nonZero(dt float64) float64 {
	if dt == 0 {
		return 1
	}
	return dt
}

// meanVar returns the mean and population variance
func meanVar(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, sq / float64(len(xs))
}
