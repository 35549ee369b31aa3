// Package physics derives the hidden physics of a challenge and simulates shots.
//
// The gate shows the client one physics profile (visual) and checks the shot
// against another (hidden) that is derived from the challenge id and a server
// secret, so the exact shot cannot be precomputed from what the client sees.
package physics

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"

	"github.com/layer-3/hoopgate/core"
)

// Bias is a pair of independent values in [0,1) derived from a challenge id
type Bias struct {
	Gravity float64
	Power   float64
}

// Derive computes the bias for a challenge. It is a pure function of its inputs.
func Derive(challengeID string, secret []byte) Bias {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(challengeID))
	sum := mac.Sum(nil)

	return Bias{
		Gravity: float64(binary.BigEndian.Uint16(sum[0:2])) / 65536,
		Power:   float64(binary.BigEndian.Uint16(sum[2:4])) / 65536,
	}
}

// Hidden shifts the visual physics by the bias: gravity by 1.5%..2.5% of a unit,
// power scale by 2%..4%, each signed by which half of [0,1) the bias falls in.
func Hidden(visual core.Physics, b Bias) core.Physics {
	return core.Physics{
		Gravity:    visual.Gravity + sign(b.Gravity)*(0.015+b.Gravity*0.01),
		PowerScale: visual.PowerScale + sign(b.Power)*(0.02+b.Power*0.02),
	}
}

// RandomVisual draws the displayed physics for a new challenge
func RandomVisual(r *rand.Rand) core.Physics {
	return core.Physics{
		Gravity:    0.24 + r.Float64()*0.02,
		PowerScale: 0.98 + r.Float64()*0.04,
	}
}

func sign(v float64) float64 {
	if v < 0.5 {
		return -1
	}
	return 1
}
