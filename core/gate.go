package core

import "time"

// Verdict is the outcome of simulating a submitted shot
type Verdict string

const (
	VerdictHit  Verdict = "HIT"
	VerdictMiss Verdict = "MISS"
)

// GrantStatus tracks an access grant through the two-step gate
type GrantStatus string

const (
	GrantStarted   GrantStatus = "STARTED"
	GrantCompleted GrantStatus = "COMPLETED"
)

// Physics is a gravity/power-scale profile
type Physics struct {
	Gravity    float64 `json:"gravity"`
	PowerScale float64 `json:"power_scale"`
}

// Hoop is the target position as a ratio of the viewport, independent of resolution
type Hoop struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Challenge is a single-use shot puzzle
type Challenge struct {
	ID        string    `json:"id"`
	Nonce     string    `json:"nonce"` // Mixed into the payload codec key
	Hoop      Hoop      `json:"hoop"`
	TargetID  int       `json:"target_id"` // Cosmetic hoop skin picked by the client
	Visual    Physics   `json:"visual"`    // Shown to the client
	Hidden    Physics   `json:"hidden"`    // Authoritative, never leaves the server
	LinkID    string    `json:"link_id"`   // Empty for anonymous challenges
	Consumed  bool      `json:"-"`         // Loaded from the state key
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Public returns the projection of the challenge that may be sent to a client
func (c *Challenge) Public() PublicChallenge {
	return PublicChallenge{
		ID:         c.ID,
		HoopX:      c.Hoop.X,
		HoopY:      c.Hoop.Y,
		TargetID:   c.TargetID,
		Gravity:    c.Visual.Gravity,
		PowerScale: c.Visual.PowerScale,
		Nonce:      c.Nonce,
	}
}

// PublicChallenge is what the game client receives. Field names follow the client wire format.
type PublicChallenge struct {
	ID         string  `json:"cid"`
	HoopX      float64 `json:"hx"`
	HoopY      float64 `json:"hy"`
	TargetID   int     `json:"tid"`
	Gravity    float64 `json:"g"`
	PowerScale float64 `json:"p"`
	Nonce      string  `json:"n"`
}

// AccessGrant represents a browser session progressing through the gate
type AccessGrant struct {
	ID        string      `json:"id"`
	IP        string      `json:"ip"`
	LinkID    string      `json:"link_id"` // Bound at issuance, immutable
	Status    GrantStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// StepOneReceipt proves step one succeeded for an (IP, link) pair
type StepOneReceipt struct {
	IP        string    `json:"ip"`
	LinkID    string    `json:"link_id"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Link is the gated destination. Links are immutable once created.
type Link struct {
	ID        string        `json:"id"`
	TargetURL string        `json:"target_url"`
	Slug      string        `json:"slug"`
	ShortLink string        `json:"short_link"` // Shortened step-two URL
	MinWait   time.Duration `json:"min_wait"`   // Required gap between grant creation and step two
	CreatedAt time.Time     `json:"created_at"`
}

// TracePoint is one pointer sample of a drag, t in milliseconds
type TracePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T float64 `json:"t"`
}

// Attempt is the decoded shot a client claims to have made
type Attempt struct {
	Angle        float64      // Radians
	Power        float64      // 0..1
	DragDuration float64      // Milliseconds
	DragPath     []TracePoint // Nil when absent or malformed
	ScreenWidth  float64
	ScreenHeight float64
	Version      string
}
