// Package codec implements the keyed XOR obfuscation that carries a shot from
// the game client to the gate. It is a deterrent against hand-crafted
// submissions and replay across challenges, not encryption.
package codec

import (
	"encoding/hex"
	"encoding/json"

	"github.com/layer-3/hoopgate/core"
)

const (
	// Version is the protocol tag every payload must carry
	Version = "10.0-RED"

	salt       = "TheVoidSalt"
	defaultKey = "void"
)

// wire is the plaintext JSON produced by the game client
type wire struct {
	Angle        float64         `json:"a"`
	Power        float64         `json:"p"`
	DragDuration float64         `json:"d"`
	DragPath     json.RawMessage `json:"dp,omitempty"`
	ScreenWidth  float64         `json:"sw"`
	ScreenHeight float64         `json:"sh"`
	Version      string          `json:"v"`
}

// keyMaterial joins the context key, the fixed salt and the challenge nonce
func keyMaterial(key, nonce string) []byte {
	if key == "" {
		key = defaultKey
	}
	return []byte(key + salt + nonce)
}

// transform is its own inverse
func transform(data, k []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ byte((i*13)&0xFF) ^ k[i%len(k)]
	}
	return out
}

// Decode recovers an attempt from a hex blob. It reports false when the blob
// is empty or malformed, the plaintext is not JSON, or the version tag does
// not match.
func Decode(blob, key, nonce string) (core.Attempt, bool) {
	if blob == "" {
		return core.Attempt{}, false
	}
	raw, err := hex.DecodeString(blob)
	if err != nil {
		return core.Attempt{}, false
	}

	var w wire
	if err := json.Unmarshal(transform(raw, keyMaterial(key, nonce)), &w); err != nil {
		return core.Attempt{}, false
	}
	if w.Version != Version {
		return core.Attempt{}, false
	}

	attempt := core.Attempt{
		Angle:        w.Angle,
		Power:        w.Power,
		DragDuration: w.DragDuration,
		ScreenWidth:  w.ScreenWidth,
		ScreenHeight: w.ScreenHeight,
		Version:      w.Version,
	}
	// A trace of the wrong shape is a behavior problem, not a handshake problem
	var path []core.TracePoint
	if len(w.DragPath) > 0 && json.Unmarshal(w.DragPath, &path) == nil {
		attempt.DragPath = path
	}
	return attempt, true
}

// Encode is the client side of Decode. An empty Version is filled with the
// current protocol tag.
func Encode(a core.Attempt, key, nonce string) (string, error) {
	if a.Version == "" {
		a.Version = Version
	}
	w := wire{
		Angle:        a.Angle,
		Power:        a.Power,
		DragDuration: a.DragDuration,
		ScreenWidth:  a.ScreenWidth,
		ScreenHeight: a.ScreenHeight,
		Version:      a.Version,
	}
	if a.DragPath != nil {
		path, err := json.Marshal(a.DragPath)
		if err != nil {
			return "", err
		}
		w.DragPath = path
	}

	plain, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(transform(plain, keyMaterial(key, nonce))), nil
}
