// Package ratelimit paces outbound requests to the remote source. A token
// bucket caps the steady request rate, and a cooldown window opened by
// 429/503 responses carrying Retry-After pauses every caller until it ends.
package ratelimit

import (
	"time"
)

// Defaults for request pacing.
const (
	// DefaultRate is the steady number of requests per second allowed.
	DefaultRate = 20.0

	// DefaultBurst is the number of requests that may be issued back to back.
	DefaultBurst = 10

	// MaxCooldown bounds the pause taken for a single Retry-After header.
	MaxCooldown = 60 * time.Second
)

// State is the cooldown state shared by all callers of a Limiter.
type State struct {
	// ResetAt is when the current cooldown ends. Zero when no cooldown is active.
	ResetAt time.Time

	// Cooldowns counts how many times the remote source asked us to back off.
	Cooldowns int

	// LastUpdate is when the state last changed.
	LastUpdate time.Time
}

// IsCoolingDown reports whether callers must wait before the next request.
func (s State) IsCoolingDown() bool {
	return !s.ResetAt.IsZero() && time.Now().Before(s.ResetAt)
}

// TimeUntilReset returns the duration until the cooldown ends.
// Returns 0 if no cooldown is active.
func (s State) TimeUntilReset() time.Duration {
	if s.ResetAt.IsZero() {
		return 0
	}
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}
