// Package ratelimit tracks the listings API request quota and gates requests.
// It reads the X-RateLimit-Remaining and X-RateLimit-Reset response headers
// and shares the resulting state through Redis, so every client process
// talking to the same API backs off together.
package ratelimit

import (
	"time"
)

// Redis keys for quota state storage.
const (
	RedisKeyRemaining      = "listings:rate_limit:remaining"
	RedisKeyResetTimestamp = "listings:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "listings:rate_limit:last_update"
)

// Header names read by UpdateFromHeaders.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Thresholds for gating decisions.
const (
	// ThresholdCritical blocks requests until the window resets when the
	// remaining quota falls below it.
	ThresholdCritical = 5

	// ThresholdWarning throttles requests below this value.
	ThresholdWarning = 20

	// ThresholdHealthy marks normal operation at or above this value.
	ThresholdHealthy = 50
)

// DefaultRemaining is assumed until the API has reported a quota.
const DefaultRemaining = 100

// QuotaState is the last reported API quota.
type QuotaState struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last reported.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests must wait for the reset.
func (s *QuotaState) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *QuotaState) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *QuotaState) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
