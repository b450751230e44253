// Package ratelimit tracks the football-data API request quota and gates
// upstream requests. It reads the X-RateLimit-Remaining (per minute) and
// X-RateLimit-Requests-Remaining (per day) headers so a fleet of instances
// stops before the account is suspended.
package ratelimit

import (
	"time"
)

// Response headers carrying the remaining quota.
const (
	HeaderMinuteRemaining = "X-RateLimit-Remaining"
	HeaderDailyRemaining  = "X-RateLimit-Requests-Remaining"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyMinuteRemaining = "scoreboard:rate_limit:minute_remaining"
	RedisKeyDailyRemaining  = "scoreboard:rate_limit:daily_remaining"
	RedisKeyLastUpdate      = "scoreboard:rate_limit:last_update"
)

// Quota windows. The stored counters expire with their window, so a
// missing key means the window has rolled over.
const (
	MinuteWindow = time.Minute
	DailyWindow  = 24 * time.Hour
)

// Thresholds on the per-minute quota.
const (
	// MinuteThresholdCritical blocks all requests when the remaining quota falls below this value.
	MinuteThresholdCritical = 1

	// MinuteThresholdWarning applies throttling when the remaining quota falls below this value.
	MinuteThresholdWarning = 3

	// MinuteThresholdHealthy indicates normal operation.
	MinuteThresholdHealthy = 10
)

// Unknown marks a quota the upstream has not reported yet.
const Unknown = -1

// RateLimitState represents the current upstream quota.
// This state is shared across all client instances via Redis.
type RateLimitState struct {
	// MinuteRemaining is the number of requests left in the current minute.
	MinuteRemaining int `json:"minute_remaining"`

	// DailyRemaining is the number of requests left today.
	DailyRemaining int `json:"daily_remaining"`

	// ResetAt is when the per-minute window rolls over.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is the timestamp when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when the per-minute quota is at or above MinuteThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// DefaultState is the state assumed before any quota header was seen.
func DefaultState(now time.Time) *RateLimitState {
	return &RateLimitState{
		MinuteRemaining: Unknown,
		DailyRemaining:  Unknown,
		ResetAt:         now,
		LastUpdate:      now,
		IsHealthy:       true,
	}
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	if s.DailyRemaining == 0 {
		return true
	}
	return s.MinuteRemaining != Unknown && s.MinuteRemaining < MinuteThresholdCritical
}

// NeedsThrottling returns true if requests should be throttled due to warning threshold.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.MinuteRemaining != Unknown &&
		s.MinuteRemaining < MinuteThresholdWarning &&
		!s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the per-minute window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on the current quota.
func (s *RateLimitState) UpdateHealth() {
	if s.NeedsCriticalBlock() {
		s.IsHealthy = false
		return
	}
	s.IsHealthy = s.MinuteRemaining == Unknown || s.MinuteRemaining >= MinuteThresholdHealthy
}
