// Package server throttles inbound frames per connection so that one
// client cannot flood its channel.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newFrameLimiter allows burst frames at once, refilled at burst frames per
// interval.
func newFrameLimiter(cfg RateLimitConfig) *rate.Limiter {
	burst := max(cfg.Burst, 1)
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}
	return rate.NewLimiter(rate.Limit(float64(burst)/interval.Seconds()), burst)
}
