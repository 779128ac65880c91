// Package ratelimit throttles calls to external completion and speech
// services so a burst of turns does not trip provider quotas.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	// Burst is the number of calls allowed back to back. Zero means 1.
	Burst int
}

// Limiter is a token bucket shared by every session that talks to one
// provider. A nil *Limiter never blocks.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter returns nil when RequestsPerMinute is not positive.
func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	every := time.Minute / time.Duration(cfg.RequestsPerMinute)
	return &Limiter{l: rate.NewLimiter(rate.Every(every), burst)}
}

// Wait blocks until a call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.l.Wait(ctx)
}

// Allow reports whether a call may happen now without waiting.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.l.Allow()
}
