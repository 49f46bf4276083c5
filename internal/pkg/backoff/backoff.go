// Package backoff provides an explicit retry/backoff policy object shared by
// the dispatcher and the verification code delivery path. Policies are plain
// data so retry behavior is configurable and testable, never an ad hoc sleep.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy describes a bounded exponential backoff schedule.
// MaxAttempts counts the initial try: MaxAttempts=3 means at most
// two retries after the first failure.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default is the dispatch retry policy: 3 attempts, 500ms base, 10s cap.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// Delay returns the jittered backoff duration before the given retry
// attempt (attempt 1 is the first retry). Uses full jitter:
// random(0, min(MaxDelay, BaseDelay * 2^(attempt-1))).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(p.MaxDelay) {
		exp = float64(p.MaxDelay)
	}
	jittered := time.Duration(rand.Float64() * exp)
	if jittered < 50*time.Millisecond {
		jittered = 50 * time.Millisecond
	}
	return jittered
}

// Sleep blocks for the attempt's delay or until the context is done.
// Returns the context error if cancelled.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
