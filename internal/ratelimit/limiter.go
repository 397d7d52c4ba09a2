// Package ratelimit paces API calls with a token bucket so that parallel
// uploads and refetches stay under the backend's request throttle.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/mrd/ca-drive/internal/constants"
	"github.com/mrd/ca-drive/internal/logging"
)

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
type RateLimiter struct {
	tokens       float64
	maxTokens    float64
	refillRate   float64
	lastRefill   time.Time
	lastWarnTime time.Time
	logger       *logging.Logger
	now          func() time.Time
	mu           sync.Mutex
}

// NewRateLimiter creates a limiter with a full bucket.
func NewRateLimiter(tokensPerSecond, burstSize float64, logger *logging.Logger) *RateLimiter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RateLimiter{
		tokens:     burstSize,
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
		logger:     logger,
		now:        time.Now,
	}
}

// NewAPIRateLimiter creates the limiter shared by all calls of one API client.
func NewAPIRateLimiter(logger *logging.Logger) *RateLimiter {
	return NewRateLimiter(constants.APIRatePerSec, constants.APIBurstCapacity, logger)
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.tryAcquire() {
		return nil
	}

	start := rl.now()
	if wait := rl.timeUntilNextToken(); wait > 2*time.Second {
		rl.mu.Lock()
		// Only warn every 10 seconds
		if rl.now().Sub(rl.lastWarnTime) > 10*time.Second {
			rl.logger.Warn().Dur("wait", wait).Msg("Rate limited: waiting for API capacity")
			rl.lastWarnTime = rl.now()
		}
		rl.mu.Unlock()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rl.tryAcquire() {
			if waited := rl.now().Sub(start); waited > 5*time.Second {
				rl.logger.Debug().Dur("waited", waited).Msg("Rate limit wait completed")
			}
			return nil
		}

		t := time.NewTimer(rl.timeUntilNextToken())
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// tryAcquire takes one token without blocking.
func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	if rl.tokens >= 1.0 {
		rl.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) refillLocked() {
	now := rl.now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// timeUntilNextToken is how long until at least one token is available.
func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	needed := 1.0 - rl.tokens
	if needed <= 0 {
		return 0
	}
	return time.Duration(needed / rl.refillRate * float64(time.Second))
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}
