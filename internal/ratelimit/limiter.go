// Package ratelimit implements Discord API rate limiting based on response headers.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Bucket represents a rate limit bucket for a specific Discord API route
type Bucket struct {
	Remaining int           // Requests remaining in current window
	Limit     int           // Total requests allowed per window
	ResetAt   time.Time     // When the rate limit resets
	limiter   *rate.Limiter // Token bucket rate limiter
	mu        sync.Mutex
}

// RateLimiter manages rate limits for Discord API routes
type RateLimiter struct {
	buckets map[string]*Bucket // route -> bucket
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*Bucket),
		logger:  logger,
	}
}

// getBucket retrieves or creates a bucket for a route
func (rl *RateLimiter) getBucket(route string) *Bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[route]; exists {
		return bucket
	}

	// Default rate limit: 5 requests per second
	// Per-route limits will be updated from response headers
	bucket := &Bucket{
		Remaining: 5,
		Limit:     5,
		ResetAt:   time.Now().Add(1 * time.Second),
		limiter:   rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}

	rl.buckets[route] = bucket
	return bucket
}

// Wait blocks until a request on route is allowed or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, route string) error {
	bucket := rl.getBucket(route)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	if bucket.Remaining <= 0 && time.Now().Before(bucket.ResetAt) {
		waitDuration := time.Until(bucket.ResetAt)
		rl.logger.Warn("rate limit exhausted, waiting",
			zap.String("route", route),
			zap.Duration("wait_duration", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter wait cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if err := bucket.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	return nil
}

// UpdateFromHeaders updates a route bucket from Discord API response headers
func (rl *RateLimiter) UpdateFromHeaders(route string, headers http.Header) {
	bucket := rl.getBucket(route)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	if remaining := headers.Get("X-RateLimit-Remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			bucket.Remaining = val
		}
	}

	if limit := headers.Get("X-RateLimit-Limit"); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			bucket.Limit = val
		}
	}

	// Prefer the relative reset, then the absolute epoch reset (seconds, fractional)
	if resetAfter := headers.Get("X-RateLimit-Reset-After"); resetAfter != "" {
		if val, err := strconv.ParseFloat(resetAfter, 64); err == nil {
			bucket.ResetAt = time.Now().Add(secondsToDuration(val))
		}
	} else if reset := headers.Get("X-RateLimit-Reset"); reset != "" {
		if val, err := strconv.ParseFloat(reset, 64); err == nil {
			sec, frac := math.Modf(val)
			bucket.ResetAt = time.Unix(int64(sec), int64(frac*float64(time.Second)))
		}
	}

	if bucket.Limit > 0 {
		resetDuration := time.Until(bucket.ResetAt)
		if resetDuration > 0 {
			tokensPerSecond := float64(bucket.Limit) / resetDuration.Seconds()
			bucket.limiter = rate.NewLimiter(rate.Limit(tokensPerSecond), bucket.Limit)
		}
	}

	rl.logger.Debug("updated rate limit from headers",
		zap.String("route", route),
		zap.Int("remaining", bucket.Remaining),
		zap.Int("limit", bucket.Limit),
		zap.Time("reset_at", bucket.ResetAt),
	)
}

// HandleRateLimitResponse records a 429 response and returns how long to back off
func (rl *RateLimiter) HandleRateLimitResponse(route string, headers http.Header) time.Duration {
	bucket := rl.getBucket(route)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	var retryAfter time.Duration
	if retry := headers.Get("Retry-After"); retry != "" {
		if seconds, err := strconv.ParseFloat(retry, 64); err == nil {
			retryAfter = secondsToDuration(seconds)
		}
	}

	if retryAfter <= 0 {
		if resetAfter := headers.Get("X-RateLimit-Reset-After"); resetAfter != "" {
			if seconds, err := strconv.ParseFloat(resetAfter, 64); err == nil {
				retryAfter = secondsToDuration(seconds)
			}
		}
	}

	if retryAfter <= 0 {
		retryAfter = 1 * time.Second
	}

	bucket.Remaining = 0
	bucket.ResetAt = time.Now().Add(retryAfter)

	rl.logger.Warn("rate limited by Discord API",
		zap.String("route", route),
		zap.Duration("retry_after", retryAfter),
		zap.Bool("global", headers.Get("X-RateLimit-Global") == "true"),
	)

	return retryAfter
}

// GetStatus returns the current rate limit status for a route
func (rl *RateLimiter) GetStatus(route string) (remaining int, limit int, resetAt time.Time) {
	bucket := rl.getBucket(route)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	return bucket.Remaining, bucket.Limit, bucket.ResetAt
}

// Reset clears all rate limit buckets (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.buckets = make(map[string]*Bucket)
	rl.logger.Info("rate limiter reset")
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
