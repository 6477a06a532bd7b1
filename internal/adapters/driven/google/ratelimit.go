package google

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ServiceType identifies a Google API service for rate limiting purposes.
type ServiceType string

const (
	ServiceGmail ServiceType = "gmail"
	ServiceDrive ServiceType = "drive"
)

// RateLimitConfig holds rate limiting configuration for a service.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
	// MaxRetries bounds retries after a 429 response.
	MaxRetries int
	// Backoff applies when a 429 response carries no Retry-After (default: 60s).
	Backoff time.Duration
}

// DefaultRateLimits stay well below Google's per-user quotas.
var DefaultRateLimits = map[ServiceType]RateLimitConfig{
	ServiceGmail: {RequestsPerSecond: 2.0, BurstSize: 5, MaxRetries: 3},
	ServiceDrive: {RequestsPerSecond: 8.0, BurstSize: 10, MaxRetries: 3},
}

// RateLimiter is a token bucket shared by all calls to one service, with a
// backoff window set by 429 responses.
type RateLimiter struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	retryAt    time.Time
	maxRetries int
	backoff    time.Duration
}

// NewRateLimiter creates a new rate limiter for the specified service.
func NewRateLimiter(service ServiceType) *RateLimiter {
	cfg, ok := DefaultRateLimits[service]
	if !ok {
		cfg = RateLimitConfig{RequestsPerSecond: 5.0, BurstSize: 10, MaxRetries: 3}
	}
	return NewRateLimiterWithConfig(cfg)
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 60 * time.Second
	}
	return &RateLimiter{
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError sets a backoff period. Zero seconds uses the default.
func (r *RateLimiter) RecordRateLimitError(retryAfterSeconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.backoff
	if retryAfterSeconds > 0 {
		d = time.Duration(retryAfterSeconds) * time.Second
	}
	r.retryAt = time.Now().Add(d)
}

// Do waits for a token and runs call, retrying after 429 responses. The
// returned error is passed through WrapError.
func (r *RateLimiter) Do(ctx context.Context, call func() error) error {
	for attempt := 0; ; attempt++ {
		if err := r.Wait(ctx); err != nil {
			return err
		}
		err := call()
		if err == nil {
			return nil
		}
		if !IsRateLimited(err) || attempt >= r.maxRetries {
			return WrapError(err)
		}
		r.RecordRateLimitError(RetryAfter(err))
	}
}
