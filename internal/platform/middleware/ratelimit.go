package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultLoginRateLimitConfig returns the default settings for the login
// endpoint. Login is deliberately throttled far below general API traffic:
// credential verification is the only endpoint worth brute-forcing.
func DefaultLoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		BurstSize:         10,
	}
}

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (b *tokenBucket) retryAfter() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refillRate <= 0 {
		return 1
	}
	return int((1-b.tokens)/b.refillRate) + 1
}

// clientLimiter keeps one token bucket per client IP, discarding buckets that
// have been idle long enough to be fully refilled.
type clientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	cfg     RateLimitConfig
}

type clientBucket struct {
	bucket   *tokenBucket
	lastSeen time.Time
}

func newClientLimiter(cfg RateLimitConfig) *clientLimiter {
	return &clientLimiter{
		buckets: make(map[string]*clientBucket),
		cfg:     cfg,
	}
}

func (l *clientLimiter) get(ip string) *tokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.buckets) > 10000 {
		// Bound memory under address-rotation abuse: drop idle buckets.
		for k, cb := range l.buckets {
			if now.Sub(cb.lastSeen) > time.Minute {
				delete(l.buckets, k)
			}
		}
	}

	cb, ok := l.buckets[ip]
	if !ok {
		cb = &clientBucket{bucket: newTokenBucket(l.cfg.RequestsPerSecond, l.cfg.BurstSize)}
		l.buckets[ip] = cb
	}
	cb.lastSeen = now
	return cb.bucket
}

// RateLimitPerClient returns middleware that limits requests per client IP
// using a token bucket. Intended for the login endpoint; the response to a
// throttled request carries a Retry-After header.
func RateLimitPerClient(cfg RateLimitConfig) echo.MiddlewareFunc {
	limiter := newClientLimiter(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bucket := limiter.get(c.RealIP())
			if !bucket.allow() {
				c.Response().Header().Set("Retry-After", strconv.Itoa(bucket.retryAfter()))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
