package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-passport/internal/core/port"
)

// RateLimitRule configures a sliding-window limit for one endpoint.
type RateLimitRule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// RateLimiter enforces per-client sliding-window limits on flow-start
// endpoints. Attempts are scoped by rule name and client IP.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock allows injection of a custom clock for testing.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// Limit returns a Gin middleware enforcing the given rule. A store failure
// lets the request through; the limiter degrades open rather than blocking
// all traffic.
func (rl *RateLimiter) Limit(rule RateLimitRule) gin.HandlerFunc {
	if rl.store == nil || rule.Limit <= 0 || rule.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if rule.Name == "" {
		rule.Name = "default"
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("%s:%s", rule.Name, ip)
		now := rl.now()

		if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
			rl.logger.Warn("rate limit trim failed", zap.String("rule", rule.Name), zap.Error(err))
			c.Next()
			return
		}

		count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
		if err != nil {
			rl.logger.Warn("rate limit count failed", zap.String("rule", rule.Name), zap.Error(err))
			c.Next()
			return
		}

		if count >= rule.Limit {
			reset := now.Add(rule.Window)
			if oldest, ok, err := rl.store.OldestAttempt(ctx, key, rule.Window, now); err == nil && ok {
				reset = oldest.Add(rule.Window)
			}
			retryAfter := int(math.Ceil(reset.Sub(now).Seconds()))
			if retryAfter < 0 {
				retryAfter = 0
			}

			headers := c.Writer.Header()
			headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
			headers.Set("X-RateLimit-Remaining", "0")
			headers.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			headers.Set("Retry-After", strconv.Itoa(retryAfter))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": retryAfter,
			})
			return
		}

		if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
			rl.logger.Warn("rate limit record failed", zap.String("rule", rule.Name), zap.Error(err))
		}

		remaining := rule.Limit - count - 1
		if remaining < 0 {
			remaining = 0
		}
		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}
