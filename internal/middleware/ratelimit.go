package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// actorCookieName is the opaque per-browser actor identity cookie; see
// internal/httpapi for where it is set.
const actorCookieName = "bolt_actor_id"

// RateLimiter implements per-actor token-bucket rate limiting. Requests
// without an actor cookie fall back to being keyed by client IP, so an
// unauthenticated caller can't bypass the limit entirely.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond steady
// state with burst extra requests.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
	go rl.cleanupRoutine(5 * time.Minute)
	return rl
}

func keyFor(c *gin.Context) string {
	if actorID, err := c.Cookie(actorCookieName); err == nil && actorID != "" {
		return "actor:" + actorID
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()
	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[key] = limiter
	return limiter
}

// cleanupRoutine resets the limiter map once it grows past a bound, to cap
// memory use from a long tail of one-shot actors/IPs.
func (rl *RateLimiter) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		if len(rl.limiters) > 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		rl.mu.Unlock()
	}
}

// Middleware rate limits requests keyed by actor id (or IP as a fallback).
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getLimiter(keyFor(c)).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"code":  "TOO_MANY_REQUESTS",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// StrictMiddleware returns a tighter, independently-tracked limiter for
// sensitive operations (e.g. session create), keyed the same way.
func (rl *RateLimiter) StrictMiddleware(requestsPerMinute int) gin.HandlerFunc {
	strict := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    requestsPerMinute,
	}
	return func(c *gin.Context) {
		if !strict.getLimiter(keyFor(c)).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded for this operation",
				"code":  "TOO_MANY_REQUESTS",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
