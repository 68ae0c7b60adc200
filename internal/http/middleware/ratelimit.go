// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with one bucket
// per identity (user or client IP), idle-bucket eviction, per-route costs so
// an import drains more tokens than a query, and exempt routes for health checks.
//
// The limiter is process-local; it is edge abuse control, not authorization.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket, e.g.
// "user:<id>" or "ip:<addr>".
type keyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the user identity stored under "userID" and falls
// back to the client IP. Keys are prefixed so the two namespaces never collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a per-key token-bucket rate limiter. It is safe for
// concurrent use; route costs and exemptions must be configured before the
// handler serves traffic.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64

	costs  map[string]int
	exempt map[string]struct{}
}

// NewRateLimiter constructs a RateLimiter refilling rps tokens per second up
// to burst (values <= 0 are coerced to 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		costs:    make(map[string]int),
		exempt:   make(map[string]struct{}),
	}
}

// Cost charges n tokens for requests to route (the registered Gin path, e.g.
// "/api/v1/imports"). n is capped at the burst so the route stays reachable.
func (rl *RateLimiter) Cost(route string, n int) *RateLimiter {
	if n < 1 {
		n = 1
	}
	if n > rl.burst {
		n = rl.burst
	}
	rl.costs[route] = n
	return rl
}

// Exempt skips limiting for the given routes.
func (rl *RateLimiter) Exempt(routes ...string) *RateLimiter {
	for _, r := range routes {
		rl.exempt[r] = struct{}{}
	}
	return rl
}

// sweepEvery is how many lookups pass between idle-bucket sweeps.
const sweepEvery = 5000

// getVisitor returns (and touches) the limiter for key, creating it if absent.
// Every sweepEvery lookups idle buckets are evicted first, so a stale bucket is
// dropped even when it is the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= sweepEvery {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

func (rl *RateLimiter) cost(route string) int {
	if n, ok := rl.costs[route]; ok {
		return n
	}
	return 1
}

// Handler returns the Gin middleware. A request over the limit is answered
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: <seconds until the bucket holds the route's cost>
//	{"request_id": "<uuid>", "code": "rate_limited", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := rl.exempt[route]; ok {
			c.Next()
			return
		}

		now := time.Now()
		res := rl.getVisitor(rl.keyFn(c)).ReserveN(now, rl.cost(route))
		wait := res.DelayFrom(now)
		if res.OK() && wait == 0 {
			c.Next()
			return
		}
		res.CancelAt(now)

		httpThrottled.WithLabelValues(routeLabel(c)).Inc()
		c.Header("Retry-After", strconv.Itoa(retryAfter(wait)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter rounds wait up to whole seconds, at least one.
func retryAfter(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}
