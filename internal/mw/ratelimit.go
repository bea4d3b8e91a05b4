package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// requesterLimiter hands out one token bucket per caller. Callers are keyed
// by forwarded user id when present, falling back to client IP for requests
// that fail before identity extraction; household members behind one NAT
// must not share a bucket.
type requesterLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newRequesterLimiter(limit rate.Limit, burst int) *requesterLimiter {
	return &requesterLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

func (l *requesterLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = bucket
	}
	return bucket
}

// RateLimiter is a middleware limiting interactive API calls per caller.
// The telemetry ingest route is exempt at router level; device fleets
// report on their own cadence and must not starve behind the interactive
// limit.
func RateLimiter(limit rate.Limit, burst int) gin.HandlerFunc {
	limiter := newRequesterLimiter(limit, burst)
	return func(c *gin.Context) {
		key := c.GetHeader("X-User-ID")
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.get(key).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
