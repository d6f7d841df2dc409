package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps one token bucket per key in process memory.
// Used when Redis is not configured.
type LocalLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*entry
	limit       rate.Limit
	burst       int
	maxRequests int
	idleTTL     time.Duration
	now         func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter refills maxRequests tokens per window with a burst of maxRequests
func NewLocalLimiter(maxRequests int, window time.Duration) *LocalLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &LocalLimiter{
		limiters:    make(map[string]*entry),
		limit:       rate.Limit(float64(maxRequests) / window.Seconds()),
		burst:       maxRequests,
		maxRequests: maxRequests,
		idleTTL:     10 * window,
		now:         time.Now,
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now

	allowed := e.limiter.AllowN(now, 1)
	remaining := int(e.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	// time until one token is available again
	var reset time.Time
	if remaining > 0 {
		reset = now
	} else {
		reset = now.Add(time.Duration(float64(time.Second) / float64(l.limit)))
	}

	return allowed, remaining, reset, nil
}

func (l *LocalLimiter) MaxRequests() int {
	return l.maxRequests
}

func (l *LocalLimiter) evict(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.limiters, k)
		}
	}
}
