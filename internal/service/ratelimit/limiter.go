package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter paces calls to upstream market data endpoints. Each key gets its
// own token bucket sharing the configured rate and burst.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// New creates a per-key limiter allowing rps requests per second with the
// given burst capacity.
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[key] = lim
	return lim
}

// Allow reports whether one request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	return l.limiterFor(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.limiterFor(key).Wait(ctx)
}
