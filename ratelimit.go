package apiclient

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Rate            float64                      `yaml:"rate"`             // requests per second
	Burst           int                          `yaml:"burst"`            // max burst (default: 1)
	KeyFunc         func(r *http.Request) string `yaml:"-"`                // default: request host
	CleanupInterval time.Duration                `yaml:"cleanup_interval"` // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration                `yaml:"max_idle"`         // remove limiters idle longer than this (default: 5m)
}

// RateLimit returns middleware that throttles outgoing requests per key.
// A request over the limit waits for a token rather than failing; it fails
// only when its context ends first.
func RateLimit(cfg RateLimitConfig) Middleware {
	keyOf := cfg.KeyFunc
	if keyOf == nil {
		keyOf = func(r *http.Request) string { return r.URL.Host }
	}
	pool := &limiterPool{
		limit:    rate.Limit(cfg.Rate),
		burst:    max(cfg.Burst, 1),
		interval: durationOr(cfg.CleanupInterval, time.Minute),
		maxIdle:  durationOr(cfg.MaxIdle, 5*time.Minute),
		entries:  make(map[string]*limiterEntry),
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			key := keyOf(r)
			if err := pool.get(key, time.Now()).Wait(r.Context()); err != nil {
				return nil, fmt.Errorf("rate limit %s: %w", key, err)
			}
			return next.RoundTrip(r)
		})
	}
}

// limiterPool holds one token bucket per key and prunes idle ones lazily.
type limiterPool struct {
	limit    rate.Limit
	burst    int
	interval time.Duration
	maxIdle  time.Duration

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastPrune time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (p *limiterPool) get(key string, now time.Time) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.lastPrune) >= p.interval {
		for k, e := range p.entries {
			if now.Sub(e.lastSeen) > p.maxIdle {
				delete(p.entries, k)
			}
		}
		p.lastPrune = now
	}

	e, ok := p.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// durationOr returns d, or def when d is not positive.
func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
