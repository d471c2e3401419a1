package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRateMax    = 60
	DefaultRateWindow = time.Minute

	// idleTTL is how long an address keeps its bucket after its last request
	idleTTL = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client address. Addresses on the
// allowlist are never limited.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	allowlist map[string]bool
	clock     Clock
}

// NewRateLimiter allows maxRequests per window per address
func NewRateLimiter(maxRequests int, window time.Duration, allowlist []string, clock Clock) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = DefaultRateMax
	}
	if window <= 0 {
		window = DefaultRateWindow
	}

	allowed := make(map[string]bool, len(allowlist))
	for _, ip := range allowlist {
		if ip != "" {
			allowed[ip] = true
		}
	}

	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(float64(maxRequests) / window.Seconds()),
		burst:     maxRequests,
		allowlist: allowed,
		clock:     clock,
	}
}

// Allow reports whether addr may make another request now
func (l *RateLimiter) Allow(addr string) bool {
	if l.allowlist[addr] {
		return true
	}

	now := l.clock.now()

	l.mu.Lock()
	v, ok := l.visitors[addr]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[addr] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Cleanup drops buckets idle for longer than idleTTL
func (l *RateLimiter) Cleanup() int {
	now := l.clock.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for addr, v := range l.visitors {
		if now.Sub(v.lastSeen) > idleTTL {
			delete(l.visitors, addr)
			removed++
		}
	}
	return removed
}

// Run cleans up idle buckets every minute until ctx is cancelled
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				slog.Debug("Rate limiter: cleaned up idle entries", "count", n)
			}
		}
	}
}
