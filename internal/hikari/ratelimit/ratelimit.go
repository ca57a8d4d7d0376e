// Package ratelimit throttles expensive per-user work such as chat turns.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultLimit is the number of calls allowed per user per window when no
	// explicit limit is configured.
	DefaultLimit = 20

	defaultWindow = time.Minute
)

// Limiter enforces a per-user token bucket. Each user gets a burst of limit
// calls and regains one call every window/limit.
//
// Limiter is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	every   rate.Limit
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New returns a Limiter that allows at most limit calls per user within
// window. Non-positive arguments fall back to DefaultLimit and one minute.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Limiter{
		limit:   limit,
		every:   rate.Every(window / time.Duration(limit)),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *Limiter) get(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

// Allow reports whether key may make another call now and consumes a token
// if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	return l.get(key, now).lim.AllowN(now, 1)
}

// Remaining returns the whole calls key can still make right now.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		return l.limit
	}
	return max(0, int(b.lim.TokensAt(now)))
}

// Prune drops buckets idle for longer than idle. A dropped bucket is full
// again on next use, which matches what a long idle period would give it.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	n := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}
