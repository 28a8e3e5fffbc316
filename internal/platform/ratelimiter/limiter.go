// Package ratelimiter limits attempts per key (normally a normalized email).
package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultIdleTTL = 10 * time.Minute
	evictEvery     = 512
)

// KeyLimiter applies a token bucket per key and evicts idle buckets every
// evictEvery calls. A nil *KeyLimiter allows everything.
type KeyLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*bucket
	hits  uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerMinute returns a limiter refilling perMinute tokens a minute with the
// given burst, or nil (unlimited) when either is not positive.
func PerMinute(perMinute, burst int) *KeyLimiter {
	if perMinute <= 0 || burst <= 0 {
		return nil
	}
	return New(rate.Limit(float64(perMinute)/60), burst, defaultIdleTTL)
}

// New returns a limiter, or nil when limit or burst is not positive.
func New(limit rate.Limit, burst int, idleTTL time.Duration) *KeyLimiter {
	if limit <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &KeyLimiter{
		limit:   limit,
		burst:   burst,
		idleTTL: idleTTL,
		byKey:   make(map[string]*bucket),
	}
}

// Allow reports whether one attempt for key is permitted at now. Keys are
// compared case-insensitively; an empty key is always allowed.
func (l *KeyLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byKey[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%evictEvery == 0 {
		l.evictLocked(now)
	}
	return allowed
}

// Len returns the number of tracked keys.
func (l *KeyLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

func (l *KeyLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.byKey {
		if b.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}
