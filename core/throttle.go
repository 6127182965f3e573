package core

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	throttlePruneEvery = 5 * time.Minute
	throttleIdleAfter  = 10 * time.Minute
)

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginThrottle rate-limits login attempts per client key (usually the client IP).
// A nil *LoginThrottle allows everything.
type LoginThrottle struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*throttleEntry
	lastPrune time.Time
}

// NewLoginThrottle returns nil when perSecond is not positive.
func NewLoginThrottle(perSecond float64, burst int) *LoginThrottle {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &LoginThrottle{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		entries:   make(map[string]*throttleEntry),
		lastPrune: nowFunc(),
	}
}

// Allow consumes one attempt for key.
func (t *LoginThrottle) Allow(key string) bool {
	if t == nil {
		return true
	}
	now := nowFunc()

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastPrune) > throttlePruneEvery {
		for k, e := range t.entries {
			if now.Sub(e.lastSeen) > throttleIdleAfter {
				delete(t.entries, k)
			}
		}
		t.lastPrune = now
	}

	e, ok := t.entries[key]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
