// Package ratelimit provides a per-key token bucket limiter whose idle keys
// are evicted in the background.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter gives each key its own token bucket.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a limiter allowing rps requests per second per key with the
// given burst. Keys unused for idleTTL are forgotten; zero disables eviction.
func New(rps float64, burst int, idleTTL time.Duration) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if idleTTL > 0 {
		go krl.evictLoop()
	}
	return krl
}

// PerInterval converts "n requests per interval" to a per-second rate.
func PerInterval(n int, interval time.Duration) float64 {
	return float64(n) / interval.Seconds()
}

// Allow reports whether a request for key may proceed now.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.limiter(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is done.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.limiter(key).Wait(ctx)
}

// Len returns the number of tracked keys.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.Lock()
	defer krl.mu.Unlock()
	return len(krl.entries)
}

// Stop ends background eviction.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() { close(krl.done) })
}

func (krl *KeyedRateLimiter) limiter(key string) *rate.Limiter {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	e, ok := krl.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.entries[key] = e
	}
	e.lastSeen = krl.now()
	return e.limiter
}

// evictIdle drops keys not seen for idleTTL.
func (krl *KeyedRateLimiter) evictIdle() {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	cutoff := krl.now().Add(-krl.idleTTL)
	for key, e := range krl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(krl.entries, key)
		}
	}
}

func (krl *KeyedRateLimiter) evictLoop() {
	ticker := time.NewTicker(krl.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-krl.done:
			return
		case <-ticker.C:
			krl.evictIdle()
		}
	}
}
