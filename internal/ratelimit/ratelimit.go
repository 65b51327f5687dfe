// Package ratelimit provides a keyed token-bucket limiter.
//
// The client uses it for two things: a per-book cooldown on summary
// generation, and an optional throttle on outbound backend calls.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultIdleTTL is how long an untouched key keeps its limiter.
const defaultIdleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter manages per-key rate limiting.
// Each unique key gets its own independent rate limiter. Keys idle for
// longer than the idle TTL are dropped, which restores their full burst.
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

// New creates a keyed rate limiter allowing rps events per second per key,
// with up to burst events available immediately.
func New(rps float64, burst int) *KeyedRateLimiter {
	return newLimiter(rate.Limit(rps), burst)
}

// NewEvery creates a keyed rate limiter allowing one event per interval per key.
func NewEvery(interval time.Duration, burst int) *KeyedRateLimiter {
	return newLimiter(rate.Every(interval), burst)
}

func newLimiter(limit rate.Limit, burst int) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		entries: make(map[string]*entry),
		limit:   limit,
		burst:   burst,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	go krl.cleanup()

	return krl
}

// Allow reports whether an event for key may happen now, consuming a token if so.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).AllowN(krl.now(), 1)
}

// Wait blocks until an event for key is allowed or ctx is done.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// Remaining returns how long until key has a token available again.
// Zero means an event would be allowed now.
func (krl *KeyedRateLimiter) Remaining(key string) time.Duration {
	lim := krl.getLimiter(key)
	now := krl.now()

	tokens := lim.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	if krl.limit <= 0 {
		return rate.InfDuration
	}
	missing := 1 - tokens
	return time.Duration(missing / float64(krl.limit) * float64(time.Second))
}

// Spend consumes a token for key whether or not one is available. On an
// empty bucket the debt pushes the next allowed event further out.
func (krl *KeyedRateLimiter) Spend(key string) {
	krl.getLimiter(key).ReserveN(krl.now(), 1)
}

// Penalize drains the whole tokens left for key, so the next event waits
// for the bucket to refill. Used when the far side reports a rate limit
// the local bucket did not predict.
func (krl *KeyedRateLimiter) Penalize(key string) {
	lim := krl.getLimiter(key)
	now := krl.now()
	if tokens := lim.TokensAt(now); tokens >= 1 {
		lim.ReserveN(now, int(tokens))
	}
}

// getLimiter returns the limiter for a key, creating one if needed.
func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
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

// Len returns the number of tracked keys.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.Lock()
	defer krl.mu.Unlock()
	return len(krl.entries)
}

// Stop shuts down the cleanup goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

// cleanup drops idle keys until Stop is called.
func (krl *KeyedRateLimiter) cleanup() {
	ticker := time.NewTicker(krl.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-krl.done:
			return
		case <-ticker.C:
			krl.sweep()
		}
	}
}

func (krl *KeyedRateLimiter) sweep() {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	cutoff := krl.now().Add(-krl.idleTTL)
	for key, e := range krl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(krl.entries, key)
		}
	}
}
