package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket refills rate tokens per second up to capacity.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     int
	capacity   int
	rate       int
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(rate, capacity int) *TokenBucket {
	return newTokenBucket(rate, capacity, time.Now)
}

func newTokenBucket(rate, capacity int, now func() time.Time) *TokenBucket {
	return &TokenBucket{tokens: capacity, capacity: capacity, rate: rate, lastRefill: now(), now: now}
}

// Allow consumes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	if add := int(now.Sub(tb.lastRefill).Seconds() * float64(tb.rate)); add > 0 {
		tb.tokens = min(tb.tokens+add, tb.capacity)
		tb.lastRefill = now
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Limiter throttles new relays globally and per key (the relay target).
// A rate of 0 disables that limit.
type Limiter struct {
	mu      sync.Mutex
	global  *TokenBucket
	perKey  map[string]*TokenBucket
	keyRate int
	burst   int
	now     func() time.Time
}

// NewLimiter creates a limiter; burst is the capacity of every bucket.
func NewLimiter(globalRate, perKeyRate, burst int) *Limiter {
	return newLimiter(globalRate, perKeyRate, burst, time.Now)
}

func newLimiter(globalRate, perKeyRate, burst int, now func() time.Time) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	l := &Limiter{perKey: make(map[string]*TokenBucket), keyRate: perKeyRate, burst: burst, now: now}
	if globalRate > 0 {
		l.global = newTokenBucket(globalRate, burst, now)
	}
	return l
}

// Allow reports whether a new relay to key may start.
func (l *Limiter) Allow(key string) bool {
	if l.global != nil && !l.global.Allow() {
		return false
	}
	if l.keyRate <= 0 {
		return true
	}
	l.mu.Lock()
	b, ok := l.perKey[key]
	if !ok {
		b = newTokenBucket(l.keyRate, l.burst, l.now)
		l.perKey[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

// Prune drops buckets for keys that are not in active.
func (l *Limiter) Prune(active map[string]bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.perKey {
		if !active[k] {
			delete(l.perKey, k)
		}
	}
}
