// Package ratelimit provides per-client token bucket rate limiting for the
// corrections API.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// bucket is a token bucket refilling at a steady rate.
type bucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

func newBucket(capacity int, refillRate float64) *bucket {
	return &bucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: time.Now(),
	}
}

func (b *bucket) refillLocked(now time.Time) {
	b.tokens = min(b.capacity, b.tokens+now.Sub(b.lastRefill).Seconds()*b.refillRate)
	b.lastRefill = now
}

// take consumes one token if available.
func (b *bucket) take() (allowed bool, remaining int, resetTime time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.refillLocked(now)
	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		allowed = true
	}
	remaining = int(b.tokens)
	if b.tokens < b.capacity {
		secondsUntilFull := (b.capacity - b.tokens) / b.refillRate
		resetTime = now.Add(time.Duration(secondsUntilFull * float64(time.Second)))
	} else {
		resetTime = now
	}
	return allowed, remaining, resetTime
}

// Info carries rate limit status for response headers.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Rule sets the budget for one endpoint family. Path is prefix-matched.
type Rule struct {
	Path   string
	Method string
	Limit  int
	Window time.Duration
	Burst  int
}

// DefaultRules returns the endpoint budgets. Correction runs are expensive
// (each issue costs generative calls), so they get the strictest tier;
// review actions are cheap writes; reads fall through to the default.
func DefaultRules() []Rule {
	return []Rule{
		{Path: "/manuscripts", Method: "POST", Limit: 20, Window: time.Hour, Burst: 3},
		{Path: "/corrections/", Method: "POST", Limit: 120, Window: time.Minute, Burst: 20},
	}
}

// Limiter manages token buckets keyed by client, endpoint and method.
type Limiter struct {
	defaultLimit  int
	defaultWindow time.Duration
	rules         []Rule

	mu      sync.Mutex
	buckets map[string]*bucket
	touched map[string]time.Time

	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
}

// NewLimiter creates a limiter with the given rules and a default budget of
// 600 requests per minute for unmatched endpoints.
func NewLimiter(rules []Rule) *Limiter {
	l := &Limiter{
		defaultLimit:  600,
		defaultWindow: time.Minute,
		rules:         rules,
		buckets:       make(map[string]*bucket),
		touched:       make(map[string]time.Time),
		cleanupTicker: time.NewTicker(5 * time.Minute),
		cleanupStop:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether a request from clientID to the endpoint is within
// budget, consuming a token when it is. Health checks are never limited.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if path == "/health" {
		return true, Info{Allowed: true}
	}

	limit, window, burst := l.defaultLimit, l.defaultWindow, 0
	for _, r := range l.rules {
		if r.Method == method && strings.HasPrefix(path, r.Path) {
			limit, window, burst = r.Limit, r.Window, r.Burst
			break
		}
	}
	if burst <= 0 {
		burst = limit
	}

	key := clientID + ":" + path + ":" + method
	b := l.getBucket(key, limit, window, burst)

	allowed, remaining, resetTime := b.take()
	info := Info{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: resetTime,
	}
	if !allowed {
		if retry := time.Until(resetTime); retry > 0 {
			info.RetryAfter = retry
		}
	}
	return allowed, info
}

func (l *Limiter) getBucket(key string, limit int, window time.Duration, burst int) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(burst, float64(limit)/window.Seconds())
		l.buckets[key] = b
	}
	l.touched[key] = time.Now()
	return b
}

func (l *Limiter) cleanupLoop() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.dropStale()
		case <-l.cleanupStop:
			return
		}
	}
}

// dropStale removes buckets idle for over an hour.
func (l *Limiter) dropStale() {
	cutoff := time.Now().Add(-1 * time.Hour)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, last := range l.touched {
		if last.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.touched, key)
		}
	}
}

// Stop terminates the cleanup goroutine.
func (l *Limiter) Stop() {
	l.cleanupTicker.Stop()
	close(l.cleanupStop)
}
