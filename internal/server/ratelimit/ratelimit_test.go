package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinBurst(t *testing.T) {
	l := NewLimiter(DefaultRules())
	defer l.Stop()

	// Manuscript creation bursts at 3.
	for i := 0; i < 3; i++ {
		allowed, info := l.Allow("10.0.0.1", "/manuscripts", "POST")
		assert.True(t, allowed, "request %d should pass", i+1)
		assert.Equal(t, 20, info.Limit)
	}

	allowed, info := l.Allow("10.0.0.1", "/manuscripts", "POST")
	assert.False(t, allowed)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
}

func TestAllowPerClient(t *testing.T) {
	l := NewLimiter(DefaultRules())
	defer l.Stop()

	for i := 0; i < 3; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/manuscripts", "POST")
		require.True(t, allowed)
	}
	exhausted, _ := l.Allow("10.0.0.1", "/manuscripts", "POST")
	require.False(t, exhausted)

	// A different client has its own bucket.
	allowed, _ := l.Allow("10.0.0.2", "/manuscripts", "POST")
	assert.True(t, allowed)
}

func TestHealthNeverLimited(t *testing.T) {
	l := NewLimiter(DefaultRules())
	defer l.Stop()

	for i := 0; i < 1000; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/health", "GET")
		require.True(t, allowed)
	}
}

func TestReviewActionsUseCorrectionsRule(t *testing.T) {
	l := NewLimiter(DefaultRules())
	defer l.Stop()

	allowed, info := l.Allow("10.0.0.1", "/corrections/abc/approve", "POST")
	assert.True(t, allowed)
	assert.Equal(t, 120, info.Limit)
}

func TestUnmatchedPathUsesDefault(t *testing.T) {
	l := NewLimiter(DefaultRules())
	defer l.Stop()

	allowed, info := l.Allow("10.0.0.1", "/manuscripts/abc", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 600, info.Limit)
}

func TestBucketRefill(t *testing.T) {
	// 10 tokens per second, burst of 1.
	b := newBucket(1, 10)

	allowed, _, _ := b.take()
	require.True(t, allowed)
	allowed, _, _ = b.take()
	require.False(t, allowed)

	time.Sleep(150 * time.Millisecond)
	allowed, _, _ = b.take()
	assert.True(t, allowed)
}

func TestDropStale(t *testing.T) {
	l := NewLimiter(nil)
	defer l.Stop()

	l.Allow("10.0.0.1", "/manuscripts", "GET")
	require.Len(t, l.buckets, 1)

	// Age the entry past the idle cutoff.
	l.mu.Lock()
	for key := range l.touched {
		l.touched[key] = time.Now().Add(-2 * time.Hour)
	}
	l.mu.Unlock()

	l.dropStale()
	assert.Empty(t, l.buckets)
}
