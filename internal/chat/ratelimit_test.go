package chat

import (
	"testing"
	"time"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatal("expected first two requests to be allowed")
	}
	if rl.Allow("u1") {
		t.Fatal("expected third request within the window to be rejected")
	}
	if !rl.Allow("u2") {
		t.Fatal("limits must be per key")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("u1") {
		t.Fatal("expected request after the window to be allowed")
	}
}

func TestRateLimiterEvictRemovesExpiredKeys(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }
	rl.Allow("u1")

	now = now.Add(2 * time.Minute)
	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.requests["u1"]; ok {
		t.Fatal("expected expired key to be evicted")
	}
}
