package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, mr *miniredis.Miniredis, limit int, window time.Duration) *FixedWindowLimiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewRedisFixedWindowLimiter(client, "test:ratelimit", limit, window)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	return limiter
}

func TestFixedWindowLimiterRedis(t *testing.T) {
	ctx := context.Background()
	limiter := newLimiter(t, miniredis.RunT(t), 2, time.Minute)
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow(ctx, "ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow(ctx, "ip-2") {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestFixedWindowLimiterResetsNextWindow(t *testing.T) {
	ctx := context.Background()
	limiter := newLimiter(t, miniredis.RunT(t), 1, time.Minute)
	base := time.Date(2026, 10, 1, 12, 0, 10, 0, time.UTC)
	limiter.now = func() time.Time { return base }
	if !limiter.Allow(ctx, "ip-1") || limiter.Allow(ctx, "ip-1") {
		t.Fatalf("expected one request in the first window")
	}
	if got := limiter.RetryAfter(); got != 50 {
		t.Fatalf("retry after = %d, want 50", got)
	}
	limiter.now = func() time.Time { return base.Add(time.Minute) }
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("expected quota to reset in the next window")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := newLimiter(t, mr, 1, time.Second)
	mr.Close()
	if limiter.Allow(context.Background(), "ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresClient(t *testing.T) {
	limiter, err := NewRedisFixedWindowLimiter(nil, "test:ratelimit", 1, time.Second)
	if err == nil || limiter != nil {
		t.Fatalf("expected constructor error for nil client")
	}
}

func TestFixedWindowLimiterCounterExpiresWithWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := newLimiter(t, mr, 5, time.Minute)
	if !limiter.Allow(context.Background(), "ip-9") {
		t.Fatal("first request should pass")
	}
	keys := mr.Keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "test:ratelimit:ip-9:") {
		t.Fatalf("unexpected counter keys %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("counter ttl = %v, want within one window", ttl)
	}
}

func TestFixedWindowLimiterRejectsBadConfig(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	t.Cleanup(func() { _ = client.Close() })
	for _, tc := range []struct {
		limit  int
		window time.Duration
	}{{0, time.Minute}, {1, 0}, {1, time.Microsecond}} {
		if _, err := NewRedisFixedWindowLimiter(client, "", tc.limit, tc.window); err == nil {
			t.Fatalf("expected error for limit=%d window=%v", tc.limit, tc.window)
		}
	}
}
