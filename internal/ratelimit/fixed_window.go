// Package ratelimit holds Redis-backed request quotas shared by every
// journal instance.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "selah:ratelimit"
	redisTimeout  = 2 * time.Second
)

// FixedWindowLimiter counts hits per key in aligned windows of a fixed length.
type FixedWindowLimiter struct {
	limit  int64
	window time.Duration

	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if client == nil {
		return nil, errors.New("rate limiter redis client is required")
	}
	if limit <= 0 || window < time.Millisecond {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = defaultPrefix
	}
	return &FixedWindowLimiter{
		limit:  int64(limit),
		window: window,
		client: client,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

// slot returns the index of the window containing t and the instant it closes.
func (l *FixedWindowLimiter) slot(t time.Time) (int64, time.Time) {
	size := l.window.Milliseconds()
	idx := t.UnixMilli() / size
	return idx, time.UnixMilli((idx + 1) * size)
}

// Allow counts one hit for key and reports whether it is within quota.
// Redis failures deny the request.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return false
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "unknown"
	}
	now := l.now()
	idx, closes := l.slot(now)
	counter := l.prefix + ":" + key + ":" + strconv.FormatInt(idx, 10)

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	var hits *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, counter)
		pipe.PExpire(ctx, counter, closes.Sub(now))
		return nil
	})
	if err != nil {
		slog.Warn("rate limiter unavailable", "prefix", l.prefix, "err", err)
		return false
	}
	return hits.Val() <= l.limit
}

// RetryAfter is the whole number of seconds until the current window closes.
func (l *FixedWindowLimiter) RetryAfter() int {
	if l == nil {
		return 60
	}
	now := l.now()
	_, closes := l.slot(now)
	secs := int((closes.Sub(now) + time.Second - 1) / time.Second)
	return max(secs, 1)
}
