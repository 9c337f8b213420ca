// Package ratelimit counts login attempts per key in Redis.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const namespace = "login_rate"

// Limiter allows at most max attempts per key inside a fixed window that
// starts with the first attempt.
type Limiter struct {
	client redis.UniversalClient
	max    int64
	window time.Duration
}

func NewLimiter(client redis.UniversalClient, max int64, window time.Duration) *Limiter {
	return &Limiter{client: client, max: max, window: window}
}

func (l *Limiter) key(k string) string {
	return namespace + ":" + k
}

// Allow records one attempt and reports whether it is within the limit.
// A counter left without an expiry, e.g. by a failed EXPIRE, gets one on the
// next attempt.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, err
	}
	// no expiry yet: this attempt opens the window
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return incr.Val() <= l.max, nil
}

// Reset forgets the attempts of key, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

// RetryAfter is how long until the window of key closes.
func (l *Limiter) RetryAfter(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.client.TTL(ctx, l.key(key)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
