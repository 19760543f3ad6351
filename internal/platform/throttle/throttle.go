// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package throttle implements a fixed-window request counter shared through Redis.

It guards credential endpoints (login, forgot-password, reset-password) so that
the limit holds across every API replica, unlike the in-memory token bucket.
*/
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/piggybank/internal/platform/constants"
)

// Limiter counts hits per key inside a fixed window.
type Limiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

// NewLimiter returns a limiter that allows limit hits per window.
func NewLimiter(client redis.Cmdable, limit int, window time.Duration) (*Limiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("throttle: limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("throttle: window must be positive, got %s", window)
	}
	return &Limiter{client: client, limit: int64(limit), window: window}, nil
}

// Key builds the Redis key for a route and a client address.
func Key(route, clientIP string) string {
	return constants.RedisPrefixThrottle + route + ":" + clientIP
}

/*
Allow records one hit for key and reports whether it is within the limit.

Returns:
  - allowed: false once the window's counter exceeds the limit
  - retryAfter: remaining window time when denied
  - error: Redis failures; callers decide whether to fail open
*/
func (limiter *Limiter) Allow(context context.Context, key string) (bool, time.Duration, error) {
	count, err := limiter.client.Incr(context, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("throttle_incr_failed: %w", err)
	}

	// The first hit opens the window.
	if count == 1 {
		if err := limiter.client.Expire(context, key, limiter.window).Err(); err != nil {
			return false, 0, fmt.Errorf("throttle_expire_failed: %w", err)
		}
	}

	if count <= limiter.limit {
		return true, 0, nil
	}

	retryAfter, err := limiter.client.TTL(context, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("throttle_ttl_failed: %w", err)
	}

	// A key without expiry would block the client forever.
	if retryAfter < 0 {
		if err := limiter.client.Expire(context, key, limiter.window).Err(); err != nil {
			return false, 0, fmt.Errorf("throttle_expire_failed: %w", err)
		}
		retryAfter = limiter.window
	}

	return false, retryAfter, nil
}
