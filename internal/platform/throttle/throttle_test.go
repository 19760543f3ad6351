// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package throttle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/piggybank/internal/platform/throttle"
)

/*
TestLimiter_FixedWindow exercises the counter against an in-memory Redis.
*/
func TestLimiter_FixedWindow(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := throttle.NewLimiter(client, 2, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	key := throttle.Key("login", "10.0.0.1")
	assert.Equal(t, "auth:throttle:login:10.0.0.1", key)

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)

	// Other clients keep their own window.
	allowed, _, err = limiter.Allow(ctx, throttle.Key("login", "10.0.0.2"))
	require.NoError(t, err)
	assert.True(t, allowed)

	// Once the window elapses the counter starts over.
	server.FastForward(time.Minute + time.Second)
	allowed, _, err = limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, allowed)
}

/*
TestLimiter_CommandFailures checks that Redis errors surface to the caller.
*/
func TestLimiter_CommandFailures(t *testing.T) {
	ctx := context.Background()
	key := throttle.Key("reset-password", "10.0.0.1")

	t.Run("incr", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		limiter, err := throttle.NewLimiter(client, 5, time.Minute)
		require.NoError(t, err)

		mock.ExpectIncr(key).SetErr(errors.New("connection refused"))

		_, _, err = limiter.Allow(ctx, key)
		assert.ErrorContains(t, err, "throttle_incr_failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expire", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		limiter, err := throttle.NewLimiter(client, 5, time.Minute)
		require.NoError(t, err)

		mock.ExpectIncr(key).SetVal(1)
		mock.ExpectExpire(key, time.Minute).SetErr(errors.New("connection reset"))

		_, _, err = limiter.Allow(ctx, key)
		assert.ErrorContains(t, err, "throttle_expire_failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing_expiry_is_repaired", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		limiter, err := throttle.NewLimiter(client, 1, time.Minute)
		require.NoError(t, err)

		mock.ExpectIncr(key).SetVal(2)
		mock.ExpectTTL(key).SetVal(-1)
		mock.ExpectExpire(key, time.Minute).SetVal(true)

		allowed, retryAfter, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, time.Minute, retryAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

/*
TestNewLimiter_RejectsInvalidSettings keeps misconfiguration out of the request path.
*/
func TestNewLimiter_RejectsInvalidSettings(t *testing.T) {
	client, _ := redismock.NewClientMock()

	_, err := throttle.NewLimiter(client, 0, time.Minute)
	assert.Error(t, err)

	_, err = throttle.NewLimiter(client, 1, 0)
	assert.Error(t, err)
}
