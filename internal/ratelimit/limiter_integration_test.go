//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisLimiter_Window(t *testing.T) {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })

	limiter := NewRedisLimiter(client, "bot", 2, time.Minute)

	first, remaining, _, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, 1, remaining)

	second, _, _, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, second)

	third, remaining, reset, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, third)
	assert.Equal(t, 0, remaining)
	assert.True(t, reset.After(time.Now()))

	other, _, _, err := limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, other)
}
