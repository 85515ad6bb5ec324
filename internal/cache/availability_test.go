package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fashionistas/ticketing/pkg/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityKey(t *testing.T) {
	assert.Equal(t, "ticketing:availability:tt-1", AvailabilityKey("tt-1"))
}

func TestNoopAvailabilityCache(t *testing.T) {
	var c AvailabilityCache = NoopAvailabilityCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "tt-1", 10))
	_, ok, err := c.Get(ctx, "tt-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "tt-1"))
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}
	cfg := redis.DefaultConfig()
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	client, err := redis.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisAvailabilityCache_Integration(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	c := NewRedisAvailabilityCache(client, time.Minute)
	id := uuid.New().String()
	t.Cleanup(func() { client.Del(ctx, AvailabilityKey(id)) })

	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, id, 42))
	n, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	ttl, err := client.TTL(ctx, AvailabilityKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Invalidate(ctx, id))
	_, ok, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisAvailabilityCache_Expiry_Integration(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	c := NewRedisAvailabilityCache(client, 100*time.Millisecond)
	id := uuid.New().String()

	require.NoError(t, c.Set(ctx, id, 1))
	assert.Eventually(t, func() bool {
		_, ok, err := c.Get(ctx, id)
		return err == nil && !ok
	}, 2*time.Second, 50*time.Millisecond)
}
