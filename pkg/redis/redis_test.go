package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())
	assert.Equal(t, 50, cfg.PoolSize)
	assert.False(t, cfg.Tracing)
}

func TestEvalShaByName_UnknownScript(t *testing.T) {
	c := &Client{scripts: map[string]script{}}
	err := c.EvalShaByName(context.Background(), "missing", nil).Err()
	assert.ErrorIs(t, err, ErrScriptNotLoaded)
}

func integrationClient(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("set INTEGRATION_TEST=true to run against Redis")
	}
	cfg := DefaultConfig()
	if host := os.Getenv("TEST_REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("TEST_REDIS_PORT"); port != "" {
		cfg.Port, _ = strconv.Atoi(port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_ScriptRoundTrip(t *testing.T) {
	client := integrationClient(t)
	ctx := context.Background()

	_, err := client.LoadScript(ctx, "incr_by", `return redis.call("INCRBY", KEYS[1], ARGV[1])`)
	require.NoError(t, err)

	key := "test:script:counter"
	t.Cleanup(func() { client.Del(context.Background(), key) })

	v, err := client.EvalShaByName(ctx, "incr_by", []string{key}, 3).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestClient_ReloadsAfterScriptFlush(t *testing.T) {
	client := integrationClient(t)
	ctx := context.Background()

	_, err := client.LoadScript(ctx, "echo", `return ARGV[1]`)
	require.NoError(t, err)
	require.NoError(t, client.ScriptFlush(ctx).Err())

	v, err := client.EvalShaByName(ctx, "echo", nil, "ok").Text()
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
