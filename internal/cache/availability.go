// Package cache keeps short-lived copies of ticket availability.
// The database stays authoritative; entries are invalidated on every
// inventory change and expire after a TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fashionistas/ticketing/pkg/redis"
)

const keyPrefix = "ticketing:availability:"

// AvailabilityCache stores the remaining quantity of ticket types
type AvailabilityCache interface {
	// Get returns the cached quantity and whether it was present
	Get(ctx context.Context, ticketTypeID string) (int, bool, error)
	Set(ctx context.Context, ticketTypeID string, remaining int) error
	Invalidate(ctx context.Context, ticketTypeID string) error
}

// AvailabilityKey returns the Redis key of a ticket type
func AvailabilityKey(ticketTypeID string) string {
	return keyPrefix + ticketTypeID
}

// RedisAvailabilityCache is backed by Redis string keys with a TTL
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAvailabilityCache creates a Redis-backed cache
func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisAvailabilityCache{client: client, ttl: ttl}
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, ticketTypeID string) (int, bool, error) {
	val, err := c.client.Get(ctx, AvailabilityKey(ticketTypeID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get availability %s: %w", ticketTypeID, err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("decode availability %s: %w", ticketTypeID, err)
	}
	return n, true, nil
}

func (c *RedisAvailabilityCache) Set(ctx context.Context, ticketTypeID string, remaining int) error {
	if err := c.client.Set(ctx, AvailabilityKey(ticketTypeID), remaining, c.ttl).Err(); err != nil {
		return fmt.Errorf("set availability %s: %w", ticketTypeID, err)
	}
	return nil
}

func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, ticketTypeID string) error {
	if err := c.client.Del(ctx, AvailabilityKey(ticketTypeID)).Err(); err != nil {
		return fmt.Errorf("invalidate availability %s: %w", ticketTypeID, err)
	}
	return nil
}

// NoopAvailabilityCache never holds anything
type NoopAvailabilityCache struct{}

func (NoopAvailabilityCache) Get(context.Context, string) (int, bool, error) { return 0, false, nil }
func (NoopAvailabilityCache) Set(context.Context, string, int) error         { return nil }
func (NoopAvailabilityCache) Invalidate(context.Context, string) error       { return nil }
