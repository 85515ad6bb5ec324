package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fashionistas/ticketing/pkg/logger"
	"github.com/fashionistas/ticketing/pkg/redis"
	"github.com/fashionistas/ticketing/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Tokens refilled per second per caller
	RequestsPerSecond int
	// Token bucket capacity
	Burst int
	// KeyPrefix namespaces Redis keys
	KeyPrefix string
	// Local limiter housekeeping
	CleanupInterval time.Duration
	EntryTTL        time.Duration
}

// DefaultRateLimitConfig returns defaults sized for the purchase endpoint
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		KeyPrefix:         "ratelimit:",
		CleanupInterval:   time.Minute,
		EntryTTL:          time.Minute,
	}
}

// Limiter decides whether the caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// LocalRateLimiter is an in-process token bucket keyed by caller
type LocalRateLimiter struct {
	config  RateLimitConfig
	entries sync.Map
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewLocalRateLimiter starts a limiter with a background sweeper; call Stop to release it
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = time.Minute
	}
	rl := &LocalRateLimiter{
		config: config,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow takes one token from key's bucket
func (rl *LocalRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := rl.now()
	v, _ := rl.entries.LoadOrStore(key, &bucket{tokens: float64(rl.config.Burst), lastUpdate: now})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(rl.config.Burst), b.tokens+elapsed*float64(rl.config.RequestsPerSecond))
		b.lastUpdate = now
	}

	if b.tokens >= 1 {
		b.tokens--
		rl.allowed.Add(1)
		return true, nil
	}
	rl.rejected.Add(1)
	return false, nil
}

// Stats returns allowed and rejected totals
func (rl *LocalRateLimiter) Stats() (allowed, rejected uint64) {
	return rl.allowed.Load(), rl.rejected.Load()
}

func (rl *LocalRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := rl.now().Add(-rl.config.EntryTTL)
			rl.entries.Range(func(key, value any) bool {
				b := value.(*bucket)
				b.mu.Lock()
				if b.lastUpdate.Before(cutoff) {
					rl.entries.Delete(key)
				}
				b.mu.Unlock()
				return true
			})
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the sweeper goroutine
func (rl *LocalRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

const rateLimitScriptName = "rate_limit"

// Token bucket stored as a hash; returns {allowed, remaining}
const rateLimitScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "last_update")
local tokens = tonumber(data[1]) or burst
local last_update = tonumber(data[2]) or now

local elapsed = math.max(0, now - last_update)
tokens = math.min(burst, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_update", now)
redis.call("EXPIRE", key, math.ceil(burst / rate) + 1)
return {allowed, math.floor(tokens)}
`

// RedisRateLimiter shares buckets across replicas through a Lua script
type RedisRateLimiter struct {
	config RateLimitConfig
	client *redis.Client
}

// NewRedisRateLimiter loads the bucket script into Redis
func NewRedisRateLimiter(ctx context.Context, client *redis.Client, config RateLimitConfig) (*RedisRateLimiter, error) {
	if _, err := client.LoadScript(ctx, rateLimitScriptName, rateLimitScript); err != nil {
		return nil, fmt.Errorf("load rate limit script: %w", err)
	}
	return &RedisRateLimiter{config: config, client: client}, nil
}

// Allow takes one token from key's shared bucket
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(time.Now().UnixNano()) / 1e9
	values, err := rl.client.EvalShaByName(ctx, rateLimitScriptName,
		[]string{rl.config.KeyPrefix + key},
		rl.config.RequestsPerSecond,
		rl.config.Burst,
		now,
	).Slice()
	if err != nil {
		return false, err
	}
	if len(values) < 1 {
		return false, fmt.Errorf("unexpected rate limit result: %v", values)
	}
	allowed, _ := values[0].(int64)
	return allowed == 1, nil
}

// RateLimit throttles callers by user ID, falling back to client IP.
// Limiter errors fail open.
func RateLimit(limiter Limiter, config RateLimitConfig, log *logger.Logger) gin.HandlerFunc {
	limit := strconv.Itoa(config.RequestsPerSecond)

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, ok := GetUserID(c); ok && userID != "" {
			key = "user:" + userID
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.WarnContext(c.Request.Context(), "rate limiter unavailable", zap.Error(err))
			allowed = true
		}

		c.Header("X-RateLimit-Limit", limit)
		if !allowed {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.TooManyRequests(""))
			return
		}
		c.Next()
	}
}
