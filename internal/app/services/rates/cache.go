package rates

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache stores the last good SOL/USD rate. Implementations expire entries
// after their TTL; an expired or absent entry is a miss, not an error.
type Cache interface {
	Get(ctx context.Context) (float64, bool, error)
	Set(ctx context.Context, rate float64) error
}

// MemoryCache is a process-local cache.
type MemoryCache struct {
	mu   sync.RWMutex
	rate float64
	at   time.Time
	ttl  time.Duration
}

// NewMemoryCache creates a cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryCache{ttl: ttl}
}

func (c *MemoryCache) Get(_ context.Context) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.rate <= 0 || time.Since(c.at) > c.ttl {
		return 0, false, nil
	}
	return c.rate, true, nil
}

func (c *MemoryCache) Set(_ context.Context, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rate = rate
	c.at = time.Now()
	return nil
}

// RedisCache shares the rate between replicas through Redis.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client *redis.Client, key string, ttl time.Duration) *RedisCache {
	if key == "" {
		key = "tippit:sol_usd_rate"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, key: key, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) (float64, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate <= 0 {
		return 0, false, nil
	}
	return rate, true, nil
}

func (c *RedisCache) Set(ctx context.Context, rate float64) error {
	return c.client.Set(ctx, c.key, strconv.FormatFloat(rate, 'f', -1, 64), c.ttl).Err()
}
