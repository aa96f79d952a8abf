// Package cache provides the Redis-backed forecast cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"cafepos/internal/domain/forecast"
)

// KeyPrefix namespaces every key this cache writes.
const KeyPrefix = "cafepos:"

// Options configures the Redis client.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// RedisForecastCache implements forecast.Cache on Redis.
type RedisForecastCache struct {
	client *redis.Client
}

var _ forecast.Cache = (*RedisForecastCache)(nil)

// NewRedisForecastCache creates a cache client. It does not dial until first use.
func NewRedisForecastCache(opts Options) *RedisForecastCache {
	return &RedisForecastCache{client: redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})}
}

// NewRedisForecastCacheFromClient wraps an existing client.
func NewRedisForecastCacheFromClient(client *redis.Client) *RedisForecastCache {
	return &RedisForecastCache{client: client}
}

// Ping checks connectivity.
func (c *RedisForecastCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *RedisForecastCache) Close() error {
	return c.client.Close()
}

func (c *RedisForecastCache) Get(ctx context.Context, key string) (*forecast.Forecast, bool, error) {
	val, err := c.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var f forecast.Forecast
	if err := json.Unmarshal(val, &f); err != nil {
		return nil, false, fmt.Errorf("decode cached forecast: %w", err)
	}
	return &f, true, nil
}

func (c *RedisForecastCache) Set(ctx context.Context, key string, value *forecast.Forecast, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode forecast: %w", err)
	}
	if err := c.client.Set(ctx, KeyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// InvalidateForecasts drops every cached forecast. The worker calls it when a
// payment succeeds so today's revenue shows up before the TTL runs out.
func (c *RedisForecastCache) InvalidateForecasts(ctx context.Context) (int, error) {
	iter := c.client.Scan(ctx, 0, KeyPrefix+"forecast:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan forecast keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete forecast keys: %w", err)
	}
	return int(n), nil
}
