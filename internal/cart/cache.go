package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Cache is the durable device-local store for the anonymous cart: one
// serialized blob per device, no expiry. It stands in for whatever the
// client keeps on-device.
type Cache interface {
	Load(ctx context.Context, deviceID string) (map[string]Line, error)
	Save(ctx context.Context, deviceID string, lines map[string]Line) error
	Drop(ctx context.Context, deviceID string) error
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func cacheKey(deviceID string) string {
	return "cart:anon:" + deviceID
}

func (c *RedisCache) Load(ctx context.Context, deviceID string) (map[string]Line, error) {
	blob, err := c.rdb.Get(ctx, cacheKey(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]Line{}, nil
		}
		return nil, fmt.Errorf("load anonymous cart: %w", err)
	}

	lines := make(map[string]Line)
	if err := json.Unmarshal(blob, &lines); err != nil {
		// A corrupt blob should not break browsing; start over empty.
		return map[string]Line{}, nil
	}
	return lines, nil
}

func (c *RedisCache) Save(ctx context.Context, deviceID string, lines map[string]Line) error {
	blob, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal anonymous cart: %w", err)
	}
	if err := c.rdb.Set(ctx, cacheKey(deviceID), blob, 0).Err(); err != nil {
		return fmt.Errorf("save anonymous cart: %w", err)
	}
	return nil
}

func (c *RedisCache) Drop(ctx context.Context, deviceID string) error {
	if err := c.rdb.Del(ctx, cacheKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("drop anonymous cart: %w", err)
	}
	return nil
}
