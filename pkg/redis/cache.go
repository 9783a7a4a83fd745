package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss reports that the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheUnavailable reports that the cache backend could not be reached.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// Cache is the best-effort key/value capability injected into services.
// Implementations return ErrCacheMiss or ErrCacheUnavailable instead of
// raw backend errors so callers can fall through to the source of truth.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// JSONCache stores JSON-encoded values in Redis.
type JSONCache struct {
	store cmdable
}

// NewCache returns a JSONCache on top of the client. A nil client yields a
// cache that always reports ErrCacheUnavailable.
func NewCache(client *Client) *JSONCache {
	if client == nil {
		return &JSONCache{}
	}
	return &JSONCache{store: client.store}
}

func (c *JSONCache) GetJSON(ctx context.Context, key string, dest any) error {
	if c == nil || c.store == nil {
		return ErrCacheUnavailable
	}
	raw, err := c.store.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A corrupt entry behaves like a miss; the next write replaces it.
		return ErrCacheMiss
	}
	return nil
}

func (c *JSONCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.store == nil {
		return ErrCacheUnavailable
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	if err := c.store.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *JSONCache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.store == nil {
		return ErrCacheUnavailable
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.store.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
