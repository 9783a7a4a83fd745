// Package redistest provides an in-memory redis.Cache for service tests.
package redistest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/angelmondragon/tradelines-backend/pkg/redis"
)

// Cache stores JSON values in memory. Setting Down makes every call report
// redis.ErrCacheUnavailable.
type Cache struct {
	mu     sync.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration
	Down   bool
}

var _ redis.Cache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *Cache) GetJSON(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Down {
		return redis.ErrCacheUnavailable
	}
	raw, ok := c.values[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return redis.ErrCacheMiss
	}
	return nil
}

func (c *Cache) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Down {
		return redis.ErrCacheUnavailable
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	c.ttls[key] = ttl
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Down {
		return redis.ErrCacheUnavailable
	}
	for _, key := range keys {
		delete(c.values, key)
	}
	return nil
}

// Has reports whether key is currently stored.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

// TTL returns the ttl recorded for key on its last write.
func (c *Cache) TTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}

// Raw returns the stored JSON for key.
func (c *Cache) Raw(key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}
