package redistest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tradelines-backend/pkg/redis"
)

// Store is an in-memory stand-in for the key/value surface of redis.Client.
// TTLs are recorded but never expire. Setting Err fails every call.
type Store struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	Err  error
}

var _ redis.IdempotencyStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	value, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.data[key] = fmt.Sprint(value)
	s.ttls[key] = ttl
	return nil
}

func (s *Store) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	s.ttls[key] = ttl
	return true, nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, key := range keys {
		delete(s.data, key)
		delete(s.ttls, key)
	}
	return nil
}

func (s *Store) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	fmt.Sscan(s.data[key], &n)
	n++
	s.data[key] = fmt.Sprint(n)
	if n == 1 {
		s.ttls[key] = ttl
	}
	return n, nil
}

func (s *Store) IdempotencyKey(scope, id string) string {
	return redis.BuildKey("idempotency", scope, id)
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// TTL returns the expiry recorded for key.
func (s *Store) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key]
}
