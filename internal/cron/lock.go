package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgredis "github.com/angelmondragon/tradelines-backend/pkg/redis"
)

const (
	defaultLockTTL    = 30 * time.Minute
	defaultLockHolder = "cron-worker"
	tokenSeparator    = "|"
)

// Lock coordinates exclusive runs of one job across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns the lock guarding the named job.
type LockFactory func(job string) (Lock, error)

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// LockOption customizes a RedisLock.
type LockOption func(*RedisLock)

// WithLockTTL bounds how long a crashed holder can block the job.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(l *RedisLock) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockHolder records the replica name in the lock value.
func WithLockHolder(holder string) LockOption {
	return func(l *RedisLock) {
		if holder = strings.TrimSpace(holder); holder != "" {
			l.holder = holder
		}
	}
}

// RedisLock is a SET NX lock whose value is "<holder>|<token>". Only the
// acquirer holding the token may release it.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	holder string
	token  string
}

func NewRedisLock(client redisStore, key string, opts ...LockOption) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	l := &RedisLock{client: client, key: key, ttl: defaultLockTTL, holder: defaultLockHolder}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// RedisLockFactory builds per-job locks under tl:lock:cron:<env>:<job>.
func RedisLockFactory(client redisStore, env string, opts ...LockOption) LockFactory {
	return func(job string) (Lock, error) {
		return NewRedisLock(client, pkgredis.LockKey("cron", env, job), opts...)
	}
}

func (l *RedisLock) Key() string { return l.key }

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := l.holder + tokenSeparator + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Holder reports which replica currently owns the lock, or "" when it is free.
func (l *RedisLock) Holder(ctx context.Context) (string, error) {
	value, err := l.client.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock %s: %w", l.key, err)
	}
	holder, _, _ := strings.Cut(value, tokenSeparator)
	return holder, nil
}

// Release frees the lock only if this acquirer still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""

	value, err := l.client.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read lock %s: %w", l.key, err)
	case value != token:
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
