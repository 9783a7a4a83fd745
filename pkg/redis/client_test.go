package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
)

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "tl:idempotency:stripe:evt_1", client.IdempotencyKey("stripe", "evt_1"))
	assert.Equal(t, "tl:lock:cron-worker:prod", LockKey("cron-worker", "prod"))
	assert.Equal(t, "tl:cache:tradelines_all", CatalogKey())
	assert.Equal(t, "tl:cache:broker:b-1", BrokerKey("b-1"))
	assert.Equal(t, "tl:cache:order:o-1", OrderKey(" o-1 "))
	assert.Equal(t, "tl:cache", BuildKey("cache", "", "  "))
}

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "k", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "k", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "owner-a", value)
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	count, err := client.IncrWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, mock.ttls["rl"])

	mock.ttls["rl"] = 0
	count, err = client.IncrWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Zero(t, mock.ttls["rl"])
	assert.Equal(t, "tl:rl:token:ip:1.2.3.4", RateLimitKey("token", "ip", "1.2.3.4"))
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	assert.Error(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())

	var nilClient *Client
	_, err := nilClient.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NoError(t, nilClient.Close())
}

type cachedThing struct {
	Name  string `json:"name"`
	Cents int64  `json:"cents"`
}

func TestJSONCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	cache := &JSONCache{store: mock}

	var out cachedThing
	assert.ErrorIs(t, cache.GetJSON(ctx, "k", &out), ErrCacheMiss)

	require.NoError(t, cache.SetJSON(ctx, "k", cachedThing{Name: "chase", Cents: 50000}, time.Minute))
	require.NoError(t, cache.GetJSON(ctx, "k", &out))
	assert.Equal(t, cachedThing{Name: "chase", Cents: 50000}, out)
	assert.Equal(t, time.Minute, mock.ttls["k"])

	require.NoError(t, cache.Delete(ctx, "k"))
	assert.ErrorIs(t, cache.GetJSON(ctx, "k", &out), ErrCacheMiss)
}

func TestJSONCacheReportsUnavailable(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	mock.fail = errors.New("connection refused")
	cache := &JSONCache{store: mock}

	var out cachedThing
	assert.ErrorIs(t, cache.GetJSON(ctx, "k", &out), ErrCacheUnavailable)
	assert.ErrorIs(t, cache.SetJSON(ctx, "k", out, time.Minute), ErrCacheUnavailable)
	assert.ErrorIs(t, cache.Delete(ctx, "k"), ErrCacheUnavailable)

	assert.ErrorIs(t, NewCache(nil).GetJSON(ctx, "k", &out), ErrCacheUnavailable)
}

func TestJSONCacheCorruptEntryIsMiss(t *testing.T) {
	mock := newMockCmdable()
	mock.data["k"] = "{not-json"
	cache := &JSONCache{store: mock}

	var out cachedThing
	assert.ErrorIs(t, cache.GetJSON(context.Background(), "k", &out), ErrCacheMiss)
}

type mockCmdable struct {
	data map[string]string
	ttls map[string]time.Duration
	fail error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", m.fail)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if m.fail != nil {
		return redis.NewStatusResult("", m.fail)
	}
	m.data[key] = stringify(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	if m.fail != nil {
		return redis.NewStringResult("", m.fail)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if m.fail != nil {
		return redis.NewBoolResult(false, m.fail)
	}
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = stringify(value)
	m.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if m.fail != nil {
		return redis.NewIntResult(0, m.fail)
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	if m.fail != nil {
		return redis.NewIntResult(0, m.fail)
	}
	var n int64
	fmt.Sscan(m.data[key], &n)
	n++
	m.data[key] = fmt.Sprint(n)
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if m.fail != nil {
		return redis.NewBoolResult(false, m.fail)
	}
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func stringify(value any) string {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(value)
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := options(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := options(config.RedisConfig{URL: "redis://:secret@cache:6380/0", DB: 3, PoolSize: 20, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = options(config.RedisConfig{Address: "localhost:6379", DB: 1})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = options(config.RedisConfig{URL: "://bad"})
	assert.Error(t, err)
}
