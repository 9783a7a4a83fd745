package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelines-backend/pkg/redis"
	"github.com/angelmondragon/tradelines-backend/pkg/redis/redistest"
	"github.com/angelmondragon/tradelines-backend/pkg/tradelinesupply"
)

type fakeFeed struct {
	lines []tradelinesupply.Tradeline
	err   error
	calls int
}

func (f *fakeFeed) Pricing(context.Context) ([]tradelinesupply.Tradeline, error) {
	f.calls++
	return f.lines, f.err
}

func TestCatalogCachesFeed(t *testing.T) {
	feed := &fakeFeed{lines: []tradelinesupply.Tradeline{line("a", "Chase", 100)}}
	cache := redistest.NewCache()
	catalog, err := NewCatalog(feed, cache, 15*time.Minute, nil)
	require.NoError(t, err)

	first, err := catalog.All(context.Background())
	require.NoError(t, err)
	second, err := catalog.All(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, feed.calls)
	assert.Equal(t, 15*time.Minute, cache.TTL(redis.CatalogKey()))

	catalog.Invalidate(context.Background())
	_, err = catalog.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, feed.calls)
}

func TestCatalogFallsThroughWhenCacheDown(t *testing.T) {
	feed := &fakeFeed{lines: []tradelinesupply.Tradeline{line("a", "Chase", 100)}}
	cache := redistest.NewCache()
	cache.Down = true
	catalog, err := NewCatalog(feed, cache, time.Minute, nil)
	require.NoError(t, err)

	lines, err := catalog.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestCatalogSurfacesFeedError(t *testing.T) {
	feed := &fakeFeed{err: errors.New("boom")}
	catalog, err := NewCatalog(feed, redistest.NewCache(), time.Minute, nil)
	require.NoError(t, err)
	_, err = catalog.All(context.Background())
	assert.Error(t, err)
}

func TestExcludeBanks(t *testing.T) {
	lines := []tradelinesupply.Tradeline{line("1", "Chase Sapphire", 1), line("2", "Bank of America", 1), line("3", "Citi Double Cash", 1)}

	out := ExcludeBanks(lines, []string{"chase", " AMERICA "})
	require.Len(t, out, 1)
	assert.Equal(t, "3", out[0].CardID)

	assert.Len(t, ExcludeBanks(lines, nil), 3)
	assert.Len(t, ExcludeBanks(lines, []string{"  "}), 3)
}
