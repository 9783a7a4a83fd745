package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/redis"
	"github.com/angelmondragon/tradelines-backend/pkg/tradelinesupply"
)

// Feed is the upstream source of raw tradelines.
type Feed interface {
	Pricing(ctx context.Context) ([]tradelinesupply.Tradeline, error)
}

// Catalog serves the supplier feed through the cache.
type Catalog struct {
	feed  Feed
	cache redis.Cache
	ttl   time.Duration
	logg  *logger.Logger
}

func NewCatalog(feed Feed, cache redis.Cache, ttl time.Duration, logg *logger.Logger) (*Catalog, error) {
	if feed == nil {
		return nil, errors.New("tradeline feed required")
	}
	if cache == nil {
		return nil, errors.New("cache required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Catalog{feed: feed, cache: cache, ttl: ttl, logg: logg}, nil
}

// All returns every supplier tradeline. Cache failures fall through to the feed.
func (c *Catalog) All(ctx context.Context) ([]tradelinesupply.Tradeline, error) {
	key := redis.CatalogKey()

	var cached []tradelinesupply.Tradeline
	err := c.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		return cached, nil
	case errors.Is(err, redis.ErrCacheMiss):
	default:
		c.warn(ctx, "catalog cache read failed", err)
	}

	fresh, err := c.feed.Pricing(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetJSON(ctx, key, fresh, c.ttl); err != nil {
		c.warn(ctx, "catalog cache write failed", err)
	}
	return fresh, nil
}

// Invalidate drops the cached feed so the next read refetches it.
func (c *Catalog) Invalidate(ctx context.Context) {
	if err := c.cache.Delete(ctx, redis.CatalogKey()); err != nil {
		c.warn(ctx, "catalog cache delete failed", err)
	}
}

func (c *Catalog) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), msg)
}

// ExcludeBanks drops tradelines whose bank name contains any excluded entry,
// compared case-insensitively.
func ExcludeBanks(lines []tradelinesupply.Tradeline, excluded []string) []tradelinesupply.Tradeline {
	needles := make([]string, 0, len(excluded))
	for _, e := range excluded {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			needles = append(needles, e)
		}
	}
	if len(needles) == 0 {
		return lines
	}

	out := make([]tradelinesupply.Tradeline, 0, len(lines))
	for _, line := range lines {
		bank := strings.ToLower(line.BankName)
		keep := true
		for _, n := range needles {
			if strings.Contains(bank, n) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, line)
		}
	}
	return out
}
