package accounts

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/krt-cliente/contas/internal/observability"
	"github.com/krt-cliente/contas/internal/platform/cache"
)

// loadTimeout bounds a shared load. The load runs detached from the caller
// that started it so a cancelled request does not fail callers that joined.
const loadTimeout = 30 * time.Second

// cacheAside implements the read-through and invalidation protocol on top of
// a byte store. Store failures fail open: reads fall back to the database and
// failed writes or deletes are logged.
type cacheAside struct {
	store   cache.Store
	codec   cache.Codec
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   func() time.Time
	group   singleflight.Group
}

func (c *cacheAside) get(ctx context.Context, key string) ([]byte, bool) {
	if c.store == nil {
		return nil, false
	}
	payload, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.metrics.CacheError("get")
		c.logger.Warn("cache get failed, reading from database", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return payload, ok
}

func (c *cacheAside) set(ctx context.Context, key string, payload []byte) {
	if c.store == nil {
		return
	}
	ttl := TTLUntilEndOfDay(c.clock())
	if err := c.store.Set(ctx, key, payload, ttl); err != nil {
		c.metrics.CacheError("set")
		c.logger.Warn("cache set failed", slog.String("key", key), slog.Any("error", err))
	}
}

// invalidate drops every key; a failed delete leaves that entry stale until
// it expires at the end of the day.
func (c *cacheAside) invalidate(ctx context.Context, keys ...string) {
	if c.store == nil {
		return
	}
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.metrics.CacheError("delete")
			c.logger.Warn("cache invalidation failed", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// readThrough serves key from the cache or loads, encodes and stores it.
// Errors from load (including not found) are returned as-is and never cached.
// Concurrent misses on the same key share a single load.
func readThrough[T any](ctx context.Context, c *cacheAside, key string, load func(context.Context) (T, error)) (T, error) {
	family := keyFamily(key)
	if payload, ok := c.get(ctx, key); ok {
		var cached T
		err := c.codec.Unmarshal(payload, &cached)
		if err == nil {
			c.metrics.CacheHit(family)
			return cached, nil
		}
		c.metrics.CacheError("decode")
		c.logger.Warn("discarding undecodable cache entry", slog.String("key", key), slog.Any("error", err))
	}
	c.metrics.CacheMiss(family)

	resultCh := c.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		start := time.Now()
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.metrics.ObserveCacheLoad(family, time.Since(start))
		payload, err := c.codec.Marshal(value)
		if err != nil {
			c.metrics.CacheError("encode")
			c.logger.Warn("encode cache entry", slog.String("key", key), slog.Any("error", err))
			return value, nil
		}
		c.set(loadCtx, key, payload)
		return value, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
