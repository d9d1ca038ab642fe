package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mattjoyce/crispbridge/internal/metrics"
)

// Cache stores values of type T as JSON in a Store.
type Cache[T any] struct {
	store  Store
	ttl    time.Duration
	name   string
	logger *slog.Logger
}

// New returns a Cache over store. name labels the cache in metrics.
func New[T any](store Store, name string, ttl time.Duration, logger *slog.Logger) *Cache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache[T]{store: store, ttl: ttl, name: name, logger: logger}
}

// Remember returns the cached value for key, or calls compute and stores its
// result for the cache TTL. Store failures are logged and treated as misses,
// so a broken store degrades to calling compute every time.
func (c *Cache[T]) Remember(ctx context.Context, key string, compute func(context.Context) T) T {
	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		metrics.CacheErrors.WithLabelValues(c.name, "get").Inc()
		c.logger.Warn("cache get failed", "cache", c.name, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
			return v
		}
		c.logger.Warn("discarding undecodable cache entry", "cache", c.name)
	}

	metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
	v := compute(ctx)

	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", "cache", c.name, "error", err)
		return v
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		metrics.CacheErrors.WithLabelValues(c.name, "set").Inc()
		c.logger.Warn("cache set failed", "cache", c.name, "error", err)
	}
	return v
}
