// Package tiered composes the in-process L1 and shared L2 caches into
// one tool-result cache.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/parleyhq/parley/internal/port/cache"
)

// Cache reads through L1 to L2, backfilling L1 on an L2 hit. A failing
// level degrades to a miss on the read path; the cache must never make a
// tool call slower than skipping it would have been.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

// New composes l1 and l2. l1Expire bounds how long backfilled entries
// live in L1, independent of the L2 bucket's own expiry.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1 then L2, backfilling L1 on an L2 hit. Level errors are
// logged and treated as misses.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		slog.Debug("l1 cache read failed", "error", err)
	} else if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		slog.Debug("l2 cache read failed", "error", err)
		return nil, false, nil
	}
	if found {
		_ = c.l1.Set(ctx, key, val, c.l1Expire)
		return val, true, nil
	}

	return nil, false, nil
}

// Set writes through to both levels; an L1 failure does not block the L2
// write.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		slog.Debug("l1 cache write failed", "error", err)
	}
	return c.l2.Set(ctx, key, value, ttl)
}

// Delete removes the entry from both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		slog.Debug("l1 cache delete failed", "error", err)
	}
	return c.l2.Delete(ctx, key)
}
