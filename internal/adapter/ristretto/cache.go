// Package ristretto implements the cache port using dgraph-io/ristretto as
// the L1 in-process layer of the tool-result cache.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cached tool results are small JSON documents; counter sizing assumes a
// few KB per entry.
const avgResultBytes = 4 << 10

// Cache holds recent tool results in process memory, cost-bounded by the
// total byte size of the cached values.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates the L1 cache. maxCostBytes bounds the total size of cached
// tool results.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / avgResultBytes * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Get returns the cached result for key, reporting a miss with ok=false.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value under key at a cost of its byte length for the TTL.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

// Delete evicts key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close stops the cache's internal goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
