// Package cache defines the port for the tool-result cache. Keys are
// derived from the capability name and its arguments; values are the raw
// JSON results of read-only capability calls.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value store with per-entry TTL.
// Get reports a miss with ok=false and a nil error; errors are reserved
// for backend failures, which callers treat as misses.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
