// Package scopeindex tracks which cache keys belong to which scope so that
// InvalidateScope can delete real entries instead of only counting. Use
// LocalIndex (default) for in-process indexing, or RedisIndex so every
// replica sees the keys written by its peers.
package scopeindex

import (
	"context"
	"time"
)

// Index abstracts where the scope -> keys mapping lives.
type Index interface {
	// Add registers keys under a scope string.
	Add(ctx context.Context, scope string, keys ...string) error
	// Keys returns the keys currently registered under a scope; missing => empty.
	Keys(ctx context.Context, scope string) ([]string, error)
	// Remove unregisters a single key from a scope.
	Remove(ctx context.Context, scope, key string) error
	// Drop discards a whole scope.
	Drop(ctx context.Context, scope string) error
	// Cleanup prunes stale metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
