// Package provider defines the storage abstraction used by rulecache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no prepended
// metadata, no re-encoding, no mutation). If a store performs internal
// transforms (e.g., compression), they MUST be fully reversed so that the
// bytes returned by Get are identical to the bytes provided to Set.
//
// The keyspaces "cutoff:", "restriction:" and "scope:" are owned by the
// engine. External code MUST NOT write values under these prefixes; foreign
// writes may be treated as corruption by strict envelope validation and
// deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent
// use. Errors are reported to the caller but the engine absorbs them: a
// failing provider makes the cache degrade to misses, never to failures.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Exists reports whether a key is present without fetching its value.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// PatternDeleter is an optional capability: stores that can enumerate keys
// delete every key matching a glob pattern and report how many went away.
// The engine uses it to widen scope invalidation beyond its own index.
type PatternDeleter interface {
	DelPattern(ctx context.Context, pattern string) (int, error)
}
