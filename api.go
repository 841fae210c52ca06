package rulecache

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	c "github.com/toteplay/rulecache/codec"
	pr "github.com/toteplay/rulecache/provider"
	si "github.com/toteplay/rulecache/scopeindex"
)

// Cache is the facade consumed by the wager-acceptance flow. It never fails
// under normal operation: reads answer value-or-absent even when the backing
// store is down, and the only errors surfaced are programmer misuse
// (dependency cycles). Callers must own a non-cached fallback path.
type Cache interface {
	Enabled() bool
	Close(ctx context.Context) error

	// Generic key-level operations.
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte, opts ...SetOption) error
	Delete(ctx context.Context, key string) error

	// InvalidateScope deletes every entry registered under the scope
	// (cascading along dependency edges) and returns how many keys went
	// away. Widening via provider pattern deletion is used when available.
	InvalidateScope(ctx context.Context, scope Scope) int

	// WarmScope expands a coarse scope into its implied keys and queues
	// them for the next warming pass. Returns the number of keys queued.
	WarmScope(ctx context.Context, req WarmRequest) int

	// Domain helpers over the generic operations.
	GetCutoff(ctx context.Context, scope CutoffScope) (CutoffValue, bool)
	SetCutoff(ctx context.Context, scope CutoffScope, v CutoffValue, opts ...SetOption) error
	GetRestriction(ctx context.Context, scope RestrictionScope) ([]byte, bool)
	SetRestriction(ctx context.Context, scope RestrictionScope, payload []byte, opts ...SetOption) error

	Metrics() Metrics
}

// Options tune the engine. Everything has a default; even Provider may be
// nil, which runs the cache fully degraded (every read a miss, every write a
// no-op) so callers need no special wiring in environments without a store.
type Options struct {
	Provider pr.Provider

	Logger     Logger   // nil => NopLogger
	Hooks      Hooks    // nil => NopHooks
	ScopeIndex si.Index // nil => in-process LocalIndex

	// Tiers maps access counts to TTLs; nil => DefaultTiers (hot keys get
	// the SHORT ttl - see DefaultTiers).
	Tiers []Tier

	MaxMemoryBytes int64         // approximate footprint ceiling; 0 => 64 MiB
	WarmInterval   time.Duration // warming scheduler period; 0 => 30s

	// Local scope index pruning (ignored for external indexes).
	CleanupInterval time.Duration // 0 => 1h
	IndexRetention  time.Duration // 0 => 30d

	Disabled bool // default false (enabled)

	// Breaker overrides the store circuit breaker settings.
	Breaker *gobreaker.Settings

	CutoffCodec      c.Codec[CutoffValue] // nil => codec.Msgpack[CutoffValue]
	RestrictionCodec c.Codec[[]byte]      // nil => codec.Bytes

	// Now overrides the clock (tests).
	Now func() time.Time
}

// SetOption tunes a single write.
type SetOption func(*setConfig)

type setConfig struct {
	ttlSeconds int
	deps       []string
}

// WithTTL pins an explicit TTL instead of tier selection.
func WithTTL(seconds int) SetOption {
	return func(cfg *setConfig) { cfg.ttlSeconds = seconds }
}

// WithDependencies declares the keys this entry depends on: deleting any of
// them also deletes this entry.
func WithDependencies(keys ...string) SetOption {
	return func(cfg *setConfig) { cfg.deps = append(cfg.deps, keys...) }
}

func New(opts Options) (Cache, error) {
	return newCache(opts)
}
