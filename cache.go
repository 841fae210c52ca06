package rulecache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/toteplay/rulecache/codec"
	"github.com/toteplay/rulecache/internal/wire"
	si "github.com/toteplay/rulecache/scopeindex"
)

const (
	defaultMaxMemory      = int64(64 << 20)
	defaultWarmInterval   = 30 * time.Second
	defaultSweep          = time.Hour
	defaultIndexRetention = 30 * 24 * time.Hour
)

type cache struct {
	store  *degradingStore
	log    Logger
	hooks  Hooks
	tiers  tierTable
	graph  *depGraph
	gov    *governor
	met    *counters
	scopes si.Index

	cutoffCodec      c.Codec[CutoffValue]
	restrictionCodec c.Codec[[]byte]

	sf      singleflight.Group
	now     func() time.Time
	enabled bool

	warm      *warmer
	closeOnce sync.Once
}

func newCache(opts Options) (*cache, error) {
	tiers, err := newTierTable(opts.Tiers)
	if err != nil {
		return nil, err
	}

	cc := &cache{
		tiers:   tiers,
		graph:   newDepGraph(),
		met:     newCounters(),
		enabled: !opts.Disabled,
	}

	// defaults
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	cc.now = opts.Now
	if cc.now == nil {
		cc.now = time.Now
	}

	cc.store = newDegradingStore(opts.Provider, cc.log, cc.hooks, opts.Breaker)
	cc.gov = newGovernor(coalesce[int64](opts.MaxMemoryBytes, defaultMaxMemory))

	if opts.ScopeIndex != nil {
		cc.scopes = opts.ScopeIndex
	} else {
		sweep := coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
		retention := coalesce[time.Duration](opts.IndexRetention, defaultIndexRetention)
		cc.scopes = si.NewLocalIndex(sweep, retention)
	}

	if opts.CutoffCodec != nil {
		cc.cutoffCodec = opts.CutoffCodec
	} else {
		cc.cutoffCodec = c.Msgpack[CutoffValue]{}
	}
	if opts.RestrictionCodec != nil {
		cc.restrictionCodec = opts.RestrictionCodec
	} else {
		cc.restrictionCodec = c.Bytes{}
	}

	cc.warm = newWarmer(cc, coalesce[time.Duration](opts.WarmInterval, defaultWarmInterval))
	if cc.enabled {
		cc.warm.start()
	}
	return cc, nil
}

func (cc *cache) Enabled() bool { return cc.enabled }

func (cc *cache) Close(ctx context.Context) error {
	var err error
	cc.closeOnce.Do(func() {
		cc.warm.stop()
		if cc.scopes != nil {
			_ = cc.scopes.Close(ctx)
		}
		err = cc.store.close(ctx)
	})
	return err
}

func (cc *cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !cc.enabled || key == "" {
		return nil, false
	}

	// Concurrent reads of the same key share one store round trip.
	v, _, _ := cc.sf.Do(key, func() (any, error) {
		b, ok := cc.store.get(ctx, key)
		if !ok {
			return nil, nil
		}
		return b, nil
	})
	raw, _ := v.([]byte)
	if raw == nil {
		cc.met.misses.Inc()
		return nil, false
	}

	env, err := wire.Decode(raw)
	if err != nil {
		cc.hooks.SelfHeal(key, "corrupt")
		cc.log.Debug("corrupt entry dropped", Fields{"key": key})
		cc.store.del(ctx, key)
		cc.gov.noteDelete(key)
		cc.met.misses.Inc()
		return nil, false
	}

	now := cc.now()
	age := now.UnixNano() - env.WrittenAt
	if age > int64(env.TTLSeconds)*int64(time.Second) {
		// Lazy expiry behaves like an explicit delete, cascade included.
		cc.hooks.SelfHeal(key, "expired")
		_ = cc.deleteCascade(ctx, key)
		cc.met.misses.Inc()
		return nil, false
	}

	// Hit: bump the access stats and re-evaluate the tier against the
	// post-increment count. A tier change re-arms the store expiry from
	// now; a plain hit writes back with the remaining window so the
	// envelope clock and the store clock stay in step.
	env.AccessCount++
	env.LastAccessedAt = now.UnixNano()
	newTTL := uint32(cc.tiers.ttlFor(int(env.AccessCount)))
	retier := newTTL != env.TTLSeconds
	if retier {
		env.TTLSeconds = newTTL
	}

	frame, stored := wire.Encode(env)
	if stored != len(env.Payload) {
		cc.met.noteCompression(len(env.Payload), stored)
	}
	ttl := time.Duration(env.TTLSeconds) * time.Second
	if !retier {
		if remaining := ttl - time.Duration(age); remaining > time.Second {
			ttl = remaining
		} else {
			ttl = time.Second
		}
	}
	cc.store.set(ctx, key, frame, int64(len(frame)), ttl)

	cc.gov.noteAccess(key)
	cc.met.hits.Inc()
	return env.Payload, true
}

func (cc *cache) Set(ctx context.Context, key string, payload []byte, opts ...SetOption) error {
	if !cc.enabled || key == "" {
		return nil
	}
	var cfg setConfig
	for _, o := range opts {
		o(&cfg)
	}
	if len(cfg.deps) > wire.MaxDeps {
		return ErrTooManyDependencies
	}
	for _, d := range cfg.deps {
		if l := len(d); l == 0 || l > wire.MaxDepKeyLen {
			return ErrInvalidDependencyKey
		}
		if d == key {
			err := &CycleError{Path: []string{key, key}}
			cc.hooks.CycleDetected(err.Path)
			return err
		}
	}

	ttlSec := cfg.ttlSeconds
	if ttlSec <= 0 {
		ttlSec = cc.tiers.ttlFor(0) // new entries start cold
	}

	now := cc.now().UnixNano()
	env := wire.Envelope{
		WrittenAt:      now,
		LastAccessedAt: now,
		TTLSeconds:     uint32(ttlSec),
		DependsOn:      cfg.deps,
		Payload:        payload,
	}
	frame, stored := wire.Encode(env)
	if stored != len(payload) {
		cc.met.noteCompression(len(payload), stored)
	}

	if !cc.store.set(ctx, key, frame, int64(len(frame)), time.Duration(ttlSec)*time.Second) {
		return nil // degraded or rejected; nothing to account
	}

	for _, d := range cfg.deps {
		cc.graph.register(d, key)
	}
	for _, scope := range scopesOf(key) {
		if err := cc.scopes.Add(ctx, scope, key); err != nil {
			cc.log.Warn("scope index add failed", Fields{"scope": scope, "key": key, "err": err})
		}
	}
	cc.met.sets.Inc()

	if victims, freed := cc.gov.noteWrite(key, int64(len(frame))); len(victims) > 0 {
		cc.evict(ctx, victims, freed)
	}
	return nil
}

func (cc *cache) Delete(ctx context.Context, key string) error {
	if !cc.enabled || key == "" {
		return nil
	}
	return cc.deleteCascade(ctx, key)
}

// deleteCascade removes a key and, recursively, every key that declared it as
// a dependency. A visited set bounds the walk: revisiting a key means the
// declarations form a cycle, which is reported instead of recursed into.
func (cc *cache) deleteCascade(ctx context.Context, root string) error {
	visited := make(map[string]bool)
	var cyc *CycleError

	var walk func(key string, path []string, cascaded bool)
	walk = func(key string, path []string, cascaded bool) {
		if visited[key] {
			if cyc == nil {
				cyc = &CycleError{Path: append(append([]string(nil), path...), key)}
				cc.hooks.CycleDetected(cyc.Path)
				cc.log.Warn("dependency cycle detected during cascade", Fields{"path": cyc.Path})
			}
			return
		}
		visited[key] = true
		path = append(path, key)

		cc.gov.noteDelete(key)
		cc.store.del(ctx, key)
		cc.met.deletes.Inc()
		if cascaded {
			cc.met.invalidations.Inc()
		}
		for _, scope := range scopesOf(key) {
			if err := cc.scopes.Remove(ctx, scope, key); err != nil {
				cc.log.Debug("scope index remove failed", Fields{"scope": scope, "key": key, "err": err})
			}
		}
		for _, dependent := range cc.graph.dependents(key) {
			walk(dependent, path, true)
		}
		cc.graph.drop(key)
	}
	walk(root, nil, false)

	if cyc != nil {
		return cyc
	}
	return nil
}

func (cc *cache) InvalidateScope(ctx context.Context, scope Scope) int {
	if !cc.enabled || scope.Operator == "" {
		return 0
	}
	sk := scope.key()

	keys, err := cc.scopes.Keys(ctx, sk)
	if err != nil {
		cc.log.Warn("scope index read failed", Fields{"scope": sk, "err": err})
	}
	removed := 0
	for _, k := range keys {
		_ = cc.deleteCascade(ctx, k)
		removed++
	}
	_ = cc.scopes.Drop(ctx, sk)

	// Widen through the store when it can enumerate: catches entries
	// written by replicas that share neither our index nor our graph.
	for _, pattern := range scopePatterns(scope) {
		removed += cc.store.delPattern(ctx, pattern)
	}

	cc.met.invalidations.Add(int64(removed))
	cc.hooks.ScopeInvalidated(sk, removed)
	cc.log.Info("scope invalidated", Fields{"scope": sk, "keys": removed})
	return removed
}

func (cc *cache) WarmScope(_ context.Context, req WarmRequest) int {
	if !cc.enabled {
		return 0
	}
	keys := expandScope(req)
	cc.warm.enqueue(keys)
	return len(keys)
}

func (cc *cache) Metrics() Metrics {
	m := cc.met.snapshot()
	m.MemoryUsageBytes = cc.gov.bytes()
	return m
}

// evict drops LRU victims chosen by the governor. Eviction is a capacity
// decision, not an invalidation: no cascade, no delete counter.
func (cc *cache) evict(ctx context.Context, victims []string, freed int64) {
	for _, k := range victims {
		cc.store.del(ctx, k)
		for _, scope := range scopesOf(k) {
			_ = cc.scopes.Remove(ctx, scope, k)
		}
	}
	cc.hooks.EvictionPass(len(victims), freed)
	cc.log.Info("memory ceiling reclamation", Fields{"evicted": len(victims), "freed_bytes": freed})
}
