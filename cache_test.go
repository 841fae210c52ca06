package rulecache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/toteplay/rulecache/internal/wire"
	pr "github.com/toteplay/rulecache/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu sync.Mutex
	m  map[string]memEntry
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = memEntry{v: value, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Exists(_ context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok, nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

func (p *memProvider) raw(key string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.m[key].v
}

func (p *memProvider) put(key string, v []byte) {
	p.mu.Lock()
	p.m[key] = memEntry{v: v}
	p.mu.Unlock()
}

// downProvider fails every call, as if the remote store were unreachable.
type downProvider struct{}

var _ pr.Provider = downProvider{}

var errDown = errors.New("store down")

func (downProvider) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errDown }
func (downProvider) Set(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return false, errDown
}
func (downProvider) Del(context.Context, string) error            { return errDown }
func (downProvider) Exists(context.Context, string) (bool, error) { return false, errDown }
func (downProvider) Close(context.Context) error                  { return nil }

// recordingHooks captures events for assertions.
type recordingHooks struct {
	mu        sync.Mutex
	cycles    [][]string
	evictions int
	freed     int64
	outages   int
}

func (h *recordingHooks) StoreUnavailable(string, string, error) {
	h.mu.Lock()
	h.outages++
	h.mu.Unlock()
}
func (h *recordingHooks) SelfHeal(string, string) {}
func (h *recordingHooks) CycleDetected(path []string) {
	h.mu.Lock()
	h.cycles = append(h.cycles, path)
	h.mu.Unlock()
}
func (h *recordingHooks) EvictionPass(n int, freed int64) {
	h.mu.Lock()
	h.evictions += n
	h.freed += freed
	h.mu.Unlock()
}
func (h *recordingHooks) ScopeInvalidated(string, int) {}
func (h *recordingHooks) WarmingPass(int, int)         {}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, p pr.Provider, mod func(*Options)) Cache {
	t.Helper()
	opts := Options{
		Provider:     p,
		WarmInterval: time.Hour, // keep the scheduler quiet during tests
	}
	if mod != nil {
		mod(&opts)
	}
	cc, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(context.Background()) })
	return cc
}

func mustImpl(t *testing.T, c Cache) *cache {
	t.Helper()
	impl, ok := c.(*cache)
	if !ok {
		t.Fatalf("unexpected concrete type for Cache")
	}
	return impl
}

func storedEnvelope(t *testing.T, mp *memProvider, key string) wire.Envelope {
	t.Helper()
	raw := mp.raw(key)
	if raw == nil {
		t.Fatalf("no stored entry for %q", key)
	}
	env, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("decode stored entry for %q: %v", key, err)
	}
	return env
}

// ==============================
// Generic get/set/delete
// ==============================

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, nil)

	k := cutoffKey("B1", "W1", "")
	if err := cc.Set(ctx, k, []byte("payload")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := cc.Get(ctx, k)
	if !ok || !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("Get after Set: ok=%v got=%q", ok, got)
	}

	m := cc.Metrics()
	if m.Sets != 1 || m.Hits != 1 || m.Misses != 0 {
		t.Fatalf("metrics after set+get: %+v", m)
	}
	if m.HitRate != 1.0 {
		t.Fatalf("hit rate: %v", m.HitRate)
	}
}

func TestGetMiss(t *testing.T) {
	cc := newTestCache(t, newMemProvider(), nil)
	if _, ok := cc.Get(context.Background(), cutoffKey("B1", "", "")); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if m := cc.Metrics(); m.Misses != 1 {
		t.Fatalf("miss not counted: %+v", m)
	}
}

func TestCorruptEntrySelfHeals(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, nil)

	k := cutoffKey("B1", "W1", "")
	mp.put(k, []byte("not an envelope"))

	if _, ok := cc.Get(ctx, k); ok {
		t.Fatalf("corrupt entry should read as miss")
	}
	if mp.has(k) {
		t.Fatalf("corrupt entry should be deleted from the store")
	}
}

// ==============================
// Tiering
// ==============================

func TestTierProgression(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, nil)

	k := restrictionKey("B1", "W1", "", "23")
	if err := cc.Set(ctx, k, []byte(`{"max":500}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Fresh entries start cold.
	if env := storedEnvelope(t, mp, k); env.TTLSeconds != 1800 || env.AccessCount != 0 {
		t.Fatalf("fresh envelope: ttl=%d count=%d", env.TTLSeconds, env.AccessCount)
	}

	// 4 hits cross the warm threshold (>3).
	for i := 0; i < 4; i++ {
		if _, ok := cc.Get(ctx, k); !ok {
			t.Fatalf("hit %d missed", i+1)
		}
	}
	if env := storedEnvelope(t, mp, k); env.TTLSeconds != 300 || env.AccessCount != 4 {
		t.Fatalf("after 4 hits: ttl=%d count=%d", env.TTLSeconds, env.AccessCount)
	}

	// 11 total hits cross the hot threshold (>10).
	for i := 0; i < 7; i++ {
		if _, ok := cc.Get(ctx, k); !ok {
			t.Fatalf("hit %d missed", i+5)
		}
	}
	if env := storedEnvelope(t, mp, k); env.TTLSeconds != 60 || env.AccessCount != 11 {
		t.Fatalf("after 11 hits: ttl=%d count=%d", env.TTLSeconds, env.AccessCount)
	}
}

func TestExplicitTTLOverridesTier(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, nil)

	k := cutoffKey("B1", "", "")
	if err := cc.Set(ctx, k, []byte("v"), WithTTL(42)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if env := storedEnvelope(t, mp, k); env.TTLSeconds != 42 {
		t.Fatalf("explicit ttl not honored: %d", env.TTLSeconds)
	}
}

func TestInvalidTierTableRejected(t *testing.T) {
	_, err := New(Options{Tiers: []Tier{{Threshold: 1, TTLSeconds: 0}}})
	if err == nil {
		t.Fatalf("non-positive tier ttl must be rejected")
	}
}

// ==============================
// Lazy expiry
// ==============================

func TestLazyExpiryDeletesAndMisses(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	cc := newTestCache(t, mp, func(o *Options) { o.Now = clock.now })

	k := cutoffKey("B1", "W1", "")
	if err := cc.Set(ctx, k, []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clock.advance(1801 * time.Second) // past the cold tier ttl
	if _, ok := cc.Get(ctx, k); ok {
		t.Fatalf("expired entry must read as miss")
	}
	if mp.has(k) {
		t.Fatalf("expired entry must be deleted from the store")
	}
	if m := cc.Metrics(); m.Misses != 1 || m.Deletes != 1 {
		t.Fatalf("expiry accounting: %+v", m)
	}
}

// ==============================
// Cascading delete and cycles
// ==============================

func TestCascadingDelete(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, nil)

	a := cutoffKey("B1", "", "")
	b := cutoffKey("B1", "W1", "")
	c := cutoffKey("B1", "W1", "V9")

	if err := cc.Set(ctx, a, []byte("a")); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if err := cc.Set(ctx, b, []byte("b"), WithDependencies(a)); err != nil {
		t.Fatalf("Set b: %v", err)
	}
	if err := cc.Set(ctx, c, []byte("c"), WithDependencies(b)); err != nil {
		t.Fatalf("Set c: %v", err)
	}

	if err := cc.Delete(ctx, a); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, k := range []string{a, b, c} {
		if mp.has(k) {
			t.Fatalf("key %q survived the cascade", k)
		}
	}
	if m := cc.Metrics(); m.Invalidations < 2 {
		t.Fatalf("cascaded invalidations not counted: %+v", m)
	}
}

func TestCycleTerminatesAndReports(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recordingHooks{}
	cc := newTestCache(t, mp, func(o *Options) { o.Hooks = hooks })

	a := cutoffKey("B1", "W1", "")
	b := cutoffKey("B1", "W2", "")

	if err := cc.Set(ctx, a, []byte("a"), WithDependencies(b)); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if err := cc.Set(ctx, b, []byte("b"), WithDependencies(a)); err != nil {
		t.Fatalf("Set b: %v", err)
	}

	err := cc.Delete(ctx, a)
	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if mp.has(a) || mp.has(b) {
		t.Fatalf("cycle members should still be deleted exactly once")
	}
	if len(hooks.cycles) == 0 {
		t.Fatalf("cycle hook not fired")
	}
}

func TestSelfDependencyRejected(t *testing.T) {
	cc := newTestCache(t, newMemProvider(), nil)
	k := cutoffKey("B1", "", "")
	err := cc.Set(context.Background(), k, []byte("v"), WithDependencies(k))
	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("self-dependency must be rejected, got %v", err)
	}
}

func TestInvalidDependencyKeyRejected(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, nil)

	k := cutoffKey("B1", "W1", "")
	if err := cc.Set(ctx, k, []byte("v"), WithDependencies("")); !errors.Is(err, ErrInvalidDependencyKey) {
		t.Fatalf("empty dependency key: got %v", err)
	}
	long := string(bytes.Repeat([]byte("x"), wire.MaxDepKeyLen+1))
	if err := cc.Set(ctx, k, []byte("v"), WithDependencies(long)); !errors.Is(err, ErrInvalidDependencyKey) {
		t.Fatalf("oversized dependency key: got %v", err)
	}
	many := make([]string, wire.MaxDeps+1)
	for i := range many {
		many[i] = cutoffKey("B1", "", "")
	}
	if err := cc.Set(ctx, k, []byte("v"), WithDependencies(many...)); !errors.Is(err, ErrTooManyDependencies) {
		t.Fatalf("too many dependency keys: got %v", err)
	}
	if mp.has(k) {
		t.Fatalf("rejected writes must not reach the store")
	}
}

// ==============================
// Degradation
// ==============================

func TestDegradationStoreDown(t *testing.T) {
	ctx := context.Background()
	hooks := &recordingHooks{}
	cc := newTestCache(t, downProvider{}, func(o *Options) { o.Hooks = hooks })

	k := cutoffKey("B1", "W1", "")
	if err := cc.Set(ctx, k, []byte("v")); err != nil {
		t.Fatalf("Set must degrade silently, got %v", err)
	}
	if _, ok := cc.Get(ctx, k); ok {
		t.Fatalf("Get must answer absent while the store is down")
	}
	if hooks.outages == 0 {
		t.Fatalf("store outage hook not fired")
	}
}

func TestDegradationBreakerStopsHammering(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, downProvider{}, nil)

	// Enough consecutive failures to open the breaker, then more calls.
	for i := 0; i < 20; i++ {
		if _, ok := cc.Get(ctx, cutoffKey("B1", "", "")); ok {
			t.Fatalf("unexpected hit from a dead store")
		}
	}
}

func TestNilProviderRunsDegraded(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil, nil)

	k := cutoffKey("B1", "", "")
	if err := cc.Set(ctx, k, []byte("v")); err != nil {
		t.Fatalf("Set with nil provider: %v", err)
	}
	if _, ok := cc.Get(ctx, k); ok {
		t.Fatalf("nil provider must read as absent")
	}
}

func TestDisabledCache(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, func(o *Options) { o.Disabled = true })

	if cc.Enabled() {
		t.Fatalf("Disabled option ignored")
	}
	k := cutoffKey("B1", "", "")
	if err := cc.Set(ctx, k, []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := cc.Get(ctx, k); ok {
		t.Fatalf("disabled cache must miss")
	}
	if mp.has(k) {
		t.Fatalf("disabled cache must not write")
	}
}

// ==============================
// Domain helpers
// ==============================

func TestCutoffScenario(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, newMemProvider(), nil)

	want := CutoffValue{Minutes: 15, Source: SourceWindow}
	if err := cc.SetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W1"}, want); err != nil {
		t.Fatalf("SetCutoff: %v", err)
	}

	got, ok := cc.GetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W1"})
	if !ok || got != want {
		t.Fatalf("GetCutoff: ok=%v got=%+v", ok, got)
	}
	if _, ok := cc.GetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W2"}); ok {
		t.Fatalf("different window must be absent")
	}
	if _, ok := cc.GetCutoff(ctx, CutoffScope{Operator: "B1"}); ok {
		t.Fatalf("partial scope must not collide with qualified scope")
	}
}

func TestRestrictionRoundTrip(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, newMemProvider(), nil)

	rule, _ := json.Marshal(map[string]any{"number": "23", "maxAmount": 500})
	scope := RestrictionScope{Operator: "B1", Window: "W1", Number: "23"}
	if err := cc.SetRestriction(ctx, scope, rule); err != nil {
		t.Fatalf("SetRestriction: %v", err)
	}
	got, ok := cc.GetRestriction(ctx, scope)
	if !ok || !bytes.Equal(got, rule) {
		t.Fatalf("GetRestriction: ok=%v got=%s", ok, got)
	}
}

// ==============================
// Scope invalidation
// ==============================

func TestInvalidateScopeByOperator(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, nil)

	_ = cc.SetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W1"}, CutoffValue{Minutes: 10, Source: SourceWindow})
	_ = cc.SetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W2"}, CutoffValue{Minutes: 20, Source: SourceWindow})
	_ = cc.SetRestriction(ctx, RestrictionScope{Operator: "B1", Window: "W1", Number: "23"}, []byte(`{"max":100}`))
	_ = cc.SetCutoff(ctx, CutoffScope{Operator: "B2", Window: "W1"}, CutoffValue{Minutes: 5, Source: SourceOperator})

	n := cc.InvalidateScope(ctx, Scope{Operator: "B1"})
	if n < 3 {
		t.Fatalf("expected at least 3 invalidated keys, got %d", n)
	}
	if _, ok := cc.GetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W1"}); ok {
		t.Fatalf("B1/W1 survived operator invalidation")
	}
	if _, ok := cc.GetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W2"}); ok {
		t.Fatalf("B1/W2 survived operator invalidation")
	}
	if _, ok := cc.GetRestriction(ctx, RestrictionScope{Operator: "B1", Window: "W1", Number: "23"}); ok {
		t.Fatalf("restriction survived operator invalidation")
	}
	// Other operators stay untouched.
	if _, ok := cc.GetCutoff(ctx, CutoffScope{Operator: "B2", Window: "W1"}); !ok {
		t.Fatalf("B2 must not be touched by a B1 invalidation")
	}
	if m := cc.Metrics(); m.Invalidations < 3 {
		t.Fatalf("invalidations not counted: %+v", m)
	}
}

func TestInvalidateScopeByWindow(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, newMemProvider(), nil)

	_ = cc.SetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W1"}, CutoffValue{Minutes: 10, Source: SourceWindow})
	_ = cc.SetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W2"}, CutoffValue{Minutes: 20, Source: SourceWindow})

	if n := cc.InvalidateScope(ctx, Scope{Operator: "B1", Window: "W1"}); n != 1 {
		t.Fatalf("window invalidation removed %d keys", n)
	}
	if _, ok := cc.GetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W2"}); !ok {
		t.Fatalf("sibling window must survive")
	}
}

func TestInvalidateScopeByVendorWithoutWindow(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, newMemProvider(), nil)

	_ = cc.SetCutoff(ctx, CutoffScope{Operator: "B1", Vendor: "V1"}, CutoffValue{Minutes: 10, Source: SourceVendor})
	_ = cc.SetCutoff(ctx, CutoffScope{Operator: "B1", Vendor: "V2"}, CutoffValue{Minutes: 20, Source: SourceVendor})
	_ = cc.SetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W1", Vendor: "V1"}, CutoffValue{Minutes: 5, Source: SourceVendor})

	if n := cc.InvalidateScope(ctx, Scope{Operator: "B1", Vendor: "V1"}); n != 1 {
		t.Fatalf("vendor invalidation removed %d keys", n)
	}
	if _, ok := cc.GetCutoff(ctx, CutoffScope{Operator: "B1", Vendor: "V1"}); ok {
		t.Fatalf("windowless vendor entry survived vendor invalidation")
	}
	// A vendor scope without a window matches only windowless entries.
	if _, ok := cc.GetCutoff(ctx, CutoffScope{Operator: "B1", Vendor: "V2"}); !ok {
		t.Fatalf("sibling vendor must survive")
	}
	if _, ok := cc.GetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W1", Vendor: "V1"}); !ok {
		t.Fatalf("windowed entry must survive a windowless vendor invalidation")
	}
}

// ==============================
// Memory governor
// ==============================

func TestMemoryCeilingEvictsLRU(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recordingHooks{}
	cc := newTestCache(t, mp, func(o *Options) {
		o.MaxMemoryBytes = 2048
		o.Hooks = hooks
	})

	payload := bytes.Repeat([]byte{0xA5, 0x5A, 0x3C}, 200) // 600 B, below compression
	keys := []string{
		cutoffKey("B1", "W1", ""),
		cutoffKey("B1", "W2", ""),
		cutoffKey("B1", "W3", ""),
		cutoffKey("B1", "W4", ""),
	}
	for _, k := range keys {
		if err := cc.Set(ctx, k, payload); err != nil {
			t.Fatalf("Set %q: %v", k, err)
		}
	}

	if hooks.evictions == 0 {
		t.Fatalf("ceiling crossed but no eviction pass ran")
	}
	if mp.has(keys[0]) {
		t.Fatalf("least recently used key must be evicted first")
	}
	if mp.has(keys[len(keys)-1]) == false {
		t.Fatalf("newest key must never be evicted by its own write")
	}
	if m := cc.Metrics(); m.MemoryUsageBytes > 2048 {
		t.Fatalf("usage above ceiling after reclamation: %d", m.MemoryUsageBytes)
	}
}

// ==============================
// Warming
// ==============================

func TestWarmScopeExpandsAndProbes(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, nil)
	impl := mustImpl(t, cc)

	// Pre-populate one of the keys the scope implies.
	_ = cc.SetCutoff(ctx, CutoffScope{Operator: "B1", Window: "W1"}, CutoffValue{Minutes: 10, Source: SourceWindow})

	queued := cc.WarmScope(ctx, WarmRequest{Operator: "B1", Windows: []string{"W1", "W2"}, Numbers: []string{"23"}})
	if queued != 4 { // (cutoff + restriction) x 2 windows
		t.Fatalf("expected 4 queued keys, got %d", queued)
	}

	probed, warmed := impl.warm.drain(ctx)
	if probed != 4 || warmed != 1 {
		t.Fatalf("drain: probed=%d warmed=%d", probed, warmed)
	}
	if m := cc.Metrics(); m.WarmingRuns != 1 {
		t.Fatalf("warming pass not counted: %+v", m)
	}

	// Queue is drained; the next pass has nothing to do.
	if probed, _ := impl.warm.drain(ctx); probed != 0 {
		t.Fatalf("queue should be empty after a drain, probed %d", probed)
	}
}

// ==============================
// Compression accounting
// ==============================

func TestCompressionRatioTracked(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, nil)
	impl := mustImpl(t, cc)

	k := restrictionKey("B1", "", "", "")
	big := bytes.Repeat([]byte("lottery restriction rule "), 100) // 2500 B, compressible
	if err := cc.Set(ctx, k, big); err != nil {
		t.Fatalf("Set: %v", err)
	}
	rawAfterSet := impl.met.rawBytes.Load()
	if rawAfterSet != int64(len(big)) {
		t.Fatalf("set not accounted: raw=%d", rawAfterSet)
	}

	got, ok := cc.Get(ctx, k)
	if !ok || !bytes.Equal(got, big) {
		t.Fatalf("large payload round trip failed: ok=%v", ok)
	}
	// The hit-path write-back re-encodes the envelope and counts too.
	if raw := impl.met.rawBytes.Load(); raw != rawAfterSet+int64(len(big)) {
		t.Fatalf("hit write-back not accounted: raw=%d", raw)
	}
	if m := cc.Metrics(); m.CompressionRatio >= 1.0 || m.CompressionRatio <= 0 {
		t.Fatalf("compression ratio not tracked: %v", m.CompressionRatio)
	}
}
