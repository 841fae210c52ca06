package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/toteplay/rulecache"
)

type Options struct {
	// Sampling to avoid floods during a store outage; 0/1 = log all.
	StoreUnavailableEvery uint64
	SelfHealEvery         uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	storeCtr    atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ rulecache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) StoreUnavailable(op, key string, err error) {
	if h.l == nil || !sample(h.opts.StoreUnavailableEvery, &h.storeCtr) {
		return
	}
	h.l.Warn("rulecache.store_unavailable",
		"op", op,
		"key", key,
		"err", err)
}

func (h *Hooks) SelfHeal(key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("rulecache.self_heal",
		"key", key,
		"reason", reason)
}

func (h *Hooks) CycleDetected(path []string) {
	if h.l == nil {
		return
	}
	h.l.Error("rulecache.dependency_cycle",
		"path", path)
}

func (h *Hooks) EvictionPass(evicted int, freedBytes int64) {
	if h.l == nil {
		return
	}
	h.l.Info("rulecache.eviction_pass",
		"evicted", evicted,
		"freed_bytes", freedBytes)
}

func (h *Hooks) ScopeInvalidated(scope string, keys int) {
	if h.l == nil {
		return
	}
	h.l.Info("rulecache.scope_invalidated",
		"scope", scope,
		"keys", keys)
}

func (h *Hooks) WarmingPass(probed, warmed int) {
	if h.l == nil {
		return
	}
	h.l.Debug("rulecache.warming_pass",
		"probed", probed,
		"warmed", warmed)
}
