package asynchook

import (
	"sync"

	"github.com/toteplay/rulecache"
)

// Hooks decouples hook work from the cache's hot paths: events are queued and
// replayed on worker goroutines; when the queue is full the event is dropped.
type Hooks struct {
	inner rulecache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ rulecache.Hooks = (*Hooks)(nil)

func New(inner rulecache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) StoreUnavailable(op, key string, err error) {
	h.try(func() { h.inner.StoreUnavailable(op, key, err) })
}
func (h *Hooks) SelfHeal(key, reason string) { h.try(func() { h.inner.SelfHeal(key, reason) }) }
func (h *Hooks) CycleDetected(path []string) { h.try(func() { h.inner.CycleDetected(path) }) }
func (h *Hooks) EvictionPass(evicted int, freed int64) {
	h.try(func() { h.inner.EvictionPass(evicted, freed) })
}
func (h *Hooks) ScopeInvalidated(scope string, keys int) {
	h.try(func() { h.inner.ScopeInvalidated(scope, keys) })
}
func (h *Hooks) WarmingPass(probed, warmed int) {
	h.try(func() { h.inner.WarmingPass(probed, warmed) })
}
