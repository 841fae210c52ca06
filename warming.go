package rulecache

import (
	"context"
	"sync"
	"time"

	"github.com/toteplay/rulecache/internal/wire"
)

// warmer drains a pending-key queue on a fixed period and probes each key for
// liveness: present and unexpired counts as warmed. The probe neither extends
// the TTL nor refreshes the value from source - it tells operators how much
// of a scope is actually resident before a draw opens, and replicas run it
// independently.
type warmer struct {
	cc       *cache
	interval time.Duration

	mu      sync.Mutex
	pending map[string]struct{}

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newWarmer(cc *cache, interval time.Duration) *warmer {
	return &warmer{
		cc:       cc,
		interval: interval,
		pending:  make(map[string]struct{}),
	}
}

func (w *warmer) start() {
	w.ticker = time.NewTicker(w.interval)
	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ticker.C:
				w.drain(context.Background())
			case <-w.stopCh:
				return
			}
		}
	}()
}

func (w *warmer) stop() {
	if w.stopCh != nil {
		close(w.stopCh)
		w.ticker.Stop()
		w.wg.Wait()
	}
}

func (w *warmer) enqueue(keys []string) {
	if len(keys) == 0 {
		return
	}
	w.mu.Lock()
	for _, k := range keys {
		w.pending[k] = struct{}{}
	}
	w.mu.Unlock()
}

func (w *warmer) drain(ctx context.Context) (probed, warmed int) {
	w.mu.Lock()
	keys := make([]string, 0, len(w.pending))
	for k := range w.pending {
		keys = append(keys, k)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(keys) == 0 {
		return 0, 0
	}

	for _, k := range keys {
		probed++
		if !w.cc.store.exists(ctx, k) {
			continue
		}
		raw, ok := w.cc.store.get(ctx, k)
		if !ok {
			continue
		}
		env, err := wire.Decode(raw)
		if err != nil {
			continue
		}
		age := w.cc.now().UnixNano() - env.WrittenAt
		if age <= int64(env.TTLSeconds)*int64(time.Second) {
			warmed++
		}
	}

	w.cc.met.warmingRuns.Inc()
	w.cc.hooks.WarmingPass(probed, warmed)
	w.cc.log.Debug("warming pass", Fields{"probed": probed, "warmed": warmed})
	return probed, warmed
}
