package rulecache

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/toteplay/rulecache/provider"
)

// degradingStore wraps a Provider so every call fails open: an unconfigured
// or unreachable store answers absent/false and writes become no-ops. Each
// failure is logged at warn and reported through hooks; a circuit breaker
// stops hammering a store that keeps failing, so an outage costs wager
// acceptance almost nothing.
type degradingStore struct {
	p     provider.Provider
	log   Logger
	hooks Hooks
	cb    *gobreaker.CircuitBreaker
}

func newDegradingStore(p provider.Provider, log Logger, hooks Hooks, settings *gobreaker.Settings) *degradingStore {
	s := &degradingStore{p: p, log: log, hooks: hooks}
	if p == nil {
		return s
	}
	var st gobreaker.Settings
	if settings != nil {
		st = *settings
	} else {
		st = gobreaker.Settings{
			Name:    "rulecache-store",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}
	}
	s.cb = gobreaker.NewCircuitBreaker(st)
	return s
}

// run executes fn through the breaker. Returns false when the store is
// unconfigured, the breaker is open, or fn failed; callers treat false as
// absent/no-op.
func (s *degradingStore) run(op, key string, fn func() error) bool {
	if s.p == nil {
		return false
	}
	_, err := s.cb.Execute(func() (any, error) { return nil, fn() })
	if err != nil {
		s.log.Warn("backing store unavailable", Fields{"op": op, "key": key, "err": err})
		s.hooks.StoreUnavailable(op, key, err)
		return false
	}
	return true
}

func (s *degradingStore) get(ctx context.Context, key string) ([]byte, bool) {
	var (
		b  []byte
		ok bool
	)
	done := s.run("get", key, func() error {
		var err error
		b, ok, err = s.p.Get(ctx, key)
		return err
	})
	if !done || !ok {
		return nil, false
	}
	return b, true
}

func (s *degradingStore) set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) bool {
	var accepted bool
	done := s.run("set", key, func() error {
		var err error
		accepted, err = s.p.Set(ctx, key, value, cost, ttl)
		return err
	})
	return done && accepted
}

func (s *degradingStore) del(ctx context.Context, key string) bool {
	return s.run("del", key, func() error {
		return s.p.Del(ctx, key)
	})
}

func (s *degradingStore) exists(ctx context.Context, key string) bool {
	var present bool
	done := s.run("exists", key, func() error {
		var err error
		present, err = s.p.Exists(ctx, key)
		return err
	})
	return done && present
}

// delPattern deletes by glob when the provider supports enumeration;
// otherwise reports zero and lets the scope index carry the invalidation.
func (s *degradingStore) delPattern(ctx context.Context, pattern string) int {
	pd, ok := s.p.(provider.PatternDeleter)
	if !ok {
		return 0
	}
	var n int
	s.run("del_pattern", pattern, func() error {
		var err error
		n, err = pd.DelPattern(ctx, pattern)
		return err
	})
	return n
}

func (s *degradingStore) close(ctx context.Context) error {
	if s.p == nil {
		return nil
	}
	return s.p.Close(ctx)
}
