package scopeindex

import (
	"context"
	"sync"
	"time"
)

type localScope struct {
	keys      map[string]struct{}
	updatedAt time.Time
}

// LocalIndex keeps the scope mapping in-process (default).
// Optional cleanup loop to prune scopes that have been inactive longer than
// the retention window; their entries have long expired in the store anyway.
type LocalIndex struct {
	mu     sync.RWMutex
	scopes map[string]*localScope
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	retention time.Duration
}

var _ Index = (*LocalIndex)(nil)

func NewLocalIndex(cleanupInterval, retention time.Duration) *LocalIndex {
	s := &LocalIndex{
		scopes:    make(map[string]*localScope),
		retention: retention,
	}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *LocalIndex) Add(_ context.Context, scope string, keys ...string) error {
	now := time.Now()
	s.mu.Lock()
	sc, ok := s.scopes[scope]
	if !ok {
		sc = &localScope{keys: make(map[string]struct{}, len(keys))}
		s.scopes[scope] = sc
	}
	for _, k := range keys {
		sc.keys[k] = struct{}{}
	}
	sc.updatedAt = now
	s.mu.Unlock()
	return nil
}

func (s *LocalIndex) Keys(_ context.Context, scope string) ([]string, error) {
	s.mu.RLock()
	sc, ok := s.scopes[scope]
	var out []string
	if ok {
		out = make([]string, 0, len(sc.keys))
		for k := range sc.keys {
			out = append(out, k)
		}
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *LocalIndex) Remove(_ context.Context, scope, key string) error {
	s.mu.Lock()
	if sc, ok := s.scopes[scope]; ok {
		delete(sc.keys, key)
		if len(sc.keys) == 0 {
			delete(s.scopes, scope)
		} else {
			sc.updatedAt = time.Now()
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *LocalIndex) Drop(_ context.Context, scope string) error {
	s.mu.Lock()
	delete(s.scopes, scope)
	s.mu.Unlock()
	return nil
}

func (s *LocalIndex) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for scope, sc := range s.scopes {
		if !sc.updatedAt.IsZero() && sc.updatedAt.Before(cutoff) {
			delete(s.scopes, scope)
		}
	}
	s.mu.Unlock()
}

func (s *LocalIndex) Close(_ context.Context) error {
	if s.stopCh != nil {
		close(s.stopCh)
		if s.ticker != nil {
			s.ticker.Stop() // stop ticker before waiting
		}
		s.wg.Wait()
	}
	return nil
}
