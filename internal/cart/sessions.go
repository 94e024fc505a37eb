package cart

import (
	"context"
	"sync"
	"time"
)

// Sessions hands out one Store per device session and keeps it for the
// session's lifetime, so the anonymous→bound transition fires exactly
// once per visitor. Idle entries are evictable because the durable copy
// lives elsewhere (Redis for anonymous carts, Postgres for bound ones);
// a returning visitor gets a fresh Store rebuilt from that copy.
type Sessions struct {
	repo  Repository
	cache Cache

	mu     sync.Mutex
	stores map[string]*sessionEntry
	now    func() time.Time
}

type sessionEntry struct {
	store    *Store
	lastSeen time.Time
}

func NewSessions(repo Repository, cache Cache) *Sessions {
	return &Sessions{
		repo:   repo,
		cache:  cache,
		stores: make(map[string]*sessionEntry),
		now:    time.Now,
	}
}

func (s *Sessions) Get(ctx context.Context, deviceID string) (*Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.stores[deviceID]; ok {
		e.lastSeen = s.now()
		return e.store, nil
	}
	store, err := NewStore(ctx, deviceID, s.repo, s.cache)
	if err != nil {
		return nil, err
	}
	s.stores[deviceID] = &sessionEntry{store: store, lastSeen: s.now()}
	return store, nil
}

// EvictIdle drops every session not seen within maxIdle and reports how
// many were removed.
func (s *Sessions) EvictIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	evicted := 0
	for deviceID, e := range s.stores {
		if e.lastSeen.Before(cutoff) {
			delete(s.stores, deviceID)
			evicted++
		}
	}
	return evicted
}

// Sweep runs EvictIdle on a ticker until the context is cancelled.
func (s *Sessions) Sweep(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(maxIdle)
		}
	}
}
