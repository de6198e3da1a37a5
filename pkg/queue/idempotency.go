package queue

import (
	"context"
	"sync"
	"time"
)

// IdempotencyStore keeps the work-in-progress and done markers of deliveries.
// TryAcquire is advisory: two consumers racing between acquire and done may both
// handle a message.
type IdempotencyStore interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsDone(ctx context.Context, key string) (bool, error)
	MarkDone(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// memorySweepInterval is the minimum time between two sweeps of expired entries.
const memorySweepInterval = time.Minute

// MemoryStore is a process-local IdempotencyStore. Expired entries are removed when read
// and swept from writes at most once per memorySweepInterval.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	now       func() time.Time
	nextSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.liveLocked(key) {
		return false, nil
	}

	s.sweepLocked()
	s.entries[key] = s.now().Add(ttl)

	return true, nil
}

func (s *MemoryStore) IsDone(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.liveLocked(key), nil
}

func (s *MemoryStore) MarkDone(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	s.entries[key] = s.now().Add(ttl)

	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)

	return nil
}

func (s *MemoryStore) liveLocked(key string) bool {
	expiresAt, ok := s.entries[key]
	if !ok {
		return false
	}

	if !s.now().Before(expiresAt) {
		delete(s.entries, key)

		return false
	}

	return true
}

func (s *MemoryStore) sweepLocked() {
	now := s.now()
	if now.Before(s.nextSweep) {
		return
	}

	for key, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, key)
		}
	}

	s.nextSweep = now.Add(memorySweepInterval)
}
