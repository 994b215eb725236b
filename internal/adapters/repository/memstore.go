package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/pkg/metrics"
)

const (
	defaultTTL           = time.Minute
	defaultSweepInterval = 30 * time.Second
)

type entry struct {
	tree      *leaderboard.Tree
	expiresAt time.Time
}

// MemoryStore is an in-memory Store with per-entry expiry. Trees are
// shared, not copied; callers must treat them as read-only.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]entry

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store and starts its sweeper, which stops when
// ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries:       make(map[Key]entry),
		ttl:           defaultTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startSweeper(ctx)
	return s
}

func (s *MemoryStore) startSweeper(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// sweep evicts expired entries and refreshes the entry gauge.
func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	n := len(s.entries)
	s.mu.Unlock()
	metrics.UpdateTreeCacheEntries(n)
}

// Close stops the sweeper.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key Key) (*leaderboard.Tree, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || !s.now().Before(e.expiresAt) {
		metrics.RecordTreeCacheMiss()
		return nil, ErrNotFound
	}
	metrics.RecordTreeCacheHit()
	return e.tree, nil
}

// Put implements Store.Put.
func (s *MemoryStore) Put(_ context.Context, key Key, tree *leaderboard.Tree) error {
	if tree == nil {
		return ErrNilTree
	}
	s.mu.Lock()
	s.entries[key] = entry{tree: tree, expiresAt: s.now().Add(s.ttl)}
	n := len(s.entries)
	s.mu.Unlock()
	metrics.UpdateTreeCacheEntries(n)
	return nil
}

// Invalidate implements Store.Invalidate.
func (s *MemoryStore) Invalidate(_ context.Context, eventID leaderboard.ID) {
	s.mu.Lock()
	for k := range s.entries {
		if k.EventID == eventID {
			delete(s.entries, k)
		}
	}
	n := len(s.entries)
	s.mu.Unlock()
	metrics.UpdateTreeCacheEntries(n)
}

// InvalidateAll implements Store.InvalidateAll.
func (s *MemoryStore) InvalidateAll(_ context.Context) {
	s.mu.Lock()
	s.entries = make(map[Key]entry)
	s.mu.Unlock()
	metrics.UpdateTreeCacheEntries(0)
}

// Count implements Store.Count. Expired entries not yet swept are excluded.
func (s *MemoryStore) Count(_ context.Context) int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}
