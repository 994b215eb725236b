// Package pending tracks in-flight user actions so a repeated trigger
// (a double-clicked save, a retry pressed twice) cannot submit twice.
package pending

import (
	"context"
	"sync"
	"sync/atomic"
)

// Guard records which action keys are currently in flight.
type Guard interface {
	// TryAcquire marks key as in flight. It returns false, and records
	// nothing, when key is already in flight or the guard is full.
	TryAcquire(ctx context.Context, key string) bool

	// Release clears key. Releasing a key that is not held is a no-op.
	Release(ctx context.Context, key string)

	// Held reports whether key is in flight.
	Held(ctx context.Context, key string) bool

	Size() int64
}

// inMemoryGuard implements Guard with a mutex-protected set.
// maxInFlight <= 0 means unbounded.
type inMemoryGuard struct {
	mu          sync.Mutex
	keys        map[string]struct{}
	maxInFlight int
	size        atomic.Int64
}

// New creates an in-memory guard.
func New(opts ...Option) Guard {
	g := &inMemoryGuard{
		keys: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *inMemoryGuard) TryAcquire(_ context.Context, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.keys[key]; busy {
		return false
	}
	if g.maxInFlight > 0 && len(g.keys) >= g.maxInFlight {
		return false
	}
	g.keys[key] = struct{}{}
	g.size.Add(1)
	return true
}

func (g *inMemoryGuard) Release(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.keys[key]; busy {
		delete(g.keys, key)
		g.size.Add(-1)
	}
}

func (g *inMemoryGuard) Held(_ context.Context, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.keys[key]
	return busy
}

func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
