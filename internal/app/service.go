// Package service wires the leaderboard, verification and score editing
// components to the backend for the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/arena/internal/adapters/backend"
	"github.com/okian/arena/internal/adapters/mq/queue"
	"github.com/okian/arena/internal/adapters/mq/worker"
	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/pending"
	"github.com/okian/arena/internal/domain/scores"
	"github.com/okian/arena/internal/domain/verify"
	"github.com/okian/arena/internal/session"
	"github.com/okian/arena/pkg/logger"
)

// Service implements the API dependencies on top of the backend client.
type Service struct {
	mu sync.RWMutex

	// Core components
	backend      *backend.Client
	store        repository.Store
	ownsStore    bool
	refreshQueue *queue.InMemoryQueue
	refreshPool  *worker.Pool
	guard        pending.Guard
	flight       singleflight.Group

	// Configuration
	treeCacheTTL     time.Duration
	verifyInterval   time.Duration
	refreshWorkers   int
	refreshQueueSize int

	// State
	started   bool
	startedAt time.Time

	// Logging
	logger logger.Logger
}

// Filter narrows a leaderboard view. Zero values keep the defaults.
type Filter struct {
	Stage leaderboard.ID
	Group leaderboard.ID
	Match string
}

// SaveRequest replaces the rows of one match. EventID, when set, names the
// event whose tree is refreshed after a successful save.
type SaveRequest struct {
	EventID leaderboard.ID
	MatchID leaderboard.ID
	Rows    []scores.EditableRow
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		treeCacheTTL:     time.Minute,
		verifyInterval:   verify.DefaultInterval,
		refreshWorkers:   2,
		refreshQueueSize: 256,
		logger:           nil, // replaced in Start unless set
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the cache, the refresh workers and the shared guard.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.backend == nil {
		return ErrNoBackend
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.store == nil || s.ownsStore {
		s.store = repository.NewMemoryStore(ctx, repository.WithTTL(s.treeCacheTTL))
		s.ownsStore = true
	}
	s.guard = pending.New()
	s.refreshQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.refreshQueueSize))
	s.refreshPool = worker.NewPool(s.refreshWorkers, s.refreshQueue, s,
		worker.WithLogger(s.logger),
	)
	s.refreshPool.Start(ctx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "service started",
		logger.String("backend", s.backend.BaseURL()),
		logger.Duration("tree_cache_ttl", s.treeCacheTTL),
		logger.Duration("verify_interval", s.verifyInterval),
		logger.Int("refresh_workers", s.refreshWorkers),
	)
	return nil
}

// Stop shuts down the refresh workers and the cache.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool, store, owned := s.refreshPool, s.store, s.ownsStore
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping service...")

	// Workers call back into the service, so they are stopped without
	// holding the lock.
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "refresh workers did not stop cleanly", logger.Error(err))
	}
	if owned {
		if closer, ok := store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	s.logger.Info(ctx, "service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Events lists events visible to sess.
func (s *Service) Events(ctx context.Context, sess *session.Session) ([]leaderboard.Event, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.backend.For(sess).Events(ctx)
}

// Tree returns the leaderboard tree of eventID from the cache, fetching it
// on a miss. Cache entries and in-flight fetches are scoped to the caller's
// token, so the backend authorizes every viewer at least once.
func (s *Service) Tree(ctx context.Context, sess *session.Session, eventID leaderboard.ID) (*leaderboard.Tree, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key := repository.Key{EventID: eventID, Viewer: sess.Fingerprint()}
	if tree, err := s.store.Get(ctx, key); err == nil {
		return tree, nil
	}

	v, err, shared := s.flight.Do(key.Viewer+"/"+eventID.String(), func() (any, error) {
		return s.fetchAndStore(context.WithoutCancel(ctx), sess, eventID)
	})
	if shared {
		s.logger.Debug(ctx, "joined in-flight tree fetch", logger.String("event", eventID.String()))
	}
	if err != nil {
		return nil, err
	}
	return v.(*leaderboard.Tree), nil
}

func (s *Service) fetchAndStore(ctx context.Context, sess *session.Session, eventID leaderboard.ID) (*leaderboard.Tree, error) {
	tree, err := s.backend.For(sess).LeaderboardTree(ctx, eventID)
	if err != nil {
		return nil, err
	}
	key := repository.Key{EventID: eventID, Viewer: sess.Fingerprint()}
	if err := s.store.Put(ctx, key, tree); err != nil {
		s.logger.Warn(ctx, "tree not cached", logger.String("event", eventID.String()), logger.Error(err))
	}
	return tree, nil
}

// Fetcher returns a leaderboard.Fetcher backed by the cache.
func (s *Service) Fetcher(sess *session.Session) leaderboard.Fetcher {
	return cachedFetcher{svc: s, sess: sess}
}

type cachedFetcher struct {
	svc  *Service
	sess *session.Session
}

func (f cachedFetcher) LeaderboardTree(ctx context.Context, eventID leaderboard.ID) (*leaderboard.Tree, error) {
	return f.svc.Tree(ctx, f.sess, eventID)
}

// Leaderboard assembles the view of eventID under filter. A failed fetch
// returns the not_found view together with the cause; unknown stage or
// group ids wrap ErrBadRequest.
func (s *Service) Leaderboard(ctx context.Context, sess *session.Session, eventID leaderboard.ID, f Filter) (leaderboard.View, error) {
	if err := s.ready(); err != nil {
		return leaderboard.View{}, err
	}

	a := leaderboard.NewAssembler(s.Fetcher(sess), leaderboard.WithLogger(s.logger))
	if err := a.SelectEvent(ctx, eventID); err != nil {
		return a.View(), err
	}
	if a.Status() != leaderboard.StatusLoaded {
		return a.View(), nil
	}

	if f.Stage != "" {
		if err := a.SelectStage(f.Stage); err != nil {
			return a.View(), fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}
	if f.Group != "" {
		if err := a.SelectGroup(f.Group); err != nil {
			return a.View(), fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}
	a.SelectMatch(f.Match)
	return a.View(), nil
}

// SaveScores submits req as one batch. A concurrent save of the same match
// fails with scores.ErrSaveInFlight.
func (s *Service) SaveScores(ctx context.Context, sess *session.Session, req SaveRequest) (scores.Ack, error) {
	if err := s.ready(); err != nil {
		return scores.Ack{}, err
	}
	if req.MatchID == "" {
		return scores.Ack{}, fmt.Errorf("%w: match id is required", ErrBadRequest)
	}

	ed := s.newEditor(sess, req.EventID)
	ed.LoadRows(req.MatchID, req.Rows)
	return ed.Save(ctx)
}

// EditMatch loads matchID from eventID's tree, applies edits and saves.
func (s *Service) EditMatch(ctx context.Context, sess *session.Session, eventID, matchID leaderboard.ID, edits []scores.Assignment) (scores.Ack, error) {
	tree, err := s.Tree(ctx, sess, eventID)
	if err != nil {
		return scores.Ack{}, err
	}
	m := tree.FindMatch(matchID)
	if m == nil {
		return scores.Ack{}, fmt.Errorf("%w: %s in event %s", ErrMatchNotFound, matchID, eventID)
	}

	ed := s.newEditor(sess, eventID)
	ed.Load(*m)
	if err := ed.Apply(edits...); err != nil {
		ed.Close()
		return scores.Ack{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return ed.Save(ctx)
}

func (s *Service) newEditor(sess *session.Session, eventID leaderboard.ID) *scores.Editor {
	return scores.New(s.backend.For(sess),
		scores.WithGuard(s.guard),
		scores.WithLogger(s.logger),
		scores.WithOnSaved(func(ctx context.Context, _ leaderboard.ID) {
			s.afterSave(ctx, sess, eventID)
		}),
	)
}

// afterSave drops every cached tree so the next read shows confirmed
// state, and queues a background re-fetch of the edited event.
func (s *Service) afterSave(ctx context.Context, sess *session.Session, eventID leaderboard.ID) {
	s.store.InvalidateAll(ctx)
	if eventID == "" {
		return
	}
	if !s.refreshQueue.Enqueue(ctx, queue.Job{EventID: eventID, Session: sess}) {
		s.logger.Warn(ctx, "refresh not queued", logger.String("event", eventID.String()))
	}
}

// Refresh implements worker.Refresher. It always goes to the backend.
func (s *Service) Refresh(ctx context.Context, j queue.Job) error {
	_, err := s.fetchAndStore(ctx, j.Session, j.EventID)
	return err
}

// NewPoller creates a payment verification poller for sess. Manual
// retries for one reference are exclusive across pollers.
func (s *Service) NewPoller(sess *session.Session, reference string, opts ...verify.Option) (*verify.Poller, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	base := []verify.Option{
		verify.WithInterval(s.verifyInterval),
		verify.WithGuard(s.guard),
		verify.WithLogger(s.logger),
		verify.WithErrorMessage(backend.Message),
	}
	return verify.New(s.backend.For(sess), sess, reference, append(base, opts...)...), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":            s.started,
		"tree_cache_ttl_ms":  s.treeCacheTTL.Milliseconds(),
		"verify_interval_ms": s.verifyInterval.Milliseconds(),
		"refresh_workers":    s.refreshWorkers,
	}

	if s.started {
		stats["uptime_seconds"] = int64(time.Since(s.startedAt).Seconds())
		stats["cached_trees"] = s.store.Count(ctx)
		stats["refresh_queue_length"] = s.refreshQueue.Len()
		stats["pending_operations"] = s.guard.Size()
	}
	return stats
}

// IsUnauthorized reports whether err means the session must sign in again.
func IsUnauthorized(err error) bool {
	return errors.Is(err, backend.ErrUnauthorized)
}
