package service

import (
	"time"

	"github.com/okian/arena/internal/adapters/backend"
	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBackend sets the backend client every session is bound to.
func WithBackend(c *backend.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.backend = c
		}
	}
}

// WithStore replaces the in-memory tree cache.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithTreeCacheTTL sets how long fetched trees are reused.
func WithTreeCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.treeCacheTTL = ttl
		}
	}
}

// WithVerifyInterval sets the polling period of payment verification.
func WithVerifyInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.verifyInterval = d
		}
	}
}

// WithRefreshWorkers sets the number of cache refresh workers.
func WithRefreshWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.refreshWorkers = n
		}
	}
}

// WithRefreshQueueSize sets how many refresh jobs may wait.
func WithRefreshQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.refreshQueueSize = n
		}
	}
}
