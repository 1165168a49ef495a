package service

import (
	"time"

	"github.com/okian/divtracker/internal/domain/stats"
	"github.com/okian/divtracker/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource registers the statistics source for its game.
func WithSource(src stats.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.sources[src.Game()] = src
		}
	}
}

// WithSession enables readiness checks against the session manager.
func WithSession(sess Session) Option {
	return func(s *Service) {
		s.session = sess
	}
}

// WithCloser registers a resource released by Stop, in reverse order.
func WithCloser(fn func() error) Option {
	return func(s *Service) {
		if fn != nil {
			s.closers = append(s.closers, fn)
		}
	}
}

// WithMetricsInterval sets how often system metrics are refreshed.
func WithMetricsInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.metricsInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
