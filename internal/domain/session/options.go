package session

import (
	"time"

	"github.com/okian/divtracker/pkg/logger"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithMargin sets how long before expiry the ticket is renewed.
func WithMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// WithAttempts sets the number of login attempts per renewal.
func WithAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.attempts = n
		}
	}
}

// WithRetryInterval sets the pause between login attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.interval = d
		}
	}
}

// WithRenewTimeout bounds one renewal across all of its login attempts.
func WithRenewTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.renewTimeout = d
		}
	}
}

// WithStore shares an existing ticket store.
func WithStore(s *TicketStore) Option {
	return func(m *Manager) {
		if s != nil {
			m.store = s
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
