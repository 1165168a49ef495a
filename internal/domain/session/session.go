// Package session owns the process-wide authentication ticket and renews it
// before it expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sync/singleflight"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
	"github.com/okian/divtracker/pkg/metrics"
)

const (
	defaultMargin        = 5 * time.Minute
	defaultAttempts      = 5
	defaultRetryInterval = 250 * time.Millisecond
	defaultRenewTimeout  = time.Minute
	renewKey             = "renew"
)

var errStillExpiring = errors.New("login returned a ticket inside the renewal margin")

// Authenticator performs one login against the session endpoint.
type Authenticator interface {
	Login(ctx context.Context) (model.Ticket, error)
}

// Clock is the time source used for expiry checks.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// TicketStore holds the current ticket. Readers never observe a partially
// replaced ticket.
type TicketStore struct {
	mu     sync.RWMutex
	ticket model.Ticket
}

// NewTicketStore returns a store holding the expired startup sentinel.
func NewTicketStore() *TicketStore {
	return &TicketStore{ticket: model.Ticket{ExpiresAt: model.ExpiredSentinel}}
}

// Load returns a copy of the current ticket.
func (s *TicketStore) Load() model.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticket
}

// Replace swaps in t as a whole.
func (s *TicketStore) Replace(t model.Ticket) {
	s.mu.Lock()
	s.ticket = t
	s.mu.Unlock()
}

// Manager guarantees a valid ticket before every authenticated call.
type Manager struct {
	auth     Authenticator
	store    *TicketStore
	clock    Clock
	margin   time.Duration
	attempts int
	interval time.Duration
	// renewTimeout bounds one shared renewal, which outlives any single caller.
	renewTimeout time.Duration
	group        singleflight.Group
	logger   logger.Logger
}

// NewManager constructs a Manager that renews through auth.
func NewManager(auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		auth:     auth,
		clock:    ClockFunc(time.Now),
		margin:   defaultMargin,
		attempts: defaultAttempts,
		interval: defaultRetryInterval,

		renewTimeout: defaultRenewTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewTicketStore()
	}
	if m.logger == nil {
		m.logger = logger.Named("session")
	}
	return m
}

// Store exposes the underlying ticket store.
func (m *Manager) Store() *TicketStore { return m.store }

// EnsureValid renews the ticket when it is expired or inside the margin.
// A valid ticket costs no network call.
//
// Concurrent callers share one renewal. It runs detached from every caller
// under its own deadline; a caller whose context ends first gets ctx.Err()
// while the renewal carries on for the others.
func (m *Manager) EnsureValid(ctx context.Context) error {
	if m.valid(m.store.Load()) {
		metrics.UpdateTicketValid(true)
		return nil
	}
	metrics.UpdateTicketValid(false)

	if err := ctx.Err(); err != nil {
		return err
	}

	ch := m.group.DoChan(renewKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.renewTimeout)
		defer cancel()
		return nil, m.renew(rctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ticket ensures validity and returns the ticket to authenticate with.
func (m *Manager) Ticket(ctx context.Context) (model.Ticket, error) {
	if err := m.EnsureValid(ctx); err != nil {
		return model.Ticket{}, err
	}
	return m.store.Load(), nil
}

func (m *Manager) valid(t model.Ticket) bool {
	return t.ValidAt(m.clock.Now(), m.margin)
}

func (m *Manager) renew(ctx context.Context) error {
	attempt := 0
	op := func() error {
		// A concurrent caller outside this flight may have renewed already.
		if m.valid(m.store.Load()) {
			return nil
		}
		attempt++
		t, err := m.auth.Login(ctx)
		if err != nil {
			m.logger.Warn(ctx, "session login failed",
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", m.attempts),
				logger.Error(err),
			)
			return err
		}
		m.store.Replace(t)
		if !m.valid(t) {
			m.logger.Warn(ctx, "session login returned an expiring ticket",
				logger.Int("attempt", attempt),
				logger.Time("expires_at", t.ExpiresAt),
			)
			return errStillExpiring
		}
		m.logger.Info(ctx, "session ticket renewed",
			logger.Int("attempt", attempt),
			logger.String("session_id", t.SessionID),
			logger.Time("expires_at", t.ExpiresAt),
		)
		return nil
	}

	if err := backoff.Retry(op, m.policy(ctx)); err != nil {
		metrics.RecordTicketRenewal(metrics.OutcomeExhausted)
		m.logger.Error(ctx, "session renewal exhausted",
			logger.Int("attempts", attempt),
			logger.Error(err),
		)
		return fmt.Errorf("%w after %d attempts: %w", model.ErrRenewalExhausted, attempt, err)
	}
	metrics.RecordTicketRenewal(metrics.OutcomeSuccess)
	metrics.UpdateTicketValid(true)
	return nil
}

func (m *Manager) policy(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.StopBackOff{}
	// WithMaxRetries treats 0 as unlimited.
	if m.attempts > 1 {
		b = backoff.WithMaxRetries(backoff.NewConstantBackOff(m.interval), uint64(m.attempts-1))
	}
	return backoff.WithContext(b, ctx)
}
