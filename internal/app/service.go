// Package service provides the lookup service used by the HTTP API, the chat
// command adapter and the CLI.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/divtracker/internal/domain/mapping"
	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/internal/domain/stats"
	"github.com/okian/divtracker/pkg/logger"
	"github.com/okian/divtracker/pkg/metrics"
)

// Fetcher runs one batch for a display name.
type Fetcher interface {
	FetchAll(ctx context.Context, name string, src stats.Source) ([]model.StatsPayload, error)
}

// NameHistory is the read side of the name store.
type NameHistory interface {
	NamesByID(ctx context.Context, id string) ([]string, error)
	History(ctx context.Context, id string) ([]model.NameRecord, error)
}

// Session keeps the API ticket valid.
type Session interface {
	EnsureValid(ctx context.Context) error
}

// Service answers statistics lookups for both games.
type Service struct {
	mu sync.RWMutex

	fetcher Fetcher
	names   NameHistory
	session Session
	sources map[model.Game]stats.Source
	closers []func() error

	metricsInterval time.Duration

	started bool
	stopCh  chan struct{}
	done    chan struct{}

	logger logger.Logger
}

// New constructs a Service. Sources are registered with WithSource.
func New(fetcher Fetcher, names NameHistory, opts ...Option) *Service {
	s := &Service{
		fetcher:         fetcher,
		names:           names,
		sources:         make(map[model.Game]stats.Source),
		metricsInterval: metrics.RefreshInterval(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	return s
}

// Start launches the background system metrics loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.metricsLoop(s.stopCh, s.done)

	s.started = true
	s.logger.Info(ctx, "lookup service started", logger.Strings("games", s.games()))
	return nil
}

// Stop ends the background loop and releases the registered resources.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	close(s.stopCh)
	<-s.done

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn(context.Background(), "failed to release resource", logger.Error(err))
		}
	}
	s.closers = nil

	s.started = false
	s.logger.Info(context.Background(), "lookup service stopped")
}

func (s *Service) metricsLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	metrics.UpdateSystemMetrics()
	t := time.NewTicker(s.metricsInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			metrics.UpdateSystemMetrics()
		}
	}
}

// GetStats resolves name and returns one record per profile that answered,
// in resolution order.
func (s *Service) GetStats(ctx context.Context, game model.Game, name string) ([]model.Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if !game.Valid() {
		return nil, fmt.Errorf("%w: %d", model.ErrUnknownGame, int(game))
	}

	s.mu.RLock()
	src, ok := s.sources[game]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, game)
	}

	payloads, err := s.fetcher.FetchAll(ctx, name, src)
	if err != nil {
		return nil, err
	}

	out := make([]model.Record, 0, len(payloads))
	for _, p := range payloads {
		history := s.allNames(ctx, p.Profile.ID)
		switch game {
		case model.Game1:
			out = append(out, mapping.Game1(p, history))
		case model.Game2:
			out = append(out, mapping.Game2(p, history))
		}
	}
	return out, nil
}

// allNames is best effort: a store failure leaves the history empty.
func (s *Service) allNames(ctx context.Context, id string) []string {
	names, err := s.names.NamesByID(ctx, id)
	if err != nil {
		metrics.RecordErrorByComponent("service", "name_history")
		s.logger.Warn(ctx, "failed to load name history", logger.String("profile", id), logger.Error(err))
		return nil
	}
	return names
}

// NameHistory returns every name recorded for id, oldest first.
func (s *Service) NameHistory(ctx context.Context, id string) ([]model.NameRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptyID
	}
	h, err := s.names.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, model.ErrNotFound
	}
	return h, nil
}

// Ready reports whether authenticated calls can be made right now.
func (s *Service) Ready(ctx context.Context) error {
	if s.session == nil {
		return nil
	}
	return s.session.EnsureValid(ctx)
}

// Status returns service state for monitoring.
func (s *Service) Status() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"started": s.started,
		"games":   s.games(),
	}
}

func (s *Service) games() []string {
	out := make([]string, 0, len(s.sources))
	for g := range s.sources {
		out = append(out, g.String())
	}
	sort.Strings(out)
	return out
}
