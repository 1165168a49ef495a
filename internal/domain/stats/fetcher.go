// Package stats runs the concurrent per-profile fetch for one resolved name.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/divtracker/internal/domain/dedupe"
	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
	"github.com/okian/divtracker/pkg/metrics"
)

const (
	defaultConcurrency = 5
	defaultTimeout     = 30 * time.Second
)

// Source fetches one profile's statistics for one game.
type Source interface {
	Game() model.Game
	// NeedsName reports whether Fetch is keyed by display name rather than id.
	NeedsName() bool
	Fetch(ctx context.Context, profile model.ProfileRef) (model.StatsPayload, error)
}

// Resolver is the subset of resolve.Resolver the fetcher needs.
type Resolver interface {
	Resolve(ctx context.Context, name string) ([]model.ProfileRef, error)
	Backfill(ctx context.Context, p *model.ProfileRef) error
}

// NameRecorder persists learned (id, name) pairs.
type NameRecorder interface {
	Record(ctx context.Context, id, name string) error
}

// Fetcher fans out one task per resolved profile.
type Fetcher struct {
	resolver    Resolver
	names       NameRecorder
	seen        dedupe.Deduper
	concurrency int
	timeout     time.Duration
	logger      logger.Logger
}

// New constructs a Fetcher.
func New(resolver Resolver, names NameRecorder, opts ...Option) *Fetcher {
	f := &Fetcher{
		resolver:    resolver,
		names:       names,
		concurrency: defaultConcurrency,
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logger.Named("fetcher")
	}
	return f
}

// FetchAll resolves name and fetches every candidate profile from src.
//
// Per-task failures are logged and dropped. An upstream error code or an
// exhausted session renewal aborts the whole batch. When no task succeeds the error wraps model.ErrNoResults joined
// with every task cause.
func (f *Fetcher) FetchAll(ctx context.Context, name string, src Source) ([]model.StatsPayload, error) {
	game := src.Game().String()
	log := f.logger.With(
		logger.String("batch", uuid.NewString()),
		logger.String("game", game),
		logger.String("name", name),
	)

	log.Debug(ctx, "batch resolving")
	profiles, err := f.resolver.Resolve(ctx, name)
	if err != nil {
		metrics.RecordBatch(game, metrics.OutcomeFailure)
		log.Info(ctx, "batch failed to resolve", logger.Error(err))
		return nil, err
	}

	log.Debug(ctx, "batch fetching", logger.Int("outstanding", len(profiles)))

	var (
		mu     sync.Mutex
		slots  = make([]*model.StatsPayload, len(profiles))
		causes []error
	)

	g, gctx := errgroup.WithContext(ctx)
	if f.concurrency > 0 {
		g.SetLimit(f.concurrency)
	}
	for i, p := range profiles {
		g.Go(func() error {
			start := time.Now()
			payload, err := f.fetchOne(gctx, p, src)
			metrics.RecordFetchLatency(game, float64(time.Since(start).Milliseconds()))

			if err != nil {
				if outcome, ok := systemic(err); ok {
					metrics.RecordFetchTask(game, outcome)
					return err
				}
				metrics.RecordFetchTask(game, taskOutcome(err))
				log.Warn(gctx, "fetch task dropped",
					logger.String("profile", p.ID),
					logger.Error(err),
				)
				mu.Lock()
				causes = append(causes, err)
				mu.Unlock()
				return nil
			}

			metrics.RecordFetchTask(game, metrics.OutcomeSuccess)
			slots[i] = &payload
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		outcome, _ := systemic(err)
		metrics.RecordBatch(game, outcome)
		log.Error(ctx, "batch aborted", logger.String("outcome", outcome), logger.Error(err))
		return nil, err
	}

	// Results keep the resolver's order.
	results := make([]model.StatsPayload, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			results = append(results, *p)
		}
	}

	log.Debug(ctx, "batch aggregating", logger.Int("succeeded", len(results)), logger.Int("dropped", len(causes)))
	if len(results) == 0 {
		metrics.RecordBatch(game, metrics.OutcomeEmpty)
		log.Info(ctx, "batch failed empty", logger.Int("dropped", len(causes)))
		return nil, fmt.Errorf("%w for %q: %w", model.ErrNoResults, name, errors.Join(causes...))
	}

	metrics.RecordBatch(game, metrics.OutcomeSuccess)
	log.Info(ctx, "batch succeeded", logger.Int("records", len(results)), logger.Int("dropped", len(causes)))
	return results, nil
}

// fetchOne runs backfill, fetch, backfill, persist for a single profile.
func (f *Fetcher) fetchOne(ctx context.Context, p model.ProfileRef, src Source) (model.StatsPayload, error) {
	if src.NeedsName() {
		if err := f.resolver.Backfill(ctx, &p); err != nil {
			return model.StatsPayload{}, err
		}
	}

	payload, err := f.fetchWithDeadline(ctx, p, src)
	if err != nil {
		return model.StatsPayload{}, err
	}
	payload.Profile = p

	if !payload.Profile.HasName() {
		if err := f.resolver.Backfill(ctx, &payload.Profile); err != nil {
			return model.StatsPayload{}, err
		}
	}

	f.record(ctx, payload.Profile)
	return payload, nil
}

func (f *Fetcher) fetchWithDeadline(ctx context.Context, p model.ProfileRef, src Source) (model.StatsPayload, error) {
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	payload, err := src.Fetch(cctx, p)
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && !errors.Is(err, model.ErrTimeout) {
			return model.StatsPayload{}, fmt.Errorf("%w: fetch %s: %w", model.ErrTimeout, p.ID, err)
		}
		return model.StatsPayload{}, err
	}
	return payload, nil
}

func (f *Fetcher) record(ctx context.Context, p model.ProfileRef) {
	if f.names == nil {
		return
	}
	key := dedupe.PairKey(p.ID, p.Name)
	if f.seen != nil && f.seen.SeenAndRecord(ctx, key) {
		metrics.RecordNameRecord(metrics.OutcomeCached)
		return
	}
	if err := f.names.Record(ctx, p.ID, p.Name); err != nil {
		if f.seen != nil {
			f.seen.Unrecord(ctx, key)
		}
		metrics.RecordNameRecord(metrics.OutcomeFailure)
		f.logger.Warn(ctx, "failed to record name",
			logger.String("profile", p.ID),
			logger.String("profile_name", p.Name),
			logger.Error(err),
		)
		return
	}
	metrics.RecordNameRecord(metrics.OutcomeSuccess)
}

// systemic reports whether err aborts the batch, with its metrics outcome.
func systemic(err error) (string, bool) {
	switch {
	case errors.Is(err, model.ErrUpstream):
		return metrics.OutcomeUpstream, true
	case errors.Is(err, model.ErrRenewalExhausted):
		return metrics.OutcomeExhausted, true
	default:
		return metrics.OutcomeFailure, false
	}
}

func taskOutcome(err error) string {
	if errors.Is(err, model.ErrTimeout) {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeFailure
}
