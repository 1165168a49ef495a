// Package resolve maps a display name to candidate profile ids using the live
// directory and the local name cache.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
	"github.com/okian/divtracker/pkg/metrics"
)

// Directory is the authenticated profile directory.
type Directory interface {
	// ProfilesByName returns every profile currently using name.
	ProfilesByName(ctx context.Context, name string) ([]model.ProfileRef, error)
	// ProfileByID performs the reverse lookup.
	ProfileByID(ctx context.Context, id string) (model.ProfileRef, error)
}

// NameIndex is the read side of the local name cache.
type NameIndex interface {
	IDsByName(ctx context.Context, name string) ([]string, error)
}

// Resolver unions directory and cache results.
type Resolver struct {
	dir    Directory
	index  NameIndex
	logger logger.Logger
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New constructs a Resolver.
func New(dir Directory, index NameIndex, opts ...Option) *Resolver {
	r := &Resolver{dir: dir, index: index}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Named("resolver")
	}
	return r
}

// Resolve returns the candidate profiles for name, without duplicate ids.
// Directory entries come first and win on conflict; cache-only entries carry
// no name.
func (r *Resolver) Resolve(ctx context.Context, name string) ([]model.ProfileRef, error) {
	var (
		apiRefs  []model.ProfileRef
		cacheIDs []string
		apiErr   error
		cacheErr error
	)

	// Both lookups are best effort; neither failure cancels the other.
	var g errgroup.Group
	g.Go(func() error {
		apiRefs, apiErr = r.dir.ProfilesByName(ctx, name)
		return nil
	})
	g.Go(func() error {
		cacheIDs, cacheErr = r.index.IDsByName(ctx, name)
		return nil
	})
	_ = g.Wait()

	if apiErr != nil {
		metrics.RecordErrorByComponent("resolver", "directory")
		r.logger.Warn(ctx, "directory lookup failed", logger.String("name", name), logger.Error(apiErr))
	}
	if cacheErr != nil {
		metrics.RecordErrorByComponent("resolver", "cache")
		r.logger.Warn(ctx, "name cache lookup failed", logger.String("name", name), logger.Error(cacheErr))
	}

	refs := merge(apiRefs, cacheIDs)
	if len(refs) == 0 {
		metrics.RecordResolve(metrics.OutcomeEmpty)
		if errors.Is(apiErr, model.ErrRenewalExhausted) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, name)
	}

	metrics.RecordResolve(metrics.OutcomeSuccess)
	r.logger.Debug(ctx, "resolved profiles",
		logger.String("name", name),
		logger.Int("api", len(apiRefs)),
		logger.Int("cache", len(cacheIDs)),
		logger.Int("total", len(refs)),
	)
	return refs, nil
}

// Backfill fills p.Name through a reverse lookup when it is unknown.
func (r *Resolver) Backfill(ctx context.Context, p *model.ProfileRef) error {
	if p.HasName() {
		return nil
	}
	ref, err := r.dir.ProfileByID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("backfill name for %s: %w", p.ID, err)
	}
	if ref.Name == "" {
		return fmt.Errorf("backfill name for %s: %w", p.ID, model.ErrNotFound)
	}
	p.Name = ref.Name
	return nil
}

func merge(api []model.ProfileRef, cached []string) []model.ProfileRef {
	seen := make(map[string]struct{}, len(api)+len(cached))
	out := make([]model.ProfileRef, 0, len(api)+len(cached))
	for _, p := range api {
		if p.ID == "" {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	for _, id := range cached {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, model.ProfileRef{ID: id})
	}
	return out
}
