// Package repository persists the append-only name history: every
// (profile id, display name) pair ever observed.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/metrics"
)

// NameStore provides read/write access to the name history.
type NameStore interface {
	// Record stores the pair with the current time. Recording a pair that
	// already exists is a no-op.
	Record(ctx context.Context, id, name string) error

	// IDsByName returns every id ever seen with name, compared case
	// insensitively, oldest first.
	IDsByName(ctx context.Context, name string) ([]string, error)

	// NamesByID returns every name ever seen for id, oldest first.
	NamesByID(ctx context.Context, id string) ([]string, error)

	// History returns the full records of id, oldest first.
	History(ctx context.Context, id string) ([]model.NameRecord, error)

	Close() error
}

func validate(id, name string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(name) == "" {
		return ErrInvalidRecord
	}
	return nil
}

// observe records the latency of one store operation.
func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Milliseconds()))
}

// nameKey is the case-folded form every backend matches names on.
func nameKey(name string) string {
	return strings.ToLower(name)
}

func names(records []model.NameRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}
