package stats

import (
	"time"

	"github.com/okian/divtracker/internal/domain/dedupe"
	"github.com/okian/divtracker/pkg/logger"
)

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithConcurrency bounds how many profiles are fetched at once. Zero means
// no bound.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.concurrency = n
		}
	}
}

// WithTimeout sets the deadline applied to each Source.Fetch call.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithDeduper skips store writes for pairs this process already recorded.
func WithDeduper(d dedupe.Deduper) Option {
	return func(f *Fetcher) {
		f.seen = d
	}
}
