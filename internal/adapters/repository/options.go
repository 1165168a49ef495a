package repository

import (
	"time"

	"github.com/okian/divtracker/pkg/logger"
)

type options struct {
	now       func() time.Time
	logger    logger.Logger
	keyPrefix string
}

// Option applies a configuration option to a NameStore.
type Option func(*options)

// WithClock sets the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKeyPrefix namespaces the redis keys.
func WithKeyPrefix(p string) Option {
	return func(o *options) {
		if p != "" {
			o.keyPrefix = p
		}
	}
}

func newOptions(name string, opts []Option) options {
	o := options{now: time.Now, keyPrefix: "divtracker"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Named(name)
	}
	return o
}
