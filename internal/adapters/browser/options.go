package browser

import (
	"net/http"
	"time"

	"github.com/okian/divtracker/pkg/logger"
)

// Option applies a configuration option to a browser driver.
type Option func(*settings)

// WithHTTPClient sets the client used for the driver's HTTP endpoints.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.http = c
		}
	}
}

// WithHeadless starts Chrome without a window.
func WithHeadless(on bool) Option {
	return func(s *settings) {
		s.headless = on
	}
}

// WithCloseTimeout bounds session teardown.
func WithCloseTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.closeTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
