// Package browser drives a headless Chrome to read pages that only render
// behind a real browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

const (
	defaultCloseTimeout = 5 * time.Second
	maxBodyBytes        = 8 << 20
)

var (
	ErrProtocol = errors.New("browser: protocol error")
	ErrSession  = errors.New("browser: could not start session")
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Browser loads a page and returns its rendered text. Every call uses its own
// browser session and tears it down before returning.
type Browser interface {
	FetchRenderedText(ctx context.Context, url string) (string, error)
}

// chromeArgs are the switches every session starts with.
var chromeArgs = []string{
	"--disable-web-security",
	"--ssl-protocol=any",
	"--ignore-ssl-errors=true",
	"--disable-extensions",
	"start-maximized",
	"window-size=1280,720",
	"disable-infobars",
}

func args(headless bool) []string {
	out := append([]string(nil), chromeArgs...)
	if headless {
		out = append(out, "--headless=new", "--disable-gpu")
	}
	return out
}

type settings struct {
	http         *http.Client
	headless     bool
	closeTimeout time.Duration
	logger       logger.Logger
}

func newSettings(name string, opts []Option) settings {
	s := settings{closeTimeout: defaultCloseTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	if s.http == nil {
		s.http = &http.Client{}
	}
	if s.logger == nil {
		s.logger = logger.Named(name)
	}
	return s
}

// closeContext detaches teardown from a possibly expired caller context.
func (s settings) closeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.closeTimeout)
}

// classify maps deadline expiry to model.ErrTimeout.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", model.ErrTimeout, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
