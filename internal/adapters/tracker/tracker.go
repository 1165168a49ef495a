// Package tracker reads game 2 statistics from the public tracker profile
// page through a real browser.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/divtracker/internal/adapters/browser"
	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

// DefaultBaseURL is the tracker profile endpoint prefix.
const DefaultBaseURL = "https://api.tracker.gg/api/v2/division-2/standard/profile/uplay/"

const defaultTimeout = 30 * time.Second

var (
	ErrNameRequired = errors.New("tracker: profile has no display name")
	ErrDecode       = errors.New("tracker: malformed profile document")
)

// Source fetches the keyed tracker statistics. It is keyed by display name.
type Source struct {
	browser browser.Browser
	baseURL string
	timeout time.Duration
	logger  logger.Logger
}

// Option applies a configuration option to the Source.
type Option func(*Source)

// WithBaseURL overrides the profile endpoint prefix.
func WithBaseURL(u string) Option {
	return func(s *Source) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithTimeout bounds one browser round trip.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Source on top of b.
func New(b browser.Browser, opts ...Option) *Source {
	s := &Source{browser: b, baseURL: DefaultBaseURL, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if !strings.HasSuffix(s.baseURL, "/") {
		s.baseURL += "/"
	}
	if s.logger == nil {
		s.logger = logger.Named("tracker")
	}
	return s
}

func (s *Source) Game() model.Game { return model.Game2 }

func (s *Source) NeedsName() bool { return true }

// Fetch loads the profile page of p.Name and returns the first segment's stats
// in document order.
func (s *Source) Fetch(ctx context.Context, p model.ProfileRef) (model.StatsPayload, error) {
	if !p.HasName() {
		return model.StatsPayload{}, fmt.Errorf("%w: %s", ErrNameRequired, p.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := s.baseURL + url.PathEscape(p.Name)
	text, err := s.browser.FetchRenderedText(ctx, target)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, model.ErrTimeout) {
			return model.StatsPayload{}, fmt.Errorf("%w: %s: %w", model.ErrTimeout, target, err)
		}
		return model.StatsPayload{}, fmt.Errorf("tracker %s: %w", p.Name, err)
	}

	stats, err := Parse(text)
	if err != nil {
		if errors.Is(err, model.ErrNoProfileForGame) {
			s.logger.Debug(ctx, "no tracker profile", logger.String("profile", p.ID), logger.String("profile_name", p.Name))
		}
		return model.StatsPayload{}, fmt.Errorf("tracker %s: %w", p.Name, err)
	}
	return model.StatsPayload{Profile: p, Stats: stats}, nil
}

// Parse extracts data.segments[0].stats from a profile document. Each stat is
// either {"value": x, ...} or a bare scalar. A document without that path
// means the player has no profile for the game.
func Parse(text string) ([]model.RawStat, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty page", ErrDecode)
	}
	// Browsers may put toolbar text in front of a rendered JSON document.
	if i := strings.IndexByte(text, '{'); i > 0 {
		text = text[i:]
	}

	iter := jsoniter.ParseString(jsoniter.ConfigCompatibleWithStandardLibrary, text)
	var (
		stats   []model.RawStat
		found   bool
		message string
	)
	iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		switch key {
		case "data":
			found = readData(it, &stats)
		case "errors":
			message = readFirstError(it)
		default:
			it.Skip()
		}
		return it.Error == nil
	})
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrDecode, iter.Error)
	}
	if !found {
		if message != "" {
			return nil, fmt.Errorf("%w: %s", model.ErrNoProfileForGame, message)
		}
		return nil, model.ErrNoProfileForGame
	}
	if stats == nil {
		stats = []model.RawStat{}
	}
	return stats, nil
}

func readData(it *jsoniter.Iterator, stats *[]model.RawStat) bool {
	if it.WhatIsNext() != jsoniter.ObjectValue {
		it.Skip()
		return false
	}
	found := false
	it.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		if key != "segments" || it.WhatIsNext() != jsoniter.ArrayValue {
			it.Skip()
			return true
		}
		first := true
		it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			if !first {
				it.Skip()
				return true
			}
			first = false
			found = readSegment(it, stats)
			return true
		})
		return true
	})
	return found
}

func readSegment(it *jsoniter.Iterator, stats *[]model.RawStat) bool {
	if it.WhatIsNext() != jsoniter.ObjectValue {
		it.Skip()
		return false
	}
	found := false
	it.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		if key != "stats" || it.WhatIsNext() != jsoniter.ObjectValue {
			it.Skip()
			return true
		}
		found = true
		it.ReadObjectCB(func(it *jsoniter.Iterator, name string) bool {
			*stats = append(*stats, model.RawStat{Key: name, Value: readStatValue(it)})
			return true
		})
		return true
	})
	return found
}

func readStatValue(it *jsoniter.Iterator) string {
	switch it.WhatIsNext() {
	case jsoniter.ObjectValue:
		var v string
		it.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			if key == "value" {
				v = scalar(it)
				return true
			}
			it.Skip()
			return true
		})
		return v
	default:
		return scalar(it)
	}
}

func scalar(it *jsoniter.Iterator) string {
	switch it.WhatIsNext() {
	case jsoniter.StringValue:
		return it.ReadString()
	case jsoniter.NumberValue:
		return it.ReadNumber().String()
	case jsoniter.BoolValue:
		if it.ReadBool() {
			return "1"
		}
		return "0"
	default:
		it.Skip()
		return ""
	}
}

func readFirstError(it *jsoniter.Iterator) string {
	if it.WhatIsNext() != jsoniter.ArrayValue {
		it.Skip()
		return ""
	}
	var msg string
	it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
		if msg != "" || it.WhatIsNext() != jsoniter.ObjectValue {
			it.Skip()
			return true
		}
		it.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			if key == "message" && it.WhatIsNext() == jsoniter.StringValue {
				msg = it.ReadString()
				return true
			}
			it.Skip()
			return true
		})
		return true
	})
	return msg
}
