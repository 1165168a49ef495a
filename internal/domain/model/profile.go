// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ExpiredSentinel is the expiry every process starts with, forcing a login
// before the first authenticated call.
var ExpiredSentinel = time.Date(2015, time.November, 12, 0, 0, 0, 0, time.UTC)

// Ticket is the shared session credential. It is always replaced as a whole.
type Ticket struct {
	Ticket    string
	SessionID string
	ExpiresAt time.Time
}

// ValidAt reports whether the ticket is still usable at now with margin to spare.
func (t Ticket) ValidAt(now time.Time, margin time.Duration) bool {
	return t.Ticket != "" && t.ExpiresAt.After(now.Add(margin))
}

// ProfileRef identifies a platform profile. An empty Name means the display
// name is not known yet.
type ProfileRef struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// HasName reports whether the display name is known.
func (p ProfileRef) HasName() bool { return p.Name != "" }

// NameRecord is one persisted (id, name) observation.
type NameRecord struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	RecordedAt time.Time `json:"recorded_at" yaml:"recorded_at"`
}

// RawStat is one key/value pair of a statistics payload, in source order.
type RawStat struct {
	Key   string
	Value string
}

// StatsPayload is the raw result of one successful per-profile fetch.
type StatsPayload struct {
	Profile ProfileRef
	Stats   []RawStat
}

// Value returns the value stored under key, or "" when absent.
func (p StatsPayload) Value(key string) (string, bool) {
	for _, s := range p.Stats {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// At returns the value at position i, or "" when out of range.
func (p StatsPayload) At(i int) (string, bool) {
	if i < 0 || i >= len(p.Stats) {
		return "", false
	}
	return p.Stats[i].Value, true
}

// Game selects which title's statistics are looked up.
type Game int

const (
	Game1 Game = 1
	Game2 Game = 2
)

// ParseGame accepts "1" or "2".
func ParseGame(s string) (Game, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return Game1, nil
	case "2":
		return Game2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownGame, s)
	}
}

func (g Game) String() string {
	return fmt.Sprintf("%d", int(g))
}

// Valid reports whether g is a supported game.
func (g Game) Valid() bool { return g == Game1 || g == Game2 }
