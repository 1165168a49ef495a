package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the lookup pipeline.
var (
	// ErrRenewalExhausted is returned when the session ticket could not be
	// renewed within the configured number of login attempts.
	ErrRenewalExhausted = errors.New("session renewal exhausted")
	// ErrNotFound means neither the directory nor the local cache knows the name.
	ErrNotFound = errors.New("player not found")
	// ErrUpstream marks an error code reported by the remote API. It is fatal to a batch.
	ErrUpstream = errors.New("upstream error")
	// ErrNoProfileForGame means the profile exists but has no data for the game.
	ErrNoProfileForGame = errors.New("no profile for this game")
	// ErrNoResults means every fetch task of a batch failed.
	ErrNoResults = errors.New("no results")
	// ErrTimeout marks a call that hit its deadline.
	ErrTimeout = errors.New("timeout")
	ErrUnknownGame = errors.New("game must be 1 or 2")
)

// UpstreamError carries the error code reported for one profile.
type UpstreamError struct {
	ProfileID string
	Code      string
	Message   string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream error %s for profile %s", e.Code, e.ProfileID)
	}
	return fmt.Sprintf("upstream error %s for profile %s: %s", e.Code, e.ProfileID, e.Message)
}

// Is makes errors.Is(err, ErrUpstream) match any *UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}
