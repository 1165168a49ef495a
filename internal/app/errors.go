package service

import "errors"

var (
	ErrEmptyName = errors.New("player name must not be empty")
	ErrEmptyID   = errors.New("profile id must not be empty")
	ErrNoSource  = errors.New("no statistics source configured")
)
