package repository

import "errors"

// Sentinel kinds for name store errors.
var (
	ErrInvalidRecord = errors.New("id and name must not be empty")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrClosed        = errors.New("name store closed")
)
