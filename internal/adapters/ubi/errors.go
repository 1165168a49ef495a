package ubi

import (
	"errors"
	"fmt"
)

var (
	ErrBaseURL  = errors.New("ubi: invalid base url")
	ErrDecode   = errors.New("ubi: malformed response")
	ErrEncoding = errors.New("ubi: unsupported content encoding")
	ErrLogin    = errors.New("ubi: login failed")
)

// APIError is an error answer from the services API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("ubi: http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ubi: http %d: error code %s: %s", e.Status, e.Code, e.Message)
}
