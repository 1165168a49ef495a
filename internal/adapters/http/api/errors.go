package api

import "errors"

// ErrBadRequest marks a request the handlers reject before calling the service.
var ErrBadRequest = errors.New("bad request")
