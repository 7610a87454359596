package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrRateLimited          = errors.New("rate limited")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidOrder         = errors.New("invalid order or signature")
	ErrMalformedQuote       = errors.New("malformed quote")
	ErrDirectoryUnavailable = errors.New("directory unavailable")
)
