package apperr

import (
	"errors"
	"fmt"
)

// Error kinds shared across the service. Handlers translate these into
// HTTP status codes; everything else just wraps and propagates them.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrRateLimited  = errors.New("rate limited")
	ErrUpstream     = errors.New("upstream failure")
)

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func Forbidden(format string, args ...any) error {
	return wrap(ErrForbidden, format, args...)
}

func InvalidState(format string, args ...any) error {
	return wrap(ErrInvalidState, format, args...)
}

func RateLimited(format string, args ...any) error {
	return wrap(ErrRateLimited, format, args...)
}

func Upstream(format string, args ...any) error {
	return wrap(ErrUpstream, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
