// Package errkind defines the uniform error-kind sentinels shared across the
// research core's components, so callers can branch with errors.Is instead of
// string matching.
package errkind

import "errors"

var (
	ErrNoKey       = errors.New("no_key")
	ErrRateLimited = errors.New("rate_limited")
	ErrTimeout     = errors.New("timeout")
	ErrHTTPStatus  = errors.New("http_status")
	ErrParse       = errors.New("parse")
	ErrEmpty       = errors.New("empty")
	ErrUnavailable = errors.New("unavailable")
	ErrValidation  = errors.New("validation")
	ErrCancelled   = errors.New("cancelled")
)
