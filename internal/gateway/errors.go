package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized indicates the server rejected the bearer token, or no
	// token was available. The token source has already been invalidated by
	// the time this error is returned.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoToken indicates a request was attempted with no token available.
	ErrNoToken = fmt.Errorf("%w: no token available", ErrUnauthorized)
)

// StatusError is returned for non-2xx responses other than 401.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d %s", e.Code, http.StatusText(e.Code))
}

// Retryable reports whether the failure class is worth retrying. Server
// errors are; client errors are not.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500
}

// IsRetryable reports whether err is a retryable request failure.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
