package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable       = errors.New("server unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrRejected          = errors.New("request rejected")
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError is a non-2xx backend response. It unwraps to one of the
// sentinels above, so callers match it with errors.Is.
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (http %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%s (http %d): %s", e.kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// mapStatus turns an HTTP status into the client's error taxonomy.
func mapStatus(status int, message string) error {
	var kind error
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = ErrUnauthorized
	case status == http.StatusNotFound:
		kind = ErrNotFound
	case status >= 500, status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		kind = ErrUnavailable
	default:
		kind = ErrRejected
	}
	return &APIError{Status: status, Message: message, kind: kind}
}
