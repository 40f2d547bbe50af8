package api

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError means the API could not be reached or answered with a
// non-2xx status or an unusable body.
type TransportError struct {
	Resource   string
	Method     string
	Path       string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the request gave up waiting for the server
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// AuthError means the credential was absent or rejected by the API
type AuthError struct {
	Resource   string
	StatusCode int // 0 when the request was never sent
	Reason     string
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Resource, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Resource, e.Reason)
}

// AuthFailure marks the error as a credential problem for callers that
// cannot import this package.
func (e *AuthError) AuthFailure() bool { return true }

const (
	reasonNoCredential = "no credential"
	reasonRejected     = "credential rejected"
)

// ErrMalformedResponse wraps bodies that could not be decoded into a record
var ErrMalformedResponse = errors.New("malformed response body")

// IsAuth reports whether err is, or wraps, an AuthError
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransport reports whether err is, or wraps, a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
