package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a provider failure. The classification is the
// adapter's contract: callers retry Transient errors and fail fast on
// Permanent ones, never second-guessing the adapter.
type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindPermanent ErrorKind = "permanent"
)

// Error wraps a provider failure with its classification.
type Error struct {
	Kind     ErrorKind
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindTransient
}

// IsPermanent reports whether err is a non-retryable provider failure.
func IsPermanent(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindPermanent
}

// transportError classifies a failed round trip. Timeouts and network
// errors are transient.
func transportError(provider, op string, err error) *Error {
	kind := KindPermanent
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTransient
	} else if errors.As(err, &netErr) {
		kind = KindTransient
	}
	return &Error{Kind: kind, Provider: provider, Op: op, Err: err}
}

// statusError classifies a non-2xx response. Rate limits, request
// timeouts and server errors are transient; every other client error
// (bad input, unsupported language, rejected content) is permanent.
func statusError(provider, op string, status int, body string) *Error {
	kind := KindPermanent
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooEarly,
		status == http.StatusTooManyRequests,
		status >= 500:
		kind = KindTransient
	}
	return &Error{
		Kind:     kind,
		Provider: provider,
		Op:       op,
		Err:      fmt.Errorf("status %d: %s", status, body),
	}
}
