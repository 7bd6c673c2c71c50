// Package xerrors classifies collaborator failures so callers can decide
// between retrying, degrading, and failing the turn.
package xerrors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError wraps an error that is worth retrying (timeouts, 429/5xx).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps an error that must not be retried (4xx, bad input).
type PermanentError struct {
	Err        error
	StatusCode int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ParseError marks a structured model response that could not be decoded even
// after repair. Callers with a retry budget treat it as retryable.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error, status int) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err, StatusCode: status}
}

// Permanent wraps err as non-retryable.
func Permanent(err error, status int) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err, StatusCode: status}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

// TransientHTTPStatus reports whether an HTTP status code signals a
// retry-worthy failure.
func TransientHTTPStatus(code int) bool {
	switch {
	case code == 408, code == 429:
		return true
	case code >= 500 && code <= 599:
		return true
	}
	return false
}
