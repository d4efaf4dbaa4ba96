package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/tanq16/dlq/internal/transport"
)

// Admission errors are returned synchronously by Builder.Start.
var (
	ErrInvalidURL      = errors.New("scheduler: invalid url")
	ErrManagerShutdown = errors.New("scheduler: manager is shut down")
	ErrFileExists      = errors.New("scheduler: destination already exists")
	ErrQueueFull       = errors.New("scheduler: queue is full")
)

var (
	// ErrCancelled is the terminal result of a request whose token was cancelled.
	ErrCancelled = errors.New("scheduler: download cancelled")
	// ErrNoMoreUpdates is returned by Handle.WaitForStatusUpdate once a terminal
	// status has been observed.
	ErrNoMoreUpdates = errors.New("scheduler: no further status updates")
)

// RetriesExhaustedError is returned after every attempt failed with a
// retryable error.
type RetriesExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetriesExhaustedError) Error() string {
	msg := "unknown error"
	if e.LastErr != nil {
		msg = e.LastErr.Error()
	}
	return fmt.Sprintf("retries exhausted after %d attempts: %s", e.Attempts, msg)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.LastErr }

func isCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// isRetryable decides whether a failed attempt is worth another try.
// Transport failures are retried unless the server rejected the request with
// a 4xx or the URL cannot be served at all; local errors never are.
func isRetryable(err error) bool {
	if err == nil || isCancellation(err) {
		return false
	}
	var te *transport.Error
	if !errors.As(err, &te) {
		return false
	}
	switch te.Kind {
	case transport.KindStatus:
		return te.IsServerError()
	case transport.KindUnsupported:
		return false
	default:
		return true
	}
}
