package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a request lacks a required field
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransientUpstream is returned when the remote classifier is unreachable or rate limited
	ErrTransientUpstream = errors.New("transient upstream failure")
	// ErrUpstreamRejected is returned when the remote classifier answers with a non-retryable error status
	ErrUpstreamRejected = errors.New("upstream rejected request")
	// ErrMalformedResponse is returned when the remote classifier output cannot be parsed
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrPersistence is returned when the result store fails to save a verdict
	ErrPersistence = errors.New("persistence failure")
	// ErrBatchDeadline is returned for batch items that were not started before the batch timed out
	ErrBatchDeadline = errors.New("batch deadline exceeded")
)

func invalidInput(field string) error {
	return fmt.Errorf("%w: missing %s", ErrInvalidInput, field)
}

// IsRetryable reports whether err should be retried against the remote classifier
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientUpstream)
}
