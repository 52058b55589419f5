package gemini

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable is returned after the retry budget for transient
	// failures is exhausted. The page fails with this error.
	ErrServiceUnavailable = errors.New("capability service unavailable")

	// ErrMalformedResponse is returned when the service responds with content
	// that cannot be parsed into the expected shape. Never retried.
	ErrMalformedResponse = errors.New("malformed capability response")

	// ErrAuthentication is returned on credential failures. Session-fatal:
	// the caller should short-circuit all unstarted work.
	ErrAuthentication = errors.New("capability service authentication failed")
)

// transientError marks rate-limit and network-class failures as retryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return fmt.Sprintf("transient: %v", e.err) }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps an error so the client's retry policy will retry it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether an error is retryable.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
