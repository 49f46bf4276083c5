package provider

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying (timeout, rate limit,
// provider 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient provider error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that will not succeed on retry (invalid
// recipient, rejected content, bad credentials).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent provider error: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error { return &TransientError{Err: err} }

// Permanent wraps err as non-retryable.
func Permanent(err error) error { return &PermanentError{Err: err} }

// IsTransient reports whether err should be retried. Context timeouts count
// as transient; anything not classified is treated as transient so a flaky
// provider never permanently fails a recipient without cause.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var p *PermanentError
	if errors.As(err, &p) {
		return false
	}
	return true
}

// IsPermanent reports whether err is a terminal, non-retryable failure.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
