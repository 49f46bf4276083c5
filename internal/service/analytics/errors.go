package analytics

import "errors"

var (
	ErrInvalidEvent   = errors.New("unknown event type")
	ErrUnknownAttempt = errors.New("no delivery attempt exists for this campaign and subscriber")
)
