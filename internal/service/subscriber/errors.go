package subscriber

import "errors"

// Sentinel errors for the subscriber registry.
var (
	ErrNotFound                  = errors.New("subscriber not found")
	ErrDuplicateActiveSubscriber = errors.New("an active subscriber already exists for this identifier")
	ErrInvalidStatusTransition   = errors.New("invalid subscriber status transition")
	ErrInvalidIdentifier         = errors.New("invalid email or phone identifier")
	ErrInvalidPreferences        = errors.New("invalid preferences")
)
