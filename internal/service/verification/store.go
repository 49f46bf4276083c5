package verification

import (
	"context"

	"github.com/luminapress/comms-engine/internal/domain"
)

// SessionStore persists verification sessions with a sliding TTL. An expired
// or evicted session behaves exactly like a missing one: Get returns
// ErrSessionNotFound.
type SessionStore interface {
	// Get returns the session with the given id, or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*domain.VerificationSession, error)

	// Put writes the session and refreshes its TTL.
	Put(ctx context.Context, s *domain.VerificationSession) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

// CodeSender delivers a plaintext OTP code to a recipient over one channel.
// Implementations wrap the channel provider adapters; the Manager never
// stores the plaintext it hands over.
type CodeSender interface {
	SendCode(ctx context.Context, channel domain.Channel, recipient, code string) error
}
