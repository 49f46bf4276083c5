package subscriber

import (
	"context"

	"github.com/luminapress/comms-engine/internal/domain"
)

// Repository defines the data access contract for subscribers.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single subscriber. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Subscriber, error)

	// GetByEmail returns the subscriber with the given email, or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)

	// GetByPhone returns the subscriber with the given E.164 phone, or ErrNotFound.
	GetByPhone(ctx context.Context, phone string) (*domain.Subscriber, error)

	// Create inserts a new subscriber.
	Create(ctx context.Context, s *domain.Subscriber) error

	// Update persists all mutable fields of an existing subscriber.
	Update(ctx context.Context, s *domain.Subscriber) error

	// UpdateStatus sets only the status column. Transition legality is the
	// service's responsibility.
	UpdateStatus(ctx context.Context, id string, status domain.SubscriberStatus) error

	// Tombstone performs a logical delete: the row survives for audit and
	// event integrity but is excluded from audience resolution.
	Tombstone(ctx context.Context, id string) error

	// ListActiveByChannel returns all active subscribers opted into the
	// given channel. The dispatcher narrows the result with the campaign's
	// audience filter.
	ListActiveByChannel(ctx context.Context, ch domain.Channel) ([]domain.Subscriber, error)
}
