package analytics

import (
	"context"

	"github.com/luminapress/comms-engine/internal/domain"
)

// EventStore is the append log of engagement events. Append must be safe
// under unbounded concurrent writers.
type EventStore interface {
	// Append writes one event. Events are immutable once written.
	Append(ctx context.Context, e *domain.EngagementEvent) error

	// ListByCampaign returns all events recorded for a campaign.
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.EngagementEvent, error)
}

// AttemptChecker verifies that a delivery attempt exists for a
// (campaign, subscriber) pair before an event referencing it is accepted.
type AttemptChecker interface {
	AttemptExists(ctx context.Context, campaignID, subscriberID string) (bool, error)
}

// StatusUpdater is the slice of the subscriber registry used to propagate
// terminal engagement events (bounce, complaint, unsubscribe) onto the
// subscriber's lifecycle status.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, subscriberID string, status domain.SubscriberStatus) error
}
