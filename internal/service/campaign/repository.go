package campaign

import (
	"context"
	"time"

	"github.com/luminapress/comms-engine/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign.
	Create(ctx context.Context, c *domain.Campaign) error

	// Update modifies a campaign. Only non-nil fields in the update are applied.
	Update(ctx context.Context, id string, u UpdateFields) error

	// Delete removes a campaign. Only draft and cancelled campaigns can be
	// deleted.
	Delete(ctx context.Context, id string) error

	// UpdateStatus transitions a campaign's status and maintains the
	// started_at/completed_at timestamps.
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error

	// ListDueScheduled returns scheduled campaigns whose scheduled_at is at
	// or before the given time.
	ListDueScheduled(ctx context.Context, before time.Time, limit int) ([]domain.Campaign, error)
}

// TemplateStore is the slice of template storage the service needs to
// validate campaign references.
type TemplateStore interface {
	// GetTemplate returns a template by id, or ErrTemplateNotFound.
	GetTemplate(ctx context.Context, id string) (*domain.Template, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name        *string
	TemplateID  *string
	Audience    *domain.AudienceFilter
	ScheduledAt *time.Time
}
