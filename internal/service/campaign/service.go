package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/logger"
)

// Service implements campaign lifecycle logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo      Repository
	templates TemplateStore

	now func() time.Time
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository, templates TemplateStore) *Service {
	return &Service{repo: repo, templates: templates, now: time.Now}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name        string                `json:"name"`
	Channel     domain.Channel        `json:"channel"`
	TemplateID  string                `json:"template_id"`
	Audience    domain.AudienceFilter `json:"audience_filter"`
	ScheduledAt *time.Time            `json:"scheduled_at,omitempty"`
}

// Create validates and persists a new campaign in draft status. The
// referenced template must exist and match the campaign's channel.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !domain.ValidChannel(input.Channel) {
		return nil, fmt.Errorf("unknown channel %q", input.Channel)
	}
	tpl, err := s.templates.GetTemplate(ctx, input.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl.Channel != input.Channel {
		return nil, fmt.Errorf("template %s targets channel %s, campaign wants %s", tpl.ID, tpl.Channel, input.Channel)
	}

	now := s.now()
	c := &domain.Campaign{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Channel:     input.Channel,
		TemplateID:  input.TemplateID,
		Audience:    input.Audience,
		ScheduledAt: input.ScheduledAt,
		Status:      domain.CampaignDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	logger.Info("campaign created", "campaign_id", c.ID, "channel", string(c.Channel))
	return c, nil
}

// Update modifies mutable campaign fields. Only draft campaigns can be
// edited.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft {
		return ErrInvalidState
	}
	if u.TemplateID != nil {
		if _, err := s.templates.GetTemplate(ctx, *u.TemplateID); err != nil {
			return err
		}
	}
	return s.repo.Update(ctx, id, u)
}

// Delete removes a campaign. Only draft and cancelled campaigns can be
// deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignCancelled {
		return ErrInvalidState
	}
	return s.repo.Delete(ctx, id)
}

// Schedule moves a draft campaign to scheduled at the given time.
func (s *Service) Schedule(ctx context.Context, id string, at time.Time) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionCampaign(c.Status, domain.CampaignScheduled) {
		return nil, ErrInvalidState
	}
	if err := s.repo.Update(ctx, id, UpdateFields{ScheduledAt: &at}); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, domain.CampaignScheduled); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// MarkSending claims a campaign for dispatch. Valid from draft, scheduled
// and paused; everything else is rejected with ErrInvalidState so terminal
// campaigns stay immutable.
func (s *Service) MarkSending(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.transition(ctx, id, domain.CampaignSending)
}

// Pause stops a sending campaign between recipient sends. Attempts already
// in flight are not rolled back.
func (s *Service) Pause(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.transition(ctx, id, domain.CampaignPaused)
}

// Cancel terminates a campaign. Valid from any non-terminal status.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.transition(ctx, id, domain.CampaignCancelled)
}

// Complete marks a campaign sent once every resolved recipient has a
// terminal attempt. Called by the dispatcher.
func (s *Service) Complete(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.transition(ctx, id, domain.CampaignSent)
}

// Fail marks a campaign failed after an unrecoverable dispatch error.
func (s *Service) Fail(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.transition(ctx, id, domain.CampaignFailed)
}

// DueScheduled returns scheduled campaigns whose send time has arrived.
func (s *Service) DueScheduled(ctx context.Context, limit int) ([]domain.Campaign, error) {
	return s.repo.ListDueScheduled(ctx, s.now(), limit)
}

func (s *Service) transition(ctx context.Context, id string, to domain.CampaignStatus) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionCampaign(c.Status, to) {
		return nil, ErrInvalidState
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	logger.Info("campaign status changed", "campaign_id", id, "from", string(c.Status), "to", string(to))
	return s.repo.Get(ctx, id)
}
