package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/logger"
)

// Service ingests engagement events and computes campaign rollups.
type Service struct {
	events   EventStore
	attempts AttemptChecker
	registry StatusUpdater

	now func() time.Time
}

func NewService(events EventStore, attempts AttemptChecker, registry StatusUpdater) *Service {
	return &Service{events: events, attempts: attempts, registry: registry, now: time.Now}
}

// IngestInput is the normalized event shape accepted from webhook adapters
// and the dispatcher.
type IngestInput struct {
	CampaignID   string           `json:"campaign_id"`
	SubscriberID string           `json:"subscriber_id"`
	Type         domain.EventType `json:"event_type"`
	Data         domain.EventData `json:"event_data"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// IngestEvent validates that the referenced delivery attempt exists and
// appends the event. Duplicate logical events are accepted; deduplication is
// the reader's problem.
func (s *Service) IngestEvent(ctx context.Context, in IngestInput) (*domain.EngagementEvent, error) {
	if !domain.ValidEventType(in.Type) {
		return nil, ErrInvalidEvent
	}
	ok, err := s.attempts.AttemptExists(ctx, in.CampaignID, in.SubscriberID)
	if err != nil {
		return nil, fmt.Errorf("check attempt: %w", err)
	}
	if !ok {
		return nil, ErrUnknownAttempt
	}

	e := &domain.EngagementEvent{
		ID:           uuid.New().String(),
		CampaignID:   in.CampaignID,
		SubscriberID: in.SubscriberID,
		Type:         in.Type,
		Data:         in.Data,
		OccurredAt:   in.OccurredAt,
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	if err := s.events.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}

	s.propagateStatus(ctx, e)
	return e, nil
}

// propagateStatus mirrors terminal engagement events onto the subscriber's
// lifecycle status. Propagation failures never fail ingestion; an illegal
// transition just means the subscriber is already in a terminal state.
func (s *Service) propagateStatus(ctx context.Context, e *domain.EngagementEvent) {
	var status domain.SubscriberStatus
	switch e.Type {
	case domain.EventBounced:
		status = domain.SubscriberBounced
	case domain.EventComplained:
		status = domain.SubscriberComplained
	case domain.EventUnsubscribed:
		status = domain.SubscriberUnsubscribed
	default:
		return
	}
	if err := s.registry.UpdateStatus(ctx, e.SubscriberID, status); err != nil {
		logger.Debug("status propagation skipped",
			"subscriber_id", e.SubscriberID, "event_type", string(e.Type), "error", err.Error())
	}
}

// ComputeStats scans a campaign's event log and produces raw counts plus
// read-time-deduplicated unique opens and clicks. Rates are over delivered:
// an undelivered message cannot be engaged with.
func (s *Service) ComputeStats(ctx context.Context, campaignID string) (*domain.CampaignStats, error) {
	events, err := s.events.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	stats := &domain.CampaignStats{CampaignID: campaignID}
	openers := make(map[string]struct{})
	clickers := make(map[string]struct{})
	for _, e := range events {
		switch e.Type {
		case domain.EventSent:
			stats.Sent++
		case domain.EventDelivered:
			stats.Delivered++
		case domain.EventOpened:
			stats.Opened++
			openers[e.SubscriberID] = struct{}{}
		case domain.EventClicked:
			stats.Clicked++
			clickers[e.SubscriberID] = struct{}{}
		case domain.EventBounced:
			stats.Bounced++
		case domain.EventComplained:
			stats.Complained++
		}
	}
	stats.UniqueOpens = len(openers)
	stats.UniqueClicks = len(clickers)
	if stats.Delivered > 0 {
		stats.OpenRate = float64(stats.UniqueOpens) / float64(stats.Delivered)
		stats.ClickRate = float64(stats.UniqueClicks) / float64(stats.Delivered)
	}
	return stats, nil
}
