package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/luminapress/comms-engine/internal/domain"
)

// EventRepo is the engagement event append log. Rows are never updated or
// deleted; duplicate logical events are expected and kept.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed engagement event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e *domain.EngagementEvent) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode event_data: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO engagement_events
			(id, campaign_id, subscriber_id, event_type, event_data, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.CampaignID, e.SubscriberID, e.Type, data, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (r *EventRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.EngagementEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, subscriber_id, event_type, event_data, occurred_at
		FROM engagement_events
		WHERE campaign_id = $1
		ORDER BY occurred_at
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.EngagementEvent
	for rows.Next() {
		var e domain.EngagementEvent
		var data []byte
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.SubscriberID, &e.Type, &data, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal(data, &e.Data); err != nil {
			return nil, fmt.Errorf("decode event_data: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
