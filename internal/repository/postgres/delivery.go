package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/luminapress/comms-engine/internal/dispatch"
	"github.com/luminapress/comms-engine/internal/domain"
)

// AttemptRepo implements dispatch.AttemptStore against PostgreSQL. The
// delivery_attempts table carries a unique constraint on
// (campaign_id, subscriber_id); that constraint is what makes dispatch
// resume idempotent under concurrent runs.
type AttemptRepo struct{ db *sql.DB }

// NewAttemptRepo creates a Postgres-backed delivery attempt repository.
func NewAttemptRepo(db *sql.DB) *AttemptRepo { return &AttemptRepo{db: db} }

// uniqueViolation is the Postgres error code for unique_violation.
const uniqueViolation = "23505"

func (r *AttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_attempts
			(id, campaign_id, subscriber_id, channel, status,
			 provider_message_id, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), $8, $9)
	`, a.ID, a.CampaignID, a.SubscriberID, a.Channel, a.Status,
		a.ProviderMessageID, a.ErrorMessage, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return dispatch.ErrDuplicateAttempt
		}
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

// UpdateStatus moves an attempt forward. The WHERE clause re-checks the
// forward-only rank so a late failure update cannot clobber a delivered
// status written by the webhook path.
func (r *AttemptRepo) UpdateStatus(ctx context.Context, id string, status domain.AttemptStatus, providerMessageID, errorMessage string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_attempts
		SET status = $1,
		    provider_message_id = COALESCE(NULLIF($2,''), provider_message_id),
		    error_message = NULLIF($3,''),
		    updated_at = NOW()
		WHERE id = $4
		  AND status IN ('queued','sent')
		  AND status <> $1
	`, status, providerMessageID, errorMessage, id)
	if err != nil {
		return fmt.Errorf("update attempt status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("attempt %s not updatable to %s", id, status)
	}
	return nil
}

func (r *AttemptRepo) ExistingSubscriberIDs(ctx context.Context, campaignID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT subscriber_id FROM delivery_attempts WHERE campaign_id = $1
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list attempted subscribers: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber id: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// AttemptExists satisfies analytics.AttemptChecker.
func (r *AttemptRepo) AttemptExists(ctx context.Context, campaignID, subscriberID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM delivery_attempts
			WHERE campaign_id = $1 AND subscriber_id = $2
		)
	`, campaignID, subscriberID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attempt: %w", err)
	}
	return exists, nil
}

// GetByProviderMessageID resolves an attempt from the message id the
// provider echoed back in a webhook notification.
func (r *AttemptRepo) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.DeliveryAttempt, error) {
	var a domain.DeliveryAttempt
	var msgID, errMsg sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, subscriber_id, channel, status,
		       provider_message_id, error_message, created_at, updated_at
		FROM delivery_attempts
		WHERE provider_message_id = $1
	`, providerMessageID).Scan(&a.ID, &a.CampaignID, &a.SubscriberID, &a.Channel,
		&a.Status, &msgID, &errMsg, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attempt for message %s: not found", providerMessageID)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt by message id: %w", err)
	}
	a.ProviderMessageID = msgID.String
	a.ErrorMessage = errMsg.String
	return &a, nil
}

// MarkDelivered applies a provider delivery confirmation by provider
// message id. Used by the webhook ingestion path.
func (r *AttemptRepo) MarkDelivered(ctx context.Context, providerMessageID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE delivery_attempts
		SET status = 'delivered', updated_at = NOW()
		WHERE provider_message_id = $1 AND status = 'sent'
	`, providerMessageID)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}
