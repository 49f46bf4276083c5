package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/service/subscriber"
)

// SubscriberRepo implements subscriber.Repository against PostgreSQL.
// Channel opt-ins and preferences are stored as jsonb.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

const subscriberColumns = `id, email, COALESCE(phone,''), channel_opt_ins, status,
	preferences, email_verified, phone_verified, created_at, updated_at`

func (r *SubscriberRepo) Get(ctx context.Context, id string) (*domain.Subscriber, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers
		WHERE id = $1
	`, id)
	return scanSubscriber(row)
}

func (r *SubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers
		WHERE email = $1
	`, email)
	return scanSubscriber(row)
}

func (r *SubscriberRepo) GetByPhone(ctx context.Context, phone string) (*domain.Subscriber, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers
		WHERE phone = $1
	`, phone)
	return scanSubscriber(row)
}

func (r *SubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	optIns, prefs, err := marshalSubscriberJSON(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO subscribers
			(id, email, phone, channel_opt_ins, status, preferences,
			 email_verified, phone_verified, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, $9, $10)
	`, s.ID, s.Email, s.Phone, optIns, s.Status, prefs,
		s.EmailVerified, s.PhoneVerified, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

func (r *SubscriberRepo) Update(ctx context.Context, s *domain.Subscriber) error {
	optIns, prefs, err := marshalSubscriberJSON(s)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscribers
		SET email = $1, phone = NULLIF($2,''), channel_opt_ins = $3, status = $4,
		    preferences = $5, email_verified = $6, phone_verified = $7, updated_at = $8
		WHERE id = $9
	`, s.Email, s.Phone, optIns, s.Status, prefs,
		s.EmailVerified, s.PhoneVerified, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	return requireRow(res, subscriber.ErrNotFound)
}

func (r *SubscriberRepo) UpdateStatus(ctx context.Context, id string, status domain.SubscriberStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscribers SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("update subscriber status: %w", err)
	}
	return requireRow(res, subscriber.ErrNotFound)
}

// Tombstone marks the subscriber inactive rather than removing the row, so
// attempt and event history keeps resolving.
func (r *SubscriberRepo) Tombstone(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscribers SET status = 'inactive', updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("tombstone subscriber: %w", err)
	}
	return requireRow(res, subscriber.ErrNotFound)
}

func (r *SubscriberRepo) ListActiveByChannel(ctx context.Context, ch domain.Channel) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers
		WHERE status = 'active' AND channel_opt_ins @> $1
		ORDER BY created_at
	`, fmt.Sprintf(`["%s"]`, ch))
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	var optIns, prefs []byte
	err := row.Scan(&s.ID, &s.Email, &s.Phone, &optIns, &s.Status,
		&prefs, &s.EmailVerified, &s.PhoneVerified, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, subscriber.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}
	if err := json.Unmarshal(optIns, &s.ChannelOptIns); err != nil {
		return nil, fmt.Errorf("decode channel_opt_ins: %w", err)
	}
	if err := json.Unmarshal(prefs, &s.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return s, nil
}

func marshalSubscriberJSON(s *domain.Subscriber) (optIns, prefs []byte, err error) {
	if optIns, err = json.Marshal(s.ChannelOptIns); err != nil {
		return nil, nil, fmt.Errorf("encode channel_opt_ins: %w", err)
	}
	if prefs, err = json.Marshal(s.Preferences); err != nil {
		return nil, nil, fmt.Errorf("encode preferences: %w", err)
	}
	return optIns, prefs, nil
}

func requireRow(res sql.Result, missing error) error {
	n, _ := res.RowsAffected()
	if n == 0 {
		return missing
	}
	return nil
}
