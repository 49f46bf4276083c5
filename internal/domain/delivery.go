package domain

import "time"

// AttemptStatus enumerates the lifecycle of a single delivery attempt.
// Transitions only move forward: queued→sent→{delivered|bounced}, or
// queued/sent→failed.
type AttemptStatus string

const (
	AttemptQueued    AttemptStatus = "queued"
	AttemptSent      AttemptStatus = "sent"
	AttemptDelivered AttemptStatus = "delivered"
	AttemptBounced   AttemptStatus = "bounced"
	AttemptFailed    AttemptStatus = "failed"
)

// IsTerminal reports whether the attempt has reached a final status.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptDelivered || s == AttemptBounced || s == AttemptFailed
}

// attemptRank orders attempt statuses so updates can be rejected when they
// would move a status backwards.
var attemptRank = map[AttemptStatus]int{
	AttemptQueued:    0,
	AttemptSent:      1,
	AttemptDelivered: 2,
	AttemptBounced:   2,
	AttemptFailed:    2,
}

// CanTransitionAttempt reports whether an attempt may move from one status
// to another (strictly forward).
func CanTransitionAttempt(from, to AttemptStatus) bool {
	return attemptRank[to] > attemptRank[from]
}

// DeliveryAttempt records one send of one campaign to one subscriber. There
// is at most one attempt per (CampaignID, SubscriberID); the store enforces
// a unique constraint on the pair.
type DeliveryAttempt struct {
	ID                string        `json:"id" db:"id"`
	CampaignID        string        `json:"campaign_id" db:"campaign_id"`
	SubscriberID      string        `json:"subscriber_id" db:"subscriber_id"`
	Channel           Channel       `json:"channel" db:"channel"`
	Status            AttemptStatus `json:"status" db:"status"`
	ProviderMessageID string        `json:"provider_message_id,omitempty" db:"provider_message_id"`
	ErrorMessage      string        `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}
