package domain

import "time"

// EventType enumerates the types of delivery and engagement events.
type EventType string

const (
	EventSent         EventType = "sent"
	EventDelivered    EventType = "delivered"
	EventOpened       EventType = "opened"
	EventClicked      EventType = "clicked"
	EventBounced      EventType = "bounced"
	EventComplained   EventType = "complained"
	EventUnsubscribed EventType = "unsubscribed"
	EventForwarded    EventType = "forwarded"
)

// ValidEventType reports whether t is a known event type.
func ValidEventType(t EventType) bool {
	switch t {
	case EventSent, EventDelivered, EventOpened, EventClicked,
		EventBounced, EventComplained, EventUnsubscribed, EventForwarded:
		return true
	}
	return false
}

// EventData carries free-form context captured with an engagement event.
type EventData struct {
	URL       string `json:"url,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	Location  string `json:"location,omitempty"`
}

// EngagementEvent is an append-only fact about a subscriber's interaction
// with a delivered message. The same logical action may arrive multiple
// times (provider webhooks are at-least-once); deduplication happens at
// read time in the aggregator, never at write time.
type EngagementEvent struct {
	ID           string    `json:"id" db:"id"`
	CampaignID   string    `json:"campaign_id" db:"campaign_id"`
	SubscriberID string    `json:"subscriber_id" db:"subscriber_id"`
	Type         EventType `json:"event_type" db:"event_type"`
	Data         EventData `json:"event_data" db:"event_data"`
	OccurredAt   time.Time `json:"occurred_at" db:"occurred_at"`
}

// CampaignStats is the rollup produced by the analytics aggregator.
// Raw counts count events; UniqueOpens/UniqueClicks count distinct
// subscribers. Rates are over delivered, not sent.
type CampaignStats struct {
	CampaignID   string  `json:"campaign_id"`
	Sent         int     `json:"sent"`
	Delivered    int     `json:"delivered"`
	Opened       int     `json:"opened"`
	Clicked      int     `json:"clicked"`
	Bounced      int     `json:"bounced"`
	Complained   int     `json:"complained"`
	UniqueOpens  int     `json:"unique_opens"`
	UniqueClicks int     `json:"unique_clicks"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
}
