package domain

import (
	"regexp"
	"time"
)

// SubscriberStatus enumerates the lifecycle states a subscriber can be in.
type SubscriberStatus string

const (
	SubscriberPending      SubscriberStatus = "pending"
	SubscriberActive       SubscriberStatus = "active"
	SubscriberInactive     SubscriberStatus = "inactive"
	SubscriberBounced      SubscriberStatus = "bounced"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberComplained   SubscriberStatus = "complained"
)

// subscriberTransitions is the legal status transition table. Complained is
// terminal: complainers are never automatically reactivated.
var subscriberTransitions = map[SubscriberStatus][]SubscriberStatus{
	SubscriberPending:      {SubscriberActive, SubscriberInactive},
	SubscriberActive:       {SubscriberInactive, SubscriberBounced, SubscriberUnsubscribed, SubscriberComplained},
	SubscriberInactive:     {SubscriberActive},
	SubscriberBounced:      {SubscriberActive},
	SubscriberUnsubscribed: {SubscriberActive},
	SubscriberComplained:   {},
}

// CanTransitionSubscriber reports whether a subscriber may move from one
// status to another.
func CanTransitionSubscriber(from, to SubscriberStatus) bool {
	for _, s := range subscriberTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Frequency is how often a subscriber wants to hear from us.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyNone    Frequency = "none"
)

// ValidFrequency reports whether f is a known frequency.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyNone:
		return true
	}
	return false
}

// Preferences is a fixed record of subscriber content preferences. Sets are
// validated-open: any string is accepted but they are always slices of
// enumerable values, never free-form key/value maps.
type Preferences struct {
	Frequency    Frequency `json:"frequency" db:"frequency"`
	Categories   []string  `json:"categories" db:"categories"`
	Authors      []string  `json:"authors" db:"authors"`
	ContentTypes []string  `json:"content_types" db:"content_types"`
	Language     string    `json:"language" db:"language"`
}

// Validate checks the enumerated fields of the preferences record.
func (p Preferences) Validate() bool {
	return p.Frequency == "" || ValidFrequency(p.Frequency)
}

// Subscriber represents a verified (or in-progress) recipient of magazine
// communications across one or more channels.
type Subscriber struct {
	ID            string           `json:"id" db:"id"`
	Email         string           `json:"email" db:"email"`
	Phone         string           `json:"phone" db:"phone"` // E.164
	ChannelOptIns ChannelSet       `json:"channel_opt_ins" db:"channel_opt_ins"`
	Status        SubscriberStatus `json:"status" db:"status"`
	Preferences   Preferences      `json:"preferences" db:"preferences"`
	EmailVerified bool             `json:"email_verified" db:"email_verified"`
	PhoneVerified bool             `json:"phone_verified" db:"phone_verified"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// FullyVerified reports whether every opted-in channel has its corresponding
// verification flag set. A subscriber may only become active when this holds.
func (s *Subscriber) FullyVerified() bool {
	if s.ChannelOptIns.Contains(ChannelEmail) && !s.EmailVerified {
		return false
	}
	if (s.ChannelOptIns.Contains(ChannelWhatsApp) || s.ChannelOptIns.Contains(ChannelSMS)) && !s.PhoneVerified {
		return false
	}
	return true
}

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRe = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
)

// ValidEmail reports whether the address looks like a deliverable email.
func ValidEmail(email string) bool { return emailRe.MatchString(email) }

// ValidPhone reports whether the number is E.164 formatted.
func ValidPhone(phone string) bool { return phoneRe.MatchString(phone) }
