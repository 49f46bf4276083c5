package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCancelled CampaignStatus = "cancelled"
	CampaignFailed    CampaignStatus = "failed"
)

// campaignTransitions is the legal status transition table. The machine is
// monotonic except paused→sending (resume); terminal states have no exits.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:     {CampaignScheduled, CampaignSending, CampaignCancelled},
	CampaignScheduled: {CampaignSending, CampaignCancelled},
	CampaignSending:   {CampaignSent, CampaignPaused, CampaignCancelled, CampaignFailed},
	CampaignPaused:    {CampaignSending, CampaignCancelled},
	CampaignSent:      {},
	CampaignCancelled: {},
	CampaignFailed:    {},
}

// CanTransitionCampaign reports whether a campaign may move from one status
// to another.
func CanTransitionCampaign(from, to CampaignStatus) bool {
	for _, s := range campaignTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AudienceFilter is a predicate over subscribers used to resolve campaign
// recipients. Empty fields match everything; the dispatcher additionally
// restricts the audience to active subscribers opted into the campaign's
// channel regardless of this filter.
type AudienceFilter struct {
	Frequencies  []Frequency `json:"frequencies,omitempty"`
	Categories   []string    `json:"categories,omitempty"`
	Authors      []string    `json:"authors,omitempty"`
	ContentTypes []string    `json:"content_types,omitempty"`
	Language     string      `json:"language,omitempty"`
}

// Matches evaluates the filter against a subscriber's preferences.
func (f AudienceFilter) Matches(s *Subscriber) bool {
	if len(f.Frequencies) > 0 && !containsFrequency(f.Frequencies, s.Preferences.Frequency) {
		return false
	}
	if len(f.Categories) > 0 && !intersects(f.Categories, s.Preferences.Categories) {
		return false
	}
	if len(f.Authors) > 0 && !intersects(f.Authors, s.Preferences.Authors) {
		return false
	}
	if len(f.ContentTypes) > 0 && !intersects(f.ContentTypes, s.Preferences.ContentTypes) {
		return false
	}
	if f.Language != "" && s.Preferences.Language != "" && f.Language != s.Preferences.Language {
		return false
	}
	return true
}

func containsFrequency(set []Frequency, f Frequency) bool {
	for _, v := range set {
		if v == f {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Campaign represents a single-template send to a resolved audience over one
// channel.
type Campaign struct {
	ID          string         `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Channel     Channel        `json:"channel" db:"channel"`
	TemplateID  string         `json:"template_id" db:"template_id"`
	Audience    AudienceFilter `json:"audience_filter" db:"audience_filter"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty" db:"scheduled_at"`
	Status      CampaignStatus `json:"status" db:"status"`
	StartedAt   *time.Time     `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final, immutable state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignCancelled || c.Status == CampaignFailed
}
