package domain

import "testing"

func TestCanTransitionCampaign(t *testing.T) {
	tests := []struct {
		from CampaignStatus
		to   CampaignStatus
		want bool
	}{
		{CampaignDraft, CampaignScheduled, true},
		{CampaignDraft, CampaignSending, true},
		{CampaignDraft, CampaignSent, false},
		{CampaignScheduled, CampaignSending, true},
		{CampaignSending, CampaignPaused, true},
		{CampaignPaused, CampaignSending, true},
		{CampaignPaused, CampaignCancelled, true},
		{CampaignSent, CampaignSending, false},
		{CampaignCancelled, CampaignSending, false},
		{CampaignFailed, CampaignSending, false},
	}
	for _, tt := range tests {
		if got := CanTransitionCampaign(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransitionCampaign(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCampaignIsTerminal(t *testing.T) {
	for _, s := range []CampaignStatus{CampaignSent, CampaignCancelled, CampaignFailed} {
		c := Campaign{Status: s}
		if !c.IsTerminal() {
			t.Errorf("campaign in %s should be terminal", s)
		}
	}
	for _, s := range []CampaignStatus{CampaignDraft, CampaignScheduled, CampaignSending, CampaignPaused} {
		c := Campaign{Status: s}
		if c.IsTerminal() {
			t.Errorf("campaign in %s should not be terminal", s)
		}
	}
}

func TestAudienceFilterMatches(t *testing.T) {
	sub := &Subscriber{
		Status: SubscriberActive,
		Preferences: Preferences{
			Frequency:  FrequencyWeekly,
			Categories: []string{"culture", "politics"},
			Authors:    []string{"m.okafor"},
			Language:   "en",
		},
	}
	tests := []struct {
		name   string
		filter AudienceFilter
		want   bool
	}{
		{"empty filter matches everyone", AudienceFilter{}, true},
		{"frequency match", AudienceFilter{Frequencies: []Frequency{FrequencyWeekly, FrequencyDaily}}, true},
		{"frequency miss", AudienceFilter{Frequencies: []Frequency{FrequencyMonthly}}, false},
		{"category overlap", AudienceFilter{Categories: []string{"politics", "sport"}}, true},
		{"category disjoint", AudienceFilter{Categories: []string{"sport"}}, false},
		{"author match", AudienceFilter{Authors: []string{"m.okafor"}}, true},
		{"language match", AudienceFilter{Language: "en"}, true},
		{"language mismatch", AudienceFilter{Language: "fr"}, false},
		{"combined, one miss fails", AudienceFilter{Categories: []string{"culture"}, Language: "fr"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(sub); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAudienceFilterLanguageUnsetOnSubscriber(t *testing.T) {
	// A subscriber with no language preference is not excluded by a
	// language-scoped campaign.
	sub := &Subscriber{Preferences: Preferences{Frequency: FrequencyDaily}}
	f := AudienceFilter{Language: "en"}
	if !f.Matches(sub) {
		t.Error("subscriber without a language preference should match")
	}
}

func TestCanTransitionAttempt(t *testing.T) {
	tests := []struct {
		from AttemptStatus
		to   AttemptStatus
		want bool
	}{
		{AttemptQueued, AttemptSent, true},
		{AttemptSent, AttemptDelivered, true},
		{AttemptDelivered, AttemptSent, false},
		{AttemptQueued, AttemptFailed, true},
		{AttemptFailed, AttemptQueued, false},
		{AttemptSent, AttemptSent, false},
	}
	for _, tt := range tests {
		if got := CanTransitionAttempt(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransitionAttempt(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
