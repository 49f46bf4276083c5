package campaign_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/service/campaign"
)

type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
}

func newMemRepo() *memRepo {
	return &memRepo{campaigns: make(map[string]*domain.Campaign)}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(c.Name, f.Search) {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[cp.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, u campaign.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.TemplateID != nil {
		c.TemplateID = *u.TemplateID
	}
	if u.Audience != nil {
		c.Audience = *u.Audience
	}
	if u.ScheduledAt != nil {
		at := *u.ScheduledAt
		c.ScheduledAt = &at
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return campaign.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memRepo) ListDueScheduled(_ context.Context, before time.Time, limit int) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.Status == domain.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(before) {
			out = append(out, *c)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type memTemplates struct {
	templates map[string]*domain.Template
}

func (m *memTemplates) GetTemplate(_ context.Context, id string) (*domain.Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, campaign.ErrTemplateNotFound
	}
	return t, nil
}

func newService() (*campaign.Service, *memRepo) {
	repo := newMemRepo()
	templates := &memTemplates{templates: map[string]*domain.Template{
		"tpl-email": {ID: "tpl-email", Channel: domain.ChannelEmail, Body: "Hello {{subscriber.firstName}}"},
		"tpl-wa":    {ID: "tpl-wa", Channel: domain.ChannelWhatsApp, Body: "Hi"},
	}}
	return campaign.NewService(repo, templates), repo
}

func create(t *testing.T, svc *campaign.Service) *domain.Campaign {
	t.Helper()
	c, err := svc.Create(context.Background(), campaign.CreateInput{
		Name:       "June issue",
		Channel:    domain.ChannelEmail,
		TemplateID: "tpl-email",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return c
}

func TestCreateStartsInDraft(t *testing.T) {
	svc, _ := newService()
	c := create(t, svc)
	if c.Status != domain.CampaignDraft {
		t.Errorf("status = %s, want draft", c.Status)
	}
}

func TestCreateRejectsChannelMismatch(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Create(context.Background(), campaign.CreateInput{
		Name:       "Mismatch",
		Channel:    domain.ChannelEmail,
		TemplateID: "tpl-wa",
	})
	if err == nil {
		t.Fatal("expected channel mismatch error")
	}
}

func TestCreateRejectsMissingTemplate(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Create(context.Background(), campaign.CreateInput{
		Name:       "No template",
		Channel:    domain.ChannelEmail,
		TemplateID: "nope",
	})
	if err != campaign.ErrTemplateNotFound {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestPauseResumeCycle(t *testing.T) {
	svc, _ := newService()
	c := create(t, svc)
	ctx := context.Background()

	if _, err := svc.MarkSending(ctx, c.ID); err != nil {
		t.Fatalf("mark sending: %v", err)
	}
	paused, err := svc.Pause(ctx, c.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != domain.CampaignPaused {
		t.Errorf("status = %s, want paused", paused.Status)
	}
	resumed, err := svc.MarkSending(ctx, c.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != domain.CampaignSending {
		t.Errorf("status = %s, want sending", resumed.Status)
	}
}

func TestTerminalCampaignIsImmutable(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	c := create(t, svc)
	if _, err := svc.MarkSending(ctx, c.ID); err != nil {
		t.Fatalf("mark sending: %v", err)
	}
	if _, err := svc.Complete(ctx, c.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := svc.MarkSending(ctx, c.ID); err != campaign.ErrInvalidState {
		t.Errorf("send after sent: expected ErrInvalidState, got %v", err)
	}
	if _, err := svc.Pause(ctx, c.ID); err != campaign.ErrInvalidState {
		t.Errorf("pause after sent: expected ErrInvalidState, got %v", err)
	}
	if _, err := svc.Cancel(ctx, c.ID); err != campaign.ErrInvalidState {
		t.Errorf("cancel after sent: expected ErrInvalidState, got %v", err)
	}
}

func TestUpdateOnlyInDraft(t *testing.T) {
	svc, _ := newService()
	c := create(t, svc)
	ctx := context.Background()

	name := "Renamed"
	if err := svc.Update(ctx, c.ID, campaign.UpdateFields{Name: &name}); err != nil {
		t.Fatalf("update draft: %v", err)
	}

	if _, err := svc.MarkSending(ctx, c.ID); err != nil {
		t.Fatalf("mark sending: %v", err)
	}
	if err := svc.Update(ctx, c.ID, campaign.UpdateFields{Name: &name}); err != campaign.ErrInvalidState {
		t.Errorf("update while sending: expected ErrInvalidState, got %v", err)
	}
}

func TestScheduleAndDue(t *testing.T) {
	svc, _ := newService()
	c := create(t, svc)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	scheduled, err := svc.Schedule(ctx, c.ID, past)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if scheduled.Status != domain.CampaignScheduled {
		t.Errorf("status = %s, want scheduled", scheduled.Status)
	}

	due, err := svc.DueScheduled(ctx, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].ID != c.ID {
		t.Errorf("due = %+v, want the scheduled campaign", due)
	}
}

func TestDeleteOnlyDraftOrCancelled(t *testing.T) {
	svc, _ := newService()
	c := create(t, svc)
	ctx := context.Background()

	if _, err := svc.MarkSending(ctx, c.ID); err != nil {
		t.Fatalf("mark sending: %v", err)
	}
	if err := svc.Delete(ctx, c.ID); err != campaign.ErrInvalidState {
		t.Errorf("delete while sending: expected ErrInvalidState, got %v", err)
	}

	if _, err := svc.Cancel(ctx, c.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := svc.Delete(ctx, c.ID); err != nil {
		t.Errorf("delete cancelled: %v", err)
	}
}
