package analytics_test

import (
	"context"
	"sync"
	"testing"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/service/analytics"
)

type memEvents struct {
	mu     sync.Mutex
	events []domain.EngagementEvent
}

func (m *memEvents) Append(_ context.Context, e *domain.EngagementEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *memEvents) ListByCampaign(_ context.Context, campaignID string) ([]domain.EngagementEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EngagementEvent
	for _, e := range m.events {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	return out, nil
}

// memAttempts recognizes a fixed set of (campaign, subscriber) pairs.
type memAttempts struct {
	pairs map[[2]string]bool
}

func (m *memAttempts) AttemptExists(_ context.Context, campaignID, subscriberID string) (bool, error) {
	return m.pairs[[2]string{campaignID, subscriberID}], nil
}

type statusRecorder struct {
	mu      sync.Mutex
	updates map[string]domain.SubscriberStatus
}

func (r *statusRecorder) UpdateStatus(_ context.Context, id string, status domain.SubscriberStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updates == nil {
		r.updates = make(map[string]domain.SubscriberStatus)
	}
	r.updates[id] = status
	return nil
}

func newService(attempts ...[2]string) (*analytics.Service, *memEvents, *statusRecorder) {
	events := &memEvents{}
	pairs := make(map[[2]string]bool)
	for _, p := range attempts {
		pairs[p] = true
	}
	rec := &statusRecorder{}
	return analytics.NewService(events, &memAttempts{pairs: pairs}, rec), events, rec
}

func ingest(t *testing.T, svc *analytics.Service, campaignID, subscriberID string, typ domain.EventType) {
	t.Helper()
	_, err := svc.IngestEvent(context.Background(), analytics.IngestInput{
		CampaignID:   campaignID,
		SubscriberID: subscriberID,
		Type:         typ,
	})
	if err != nil {
		t.Fatalf("ingest %s for %s: %v", typ, subscriberID, err)
	}
}

func TestIngestRejectsUnknownAttempt(t *testing.T) {
	svc, _, _ := newService()
	_, err := svc.IngestEvent(context.Background(), analytics.IngestInput{
		CampaignID:   "c1",
		SubscriberID: "s1",
		Type:         domain.EventOpened,
	})
	if err != analytics.ErrUnknownAttempt {
		t.Errorf("expected ErrUnknownAttempt, got %v", err)
	}
}

func TestIngestRejectsUnknownEventType(t *testing.T) {
	svc, _, _ := newService([2]string{"c1", "s1"})
	_, err := svc.IngestEvent(context.Background(), analytics.IngestInput{
		CampaignID:   "c1",
		SubscriberID: "s1",
		Type:         domain.EventType("glanced"),
	})
	if err != analytics.ErrInvalidEvent {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestIngestAcceptsDuplicates(t *testing.T) {
	svc, events, _ := newService([2]string{"c1", "s1"})
	for i := 0; i < 3; i++ {
		ingest(t, svc, "c1", "s1", domain.EventOpened)
	}
	got, _ := events.ListByCampaign(context.Background(), "c1")
	if len(got) != 3 {
		t.Errorf("stored %d events, want 3 (duplicates are kept)", len(got))
	}
}

func TestComputeStatsDeduplicatesAtReadTime(t *testing.T) {
	svc, _, _ := newService([2]string{"c1", "s1"}, [2]string{"c1", "s2"})

	ingest(t, svc, "c1", "s1", domain.EventSent)
	ingest(t, svc, "c1", "s2", domain.EventSent)
	ingest(t, svc, "c1", "s1", domain.EventDelivered)
	ingest(t, svc, "c1", "s2", domain.EventDelivered)

	// One subscriber opens five times and clicks once.
	for i := 0; i < 5; i++ {
		ingest(t, svc, "c1", "s1", domain.EventOpened)
	}
	ingest(t, svc, "c1", "s1", domain.EventClicked)

	stats, err := svc.ComputeStats(context.Background(), "c1")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if stats.Opened != 5 || stats.UniqueOpens != 1 {
		t.Errorf("opened=%d uniqueOpens=%d, want 5 and 1", stats.Opened, stats.UniqueOpens)
	}
	if stats.Clicked != 1 || stats.UniqueClicks != 1 {
		t.Errorf("clicked=%d uniqueClicks=%d, want 1 and 1", stats.Clicked, stats.UniqueClicks)
	}
	if stats.OpenRate != 0.5 {
		t.Errorf("open rate = %v, want 0.5 (1 unique opener over 2 delivered)", stats.OpenRate)
	}
}

func TestComputeStatsZeroDelivered(t *testing.T) {
	svc, _, _ := newService([2]string{"c1", "s1"})
	ingest(t, svc, "c1", "s1", domain.EventSent)

	stats, err := svc.ComputeStats(context.Background(), "c1")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if stats.OpenRate != 0 || stats.ClickRate != 0 {
		t.Errorf("rates should be zero when nothing was delivered, got %v/%v", stats.OpenRate, stats.ClickRate)
	}
}

func TestTerminalEventsPropagateStatus(t *testing.T) {
	svc, _, rec := newService(
		[2]string{"c1", "s1"}, [2]string{"c1", "s2"}, [2]string{"c1", "s3"})

	ingest(t, svc, "c1", "s1", domain.EventBounced)
	ingest(t, svc, "c1", "s2", domain.EventComplained)
	ingest(t, svc, "c1", "s3", domain.EventUnsubscribed)

	want := map[string]domain.SubscriberStatus{
		"s1": domain.SubscriberBounced,
		"s2": domain.SubscriberComplained,
		"s3": domain.SubscriberUnsubscribed,
	}
	for id, status := range want {
		if rec.updates[id] != status {
			t.Errorf("subscriber %s status = %s, want %s", id, rec.updates[id], status)
		}
	}
}
