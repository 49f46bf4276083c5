package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/backoff"
	"github.com/luminapress/comms-engine/internal/pkg/logger"
	"github.com/luminapress/comms-engine/internal/provider"
	"github.com/luminapress/comms-engine/internal/render"
	"github.com/luminapress/comms-engine/internal/service/analytics"
	"github.com/luminapress/comms-engine/internal/service/campaign"
)

// ErrDuplicateAttempt is returned by AttemptStore.Create when an attempt
// already exists for the (campaign, subscriber) pair. The dispatcher treats
// it as "already handled", not as a failure.
var ErrDuplicateAttempt = errors.New("delivery attempt already exists for this campaign and subscriber")

// ErrNoSender is a permanent configuration error: the campaign's channel has
// no provider adapter configured.
var ErrNoSender = errors.New("no sender configured for channel")

// CampaignControl is the slice of the campaign service the dispatcher drives.
type CampaignControl interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	MarkSending(ctx context.Context, id string) (*domain.Campaign, error)
	Complete(ctx context.Context, id string) (*domain.Campaign, error)
	Fail(ctx context.Context, id string) (*domain.Campaign, error)
}

// AudienceSource resolves the subscribers a campaign can reach.
type AudienceSource interface {
	ListActiveByChannel(ctx context.Context, ch domain.Channel) ([]domain.Subscriber, error)
}

// TemplateSource loads the campaign's template.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id string) (*domain.Template, error)
}

// AttemptStore persists delivery attempts. Create must enforce a unique
// constraint on (campaign_id, subscriber_id) and surface violations as
// ErrDuplicateAttempt.
type AttemptStore interface {
	Create(ctx context.Context, a *domain.DeliveryAttempt) error
	UpdateStatus(ctx context.Context, id string, status domain.AttemptStatus, providerMessageID, errorMessage string) error
	ExistingSubscriberIDs(ctx context.Context, campaignID string) (map[string]struct{}, error)
}

// BindingSource supplies campaign-scoped template bindings, e.g. the
// content.* namespace from the article feed.
type BindingSource interface {
	Bindings(ctx context.Context) (map[string]interface{}, error)
}

// EventSink receives the dispatcher's own delivery events.
type EventSink interface {
	IngestEvent(ctx context.Context, in analytics.IngestInput) (*domain.EngagementEvent, error)
}

// Config holds the dispatch tuning knobs.
type Config struct {
	Workers     int
	SendTimeout time.Duration
	Retry       backoff.Policy
}

// DefaultConfig returns the production dispatch configuration.
func DefaultConfig() Config {
	return Config{
		Workers:     20,
		SendTimeout: 30 * time.Second,
		Retry:       backoff.Default(),
	}
}

// Dispatcher executes campaign sends against a bounded worker pool.
type Dispatcher struct {
	campaigns   CampaignControl
	subscribers AudienceSource
	templates   TemplateSource
	attempts    AttemptStore
	renderer    *render.Renderer
	senders     provider.Registry
	content     BindingSource // optional
	events      EventSink     // optional
	cfg         Config
}

func New(campaigns CampaignControl, subscribers AudienceSource, templates TemplateSource,
	attempts AttemptStore, renderer *render.Renderer, senders provider.Registry, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg = DefaultConfig()
	}
	return &Dispatcher{
		campaigns:   campaigns,
		subscribers: subscribers,
		templates:   templates,
		attempts:    attempts,
		renderer:    renderer,
		senders:     senders,
		cfg:         cfg,
	}
}

// SetContentSource wires the campaign-scoped binding source.
func (d *Dispatcher) SetContentSource(src BindingSource) { d.content = src }

// SetEventSink wires the sink receiving sent events.
func (d *Dispatcher) SetEventSink(sink EventSink) { d.events = sink }

// Report summarizes one dispatch run.
type Report struct {
	CampaignID string
	Resolved   int
	Sent       int
	Failed     int
	Skipped    int
	Completed  bool
}

// Run claims the campaign and sends to every resolved recipient that does
// not already have a delivery attempt. Valid from draft, scheduled, paused
// and sending (crash resume); anything else fails with
// campaign.ErrInvalidState. The campaign moves to sent when the run finishes
// uninterrupted, and stays where the pause/cancel left it otherwise.
func (d *Dispatcher) Run(ctx context.Context, campaignID string) (*Report, error) {
	c, err := d.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignSending {
		if c, err = d.campaigns.MarkSending(ctx, campaignID); err != nil {
			return nil, err
		}
	}

	sender := d.senders.For(c.Channel)
	if sender == nil {
		d.fail(ctx, campaignID, fmt.Errorf("%w %s", ErrNoSender, c.Channel))
		return nil, ErrNoSender
	}
	tpl, err := d.templates.GetTemplate(ctx, c.TemplateID)
	if err != nil {
		d.fail(ctx, campaignID, err)
		return nil, err
	}

	audience, err := d.resolveAudience(ctx, c)
	if err != nil {
		return nil, err
	}
	existing, err := d.attempts.ExistingSubscriberIDs(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load existing attempts: %w", err)
	}

	shared := map[string]interface{}{}
	if d.content != nil {
		if shared, err = d.content.Bindings(ctx); err != nil {
			d.fail(ctx, campaignID, err)
			return nil, fmt.Errorf("resolve content bindings: %w", err)
		}
	}

	report := &Report{CampaignID: campaignID, Resolved: len(audience)}
	var sent, failed, skipped int64
	var halted atomic.Bool

	jobs := make(chan domain.Subscriber)
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				if halted.Load() {
					continue
				}
				if !d.stillSending(ctx, campaignID) {
					halted.Store(true)
					continue
				}
				switch d.sendOne(ctx, c, tpl, sender, &sub, shared) {
				case unitSent:
					atomic.AddInt64(&sent, 1)
				case unitFailed:
					atomic.AddInt64(&failed, 1)
				case unitSkipped:
					atomic.AddInt64(&skipped, 1)
				}
			}
		}()
	}

feed:
	for _, sub := range audience {
		if _, done := existing[sub.ID]; done {
			continue
		}
		select {
		case jobs <- sub:
		case <-ctx.Done():
			halted.Store(true)
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	report.Sent = int(sent)
	report.Failed = int(failed)
	report.Skipped = int(skipped)

	if halted.Load() || ctx.Err() != nil {
		logger.Info("dispatch interrupted",
			"campaign_id", campaignID, "sent", report.Sent, "failed", report.Failed)
		return report, nil
	}

	if _, err := d.campaigns.Complete(ctx, campaignID); err != nil {
		// Pause or cancel won the race; the campaign keeps that status.
		if !errors.Is(err, campaign.ErrInvalidState) {
			return report, err
		}
		return report, nil
	}
	report.Completed = true
	logger.Info("dispatch complete",
		"campaign_id", campaignID, "resolved", report.Resolved,
		"sent", report.Sent, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

// resolveAudience applies the campaign's audience filter to the active
// subscribers opted into its channel.
func (d *Dispatcher) resolveAudience(ctx context.Context, c *domain.Campaign) ([]domain.Subscriber, error) {
	subs, err := d.subscribers.ListActiveByChannel(ctx, c.Channel)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	out := subs[:0]
	for _, s := range subs {
		if c.Audience.Matches(&s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// stillSending re-reads the campaign before each unit of work so pause and
// cancel take effect between recipient sends.
func (d *Dispatcher) stillSending(ctx context.Context, campaignID string) bool {
	c, err := d.campaigns.Get(ctx, campaignID)
	return err == nil && c.Status == domain.CampaignSending
}

type unitResult int

const (
	unitSent unitResult = iota
	unitFailed
	unitSkipped
)

// sendOne handles a single recipient: attempt row, render, provider call
// with retry, attempt update and sent-event emission. Failures are
// per-recipient and never abort the batch.
func (d *Dispatcher) sendOne(ctx context.Context, c *domain.Campaign, tpl *domain.Template,
	sender provider.Sender, sub *domain.Subscriber, shared map[string]interface{}) unitResult {

	now := time.Now()
	attempt := &domain.DeliveryAttempt{
		ID:           uuid.New().String(),
		CampaignID:   c.ID,
		SubscriberID: sub.ID,
		Channel:      c.Channel,
		Status:       domain.AttemptQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := d.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, ErrDuplicateAttempt) {
			return unitSkipped
		}
		logger.Error("attempt create failed", "campaign_id", c.ID, "subscriber_id", sub.ID, "error", err.Error())
		return unitFailed
	}

	rendered, err := d.renderer.Render(tpl, d.bindings(sub, shared))
	if err != nil {
		d.markFailed(ctx, attempt.ID, err)
		return unitFailed
	}

	msg := &provider.Message{
		CampaignID:   c.ID,
		SubscriberID: sub.ID,
		Recipient:    recipientFor(sub, c.Channel),
		Subject:      rendered.Subject,
		Body:         rendered.Body,
		Channel:      c.Channel,
	}

	res, err := d.sendWithRetry(ctx, sender, msg)
	if err != nil {
		d.markFailed(ctx, attempt.ID, err)
		return unitFailed
	}

	if err := d.attempts.UpdateStatus(ctx, attempt.ID, domain.AttemptSent, res.ProviderMessageID, ""); err != nil {
		logger.Error("attempt update failed", "attempt_id", attempt.ID, "error", err.Error())
	}
	d.emitSent(ctx, c.ID, sub.ID)
	return unitSent
}

// sendWithRetry invokes the provider adapter under the retry policy:
// transient errors back off and retry up to the attempt cap, permanent
// errors stop immediately.
func (d *Dispatcher) sendWithRetry(ctx context.Context, sender provider.Sender, msg *provider.Message) (*provider.Result, error) {
	var lastErr error
	for n := 1; n <= d.cfg.Retry.MaxAttempts; n++ {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		res, err := sender.Send(callCtx, msg)
		cancel()
		if err == nil {
			return res, nil
		}
		lastErr = err
		if provider.IsPermanent(err) {
			return nil, err
		}
		if n < d.cfg.Retry.MaxAttempts {
			if err := d.cfg.Retry.Sleep(ctx, n); err != nil {
				return nil, lastErr
			}
		}
	}
	return nil, lastErr
}

func (d *Dispatcher) markFailed(ctx context.Context, attemptID string, cause error) {
	if err := d.attempts.UpdateStatus(ctx, attemptID, domain.AttemptFailed, "", cause.Error()); err != nil {
		logger.Error("attempt update failed", "attempt_id", attemptID, "error", err.Error())
	}
}

func (d *Dispatcher) emitSent(ctx context.Context, campaignID, subscriberID string) {
	if d.events == nil {
		return
	}
	_, err := d.events.IngestEvent(ctx, analytics.IngestInput{
		CampaignID:   campaignID,
		SubscriberID: subscriberID,
		Type:         domain.EventSent,
	})
	if err != nil {
		logger.Warn("sent event not recorded", "campaign_id", campaignID, "subscriber_id", subscriberID, "error", err.Error())
	}
}

// bindings builds the per-recipient variable namespaces on top of the
// campaign-scoped ones.
func (d *Dispatcher) bindings(sub *domain.Subscriber, shared map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(shared)+1)
	for k, v := range shared {
		out[k] = v
	}
	out["subscriber"] = map[string]interface{}{
		"email":     sub.Email,
		"phone":     sub.Phone,
		"frequency": string(sub.Preferences.Frequency),
		"language":  sub.Preferences.Language,
	}
	return out
}

func recipientFor(sub *domain.Subscriber, ch domain.Channel) string {
	if ch == domain.ChannelEmail {
		return sub.Email
	}
	return sub.Phone
}

func (d *Dispatcher) fail(ctx context.Context, campaignID string, cause error) {
	logger.Error("dispatch aborted", "campaign_id", campaignID, "error", cause.Error())
	if _, err := d.campaigns.Fail(ctx, campaignID); err != nil {
		logger.Error("campaign fail transition rejected", "campaign_id", campaignID, "error", err.Error())
	}
}
