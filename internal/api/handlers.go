package api

import (
	"context"
	"net/http"
	"time"

	"github.com/luminapress/comms-engine/internal/dispatch"
	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/httputil"
	"github.com/luminapress/comms-engine/internal/service/analytics"
	"github.com/luminapress/comms-engine/internal/service/campaign"
	"github.com/luminapress/comms-engine/internal/service/subscriber"
	"github.com/luminapress/comms-engine/internal/service/verification"
)

// CampaignRunner executes a full dispatch run for one campaign. The API
// kicks runs off in the background; the run reports through campaign
// status transitions, not through the HTTP response.
type CampaignRunner interface {
	Run(ctx context.Context, campaignID string) (*dispatch.Report, error)
}

// AttemptResolver resolves delivery attempts from provider webhook
// payloads and applies delivery confirmations.
type AttemptResolver interface {
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.DeliveryAttempt, error)
	MarkDelivered(ctx context.Context, providerMessageID string) error
}

// TemplateStore is the template CRUD surface the API exposes.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id string) (*domain.Template, error)
	CreateTemplate(ctx context.Context, t *domain.Template) error
	ListTemplates(ctx context.Context, channel domain.Channel) ([]domain.Template, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// Handlers holds all HTTP handlers and their service dependencies.
type Handlers struct {
	verification *verification.Manager
	subscribers  *subscriber.Service
	campaigns    *campaign.Service
	analytics    *analytics.Service
	templates    TemplateStore
	attempts     AttemptResolver
	runner       CampaignRunner

	startTime time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(
	vm *verification.Manager,
	subs *subscriber.Service,
	camps *campaign.Service,
	stats *analytics.Service,
	templates TemplateStore,
	attempts AttemptResolver,
	runner CampaignRunner,
) *Handlers {
	return &Handlers{
		verification: vm,
		subscribers:  subs,
		campaigns:    camps,
		analytics:    stats,
		templates:    templates,
		attempts:     attempts,
		runner:       runner,
		startTime:    time.Now(),
	}
}

// HealthCheck returns server liveness info.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.startTime).String(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
