package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/httputil"
	"github.com/luminapress/comms-engine/internal/pkg/logger"
	"github.com/luminapress/comms-engine/internal/service/analytics"
)

// IngestEvent appends one engagement event. Duplicate deliveries of the
// same logical event are accepted; the stats reader deduplicates.
func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var in analytics.IngestInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	ev, err := h.analytics.IngestEvent(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, analytics.ErrInvalidEvent):
			httputil.BadRequest(w, err.Error())
		case errors.Is(err, analytics.ErrUnknownAttempt):
			httputil.ErrorCode(w, http.StatusUnprocessableEntity, "UnknownAttempt", err.Error())
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	httputil.Created(w, ev)
}

// sesNotification is the subset of the SES event publishing payload the
// webhook cares about. SES wraps everything in {"eventType": ..., "mail":
// {"messageId": ...}} plus a per-event detail object.
type sesNotification struct {
	EventType string `json:"eventType"`
	Mail      struct {
		MessageID string `json:"messageId"`
		Timestamp string `json:"timestamp"`
	} `json:"mail"`
	Bounce struct {
		BounceType string `json:"bounceType"`
	} `json:"bounce"`
	Open struct {
		IPAddress string `json:"ipAddress"`
		UserAgent string `json:"userAgent"`
	} `json:"open"`
	Click struct {
		IPAddress string `json:"ipAddress"`
		UserAgent string `json:"userAgent"`
		Link      string `json:"link"`
	} `json:"click"`
}

// sesEventTypes maps SES event publishing names to internal event types.
// Unlisted SES events (Send, Rendering Failure, DeliveryDelay) are
// acknowledged and dropped.
var sesEventTypes = map[string]domain.EventType{
	"Delivery":  domain.EventDelivered,
	"Bounce":    domain.EventBounced,
	"Complaint": domain.EventComplained,
	"Open":      domain.EventOpened,
	"Click":     domain.EventClicked,
}

// SESWebhook translates an SES event notification into an internal
// engagement event. The provider message id in the payload is resolved
// back to the delivery attempt it belongs to; notifications for unknown
// message ids are acknowledged so the provider stops retrying them.
func (h *Handlers) SESWebhook(w http.ResponseWriter, r *http.Request) {
	var n sesNotification
	if !httputil.Decode(w, r, &n) {
		return
	}

	eventType, ok := sesEventTypes[n.EventType]
	if !ok {
		httputil.OK(w, map[string]string{"status": "ignored"})
		return
	}

	attempt, err := h.attempts.GetByProviderMessageID(r.Context(), n.Mail.MessageID)
	if err != nil {
		logger.Warn("webhook for unknown message id",
			"event_type", n.EventType, "message_id", n.Mail.MessageID)
		httputil.OK(w, map[string]string{"status": "ignored"})
		return
	}

	if eventType == domain.EventDelivered {
		if err := h.attempts.MarkDelivered(r.Context(), n.Mail.MessageID); err != nil {
			httputil.InternalError(w, err)
			return
		}
	}

	occurredAt := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339, n.Mail.Timestamp); err == nil {
		occurredAt = ts
	}

	data := domain.EventData{}
	switch eventType {
	case domain.EventOpened:
		data.IPAddress = n.Open.IPAddress
		data.UserAgent = n.Open.UserAgent
	case domain.EventClicked:
		data.IPAddress = n.Click.IPAddress
		data.UserAgent = n.Click.UserAgent
		data.URL = n.Click.Link
	}

	ev, err := h.analytics.IngestEvent(r.Context(), analytics.IngestInput{
		CampaignID:   attempt.CampaignID,
		SubscriberID: attempt.SubscriberID,
		Type:         eventType,
		Data:         data,
		OccurredAt:   occurredAt,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "accepted", "event_id": ev.ID})
}
