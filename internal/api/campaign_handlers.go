package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/httputil"
	"github.com/luminapress/comms-engine/internal/pkg/logger"
	"github.com/luminapress/comms-engine/internal/service/campaign"
)

// ListCampaigns returns campaigns matching the query filters.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	items, total, err := h.campaigns.List(r.Context(), campaign.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"campaigns": items,
		"total":     total,
	})
}

// CreateCampaign creates a new draft campaign.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), input)
	if err != nil {
		if errors.Is(err, campaign.ErrTemplateNotFound) {
			httputil.ErrorCode(w, http.StatusUnprocessableEntity, "TemplateNotFound", err.Error())
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, c)
}

// GetCampaign returns a single campaign.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// UpdateCampaign edits a draft campaign. Nil fields are left unchanged.
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string                `json:"name"`
		TemplateID  *string                `json:"template_id"`
		Audience    *domain.AudienceFilter `json:"audience_filter"`
		ScheduledAt *time.Time             `json:"scheduled_at"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	err := h.campaigns.Update(r.Context(), chi.URLParam(r, "campaignID"), campaign.UpdateFields{
		Name:        req.Name,
		TemplateID:  req.TemplateID,
		Audience:    req.Audience,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.NoContent(w)
}

// DeleteCampaign removes a draft or cancelled campaign.
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ScheduleCampaign books a future send time.
func (h *Handlers) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.campaigns.Schedule(r.Context(), chi.URLParam(r, "campaignID"), req.ScheduledAt)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// SendCampaign moves the campaign to sending and kicks off dispatch in
// the background. The state transition is validated synchronously so the
// caller gets an immediate conflict on an unsendable campaign; delivery
// progress is observable through campaign status and stats.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignID")
	c, err := h.campaigns.MarkSending(r.Context(), id)
	if err != nil {
		writeCampaignError(w, err)
		return
	}

	go func() {
		report, err := h.runner.Run(context.Background(), id)
		if err != nil {
			logger.Error("campaign dispatch failed", "campaign_id", id, "error", err.Error())
			return
		}
		logger.Info("campaign dispatch finished",
			"campaign_id", id,
			"resolved", report.Resolved,
			"sent", report.Sent,
			"failed", report.Failed,
			"skipped", report.Skipped)
	}()

	httputil.JSON(w, http.StatusAccepted, c)
}

// PauseCampaign halts an in-flight send between recipients.
func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Pause(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// ResumeCampaign restarts dispatch for a paused campaign. Recipients
// already attempted are skipped by the dispatcher.
func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.SendCampaign(w, r)
}

// CancelCampaign terminally stops a campaign.
func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Cancel(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// CampaignStats returns the engagement rollup for a campaign.
func (h *Handlers) CampaignStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignID")
	if _, err := h.campaigns.Get(r.Context(), id); err != nil {
		writeCampaignError(w, err)
		return
	}
	stats, err := h.analytics.ComputeStats(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

func writeCampaignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.ErrorCode(w, http.StatusNotFound, "CampaignNotFound", err.Error())
	case errors.Is(err, campaign.ErrTemplateNotFound):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "TemplateNotFound", err.Error())
	case errors.Is(err, campaign.ErrInvalidState):
		httputil.Conflict(w, "InvalidState", err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
