package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/httputil"
	"github.com/luminapress/comms-engine/internal/render"
	"github.com/luminapress/comms-engine/internal/service/campaign"
)

// ListTemplates returns templates, optionally filtered by channel.
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ch := domain.Channel(r.URL.Query().Get("channel"))
	if ch != "" && !domain.ValidChannel(ch) {
		httputil.BadRequest(w, "unknown channel: "+string(ch))
		return
	}
	items, err := h.templates.ListTemplates(r.Context(), ch)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"templates": items})
}

// CreateTemplate registers a new message template. The body must parse
// under the rendering engine; a template that cannot render is rejected
// at creation time, not at send time.
func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string         `json:"name"`
		Channel        domain.Channel `json:"channel"`
		Subject        string         `json:"subject"`
		Body           string         `json:"body"`
		VariableSchema []string       `json:"variable_schema"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Body == "" {
		httputil.BadRequest(w, "name and body are required")
		return
	}
	if !domain.ValidChannel(req.Channel) {
		httputil.BadRequest(w, "unknown channel: "+string(req.Channel))
		return
	}

	now := time.Now().UTC()
	t := &domain.Template{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Channel:        req.Channel,
		Subject:        req.Subject,
		Body:           req.Body,
		VariableSchema: req.VariableSchema,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := render.CheckTemplate(t); err != nil {
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "TemplateInvalid", err.Error())
		return
	}
	if err := h.templates.CreateTemplate(r.Context(), t); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, t)
}

// GetTemplate returns a single template.
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		if errors.Is(err, campaign.ErrTemplateNotFound) {
			httputil.ErrorCode(w, http.StatusNotFound, "TemplateNotFound", err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

// DeleteTemplate removes a template.
func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.DeleteTemplate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
		if errors.Is(err, campaign.ErrTemplateNotFound) {
			httputil.ErrorCode(w, http.StatusNotFound, "TemplateNotFound", err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}
