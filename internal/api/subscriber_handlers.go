package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/httputil"
	"github.com/luminapress/comms-engine/internal/service/subscriber"
)

// GetSubscriber returns a single subscriber record.
func (h *Handlers) GetSubscriber(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscribers.Get(r.Context(), chi.URLParam(r, "subscriberID"))
	if err != nil {
		writeSubscriberError(w, err)
		return
	}
	httputil.OK(w, sub)
}

// UpdateSubscriberPreferences replaces a subscriber's delivery
// preferences.
func (h *Handlers) UpdateSubscriberPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs domain.Preferences
	if !httputil.Decode(w, r, &prefs) {
		return
	}
	sub, err := h.subscribers.UpdatePreferences(r.Context(), chi.URLParam(r, "subscriberID"), prefs)
	if err != nil {
		writeSubscriberError(w, err)
		return
	}
	httputil.OK(w, sub)
}

// BulkUpdateSubscribers applies a status and/or preferences patch to a
// set of subscribers. Always responds 200 with a per-id result list;
// individual failures are reported inline, never as a whole-batch error.
func (h *Handlers) BulkUpdateSubscribers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubscriberIDs []string                 `json:"subscriber_ids"`
		Status        *domain.SubscriberStatus `json:"status"`
		Preferences   *domain.Preferences      `json:"preferences"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.SubscriberIDs) == 0 {
		httputil.BadRequest(w, "subscriber_ids is required")
		return
	}
	results := h.subscribers.BulkUpdate(r.Context(), req.SubscriberIDs, subscriber.Patch{
		Status:      req.Status,
		Preferences: req.Preferences,
	})
	httputil.OK(w, map[string]interface{}{"results": results})
}

// BulkDeleteSubscribers tombstones a set of subscribers. Deleted rows
// stay resolvable so historical events keep their referent.
func (h *Handlers) BulkDeleteSubscribers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubscriberIDs []string `json:"subscriber_ids"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.SubscriberIDs) == 0 {
		httputil.BadRequest(w, "subscriber_ids is required")
		return
	}
	results := h.subscribers.BulkDelete(r.Context(), req.SubscriberIDs)
	httputil.OK(w, map[string]interface{}{"results": results})
}

func writeSubscriberError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, subscriber.ErrNotFound):
		httputil.ErrorCode(w, http.StatusNotFound, "SubscriberNotFound", err.Error())
	case errors.Is(err, subscriber.ErrDuplicateActiveSubscriber):
		httputil.Conflict(w, "DuplicateActiveSubscriber", err.Error())
	case errors.Is(err, subscriber.ErrInvalidPreferences):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, subscriber.ErrInvalidStatusTransition):
		httputil.Conflict(w, "InvalidStatusTransition", err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
