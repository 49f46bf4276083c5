package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/httputil"
	"github.com/luminapress/comms-engine/internal/service/subscriber"
	"github.com/luminapress/comms-engine/internal/service/verification"
)

// sessionView is the client-facing projection of a verification session.
// OTP challenges never leave the server, even hashed.
type sessionView struct {
	SessionID    string `json:"session_id"`
	Step         string `json:"step"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	SubscriberID string `json:"subscriber_id,omitempty"`
}

func viewSession(s *domain.VerificationSession) sessionView {
	return sessionView{
		SessionID:    s.ID,
		Step:         string(s.Step),
		Email:        s.DraftEmail,
		Phone:        s.DraftPhone,
		SubscriberID: s.SubscriberID,
	}
}

// RequestEmailOTP starts a new verification session (or resends on an
// existing one) and issues a code to the given email address.
func (h *Handlers) RequestEmailOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Email     string `json:"email"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	sess, err := h.verification.RequestEmailOTP(r.Context(), req.SessionID, req.Email)
	if err != nil {
		writeVerificationError(w, err)
		return
	}
	httputil.OK(w, viewSession(sess))
}

// VerifyEmailOTP checks the submitted code against the pending email
// challenge.
func (h *Handlers) VerifyEmailOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Code      string `json:"code"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	sess, err := h.verification.VerifyEmailOTP(r.Context(), req.SessionID, req.Code)
	if err != nil {
		writeVerificationError(w, err)
		return
	}
	httputil.OK(w, viewSession(sess))
}

// RequestPhoneOTP issues (or resends) a code to the session's phone
// number over the configured phone channel.
func (h *Handlers) RequestPhoneOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Phone     string `json:"phone"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	sess, err := h.verification.RequestPhoneOTP(r.Context(), req.SessionID, req.Phone)
	if err != nil {
		writeVerificationError(w, err)
		return
	}
	httputil.OK(w, viewSession(sess))
}

// VerifyPhoneOTP checks the submitted code against the pending phone
// challenge.
func (h *Handlers) VerifyPhoneOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Code      string `json:"code"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	sess, err := h.verification.VerifyPhoneOTP(r.Context(), req.SessionID, req.Code)
	if err != nil {
		writeVerificationError(w, err)
		return
	}
	httputil.OK(w, viewSession(sess))
}

// CommitVerification finalizes a fully verified session into an active
// subscriber. Safe to retry; a committed session returns the same
// subscriber again.
func (h *Handlers) CommitVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string             `json:"session_id"`
		Preferences domain.Preferences `json:"preferences"`
		Consent     bool               `json:"consent"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	sub, err := h.verification.Commit(r.Context(), req.SessionID, req.Preferences, req.Consent)
	if err != nil {
		writeVerificationError(w, err)
		return
	}
	httputil.Created(w, sub)
}

// GetVerificationSession returns the current state of a session so a
// reloaded client can resume where it left off.
func (h *Handlers) GetVerificationSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.verification.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeVerificationError(w, err)
		return
	}
	httputil.OK(w, viewSession(sess))
}

func writeVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, verification.ErrSessionNotFound):
		httputil.ErrorCode(w, http.StatusNotFound, "SessionNotFound", err.Error())
	case errors.Is(err, verification.ErrInvalidStep):
		httputil.Conflict(w, "InvalidStep", err.Error())
	case errors.Is(err, verification.ErrInvalidEmail),
		errors.Is(err, verification.ErrInvalidPhone),
		errors.Is(err, verification.ErrConsentRequired):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, verification.ErrResendTooSoon):
		httputil.ErrorCode(w, http.StatusTooManyRequests, "ResendTooSoon", err.Error())
	case errors.Is(err, verification.ErrInvalidOTP):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "InvalidOtp", err.Error())
	case errors.Is(err, verification.ErrOTPExpired):
		httputil.ErrorCode(w, http.StatusGone, "OtpExpired", err.Error())
	case errors.Is(err, verification.ErrOTPLocked):
		httputil.ErrorCode(w, http.StatusLocked, "OtpLocked", err.Error())
	case errors.Is(err, subscriber.ErrDuplicateActiveSubscriber):
		httputil.Conflict(w, "DuplicateActiveSubscriber", err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
