package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the full route tree. corsOrigins lists the browser
// origins allowed to call the API; an empty list disables CORS entirely.
func NewRouter(h *Handlers, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/verification", func(r chi.Router) {
			r.Post("/email-otp", h.RequestEmailOTP)
			r.Post("/email-otp/verify", h.VerifyEmailOTP)
			r.Post("/phone-otp", h.RequestPhoneOTP)
			r.Post("/phone-otp/verify", h.VerifyPhoneOTP)
			r.Post("/commit", h.CommitVerification)
			r.Get("/sessions/{sessionID}", h.GetVerificationSession)
		})

		r.Route("/subscribers", func(r chi.Router) {
			r.Get("/{subscriberID}", h.GetSubscriber)
			r.Put("/{subscriberID}/preferences", h.UpdateSubscriberPreferences)
			r.Post("/bulk/update", h.BulkUpdateSubscribers)
			r.Post("/bulk/delete", h.BulkDeleteSubscribers)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Get("/{templateID}", h.GetTemplate)
			r.Delete("/{templateID}", h.DeleteTemplate)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Get("/{campaignID}", h.GetCampaign)
			r.Put("/{campaignID}", h.UpdateCampaign)
			r.Delete("/{campaignID}", h.DeleteCampaign)
			r.Post("/{campaignID}/schedule", h.ScheduleCampaign)
			r.Post("/{campaignID}/send", h.SendCampaign)
			r.Post("/{campaignID}/pause", h.PauseCampaign)
			r.Post("/{campaignID}/resume", h.ResumeCampaign)
			r.Post("/{campaignID}/cancel", h.CancelCampaign)
			r.Get("/{campaignID}/stats", h.CampaignStats)
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.IngestEvent)
		})
	})

	// Provider callbacks sit outside /api; the ESP posts here directly.
	r.Post("/webhooks/ses", h.SESWebhook)

	return r
}
