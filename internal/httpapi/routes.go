package httpapi

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the webhook and, when an admin token is set, the
// admin API.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/relay/messages", h.HandleWebhook)

	if h.deps.AdminToken == "" {
		return
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)

		r.Get("/settings", h.GetSettings)
		r.Post("/settings/reload", h.ReloadSettings)

		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Get("/history", h.GetHistory)
			r.Post("/reset", h.ResetHistory)
			r.Get("/queue", h.GetQueue)
			r.Get("/transcript", h.GetTranscript)
		})
	})
}
