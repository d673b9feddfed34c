package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all history query routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/snapshots", h.HandleGetSnapshots)
		r.Get("/breach-events", h.HandleGetBreachEvents)
		r.Get("/audit", h.HandleGetAudit)
		r.Route("/trends", func(r chi.Router) {
			r.Get("/", h.HandleGetTrends)
			r.Get("/analysis", h.HandleGetTrendAnalysis)
		})
	})
}
