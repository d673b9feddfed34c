package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all alerting routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.HandleListRules)
			r.Post("/", h.HandleCreateRule)
			r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetRule(w, r, chi.URLParam(r, "id"))
			})
			r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleUpdateRule(w, r, chi.URLParam(r, "id"))
			})
			r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleDeleteRule(w, r, chi.URLParam(r, "id"))
			})
			r.Post("/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
				h.HandleToggleRule(w, r, chi.URLParam(r, "id"))
			})
		})

		r.Route("/recipients", func(r chi.Router) {
			r.Get("/", h.HandleListRecipients)
			r.Post("/", h.HandleCreateRecipient)
			r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleUpdateRecipient(w, r, chi.URLParam(r, "id"))
			})
			r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleDeleteRecipient(w, r, chi.URLParam(r, "id"))
			})
		})

		r.Get("/notifications", h.HandleListNotifications)
	})
}
