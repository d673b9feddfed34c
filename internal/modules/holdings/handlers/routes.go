package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all holdings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/holdings", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{ticker}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGet(w, r, chi.URLParam(r, "ticker"))
		})
		r.Delete("/{ticker}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleDelete(w, r, chi.URLParam(r, "ticker"))
		})
	})
}
