// Package handlers provides HTTP handlers for holding queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/holdings"
)

// Handler handles holdings HTTP requests
type Handler struct {
	service *holdings.Service
	log     zerolog.Logger
}

// NewHandler creates a new holdings handler
func NewHandler(service *holdings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "holdings").Logger(),
	}
}

// HandleList handles GET /api/holdings
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	views := h.service.List()

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"holdings": views,
		"count":    len(views),
	}))
}

// HandleGet handles GET /api/holdings/{ticker}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request, ticker string) {
	view, err := h.service.Get(ticker)
	if err != nil {
		if errors.Is(err, holdings.ErrHoldingNotFound) {
			http.Error(w, "Holding not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get holding")
		http.Error(w, "Failed to get holding", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"holding": view,
	}))
}

// HandleCreate handles POST /api/holdings
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var holding domain.Holding
	if err := json.NewDecoder(r.Body).Decode(&holding); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if holding.Ticker == "" || holding.Rule == nil {
		http.Error(w, "ticker and rule are required", http.StatusBadRequest)
		return
	}
	if holding.TotalSharesOutstanding <= 0 {
		http.Error(w, "total_shares_outstanding must be positive", http.StatusBadRequest)
		return
	}

	if err := h.service.AddHolding(&holding); err != nil {
		h.log.Error().Err(err).Str("ticker", holding.Ticker).Msg("Failed to create holding")
		http.Error(w, "Failed to create holding", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{
		"ticker": holding.Ticker,
	}))
}

// HandleDelete handles DELETE /api/holdings/{ticker}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request, ticker string) {
	if err := h.service.RemoveHolding(ticker); err != nil {
		if errors.Is(err, holdings.ErrHoldingNotFound) {
			http.Error(w, "Holding not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to delete holding")
		http.Error(w, "Failed to delete holding", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func envelope(data map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
