// Package handlers provides HTTP handlers for time-series queries.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/history"
)

// Handler handles history query HTTP requests
type Handler struct {
	store *history.Store
	log   zerolog.Logger
}

// NewHandler creates a new history handler
func NewHandler(store *history.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "history").Logger(),
	}
}

// HandleGetSnapshots handles GET /api/history/snapshots
func (h *Handler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	snapshots := h.store.QuerySnapshots(filter)

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
	}))
}

// HandleGetBreachEvents handles GET /api/history/breach-events
func (h *Handler) HandleGetBreachEvents(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	filter.EventType = domain.BreachEventType(r.URL.Query().Get("event_type"))
	events := h.store.QueryBreachEvents(filter)

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"events": events,
		"count":  len(events),
	}))
}

// HandleGetAudit handles GET /api/history/audit
func (h *Handler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	filter.Level = r.URL.Query().Get("level")
	filter.SystemID = r.URL.Query().Get("system")
	entries := h.store.QueryAudit(filter)

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	}))
}

// HandleGetTrends handles GET /api/history/trends
func (h *Handler) HandleGetTrends(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	points := h.store.QueryTrends(filter)

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"points": points,
		"count":  len(points),
	}))
}

// HandleGetTrendAnalysis handles GET /api/history/trends/analysis
func (h *Handler) HandleGetTrendAnalysis(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	points := h.store.QueryTrends(filter)
	analysis := history.AnalyzeTrends(points)

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"analysis": analysis,
	}))
}

// parseFilter extracts the common query parameters shared by all collections.
func parseFilter(r *http.Request) history.Filter {
	query := r.URL.Query()

	filter := history.Filter{
		Ticker:       query.Get("ticker"),
		Jurisdiction: query.Get("jurisdiction"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if startStr := query.Get("start"); startStr != "" {
		if start, err := time.Parse(time.RFC3339, startStr); err == nil {
			filter.Start = &start
		}
	}
	if endStr := query.Get("end"); endStr != "" {
		if end, err := time.Parse(time.RFC3339, endStr); err == nil {
			filter.End = &end
		}
	}
	return filter
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
