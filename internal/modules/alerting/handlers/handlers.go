// Package handlers provides HTTP handlers for alert rule and recipient
// management and notification history queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/alerting"
)

// Handler handles alerting HTTP requests
type Handler struct {
	service *alerting.Service
	log     zerolog.Logger
}

// NewHandler creates a new alerting handler
func NewHandler(service *alerting.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "alerting").Logger(),
	}
}

// HandleListRules handles GET /api/alerts/rules
func (h *Handler) HandleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.Repo().ListRules()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list alert rules")
		http.Error(w, "Failed to list alert rules", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	}))
}

// HandleGetRule handles GET /api/alerts/rules/{id}
func (h *Handler) HandleGetRule(w http.ResponseWriter, r *http.Request, id string) {
	rule, err := h.service.Repo().GetRule(id)
	if err != nil {
		if errors.Is(err, alerting.ErrRuleNotFound) {
			http.Error(w, "Alert rule not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("rule", id).Msg("Failed to get alert rule")
		http.Error(w, "Failed to get alert rule", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"rule": rule}))
}

// HandleCreateRule handles POST /api/alerts/rules
func (h *Handler) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule alerting.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if rule.Name == "" || len(rule.Conditions) == 0 {
		http.Error(w, "name and conditions are required", http.StatusBadRequest)
		return
	}

	if err := h.service.CreateRule(&rule); err != nil {
		h.log.Error().Err(err).Msg("Failed to create alert rule")
		http.Error(w, "Failed to create alert rule", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{"rule": rule}))
}

// HandleUpdateRule handles PUT /api/alerts/rules/{id}
func (h *Handler) HandleUpdateRule(w http.ResponseWriter, r *http.Request, id string) {
	var rule alerting.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rule.ID = id

	if err := h.service.UpdateRule(&rule); err != nil {
		if errors.Is(err, alerting.ErrRuleNotFound) {
			http.Error(w, "Alert rule not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("rule", id).Msg("Failed to update alert rule")
		http.Error(w, "Failed to update alert rule", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"rule": rule}))
}

// HandleDeleteRule handles DELETE /api/alerts/rules/{id}
func (h *Handler) HandleDeleteRule(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.DeleteRule(id); err != nil {
		if errors.Is(err, alerting.ErrRuleNotFound) {
			http.Error(w, "Alert rule not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("rule", id).Msg("Failed to delete alert rule")
		http.Error(w, "Failed to delete alert rule", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleToggleRule handles POST /api/alerts/rules/{id}/toggle
func (h *Handler) HandleToggleRule(w http.ResponseWriter, r *http.Request, id string) {
	rule, err := h.service.Repo().GetRule(id)
	if err != nil {
		if errors.Is(err, alerting.ErrRuleNotFound) {
			http.Error(w, "Alert rule not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("rule", id).Msg("Failed to load alert rule")
		http.Error(w, "Failed to toggle alert rule", http.StatusInternalServerError)
		return
	}

	if err := h.service.SetRuleEnabled(id, !rule.Enabled); err != nil {
		h.log.Error().Err(err).Str("rule", id).Msg("Failed to toggle alert rule")
		http.Error(w, "Failed to toggle alert rule", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"id":      id,
		"enabled": !rule.Enabled,
	}))
}

// HandleListRecipients handles GET /api/alerts/recipients
func (h *Handler) HandleListRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := h.service.Repo().ListRecipients()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list recipients")
		http.Error(w, "Failed to list recipients", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"recipients": recipients,
		"count":      len(recipients),
	}))
}

// HandleCreateRecipient handles POST /api/alerts/recipients
func (h *Handler) HandleCreateRecipient(w http.ResponseWriter, r *http.Request) {
	var recipient alerting.Recipient
	if err := json.NewDecoder(r.Body).Decode(&recipient); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if recipient.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := h.service.Repo().CreateRecipient(&recipient); err != nil {
		h.log.Error().Err(err).Msg("Failed to create recipient")
		http.Error(w, "Failed to create recipient", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{"recipient": recipient}))
}

// HandleUpdateRecipient handles PUT /api/alerts/recipients/{id}
func (h *Handler) HandleUpdateRecipient(w http.ResponseWriter, r *http.Request, id string) {
	var recipient alerting.Recipient
	if err := json.NewDecoder(r.Body).Decode(&recipient); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	recipient.ID = id

	if err := h.service.Repo().UpdateRecipient(&recipient); err != nil {
		if errors.Is(err, alerting.ErrRecipientNotFound) {
			http.Error(w, "Recipient not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("recipient", id).Msg("Failed to update recipient")
		http.Error(w, "Failed to update recipient", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"recipient": recipient}))
}

// HandleDeleteRecipient handles DELETE /api/alerts/recipients/{id}
func (h *Handler) HandleDeleteRecipient(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Repo().DeleteRecipient(id); err != nil {
		if errors.Is(err, alerting.ErrRecipientNotFound) {
			http.Error(w, "Recipient not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("recipient", id).Msg("Failed to delete recipient")
		http.Error(w, "Failed to delete recipient", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListNotifications handles GET /api/alerts/notifications
func (h *Handler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := alerting.NotificationFilter{
		RecipientID: query.Get("recipient"),
		Channel:     domain.NotificationChannel(query.Get("channel")),
		Severity:    alerting.Severity(query.Get("severity")),
		Status:      domain.BreachStatus(query.Get("status")),
		Limit:       100,
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filter.Offset = offset
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

	notifications, err := h.service.Repo().QueryNotifications(filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query notifications")
		http.Error(w, "Failed to query notifications", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
		"limit":         filter.Limit,
		"offset":        filter.Offset,
	}))
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
