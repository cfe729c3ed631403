package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benmeehan/sensor-alert-engine/internal/events"
	"github.com/benmeehan/sensor-alert-engine/internal/models"
	"github.com/benmeehan/sensor-alert-engine/internal/state_managers"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// EventStatsProvider exposes the event counters.
type EventStatsProvider interface {
	Snapshot() events.EventStats
}

// HostMetricsProvider samples host resource usage.
type HostMetricsProvider interface {
	CollectAll(ctx context.Context) models.HostMetrics
}

// Handler serves read-mostly views of the device store.
type Handler struct {
	store  *state_managers.DeviceStore
	stats  EventStatsProvider
	host   HostMetricsProvider
	logger zerolog.Logger
}

// NewHandler creates a Handler. stats and host may be nil.
func NewHandler(store *state_managers.DeviceStore, stats EventStatsProvider, host HostMetricsProvider, logger zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		stats:  stats,
		host:   host,
		logger: logger,
	}
}

type healthResponse struct {
	Status            string              `json:"status"`
	EvaluationEnabled bool                `json:"evaluation_enabled"`
	Devices           int                 `json:"devices"`
	ActiveAlerts      int                 `json:"active_alerts"`
	LastPoll          *time.Time          `json:"last_poll,omitempty"`
	Host              *models.HostMetrics `json:"host,omitempty"`
}

// Health reports engine state and host load.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Snapshot()
	resp := healthResponse{
		Status:            "ok",
		EvaluationEnabled: snapshot.EvaluationEnabled,
		Devices:           len(snapshot.Devices),
		ActiveAlerts:      len(snapshot.ActiveAlerts),
	}
	if !snapshot.LastPoll.IsZero() {
		resp.LastPoll = &snapshot.LastPoll
	}
	if h.host != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		host := h.host.CollectAll(ctx)
		cancel()
		resp.Host = &host
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Devices())
}

func (h *Handler) ListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.ActiveAlerts())
}

func (h *Handler) ListAllAlerts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.AllAlerts())
}

// ResolveAlert manually deactivates an alert.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	alert, err := h.store.ResolveAlert(id)
	if errors.Is(err, state_managers.ErrAlertNotFound) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("alert_id", id).Msg("Failed to resolve alert")
		h.writeError(w, http.StatusInternalServerError, "failed to resolve alert")
		return
	}
	h.writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *Handler) EnableEvaluation(w http.ResponseWriter, r *http.Request) {
	h.setEvaluation(w, true)
}

func (h *Handler) DisableEvaluation(w http.ResponseWriter, r *http.Request) {
	h.setEvaluation(w, false)
}

func (h *Handler) setEvaluation(w http.ResponseWriter, enabled bool) {
	h.store.SetEvaluationEnabled(enabled)
	h.writeJSON(w, http.StatusOK, map[string]bool{"evaluation_enabled": enabled})
}

func (h *Handler) ZoneStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.ZoneStats())
}

func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeError(w, http.StatusNotFound, "event statistics are disabled")
		return
	}
	h.writeJSON(w, http.StatusOK, h.stats.Snapshot())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
