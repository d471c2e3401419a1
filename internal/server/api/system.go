package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/pkg/models"
)

// HealthReporter is satisfied by services.HealthMonitor
type HealthReporter interface {
	Snapshot(ctx context.Context) models.HealthSnapshot
}

type SystemHandler struct {
	store  *storage.Store
	health HealthReporter
}

func NewSystemHandler(store *storage.Store, health HealthReporter) *SystemHandler {
	return &SystemHandler{
		store:  store,
		health: health,
	}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.health.Snapshot(r.Context()))
}

func (h *SystemHandler) State(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

// Logs returns newest-first entries; ?limit= caps the count
func (h *SystemHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := storage.DefaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondErrorJSON(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	respondJSON(w, http.StatusOK, models.ListLogsResponse{Logs: h.store.Logs(limit)})
}
