package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kamikazebr/sentinel/internal/server/services"
	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/pkg/models"
)

type DeviceHandler struct {
	store  *storage.Store
	access *services.AccessService
}

func NewDeviceHandler(store *storage.Store, access *services.AccessService) *DeviceHandler {
	return &DeviceHandler{
		store:  store,
		access: access,
	}
}

func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.ListDevicesResponse{Devices: h.store.ListDevices()})
}

func (h *DeviceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device_id")

	var req models.StatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.access.SetStatus(r.Context(), deviceID, req.Status); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.StatusResponse{Status: string(req.Status)})
}

func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device_id")

	if _, err := h.access.Revoke(r.Context(), deviceID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.StatusResponse{Status: "revoked"})
}
