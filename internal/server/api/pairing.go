package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kamikazebr/sentinel/internal/server/services"
	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/pkg/models"
)

type PairingHandler struct {
	store   *storage.Store
	pairing *services.PairingService
}

func NewPairingHandler(store *storage.Store, pairing *services.PairingService) *PairingHandler {
	return &PairingHandler{
		store:   store,
		pairing: pairing,
	}
}

func (h *PairingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.PairStartRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	started, err := h.pairing.StartPairing(r.Context(), req.DeviceID, req.DeviceName, req.DeviceType, req.AllowedIP, req.PairingTTLMinutes)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.PairStartResponse{
		PairingCode:   started.PairingCode,
		ExpiresAt:     started.ExpiresAt,
		TOTPSecret:    started.TOTPSecret,
		OTPAuthURL:    started.OTPAuthURL,
		PairingString: started.PairingString,
	})
}

func (h *PairingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req models.PairCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	device, err := h.pairing.CompletePairing(r.Context(), req.DeviceID, req.PairingCode, req.PublicKey)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.PairCompleteResponse{
		Status:     "paired",
		DeviceID:   device.ID,
		TOTPSecret: device.TOTPSecret,
	})
}

func (h *PairingHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.ListPairingsResponse{Pairings: h.store.ListPairings()})
}

// QR serves the pending pairing's otpauth URL as a PNG, sized by ?size=
func (h *PairingHandler) QR(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device_id")

	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 1024 {
			respondErrorJSON(w, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	png, err := h.pairing.PairingQR(deviceID, size)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
