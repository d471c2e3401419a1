package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kamikazebr/sentinel/internal/server/services"
	"github.com/kamikazebr/sentinel/internal/server/storage"
	"github.com/kamikazebr/sentinel/pkg/models"
)

type UnlockHandler struct {
	store  *storage.Store
	access *services.AccessService
	tokens *services.TokenService
}

func NewUnlockHandler(store *storage.Store, access *services.AccessService, tokens *services.TokenService) *UnlockHandler {
	return &UnlockHandler{
		store:  store,
		access: access,
		tokens: tokens,
	}
}

func (h *UnlockHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.ListRequestsResponse{Requests: h.store.ListRequests()})
}

func (h *UnlockHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req models.UnlockRequestBody
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sourceIP := req.RequestSourceIP
	if sourceIP == "" {
		sourceIP = clientIP(r)
	}

	created, err := h.access.RequestUnlock(r.Context(), req.DeviceID, sourceIP, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.UnlockRequestResponse{Request: *created})
}

func (h *UnlockHandler) Approve(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")

	var req models.ApproveRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	approved, expiresAt, err := h.access.ApproveRequest(r.Context(), requestID, req.DurationMinutes)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.ApproveResponse{
		ExpiresAt: expiresAt,
		DeviceID:  approved.DeviceID,
	})
}

func (h *UnlockHandler) Deny(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")

	if _, err := h.access.DenyRequest(r.Context(), requestID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.StatusResponse{Status: "denied"})
}

func (h *UnlockHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.tokens.CreateToken(r.Context(), req.DeviceID, req.TTLSeconds)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.TokenCreateResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	})
}

func (h *UnlockHandler) RedeemToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRedeemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	expiresAt, err := h.tokens.RedeemToken(r.Context(), req.DeviceID, req.Token, req.DurationMinutes)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.UnlockResponse{Status: "unlocked", ExpiresAt: expiresAt})
}

func (h *UnlockHandler) TOTP(w http.ResponseWriter, r *http.Request) {
	var req models.TOTPUnlockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	expiresAt, err := h.access.UnlockWithTOTP(r.Context(), req.DeviceID, req.Code, req.DurationMinutes)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.UnlockResponse{Status: "unlocked", ExpiresAt: expiresAt})
}
