package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/kamikazebr/sentinel/internal/server/services"
	"github.com/kamikazebr/sentinel/pkg/models"
)

func writeJSON(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(data)
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, data)
}

func respondErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, models.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// respondServiceError maps the services error classes onto status codes
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalid):
		respondErrorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		respondErrorJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrExpired):
		respondErrorJSON(w, http.StatusGone, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		respondErrorJSON(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrDependency):
		respondJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   http.StatusText(http.StatusInternalServerError),
			Message: "Failed to add WireGuard peer",
			Details: err.Error(),
		})
	default:
		slog.Error("Unhandled service error", "error", err)
		respondJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   http.StatusText(http.StatusInternalServerError),
			Message: "internal error",
			Details: err.Error(),
		})
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeOptionalJSON accepts an empty body and leaves v untouched
func decodeOptionalJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := decodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// clientIP strips the port from RemoteAddr, which RealIP may already have
// replaced with a bare forwarded address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
