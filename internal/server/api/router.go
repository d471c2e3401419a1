package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kamikazebr/sentinel/internal/server/services"
	"github.com/kamikazebr/sentinel/internal/server/storage"
)

// RouterConfig carries everything NewRouter wires into the HTTP surface
type RouterConfig struct {
	APIKey         string
	AllowedOrigins []string

	Store   *storage.Store
	Access  *services.AccessService
	Pairing *services.PairingService
	Tokens  *services.TokenService
	Health  HealthReporter
	Limiter *services.RateLimiter
}

func NewRouter(cfg RouterConfig) http.Handler {
	deviceHandler := NewDeviceHandler(cfg.Store, cfg.Access)
	pairingHandler := NewPairingHandler(cfg.Store, cfg.Pairing)
	unlockHandler := NewUnlockHandler(cfg.Store, cfg.Access, cfg.Tokens)
	systemHandler := NewSystemHandler(cfg.Store, cfg.Health)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	if cfg.Limiter != nil {
		r.Use(RateLimitMiddleware(cfg.Limiter))
	}

	// Liveness probe, reachable without the API key
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "sentinel"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(APIKeyMiddleware(cfg.APIKey))

		r.Get("/health", systemHandler.Health)
		r.Get("/state", systemHandler.State)
		r.Get("/logs", systemHandler.Logs)

		r.Route("/pair", func(r chi.Router) {
			r.Post("/start", pairingHandler.Start)
			r.Post("/complete", pairingHandler.Complete)
			r.Get("/pending", pairingHandler.ListPending)
			r.Get("/{device_id}/qr", pairingHandler.QR)
		})

		r.Route("/unlock", func(r chi.Router) {
			r.Get("/pending", unlockHandler.ListPending)
			r.Post("/request", unlockHandler.Request)
			r.Post("/token/create", unlockHandler.CreateToken)
			r.Post("/token/redeem", unlockHandler.RedeemToken)
			r.Post("/totp", unlockHandler.TOTP)
			r.Post("/{request_id}/approve", unlockHandler.Approve)
			r.Post("/{request_id}/deny", unlockHandler.Deny)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", deviceHandler.ListDevices)
			r.Post("/{device_id}/status", deviceHandler.UpdateStatus)
			r.Post("/{device_id}/revoke", deviceHandler.Revoke)
		})
	})

	return r
}
