// Package router assembles the HTTP surface: the webhook ingress, the
// emergency endpoints for staff, health, and metrics.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/careinbox/careinbox/internal/emergency"
	httpmiddleware "github.com/careinbox/careinbox/internal/http/middleware"
	"github.com/careinbox/careinbox/internal/webhook"
	"github.com/careinbox/careinbox/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	Dispatcher       *webhook.Dispatcher
	EmergencyHandler *emergency.Handler
	MetricsHandler   http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	r.Post("/webhooks", cfg.Dispatcher.HandleWebhook)

	r.Route("/emergency", func(r chi.Router) {
		r.Get("/status", cfg.EmergencyHandler.Status)
		r.Post("/reset", cfg.EmergencyHandler.Reset)
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "careinbox",
	})
}
