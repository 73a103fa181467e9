// Package api provides HTTP handlers for the intake API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cfpd-planning/intake-assistant/internal/assistant"
	"github.com/cfpd-planning/intake-assistant/internal/config"
	"github.com/cfpd-planning/intake-assistant/internal/store"
)

// Mailer sends one plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Handler provides the HTTP surface for chat, reset, and submit.
type Handler struct {
	repo        store.Repository
	ctrl        *assistant.Controller
	mail        Mailer
	cfg         *config.Config
	rateLimiter *RateLimiter
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, ctrl *assistant.Controller, mail Mailer, cfg *config.Config) *Handler {
	return &Handler{
		repo:        repo,
		ctrl:        ctrl,
		mail:        mail,
		cfg:         cfg,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
	}
}

// RegisterRoutes wires the API endpoints onto the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
	r.Post("/api/reset", h.HandleReset)
	r.Post("/api/submit", h.HandleSubmit)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// isDevelopment returns true if running in development mode.
func (h *Handler) isDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return h.cfg.FrontendURL == "" ||
		strings.Contains(h.cfg.FrontendURL, "localhost") ||
		strings.Contains(h.cfg.FrontendURL, "127.0.0.1")
}
