// Package api provides HTTP handlers for the game engine.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scamshield-labs/scamshield/internal/config"
	"github.com/scamshield-labs/scamshield/internal/game"
	"github.com/scamshield-labs/scamshield/internal/generator"
	"github.com/scamshield-labs/scamshield/internal/push"
	"github.com/scamshield-labs/scamshield/internal/store"
	"github.com/scamshield-labs/scamshield/internal/transcript"
)

// maxRequestBodySize is the maximum allowed request body size (64KB). Game
// requests are short; anything larger is not a legitimate client.
const maxRequestBodySize = 64 << 10

// Handler handles game HTTP requests.
type Handler struct {
	mgr         *game.Manager
	repo        store.Repository
	gen         generator.Generator
	hub         *push.Hub
	rateLimiter *RateLimiter
	log         transcript.Logger
	cfg         *config.Config
}

// NewHandler creates a game handler with its dependencies.
func NewHandler(mgr *game.Manager, repo store.Repository, gen generator.Generator, hub *push.Hub, log transcript.Logger, cfg *config.Config) *Handler {
	if log == nil {
		log = transcript.NoopLogger{}
	}
	return &Handler{
		mgr:         mgr,
		repo:        repo,
		gen:         gen,
		hub:         hub,
		rateLimiter: NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		log:         log,
		cfg:         cfg,
	}
}

// RegisterRoutes registers game routes (requires identity middleware).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/game", func(r chi.Router) {
		r.Post("/session", h.HandleCreateSession)
		r.Get("/state", h.HandleState)
		r.Post("/turn", h.HandleTurn)
		r.Post("/flag", h.HandleFlag)
		r.Post("/end", h.HandleEnd)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
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
