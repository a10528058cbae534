// ScamShield - Adaptive Scam Recognition Training Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/scamshield-labs/scamshield/internal/api"
	"github.com/scamshield-labs/scamshield/internal/config"
	"github.com/scamshield-labs/scamshield/internal/game"
	"github.com/scamshield-labs/scamshield/internal/generator"
	"github.com/scamshield-labs/scamshield/internal/identity"
	"github.com/scamshield-labs/scamshield/internal/middleware"
	"github.com/scamshield-labs/scamshield/internal/push"
	"github.com/scamshield-labs/scamshield/internal/store"
	"github.com/scamshield-labs/scamshield/internal/transcript"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "risk_policy", cfg.RiskPolicy)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	transcriptLogger, err := transcript.NewLogger(transcript.Config{
		Enabled:       cfg.Transcript.Enabled,
		Dir:           cfg.Transcript.Dir,
		GlobalEnabled: cfg.Transcript.GlobalEnabled,
		GlobalPath:    cfg.Transcript.GlobalPath,
		QueueSize:     cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcriptLogger.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	// Pick the dialogue generator backend. Without an API key the scripted
	// bank-alert scenario keeps the game fully playable offline.
	var gen generator.Generator
	if cfg.OpenAI.APIKey != "" {
		gen, err = generator.NewOpenAIGenerator(generator.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}, logger)
		if err != nil {
			slog.Error("Failed to initialize dialogue generator", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("OPENAI_API_KEY not set, using scripted scenario backend")
		gen = generator.NewScripted()
	}

	// Initialize services.
	mgr := game.NewManager(cfg.RiskPolicy)
	hub := push.NewHub()

	// Initialize handlers.
	gameHandler := api.NewHandler(mgr, repo, gen, hub, transcriptLogger, cfg)
	wsHandler := push.NewWebSocketHandler(hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	gameHandler.RegisterRoutes(r)

	// WebSocket endpoint for live aggregate and summary pushes.
	r.Get("/ws/game", wsHandler.ServeHTTP)

	// Create server.
	// Note: SSE connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,                 // 0 = no timeout for SSE support
		IdleTimeout:  120 * time.Second, // 2 minutes for idle connections
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTTLWorker(ctx, repo, mgr, cfg.SessionTTL)
	slog.Info("TTL worker started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// startTTLWorker periodically evicts idle in-memory rounds and expired
// persisted sessions.
func startTTLWorker(ctx context.Context, repo store.Repository, mgr *game.Manager, ttl time.Duration) {
	interval := ttl / 4
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				evicted := mgr.Sweep(ttl)
				if evicted > 0 {
					slog.Info("Swept idle rounds", "count", evicted)
				}

				cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				removed, err := repo.CleanupExpiredSessions(cleanupCtx, ttl)
				cancel()
				if err != nil {
					slog.Warn("Failed to cleanup expired sessions", "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("Cleaned up expired sessions", "count", removed)
				}
			}
		}
	}()
}
