// Intake Assistant - Planning Division request intake server
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

	"github.com/cfpd-planning/intake-assistant/internal/api"
	"github.com/cfpd-planning/intake-assistant/internal/assistant"
	"github.com/cfpd-planning/intake-assistant/internal/config"
	"github.com/cfpd-planning/intake-assistant/internal/gateway"
	"github.com/cfpd-planning/intake-assistant/internal/identity"
	"github.com/cfpd-planning/intake-assistant/internal/mailer"
	"github.com/cfpd-planning/intake-assistant/internal/middleware"
	"github.com/cfpd-planning/intake-assistant/internal/store"
	"github.com/cfpd-planning/intake-assistant/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

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

	llm := gateway.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
	slog.Info("Model gateway initialized", "model", cfg.OpenAI.Model)

	smtp, err := mailer.NewSMTP(cfg.Mail, logger)
	if err != nil {
		slog.Error("Failed to initialize mailer", "error", err)
		os.Exit(1)
	}
	slog.Info("Mailer initialized", "host", cfg.Mail.Host, "port", cfg.Mail.Port)

	// Initialize handlers.
	ctrl := assistant.NewController(llm, logger)
	apiHandler := api.NewHandler(repo, ctrl, smtp, cfg)
	wsHandler := api.NewWebSocketHandler(apiHandler)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(cfg.SessionSecret, cfg.IsDevelopment()))

	// All routes use identity middleware (no auth needed).
	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend pages.
	r.Get("/", web.Page("chat.html"))
	r.Get("/confirmation", web.Page("confirmation.html"))
	r.Handle("/static/*", web.StaticHandler())

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start session cleanup worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartCleanupWorker(ctx, repo, cfg.SessionTTL)

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
