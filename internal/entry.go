// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/halvard/gebo/internal/api"
	"github.com/halvard/gebo/internal/auth"
	"github.com/halvard/gebo/internal/balance"
	"github.com/halvard/gebo/internal/i18n"
	"github.com/halvard/gebo/internal/mcpserver"
	"github.com/halvard/gebo/internal/media"
	"github.com/halvard/gebo/internal/protocol"
	"github.com/halvard/gebo/internal/publish"
	"github.com/halvard/gebo/internal/pubservice"
	"github.com/halvard/gebo/internal/session"
	"github.com/halvard/gebo/internal/sse"
	"github.com/halvard/gebo/internal/store"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("relay_url", cfg.Relay.URL),
		slog.String("media_mode", cfg.Media.Mode),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Credential cache and submission log.
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	timeout := time.Duration(cfg.Relay.TimeoutSeconds) * time.Second

	// Relay client and credential guarantor.
	relay := protocol.NewClient(cfg.Relay.URL, timeout)
	signer := auth.NewHMACSigner(cfg.Signer.Key)
	guarantor := auth.NewGuarantor(relay, signer, db)

	// Media backend.
	var uploader media.Uploader
	var local *media.Local
	switch cfg.Media.Mode {
	case MediaModeRemote:
		uploader = media.NewRemote(cfg.Media.URL, timeout)
	default:
		local, err = media.NewLocal(cfg.Media.Dir)
		if err != nil {
			return fmt.Errorf("init media dir: %w", err)
		}
		uploader = local
	}

	// Reward-token balance client.
	balances := balance.NewClient(cfg.Token.BalanceURL, cfg.Token.Contract, timeout)

	// Message catalog.
	catalog, err := i18n.Load(cfg.Locale.Dir, cfg.Locale.Default)
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Publish workflow and service.
	wf := publish.NewWorkflow(guarantor, media.NewResolver(uploader), relay)
	svc := pubservice.NewService(logger, wf, guarantor, relay, balances, db, broker, cfg.Token.DefaultGoal)
	sessions := session.NewManager()

	// MCP stdio mode replaces the HTTP server entirely.
	if app.mcpStdio {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(svc, sessions, uploader).ServeStdio()
	}

	apiRouter := api.NewRouter(svc, sessions, catalog,
		cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, local)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Media references are root-relative ("/media/<name>"), so the local
	// backend is also served outside the /api prefix.
	if local != nil {
		r.Get("/media/{name}", api.NewMediaHandler(local).ServeFile)
	}

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload the message catalog when locale files change.
	g.Go(func() error {
		if err := i18n.Watch(gCtx, catalog, logger); err != nil {
			logger.Warn("locale watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
