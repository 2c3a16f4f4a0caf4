package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	dbhttp "github.com/codika/dartbridge/internal/adapter/http"
	"github.com/codika/dartbridge/internal/adapter/lsp"
	dbotel "github.com/codika/dartbridge/internal/adapter/otel"
	"github.com/codika/dartbridge/internal/adapter/ristretto"
	"github.com/codika/dartbridge/internal/adapter/ws"
	"github.com/codika/dartbridge/internal/config"
	"github.com/codika/dartbridge/internal/logger"
	"github.com/codika/dartbridge/internal/middleware"
	"github.com/codika/dartbridge/internal/resilience"
	"github.com/codika/dartbridge/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer func() { _ = logCloser.Close() }()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"analyzer", cfg.Analyzer.Addr(),
		"workspace", cfg.Workspace.Root,
	)

	// --- Infrastructure ---

	reportCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer reportCache.Close()

	metrics, err := dbotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	shutdownTracer := dbotel.InitTracer("dartbridge")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	// --- Analyzer session ---

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	analyzer := lsp.NewSupervisor(cfg.Analyzer, cfg.Workspace.Root, cfg.Workspace.LanguageID, breaker)
	defer func() { _ = analyzer.Shutdown() }()

	analyzer.OnNotification(lsp.MethodPublishDiagnostics, func(string, json.RawMessage) {
		metrics.NotificationsReceived.Add(context.Background(), 1)
	})

	// --- Services ---

	hub := ws.NewHub()
	workspaceSvc := service.NewWorkspaceService(cfg.Workspace)
	intelligenceSvc := service.NewIntelligenceService(cfg.Analyzer, analyzer, analyzer, metrics)
	diagnosticsSvc := service.NewDiagnosticsService(
		cfg.Diagnostics, cfg.Workspace,
		analyzer, analyzer, analyzer.Collector(), workspaceSvc,
		reportCache, hub, metrics,
	)

	// --- HTTP ---

	handlers := dbhttp.NewHandlers(intelligenceSvc, diagnosticsSvc, workspaceSvc, analyzer)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(dbhttp.Logger)
	r.Use(dbhttp.SecurityHeaders)
	r.Use(dbhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(dbotel.HTTPMiddleware("dartbridge"))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/ws", hub.HandleWS)
	dbhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Project analysis holds the request for the full collection window.
		WriteTimeout: cfg.Diagnostics.Window + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return analyzer.Shutdown()
}
