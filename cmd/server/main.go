package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/campuscircle/internal"
	"github.com/DukeRupert/campuscircle/internal/api"
	"github.com/DukeRupert/campuscircle/internal/handler"
	"github.com/DukeRupert/campuscircle/internal/metrics"
	"github.com/DukeRupert/campuscircle/internal/middleware"
	"github.com/DukeRupert/campuscircle/internal/session"
	"github.com/DukeRupert/campuscircle/internal/validation"
	"github.com/DukeRupert/campuscircle/web"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	isSecure := !cfg.IsDevelopment()

	engine, err := validation.New(cfg.AllowedEmailDomain)
	if err != nil {
		return fmt.Errorf("validation engine initialization failed: %w", err)
	}

	// Backend API client
	client, err := api.NewClient(api.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("api client initialization failed: %w", err)
	}
	logger.Info("Backend API configured", "base_url", cfg.APIBaseURL)

	// Initialize template renderer. Development reads templates from disk
	// and re-parses them on every render.
	var templates fs.FS = web.Templates()
	if cfg.IsDevelopment() {
		templates = os.DirFS("web/templates")
	}
	renderer, err := handler.NewRenderer(handler.RendererConfig{
		FS:     templates,
		Logger: logger,
		IsDev:  cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("Templates loaded", "count", len(renderer.ListTemplates()))

	// Sessions and rate limits, pruned in the background
	store := session.NewStore(session.StoreConfig{
		IdleTimeout: cfg.SessionIdleTimeout,
		Secure:      isSecure,
		Sessions:    metrics.ActiveSessions,
		InFlight:    metrics.SubmitsInFlight,
		Logger:      logger,
	})
	limiter := middleware.NewAuthRateLimiter(middleware.AuthRateLimits{
		Login:       cfg.LoginRateLimit,
		LoginWindow: cfg.LoginRateWindow,
		Register:    cfg.RegisterRateLimit,
	}, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		store.Run(ctx, cfg.SessionSweepEvery)
	}()
	go func() {
		defer wg.Done()
		limiter.Run(ctx)
	}()

	// Initialize handlers
	pages, err := handler.NewPageHandler(handler.PageHandlerConfig{
		Renderer:      renderer,
		Auth:          client,
		Users:         client,
		Validator:     engine,
		AllowedDomain: cfg.AllowedEmailDomain,
		Logger:        logger,
		Sessions:      store,
		IsSecure:      isSecure,
	})
	if err != nil {
		return fmt.Errorf("handler initialization failed: %w", err)
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.Health)

	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	if !metricsAuth.Enabled() {
		logger.Warn("Metrics endpoint is unprotected; set METRICS_USERNAME and METRICS_PASSWORD")
	}
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	sessionMw := middleware.NewSessionMiddleware(store, logger)
	pages.RegisterRoutes(mux, handler.RouteWrappers{
		Login:    limiter.LimitLogin,
		Register: limiter.LimitRegister,
		Admin:    sessionMw.RequireUser,
	})

	stack := middleware.Stack(
		middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		metrics.Middleware,
		sessionMw.WithSession,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           stack(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		wg.Wait()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	wg.Wait()

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
