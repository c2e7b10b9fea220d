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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/welldanyogia/mailclean/internal/api"
	"github.com/welldanyogia/mailclean/internal/config"
	"github.com/welldanyogia/mailclean/internal/health"
	"github.com/welldanyogia/mailclean/internal/logger"
	"github.com/welldanyogia/mailclean/internal/metrics"
	appmw "github.com/welldanyogia/mailclean/internal/middleware"
	"github.com/welldanyogia/mailclean/internal/preview"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	// Initialize services
	previewService := preview.NewService(preview.Config{Placeholder: cfg.Preview.Placeholder}, nil, log)

	healthHandler := health.NewHandler(health.Config{
		Checks:  map[string]health.CheckFunc{"engine": previewService.Check},
		Version: version,
		Timeout: 5 * time.Second,
	})

	limiter := appmw.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Close()

	r := newRouter(cfg, log, previewService, healthHandler, limiter)

	// Create server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting server", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	healthHandler.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}

// newRouter wires middleware, health, metrics and the API routes.
func newRouter(cfg *config.Config, log *slog.Logger, svc *preview.Service, healthHandler *health.Handler, limiter *appmw.RateLimiter) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmw.StructuredLogger(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", appmw.CorrelationIDHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{appmw.CorrelationIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health and metrics endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Handle("/metrics", metrics.Handler())

	// API v1 routes
	apiHandler := api.NewHandler(svc, cfg.Preview.MaxBodyBytes, log)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limiter.PerIP)
		api.RegisterRoutes(r, apiHandler)
	})

	return r
}
