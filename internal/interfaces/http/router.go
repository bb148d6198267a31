// Package http serves the operational HTTP surface of a cache node:
// probes, metrics and the scene control endpoints.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscene/internal/interfaces/http/handlers"
	"github.com/turtacn/molscene/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil members are skipped.
type RouterConfig struct {
	SceneHandler  *handlers.SceneHandler
	HealthHandler *handlers.HealthHandler

	Logger           logging.Logger
	LoggingConfig    middleware.LoggingConfig
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter constructs the route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.LoggingConfig))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	if cfg.SceneHandler != nil {
		r.Route("/api/v1", func(api chi.Router) {
			registerSceneRoutes(api, cfg.SceneHandler)
		})
	}

	return r
}

// registerSceneRoutes mounts the scene endpoints under /scene.
func registerSceneRoutes(r chi.Router, h *handlers.SceneHandler) {
	r.Route("/scene", func(sr chi.Router) {
		sr.Get("/ribbon", h.GetRibbon)
		sr.Put("/ribbon", h.SetRibbon)
		sr.Post("/invalidations", h.Invalidate)
	})
}
