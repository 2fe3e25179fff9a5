package handlers

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-video-pipeline/internal/logging"
)

// NewRouter wires the worker HTTP surface
func NewRouter(h *EventHandler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.Timeout(15*time.Minute)).Post("/events", h.HandleEvent)
		r.Get("/runs/{runID}", h.HandleStatus)
	})

	return r
}
