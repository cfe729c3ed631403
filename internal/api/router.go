package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter wires the query API routes.
func NewRouter(h *Handler, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Get("/status", h.Status)
	r.Get("/devices", h.ListDevices)

	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.ListActiveAlerts)
		r.Get("/all", h.ListAllAlerts)
		r.Post("/{id}/resolve", h.ResolveAlert)
	})

	r.Put("/evaluation/enable", h.EnableEvaluation)
	r.Put("/evaluation/disable", h.DisableEvaluation)

	r.Get("/stats/zones", h.ZoneStats)
	r.Get("/stats/events", h.EventStats)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestLogger logs one line per request through zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
