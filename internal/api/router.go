// Package api serves the HTTP surface of a running Thing: health, status,
// remote record inspection, attribute updates, topic events and Prometheus
// metrics.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the router. A nil gatherer omits /metrics.
func NewRouter(s *Server, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.Health)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/status", s.Status)
	r.Get("/subscriptions", s.Subscriptions)
	r.Put("/attrs/{name}", s.SetAttr)
	r.Post("/topics/{name}/events", s.Notify)

	r.Route("/things/{id}", func(thing chi.Router) {
		thing.Get("/", s.GetThing)
		thing.Get("/events/{topic}", s.GetEvents)
		thing.Post("/actions/{action}", s.RequestAction)
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}
