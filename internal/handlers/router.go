package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the HTTP API. The stream route is kept outside the
// timeout group.
func NewRouter(delta *DeltaHandler, price *PriceHistoryHandler, timeout time.Duration, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware)

	r.Get("/", RootHandler(logger))
	r.Get("/health", HealthCheckHandler(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/delta/stream", delta.Stream)

		r.Group(func(r chi.Router) {
			r.Use(TimeoutMiddleware(timeout, logger))
			r.Get("/delta/latest", delta.Latest)
			r.Get("/delta/history", delta.History)
			r.Get("/price/history", price.ServeHTTP)
		})
	})

	return r
}
