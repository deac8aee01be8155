package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Webhook is the inbound notification endpoint mounted beside the API.
type Webhook interface {
	http.Handler
	Mount(r chi.Router, path string)
}

// RouterOptions configures SetupRoutes.
type RouterOptions struct {
	WebhookPath    string
	AllowedOrigins []string
}

// SetupRoutes configures the webhook, health, and query API routes.
// webhook may be nil.
func SetupRoutes(h *Handlers, hc *HealthChecker, webhook Webhook, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)

	if webhook != nil && opts.WebhookPath != "" {
		webhook.Mount(r, opts.WebhookPath)
	}

	r.Route("/api", func(r chi.Router) {
		if len(opts.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: opts.AllowedOrigins,
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Content-Type"},
				MaxAge:         300,
			}))
		}

		r.Get("/events", h.ListEvents)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/", h.ListStats)
			r.Get("/summary", h.StatsSummary)
			r.Get("/date_range", h.StatsDateRange)
			r.Get("/aggregate", h.StatsAggregate)
			r.Get("/latest", h.LatestStats)
			r.Get("/bounce-rate", h.BounceRate)
		})
	})

	return r
}
