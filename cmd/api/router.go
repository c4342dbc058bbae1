package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fare-offers-api/internal/handler"
	"fare-offers-api/internal/middleware"
)

type routerOptions struct {
	limiter        *middleware.RateLimiter // nil disables rate limiting
	tracing        bool
	allowedOrigins string
	metrics        http.Handler
}

func newRouter(h *handler.Handler, opts routerOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if opts.tracing {
		r.Use(middleware.TracingMiddleware())
	}
	if opts.limiter != nil {
		r.Use(middleware.RateLimitMiddleware(opts.limiter))
	}

	origins := splitOrigins(opts.allowedOrigins)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: !(len(origins) == 1 && origins[0] == "*"),
		MaxAge:           300,
	}))

	// Routes
	r.Post("/search", h.Search)
	r.Get("/payment-options", h.PaymentOptions)

	r.Route("/offers", func(r chi.Router) {
		r.Post("/", h.CreateOffer)
		r.Post("/import", h.ImportOffers)
	})

	r.Get("/health", h.Health)
	if opts.metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.metrics)
	}

	return r
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
