package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/readoai/readoai-go/internal/metrics"
	"github.com/readoai/readoai-go/internal/middleware"
	"github.com/readoai/readoai-go/internal/service"
)

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Auth    *service.AuthService
	Metrics *metrics.Metrics
	// RateLimitRPS and RateLimitBurst bound register and login per client IP.
	// A zero RateLimitRPS disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter builds the API routes. ctx bounds background work started by
// middleware.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Auth, cfg.Metrics)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	if cfg.Metrics != nil {
		r.Use(middleware.Instrument(cfg.Metrics))
	}
	r.Use(middleware.CORS)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("API is running..."))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.RateLimitRPS > 0 {
				r.Use(middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst))
			}
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(cfg.Auth))
			r.Get("/me", authHandler.HandleMe)
		})
	})

	return r
}
