package controller

import (
	"github.com/cassiomorais/pixgateway/internal/infrastructure/config"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/pixgateway/internal/middleware"
	"github.com/cassiomorais/pixgateway/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	PixService  *service.PixService
	Metrics     *observability.Metrics
	Logger      zerolog.Logger
	CORSConfig  config.CORSConfig
	// RateLimit is requests per minute per client IP on /api/pix; 0 disables it.
	RateLimit     int
	ExposeMetrics bool
}

// NewRouter wires the HTTP surface. There is no request timeout middleware:
// provider calls are allowed to run to completion.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	pixH := NewPixController(deps.PixService)
	webhookH := NewWebhookController(deps.PixService)

	r.Get("/", healthH.Root)
	r.Get("/api", healthH.API)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	if deps.ExposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/pix", func(r chi.Router) {
		if deps.RateLimit > 0 {
			r.Use(customMW.RateLimit(deps.RateLimit))
		}
		r.Post("/create", pixH.Create)
		r.Get("/status/{id}", pixH.Status)
	})

	r.Post("/api/webhook/pix", webhookH.Receive)

	return r
}
