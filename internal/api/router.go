package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/datasen-project/datasen/internal/database"
	mw "github.com/datasen-project/datasen/internal/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AskRateLimiter     func(http.Handler) http.Handler
}

// NewRouter assembles the HTTP surface. pool and redisClient are optional;
// when present they feed the readiness probe.
func NewRouter(pool *pgxpool.Pool, redisClient *redis.Client, cfg RouterConfig, h *SessionHandler) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe checks the optional stores
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
		}

		status := http.StatusOK

		if pool != nil {
			if err := database.HealthCheck(r.Context(), pool); err != nil {
				health["database"] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		} else {
			health["database"] = "not configured"
		}

		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				health["redis"] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		} else {
			health["redis"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.Create)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.Get)
				r.Delete("/", h.Delete)
				r.Get("/summary", h.Summary)
				r.Get("/history", h.History)

				r.Group(func(r chi.Router) {
					if cfg.AskRateLimiter != nil {
						r.Use(cfg.AskRateLimiter)
					}
					r.Post("/ask", h.Ask)
				})
			})
		})
	})

	return r
}
