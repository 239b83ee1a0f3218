package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/aiox-platform/redis-metrics/internal/middleware"
)

const readyTimeout = 2 * time.Second

// RouterConfig holds the dependencies of the operations router.
type RouterConfig struct {
	Logger *slog.Logger
	// Ready reports whether Redis answers. Nil means not configured.
	Ready func(ctx context.Context) bool
	// PollerState is reported on the readiness probe when set.
	PollerState func() string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()

	r.Use(mw.Logging(logger))
	r.Use(mw.Recovery(logger))
	r.Use(mw.Metrics)
	r.Use(mw.NoStore)

	// Liveness probe, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status": "healthy",
			"redis":  "healthy",
		}
		status := http.StatusOK

		if cfg.Ready == nil {
			health["redis"] = "not configured"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if !cfg.Ready(ctx) {
				health["redis"] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}

		if cfg.PollerState != nil {
			health["poller"] = cfg.PollerState()
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	return r
}
