package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aiox-platform/redis-metrics/internal/logging"
)

// RequestIDHeader is read from incoming requests and echoed on responses.
const RequestIDHeader = "X-Request-ID"

// Logging attaches a request id to the request context and writes one
// debug record per request.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := logging.WithTracing(r.Context(), logging.Tracing{RequestID: id})
			r = r.WithContext(ctx)

			ww := wrap(w)
			next.ServeHTTP(ww, r)

			logger.DebugContext(ctx, "HTTP request",
				"event", "HTTP Request",
				"data", map[string]any{
					"method":      r.Method,
					"path":        routePattern(r),
					"status":      ww.status,
					"bytes":       ww.bytes,
					"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
				},
			)
		})
	}
}

// Recovery turns a handler panic into a 500 and an error record.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.ErrorContext(r.Context(), "HTTP handler panic",
						"event", "HTTP Request",
						"error", fmt.Sprint(rec),
					)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
