package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/workqueue/internal/api/shared"
	"github.com/phrazzld/workqueue/internal/platform/logger"
)

// NewTraceMiddleware adds a trace ID to the request context together with
// a logger carrying it. Apply it early so every later handler logs with
// the same trace ID.
func NewTraceMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			reqLog := log.With(slog.String("trace_id", shared.GetTraceID(ctx)))

			reqLog.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx, reqLog)))
		})
	}
}
