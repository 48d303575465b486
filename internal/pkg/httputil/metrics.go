package httputil

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/storefront-auth/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MetricsMiddleware records request duration by route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method,
			routePattern(r),
			strconv.Itoa(statusOrOK(ww.Status())),
		).Observe(time.Since(start).Seconds())
	})
}

// routePattern returns the matched chi pattern, never the raw path, to keep
// label cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}

// statusOrOK treats a handler that never called WriteHeader as 200.
func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}
