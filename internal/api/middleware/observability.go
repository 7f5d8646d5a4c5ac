package middleware

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/inthetow/backend/internal/infrastructure/observability"
)

// staticSegments are path segments kept verbatim in route labels
var staticSegments = map[string]bool{
	"search": true, "active": true, "score": true, "reviews": true, "questions": true,
	"answer": true, "mine": true, "me": true, "signup": true, "login": true,
}

// ObservabilityMiddleware opens a span per request and records the request
// counter and latency histogram. metrics may be nil.
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeLabel(r.URL.Path)
			ctx, span := observability.StartSpan(r.Context(), r.Method+" "+route)
			defer span.End()

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			status := sw.Status()
			observability.RecordRequestMetric(ctx, metrics, r.Method, route, status, time.Since(start))
			observability.SetSpanAttributes(span,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
				attribute.Int("http.response_size", sw.written),
			)
		})
	}
}

// routeLabel replaces id segments with {id}. It runs before the mux matches,
// so the pattern is rebuilt from the path.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 2; i < len(parts); i++ {
		if !staticSegments[parts[i]] {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}
