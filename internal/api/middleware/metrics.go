package middleware

import (
	"net/http"
	"time"

	"github.com/rmpassist/rmp-assistant/internal/observability"
)

// knownRoutes bounds the route attribute; any other path is recorded as "other".
var knownRoutes = map[string]struct{}{
	"/api/chat":       {},
	"/api/submit-url": {},
	"/health":         {},
	"/metrics":        {},
}

// Metrics returns middleware that records HTTP request count and duration.
// When metrics is nil, recording is skipped.
func Metrics(metrics observability.AssistantMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			defer func() {
				metrics.RecordRequest(r.Context(), r.Method, normalizeRoute(r.URL.Path),
					statusToClass(rw.statusCode), time.Since(start))
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

func normalizeRoute(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}

	return "other"
}

// statusToClass maps an HTTP status code to 1xx..5xx.
func statusToClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status >= 100:
		return "1xx"
	default:
		return "unknown"
	}
}
