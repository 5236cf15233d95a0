// Package middleware provides the HTTP middleware chain of the API server.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rmpassist/rmp-assistant/internal/observability"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

// RequestID runs first in the chain: every request gets an X-Request-ID in its context and
// response headers. A client-supplied ID is propagated when it is short enough; otherwise a
// UUIDv7 is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.Must(uuid.NewV7()).String()
		}

		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(observability.ContextWithRequestID(r.Context(), id)))
	})
}
