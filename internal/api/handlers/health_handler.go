package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency (database, vector store) is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler handles health check requests.
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates a new health handler. With no checks, /health always reports OK.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Check handles GET /health: 200 "OK", or 503 naming the first failing dependency.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			slog.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			http.Error(w, name+" unavailable", http.StatusServiceUnavailable)

			return
		}
	}

	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health check response", "error", err)
	}
}
