package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler_Check(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHealthHandler(nil).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("failing dependency", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthCheck{
			"database": func(context.Context) error { return errors.New("connection refused") },
		})

		rec := httptest.NewRecorder()
		h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "database unavailable")
	})
}
