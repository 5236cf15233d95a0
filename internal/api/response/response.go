// Package response writes JSON bodies for the HTTP API.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

// Error messages returned to clients. Internal error text never reaches the response body.
const (
	MsgInvalidRequestBody = "Invalid request body"
	MsgInvalidURL         = "Invalid URL"
	MsgScrapeFailed       = "Failed to scrape data"
	MsgFetchFailed        = "Failed to fetch page"
	MsgStoreFailed        = "Failed to store professor"
	MsgUpstreamFailed     = "Failed to generate response"
	MsgBodyTooLarge       = "Request body too large"
	MsgInternal           = "Internal server error"
)

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// RespondError writes {"error": message} with the given status code.
func RespondError(w http.ResponseWriter, statusCode int, message string) {
	RespondJSON(w, statusCode, models.ErrorResponse{Error: message})
}

// RespondBadRequest writes a 400 error response.
func RespondBadRequest(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusBadRequest, message)
}

// RespondBadGateway writes a 502 error response for upstream failures.
func RespondBadGateway(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusBadGateway, message)
}

// RespondInternalServerError writes a 500 error response.
func RespondInternalServerError(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusInternalServerError, message)
}

// RespondRequestEntityTooLarge writes a 413 error response.
func RespondRequestEntityTooLarge(w http.ResponseWriter) {
	RespondError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
}
