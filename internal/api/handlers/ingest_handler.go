package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rmpassist/rmp-assistant/internal/api/response"
	"github.com/rmpassist/rmp-assistant/internal/api/validation"
	"github.com/rmpassist/rmp-assistant/internal/apperrors"
	"github.com/rmpassist/rmp-assistant/internal/models"
)

// URLSubmitter ingests one professor review page.
type URLSubmitter interface {
	SubmitURL(ctx context.Context, rawURL string) (int, error)
}

// IngestHandler handles POST /api/submit-url.
type IngestHandler struct {
	service URLSubmitter
}

// NewIngestHandler creates a new ingestion handler.
func NewIngestHandler(service URLSubmitter) *IngestHandler {
	return &IngestHandler{service: service}
}

// SubmitURL handles POST /api/submit-url.
func (h *IngestHandler) SubmitURL(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitURLRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		respondIngestError(w, r, err)

		return
	}

	count, err := h.service.SubmitURL(r.Context(), req.URL)
	if err != nil {
		respondIngestError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, models.SubmitURLResponse{UpsertedCount: count})
}

func respondIngestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		response.RespondBadRequest(w, response.MsgInvalidURL)
	case errors.Is(err, apperrors.ErrExtraction):
		response.RespondInternalServerError(w, response.MsgScrapeFailed)
	case errors.Is(err, apperrors.ErrFetch):
		response.RespondBadGateway(w, response.MsgFetchFailed)
	case errors.Is(err, apperrors.ErrUpstream):
		response.RespondBadGateway(w, response.MsgStoreFailed)
	default:
		slog.ErrorContext(r.Context(), "submit-url: unexpected error", "error", err)
		response.RespondInternalServerError(w, response.MsgInternal)
	}
}
