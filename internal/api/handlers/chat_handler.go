// Package handlers implements the HTTP handlers of the assistant API.
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

// ChatResponder produces a streamed answer for a conversation.
type ChatResponder interface {
	Respond(ctx context.Context, messages []models.Message) (models.FragmentStream, error)
}

// ChatHandler handles POST /api/chat.
type ChatHandler struct {
	service ChatResponder
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(service ChatResponder) *ChatHandler {
	return &ChatHandler{service: service}
}

// Chat handles POST /api/chat. The body is the full conversation, oldest first. The answer is
// streamed as plain text with one flush per fragment. Failures before the first fragment get a
// JSON error response; a failure after streaming began aborts the connection so the client sees
// a truncated body rather than a clean end.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var messages models.ChatRequest
	if !decodeJSON(w, r, &messages) {
		return
	}

	if err := validation.ValidateSlice([]models.Message(messages)); err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	ctx := r.Context()

	stream, err := h.service.Respond(ctx, messages)
	if err != nil {
		respondChatError(w, err)

		return
	}

	defer func() {
		if err := stream.Close(); err != nil {
			slog.WarnContext(ctx, "chat: close stream", "error", err)
		}
	}()

	// Peek the first fragment so upstream failures can still be reported with a status code.
	hasFirst := stream.Next()
	if !hasFirst {
		if err := stream.Err(); err != nil {
			respondChatError(w, err)

			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if !hasFirst {
		return
	}

	rc := http.NewResponseController(w)

	for ok := true; ok; ok = stream.Next() {
		if _, err := w.Write([]byte(stream.Current())); err != nil {
			slog.InfoContext(ctx, "chat: client went away", "error", err)

			return
		}

		if err := rc.Flush(); err != nil {
			slog.WarnContext(ctx, "chat: flush failed", "error", err)
		}
	}

	if err := stream.Err(); err != nil {
		slog.ErrorContext(ctx, "chat: stream failed after first fragment", "error", err)
		panic(http.ErrAbortHandler)
	}
}

func respondChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		response.RespondBadRequest(w, err.Error())
	case errors.Is(err, apperrors.ErrUpstream):
		response.RespondBadGateway(w, response.MsgUpstreamFailed)
	default:
		slog.Error("chat: unexpected error", "error", err)
		response.RespondInternalServerError(w, response.MsgInternal)
	}
}
