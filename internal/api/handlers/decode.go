package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rmpassist/rmp-assistant/internal/api/response"
)

// decodeJSON decodes the request body into dst. On failure it writes 413 when the body
// exceeded the MaxBody limit and 400 otherwise, and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondRequestEntityTooLarge(w)

			return false
		}

		response.RespondBadRequest(w, response.MsgInvalidRequestBody)

		return false
	}

	return true
}
