package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmpassist/rmp-assistant/internal/apperrors"
	"github.com/rmpassist/rmp-assistant/internal/models"
)

func TestValidateSlice_Messages(t *testing.T) {
	tests := []struct {
		name     string
		messages []models.Message
		wantErr  string
	}{
		{
			name:     "valid conversation",
			messages: []models.Message{{Role: models.RoleSystem, Content: "x"}, {Role: models.RoleUser, Content: "Who teaches calculus?"}},
		},
		{
			name:     "empty content on earlier turn is allowed",
			messages: []models.Message{{Role: models.RoleAssistant, Content: ""}, {Role: models.RoleUser, Content: "hi"}},
		},
		{
			name:     "unknown role",
			messages: []models.Message{{Role: "bot", Content: "hi"}},
			wantErr:  "role must be one of: system user assistant",
		},
		{
			name:     "missing role",
			messages: []models.Message{{Content: "hi"}},
			wantErr:  "role is required",
		},
		{
			name:     "null byte",
			messages: []models.Message{{Role: models.RoleUser, Content: "a\x00b"}},
			wantErr:  "content must not contain NULL bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlice(tt.messages)
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateStruct(t *testing.T) {
	type request struct {
		URL string `json:"url" validate:"required,no_null_bytes"`
	}

	require.NoError(t, ValidateStruct(request{URL: "https://www.ratemyprofessors.com/professor/1"}))

	err := ValidateStruct(request{})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "url is required")
}
