package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamError_Is(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("submit url: %w", NewUpstreamError(StageFetch, cause))

	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, &UpstreamError{Stage: StageEmbed})
	assert.NotErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, StageFetch, StageOf(err))
}

func TestUpstreamError_Error(t *testing.T) {
	err := NewUpstreamError(StageEmbed, errors.New("401 unauthorized"))
	assert.Equal(t, "embed failed: 401 unauthorized", err.Error())
	assert.Equal(t, "upstream error", (&UpstreamError{}).Error())
}

func TestStageOf_NotUpstream(t *testing.T) {
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
	assert.Equal(t, Stage(""), StageOf(nil))
}

func TestInvalidInputAndExtraction(t *testing.T) {
	invalid := fmt.Errorf("wrap: %w", NewInvalidInputError("url", "Invalid URL"))
	assert.ErrorIs(t, invalid, ErrInvalidInput)
	assert.NotErrorIs(t, invalid, ErrExtraction)
	assert.Equal(t, "wrap: Invalid URL", invalid.Error())

	extraction := NewExtractionError("https://example.com", "")
	assert.ErrorIs(t, extraction, ErrExtraction)
	assert.Equal(t, "expected fields not found on page", extraction.Error())
	assert.Equal(t, "invalid input for field: messages", NewInvalidInputError("messages", "").Error())
}
