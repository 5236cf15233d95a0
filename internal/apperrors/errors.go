// Package apperrors provides sentinel and custom error types for the assistant pipelines.
package apperrors

import "errors"

// ErrInvalidInput represents a rejected request (malformed conversation, unsupported URL).
var ErrInvalidInput = &InvalidInputError{}

// InvalidInputError is a sentinel error for client input that cannot be processed.
type InvalidInputError struct {
	Field   string
	Message string
}

// NewInvalidInputError creates a new InvalidInputError with a custom message.
func NewInvalidInputError(field, message string) *InvalidInputError {
	return &InvalidInputError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "invalid input for field: " + e.Field
	}

	return "invalid input"
}

// Is implements the error interface for error comparison.
func (e *InvalidInputError) Is(target error) bool {
	_, ok := target.(*InvalidInputError)

	return ok
}

// ErrExtraction represents a page that was fetched but did not contain the expected fields.
var ErrExtraction = &ExtractionError{}

// ExtractionError is a sentinel error for scrape results missing required fields.
type ExtractionError struct {
	URL     string
	Message string
}

// NewExtractionError creates a new ExtractionError for the given page.
func NewExtractionError(url, message string) *ExtractionError {
	return &ExtractionError{URL: url, Message: message}
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "expected fields not found on page"
}

// Is implements the error interface for error comparison.
func (e *ExtractionError) Is(target error) bool {
	_, ok := target.(*ExtractionError)

	return ok
}

// Stage names the external call that failed.
type Stage string

// Pipeline stages that talk to an external service.
const (
	StageFetch    Stage = "fetch"
	StageEmbed    Stage = "embed"
	StageQuery    Stage = "query"
	StageUpsert   Stage = "upsert"
	StageGenerate Stage = "generate"
)

// ErrUpstream matches any UpstreamError regardless of stage.
var ErrUpstream = &UpstreamError{}

// ErrFetch matches an UpstreamError raised while fetching a review page.
var ErrFetch = &UpstreamError{Stage: StageFetch}

// UpstreamError wraps a failure from an external collaborator (page fetch, embedding model,
// vector store, generative model) and records which stage failed.
type UpstreamError struct {
	Stage Stage
	Err   error
}

// NewUpstreamError wraps err as a failure of the given stage.
func NewUpstreamError(stage Stage, err error) *UpstreamError {
	return &UpstreamError{Stage: stage, Err: err}
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := "upstream error"
	if e.Stage != "" {
		msg = string(e.Stage) + " failed"
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying client error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is matches an UpstreamError target whose stage is empty or equal to e's stage.
func (e *UpstreamError) Is(target error) bool {
	t, ok := target.(*UpstreamError)
	if !ok {
		return false
	}

	return t.Stage == "" || t.Stage == e.Stage
}

// StageOf returns the failing stage of err, or "" when err is not an UpstreamError.
func StageOf(err error) Stage {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Stage
	}

	return ""
}
