// Package observability provides OpenTelemetry metrics and tracing for the assistant API.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameRequests              = "rmp_http_requests_total"
	MetricNameRequestDuration       = "rmp_http_request_duration_seconds"
	MetricNameRequestBodyTooLarge   = "rmp_http_request_body_too_large_total"
	MetricNameIngestions            = "rmp_ingestions_total"
	MetricNameStageDuration         = "rmp_pipeline_stage_duration_seconds"
	MetricNameChatFragments         = "rmp_chat_fragments_total"
	MetricNameReembedJobsEnqueued   = "rmp_reembed_jobs_enqueued_total"
	MetricNameReembedOutcomes       = "rmp_reembed_outcomes_total"
	MetricNameReembedEnqueueRetries = "rmp_reembed_enqueue_retries_total"
	MetricNameReembedDuration       = "rmp_reembed_duration_seconds"
)

// Attribute keys.
const (
	AttrMethod      = "method"
	AttrRoute       = "route"
	AttrStatusClass = "status_class"
	AttrPipeline    = "pipeline"
	AttrStage       = "stage"
	AttrOutcome     = "outcome"
	AttrStatus      = "status"
)

// Pipelines.
const (
	PipelineChat   = "chat"
	PipelineIngest = "ingest"
)

// Ingestion outcomes for rmp_ingestions_total.
const (
	OutcomeSuccess          = "success"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeExtractionFailed = "extraction_failed"
	OutcomeUpstreamError    = "upstream_error"
	OutcomeError            = "error"
)

// AllowedIngestionOutcomes for rmp_ingestions_total.
var AllowedIngestionOutcomes = map[string]bool{
	OutcomeSuccess:          true,
	OutcomeInvalidInput:     true,
	OutcomeExtractionFailed: true,
	OutcomeUpstreamError:    true,
}

// AllowedPipelines for rmp_pipeline_stage_duration_seconds.
var AllowedPipelines = map[string]bool{
	PipelineChat:   true,
	PipelineIngest: true,
}

// AllowedStages for rmp_pipeline_stage_duration_seconds.
var AllowedStages = map[string]bool{
	"scrape":   true,
	"embed":    true,
	"query":    true,
	"upsert":   true,
	"generate": true,
}

// AllowedStageOutcomes for rmp_pipeline_stage_duration_seconds.
var AllowedStageOutcomes = map[string]bool{
	OutcomeSuccess: true,
	OutcomeError:   true,
}

// AllowedReembedStatuses for rmp_reembed_outcomes_total and rmp_reembed_duration_seconds.
var AllowedReembedStatuses = map[string]bool{
	"success":      true,
	"retry":        true,
	"failed_final": true,
	"not_found":    true,
}

// Normalize returns value if in allowed, otherwise "other".
func Normalize(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "other"
}
