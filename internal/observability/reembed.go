package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReembedMetrics records re-embedding job metrics (enqueue command, worker).
type ReembedMetrics interface {
	RecordJobsEnqueued(ctx context.Context, count int64)
	RecordOutcome(ctx context.Context, status string, duration time.Duration)
	RecordEnqueueRetry(ctx context.Context)
}

type reembedMetrics struct {
	jobsEnqueued   metric.Int64Counter
	enqueueRetries metric.Int64Counter
	outcomes       metric.Int64Counter
	duration       metric.Float64Histogram
}

// NewReembedMetrics creates ReembedMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewReembedMetrics(meter metric.Meter) (ReembedMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNameReembedJobsEnqueued,
		metric.WithDescription("Total re-embedding jobs enqueued"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reembed jobs enqueued counter: %w", err)
	}

	enqueueRetries, err := meter.Int64Counter(
		MetricNameReembedEnqueueRetries,
		metric.WithDescription("Total retries of failed re-embedding job inserts"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reembed enqueue retries counter: %w", err)
	}

	outcomes, err := meter.Int64Counter(
		MetricNameReembedOutcomes,
		metric.WithDescription("Total re-embedding job outcomes by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reembed outcomes counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameReembedDuration,
		metric.WithDescription("Re-embedding job duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reembed duration histogram: %w", err)
	}

	return &reembedMetrics{
		jobsEnqueued:   jobsEnqueued,
		enqueueRetries: enqueueRetries,
		outcomes:       outcomes,
		duration:       duration,
	}, nil
}

func (r *reembedMetrics) RecordJobsEnqueued(ctx context.Context, count int64) {
	r.jobsEnqueued.Add(ctx, count)
}

func (r *reembedMetrics) RecordOutcome(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrStatus, Normalize(status, AllowedReembedStatuses)))
	r.outcomes.Add(ctx, 1, attrs)
	r.duration.Record(ctx, duration.Seconds(), attrs)
}

func (r *reembedMetrics) RecordEnqueueRetry(ctx context.Context) {
	r.enqueueRetries.Add(ctx, 1)
}
