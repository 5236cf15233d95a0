package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	meterScope       = "github.com/rmpassist/rmp-assistant/internal/observability"
	cardinalityLimit = 2000
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds). Generation stages run for
// several seconds, so the upper buckets are wider than for plain HTTP APIs.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// AssistantMetrics records HTTP and pipeline metrics.
type AssistantMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
	RecordIngestion(ctx context.Context, outcome string)
	RecordStageDuration(ctx context.Context, pipeline, stage, outcome string, duration time.Duration)
	RecordChatFragments(ctx context.Context, count int)
}

// Metrics exporters accepted by NewMeterProvider.
const (
	MetricsExporterPrometheus = "prometheus"
	MetricsExporterOTLP       = "otlp"
)

// otlpExportInterval is how often the OTLP reader pushes collected metrics.
const otlpExportInterval = 60 * time.Second

// ErrUnsupportedMetricsExporter is returned by NewMeterProvider for an exporter it does not know.
var ErrUnsupportedMetricsExporter = errors.New("unsupported metrics exporter")

// NewMeterProvider creates a MeterProvider for exporter and returns the provider, an HTTP handler
// for /metrics, and a Meter to build the metric collectors from.
// "prometheus" serves a pull endpoint; "otlp" pushes every minute to the endpoint named by
// OTEL_EXPORTER_OTLP_ENDPOINT (or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT) and returns a nil handler.
// Caller must call ShutdownMeterProvider on exit.
func NewMeterProvider(
	ctx context.Context, exporter string,
) (provider *sdkmetric.MeterProvider, metricsHandler http.Handler, meter metric.Meter, err error) {
	var reader sdkmetric.Reader

	switch exporter {
	case MetricsExporterPrometheus:
		reg := prometheus.NewRegistry()

		promExporter, err := prometheusexporter.New(
			prometheusexporter.WithRegisterer(reg),
		)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		reader = promExporter
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case MetricsExporterOTLP:
		otlpExporter, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create OTLP metric exporter: %w", err)
		}

		reader = sdkmetric.NewPeriodicReader(otlpExporter, sdkmetric.WithInterval(otlpExportInterval))
	default:
		return nil, nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedMetricsExporter, exporter)
	}

	histogramView := func(name string) sdkmetric.View {
		return sdkmetric.NewView(
			sdkmetric.Instrument{Name: name},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
		)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(newResource()),
		sdkmetric.WithReader(reader),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			histogramView(MetricNameRequestDuration),
			histogramView(MetricNameStageDuration),
			histogramView(MetricNameReembedDuration),
		),
	)

	return mp, metricsHandler, mp.Meter(meterScope), nil
}

// NewAssistantMetrics creates AssistantMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewAssistantMetrics(meter metric.Meter) (AssistantMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requestCount, err := meter.Int64Counter(
		MetricNameRequests,
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameRequests, err)
	}

	requestDuration, err := meter.Float64Histogram(
		MetricNameRequestDuration,
		metric.WithDescription("HTTP request duration in seconds (streamed responses include generation time)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameRequestDuration, err)
	}

	ingestions, err := meter.Int64Counter(
		MetricNameIngestions,
		metric.WithDescription("Submitted review pages by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameIngestions, err)
	}

	stageDuration, err := meter.Float64Histogram(
		MetricNameStageDuration,
		metric.WithDescription("Duration of each pipeline stage (scrape, embed, query, upsert, generate) in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameStageDuration, err)
	}

	fragments, err := meter.Int64Counter(
		MetricNameChatFragments,
		metric.WithDescription("Generated text fragments streamed to chat clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameChatFragments, err)
	}

	return &assistantMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		ingestions:      ingestions,
		stageDuration:   stageDuration,
		fragments:       fragments,
	}, nil
}

type assistantMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	ingestions      metric.Int64Counter
	stageDuration   metric.Float64Histogram
	fragments       metric.Int64Counter
}

func (m *assistantMetrics) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
		attribute.String(AttrStatusClass, statusClass),
	)
	m.requestCount.Add(ctx, 1, metric.WithAttributeSet(attrs))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(attrs))
}

func (m *assistantMetrics) RecordIngestion(ctx context.Context, outcome string) {
	m.ingestions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOutcome, Normalize(outcome, AllowedIngestionOutcomes)),
	))
}

func (m *assistantMetrics) RecordStageDuration(ctx context.Context, pipeline, stage, outcome string, duration time.Duration) {
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrPipeline, Normalize(pipeline, AllowedPipelines)),
		attribute.String(AttrStage, Normalize(stage, AllowedStages)),
		attribute.String(AttrOutcome, Normalize(outcome, AllowedStageOutcomes)),
	))
}

func (m *assistantMetrics) RecordChatFragments(ctx context.Context, count int) {
	if count <= 0 {
		return
	}

	m.fragments.Add(ctx, int64(count))
}

// ShutdownMeterProvider flushes and stops the meter provider. Safe to call with nil.
func ShutdownMeterProvider(ctx context.Context, provider *sdkmetric.MeterProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}

	return nil
}
