package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "rmp-assistant"
	tracerName  = "github.com/rmpassist/rmp-assistant"
)

// Trace exporters accepted in OTEL_TRACES_EXPORTER.
const (
	TracesExporterOTLP   = "otlp"
	TracesExporterStdout = "stdout"
)

// Standard OTEL sampling env vars (read directly, not through config).
const (
	envTracesSampler    = "OTEL_TRACES_SAMPLER"
	envTracesSamplerArg = "OTEL_TRACES_SAMPLER_ARG"
)

// defaultTraceIDRatio is used when a ratio sampler is selected without a valid argument.
const defaultTraceIDRatio = 1.0

// newResource builds a single resource rather than merging with resource.Default(), whose schema
// URL may differ from the semconv package in use.
func newResource() *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)
}

// NewTracerProvider creates a TracerProvider for the given exporter ("otlp" or "stdout").
// An empty or unknown exporter disables tracing and returns (nil, nil).
// The OTLP exporter reads OTEL_EXPORTER_OTLP_ENDPOINT (and scheme/insecure) from the environment.
func NewTracerProvider(ctx context.Context, exporter string) (*sdktrace.TracerProvider, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)

	switch exporter {
	case TracesExporterOTLP:
		exp, err = otlptracehttp.New(ctx)
	case TracesExporterStdout:
		exp, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		//nolint:nilnil // tracing disabled, caller checks for nil
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", exporter, err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(newResource()),
		sdktrace.WithSampler(newSampler(os.Getenv(envTracesSampler), os.Getenv(envTracesSamplerArg))),
		sdktrace.WithBatcher(exp),
	), nil
}

// ShutdownTracerProvider flushes and shuts down the TracerProvider. Safe to call with nil.
func ShutdownTracerProvider(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer provider shutdown: %w", err)
	}

	return nil
}

// newSampler maps OTEL_TRACES_SAMPLER values to a Sampler. Empty or unknown => parentbased_always_on.
func newSampler(name, arg string) sdktrace.Sampler {
	switch name {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(parseTraceIDRatio(arg))
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(parseTraceIDRatio(arg)))
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

func parseTraceIDRatio(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return defaultTraceIDRatio
	}

	return f
}

// StartSpan starts a span on the assistant tracer. With no tracer provider installed it is a no-op span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	//nolint:spancheck // callers end the span
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}
