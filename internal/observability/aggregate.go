package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all assistant metric collectors. When metrics are disabled, all fields are nil.
// Components that accept an interface (AssistantMetrics, APIMetrics, ReembedMetrics)
// can receive the corresponding field; they already handle nil.
type Metrics struct {
	Assistant AssistantMetrics
	API       APIMetrics
	Reembed   ReembedMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	assistant, err := NewAssistantMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("assistant metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	reembed, err := NewReembedMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("reembed metrics: %w", err)
	}

	return &Metrics{
		Assistant: assistant,
		API:       api,
		Reembed:   reembed,
	}, nil
}
