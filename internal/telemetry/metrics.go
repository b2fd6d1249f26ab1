package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the pipeline instruments. A nil *Metrics is valid and
// records nothing, which keeps tests free of telemetry setup.
type Metrics struct {
	UnitsPlanned     metric.Int64Counter
	UnitsSynthesized metric.Int64Counter
	UnitsSkipped     metric.Int64Counter
	SynthRetries     metric.Int64Counter
	SynthDuration    metric.Float64Histogram
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("inkvoice/pipeline")

	planned, err := meter.Int64Counter("inkvoice.units.planned",
		metric.WithDescription("Text units produced by the chunk planner"))
	if err != nil {
		return nil, err
	}
	synthesized, err := meter.Int64Counter("inkvoice.units.synthesized",
		metric.WithDescription("Text units synthesized and durably recorded"))
	if err != nil {
		return nil, err
	}
	skipped, err := meter.Int64Counter("inkvoice.units.skipped",
		metric.WithDescription("Text units skipped because a prior run completed them"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("inkvoice.synthesis.retries",
		metric.WithDescription("Synthesis attempts retried after transient backend failures"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("inkvoice.synthesis.duration",
		metric.WithDescription("Per-unit synthesis duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		UnitsPlanned:     planned,
		UnitsSynthesized: synthesized,
		UnitsSkipped:     skipped,
		SynthRetries:     retries,
		SynthDuration:    duration,
	}, nil
}
