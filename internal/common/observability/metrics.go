package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records per-utterance OpenTelemetry instruments, exported
// through the Prometheus registry alongside the promauto collectors.
type Observability struct {
	meterProvider     *metric.MeterProvider
	utteranceCounter  otelmetric.Int64Counter
	utteranceDuration otelmetric.Float64Histogram
}

func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	counter, err := meter.Int64Counter(
		"assistant.utterances",
		otelmetric.WithDescription("Number of utterances handled"),
	)
	if err != nil {
		return &Observability{meterProvider: provider}, err
	}

	duration, err := meter.Float64Histogram(
		"assistant.utterance.duration",
		otelmetric.WithDescription("Utterance handling duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return &Observability{meterProvider: provider, utteranceCounter: counter}, err
	}

	return &Observability{
		meterProvider:     provider,
		utteranceCounter:  counter,
		utteranceDuration: duration,
	}, nil
}

// RecordUtterance counts one handled utterance and its duration. Safe on a
// zero-value Observability.
func (o *Observability) RecordUtterance(ctx context.Context, tier, status string, d time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("status", status),
	)
	if o.utteranceCounter != nil {
		o.utteranceCounter.Add(ctx, 1, attrs)
	}
	if o.utteranceDuration != nil {
		o.utteranceDuration.Record(ctx, float64(d.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
