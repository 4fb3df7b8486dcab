// internal/common/observability/metrics.go
package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records relay delivery metrics through the OpenTelemetry
// meter, exported on the process prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	relayCounter  otelmetric.Int64Counter
	relayDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	relayCounter, _ := meter.Int64Counter(
		"relay.attempts",
		otelmetric.WithDescription("Number of webhook relay attempts"),
	)

	relayDuration, _ := meter.Float64Histogram(
		"relay.duration",
		otelmetric.WithDescription("Webhook relay attempt duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		relayCounter:  relayCounter,
		relayDuration: relayDuration,
	}
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordRelayAttempt(ctx context.Context, outcome string, statusCode int) {
	if o == nil || o.relayCounter == nil {
		return
	}
	o.relayCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("status_code", statusCode),
	))
}

func (o *Observability) RecordRelayDuration(ctx context.Context, duration time.Duration, outcome string) {
	if o == nil || o.relayDuration == nil {
		return
	}
	o.relayDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.meterProvider.Shutdown(ctx); err != nil {
		log.Printf("Failed to shut down meter provider: %v", err)
	}
}
