package observability

import (
	"context"
	"time"

	"notification-workers/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records notification-level instruments through OTel. The
// prometheus exporter registers with the default registry, so the values
// show up on the same /metrics endpoint as the promauto collectors.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	dispatched    otelmetric.Int64Counter
	recipients    otelmetric.Int64Histogram
	duration      otelmetric.Float64Histogram
}

func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		if log != nil {
			log.Warn("Failed to create Prometheus exporter, OTel metrics disabled", map[string]interface{}{
				"error": err,
			})
		}
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return newWithProvider(provider, serviceName)
}

func newWithProvider(provider *metric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	dispatched, _ := meter.Int64Counter(
		"notifications.dispatched",
		otelmetric.WithDescription("Notifications dispatched, by status"),
	)

	recipients, _ := meter.Int64Histogram(
		"notifications.recipients",
		otelmetric.WithDescription("Recipients per notification"),
	)

	duration, _ := meter.Float64Histogram(
		"notifications.duration",
		otelmetric.WithDescription("Notification dispatch duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		dispatched:    dispatched,
		recipients:    recipients,
		duration:      duration,
	}
}

// RecordDispatch records one notification. status is "complete" when every
// recipient was sent, "partial" or "failed" otherwise.
func (o *Observability) RecordDispatch(ctx context.Context, application, status string, recipients int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("application", application),
		attribute.String("status", status),
	)
	if o.dispatched != nil {
		o.dispatched.Add(ctx, 1, attrs)
	}
	if o.recipients != nil {
		o.recipients.Record(ctx, int64(recipients), attrs)
	}
	if o.duration != nil {
		o.duration.Record(ctx, float64(duration.Milliseconds()), attrs)
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
