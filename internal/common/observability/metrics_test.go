package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader metric.Reader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestRecordDispatch(t *testing.T) {
	reader := metric.NewManualReader()
	o := newWithProvider(metric.NewMeterProvider(metric.WithReader(reader)), "notification-workers-test")
	defer o.Shutdown()

	ctx := context.Background()
	o.RecordDispatch(ctx, "app1", "complete", 3, 120*time.Millisecond)
	o.RecordDispatch(ctx, "app1", "complete", 2, 80*time.Millisecond)
	o.RecordDispatch(ctx, "app1", "partial", 4, 10*time.Millisecond)

	got := collect(t, reader)

	dispatched, ok := got["notifications.dispatched"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range dispatched.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		app, _ := dp.Attributes.Value(attribute.Key("application"))
		assert.Equal(t, "app1", app.AsString())
		counts[status.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"complete": 2, "partial": 1}, counts)

	recipients, ok := got["notifications.recipients"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	var total int64
	var observations uint64
	for _, dp := range recipients.DataPoints {
		total += dp.Sum
		observations += dp.Count
	}
	assert.Equal(t, int64(9), total)
	assert.Equal(t, uint64(3), observations)

	assert.Equal(t, "ms", got["notifications.duration"].Unit)
}

func TestRecordDispatch_NilSafe(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordDispatch(context.Background(), "app", "failed", 1, time.Second)
		o.Shutdown()
	})

	empty := &Observability{}
	assert.NotPanics(t, func() {
		empty.RecordDispatch(context.Background(), "app", "failed", 1, time.Second)
		empty.Shutdown()
	})
}
