package work

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader sdkmetric.Reader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestQueue_Metrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	q := newTestQueue(t, 2, WithMeterProvider(provider))
	require.NoError(t, q.Start(context.Background()))

	q.job(t, jobArgs{Name: "holder", Locks: []Lock{TypeLock("repository")}, Block: true})
	waitFor(t, func() bool { return q.jobs.hasStarted("holder") })
	q.job(t, jobArgs{Name: "waiter", Locks: []Lock{TypeLock("repository")}})
	q.job(t, jobArgs{Name: "broken", Fail: true})

	waitFor(t, func() bool { return q.jobs.hasStarted("broken") && q.Size() == 2 })

	metrics := collect(t, reader)
	size, ok := metrics[MetricQueueSize].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, size.DataPoints, 1)
	assert.Equal(t, int64(2), size.DataPoints[0].Value)

	q.jobs.release("holder")
	waitFor(t, func() bool { return q.Size() == 0 })

	metrics = collect(t, reader)

	completed, ok := metrics[MetricCompleted].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var done, failed int64
	for _, dp := range completed.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		switch outcome.AsString() {
		case string(StateDone):
			done += dp.Value
		case string(StateFailed):
			failed += dp.Value
		}
	}
	assert.Equal(t, int64(2), done)
	assert.Equal(t, int64(1), failed)

	wait, ok := metrics[MetricWaitDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var blocked, unblocked uint64
	for _, dp := range wait.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("blocked"))
		if v.AsBool() {
			blocked += dp.Count
		} else {
			unblocked += dp.Count
		}
	}
	assert.Equal(t, uint64(1), blocked, "only the waiter was blocked")
	assert.Equal(t, uint64(2), unblocked)

	execution, ok := metrics[MetricExecutionDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var runs uint64
	for _, dp := range execution.DataPoints {
		runs += dp.Count
	}
	assert.Equal(t, uint64(3), runs)
}
