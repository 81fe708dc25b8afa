package work

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names
const (
	MetricWaitDuration      = "cwq.task.wait.duration"
	MetricExecutionDuration = "cwq.task.execution.duration"
	MetricCompleted         = "cwq.task.completed"
	MetricQueueSize         = "cwq.queue.size"
)

const meterName = "github.com/phrazzld/workqueue/internal/work"

type queueMetrics struct {
	wait      metric.Float64Histogram
	execution metric.Float64Histogram
	completed metric.Int64Counter
}

func newQueueMetrics(provider metric.MeterProvider, size func() int64) (*queueMetrics, error) {
	meter := provider.Meter(meterName)

	wait, err := meter.Float64Histogram(MetricWaitDuration,
		metric.WithDescription("Time between submission and start of execution"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", MetricWaitDuration, err)
	}

	execution, err := meter.Float64Histogram(MetricExecutionDuration,
		metric.WithDescription("Task execution time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", MetricExecutionDuration, err)
	}

	completed, err := meter.Int64Counter(MetricCompleted,
		metric.WithDescription("Tasks that reached a terminal state"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricCompleted, err)
	}

	_, err = meter.Int64ObservableGauge(MetricQueueSize,
		metric.WithDescription("Pending and running tasks"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(size())
			return nil
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s gauge: %w", MetricQueueSize, err)
	}

	return &queueMetrics{wait: wait, execution: execution, completed: completed}, nil
}

func (m *queueMetrics) recordWait(env *Envelope) {
	m.wait.Record(context.Background(), env.waitDuration().Seconds(),
		metric.WithAttributes(
			attribute.String("task_type", env.payload.Type),
			attribute.Bool("blocked", env.Blocked()),
		))
}

func (m *queueMetrics) recordExecution(env *Envelope, elapsed time.Duration, err error) {
	outcome := string(StateDone)
	if err != nil {
		outcome = string(StateFailed)
	}
	attrs := metric.WithAttributes(
		attribute.String("task_type", env.payload.Type),
		attribute.String("outcome", outcome),
	)
	m.execution.Record(context.Background(), elapsed.Seconds(), attrs)
	m.completed.Add(context.Background(), 1, attrs)
}
