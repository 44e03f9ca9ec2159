package auth

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const metricActivityEvents = "auth.activity.events"

type metricsSink struct {
	events metric.Int64Counter
}

// NewMetricsSink returns an ActivitySink that counts events by type
func NewMetricsSink(meter metric.Meter) (ActivitySink, error) {
	counter, err := meter.Int64Counter(
		metricActivityEvents,
		metric.WithDescription("Authentication activity events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &metricsSink{events: counter}, nil
}

func (m *metricsSink) Record(ctx context.Context, event ActivityEvent) error {
	m.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", string(event.EventType)),
	))
	return nil
}

// MultiActivitySink fans an event out to every sink. The first error is
// returned after all sinks ran.
func MultiActivitySink(sinks ...ActivitySink) ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		var first error
		for _, sink := range sinks {
			if sink == nil {
				continue
			}
			if err := sink.Record(ctx, event); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
