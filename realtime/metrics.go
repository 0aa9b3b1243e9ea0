package realtime

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	connectAttempts metric.Int64Counter
	reconnects      metric.Int64Counter
	submissions     metric.Int64Counter
	events          metric.Int64Counter
	topics          metric.Int64ObservableGauge

	closeOnce    sync.Once
	registration metric.Registration
}

// newMetrics creates the engine's instruments. topicCount is sampled on
// every collection.
func newMetrics(meter metric.Meter, topicCount func() int) (*metrics, error) {
	m := &metrics{}
	var err error

	if m.connectAttempts, err = meter.Int64Counter("pb.realtime.connect.attempts",
		metric.WithDescription("Physical event-stream connection attempts")); err != nil {
		return nil, err
	}
	if m.reconnects, err = meter.Int64Counter("pb.realtime.reconnects",
		metric.WithDescription("Background reconnects scheduled after transport errors")); err != nil {
		return nil, err
	}
	if m.submissions, err = meter.Int64Counter("pb.realtime.submissions",
		metric.WithDescription("Subscription submissions by outcome")); err != nil {
		return nil, err
	}
	if m.events, err = meter.Int64Counter("pb.realtime.events",
		metric.WithDescription("Events delivered to listeners by action")); err != nil {
		return nil, err
	}
	if m.topics, err = meter.Int64ObservableGauge("pb.realtime.topics",
		metric.WithDescription("Topics currently subscribed")); err != nil {
		return nil, err
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.topics, int64(topicCount()))
		return nil
	}, m.topics)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// close unregisters the topic gauge callback. Safe to call more than once.
func (m *metrics) close() error {
	var err error
	m.closeOnce.Do(func() { err = m.registration.Unregister() })
	return err
}

func (m *metrics) connectAttempt() {
	m.connectAttempts.Add(context.Background(), 1)
}

func (m *metrics) reconnect() {
	m.reconnects.Add(context.Background(), 1)
}

func (m *metrics) submission(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *metrics) event(action Action) {
	m.events.Add(context.Background(), 1, metric.WithAttributes(attribute.String("action", string(action))))
}
