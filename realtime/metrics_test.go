package realtime

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/pbkit/logger"
)

// topicGauge returns the observed topic count, or -1 when nothing was
// observed.
func topicGauge(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "pb.realtime.topics" {
				continue
			}
			if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
				return g.DataPoints[0].Value
			}
		}
	}
	return -1
}

func TestClose_UnregistersTopicGauge(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	r, err := New(&fakeBackend{}, Config{},
		WithDialer(newFakeDialer()),
		WithLogger(logger.Nop()),
		WithMeter(mp.Meter("test")),
	)
	if err != nil {
		t.Fatal(err)
	}

	r.mu.Lock()
	r.subs.add(newListener("posts", nopListener, nil))
	r.subs.add(newListener("users", nopListener, nil))
	r.mu.Unlock()
	if got := topicGauge(t, reader); got != 2 {
		t.Fatalf("topic gauge = %d, want 2", got)
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if got := topicGauge(t, reader); got != -1 {
		t.Errorf("topic gauge still observed after Close: %d", got)
	}
	if len(r.Topics()) != 0 || r.IsConnected() {
		t.Error("Close left subscriptions behind")
	}
}
