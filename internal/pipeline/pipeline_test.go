package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/observability"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockLoader struct {
	mu       sync.Mutex
	batches  [][]domain.PolygonEvent
	failures int // remaining LoadBatch calls that fail
	calls    int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.PolygonEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.batches = append(m.batches, append([]domain.PolygonEvent(nil), events...))
	return nil
}

func (m *mockLoader) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, b := range m.batches {
		for _, e := range b {
			out = append(out, e.Polygon.ID)
		}
	}
	return out
}

func (m *mockLoader) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.batches))
	for i, b := range m.batches {
		out[i] = len(b)
	}
	return out
}

func (m *mockLoader) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(id string) domain.PolygonEvent {
	return domain.PolygonEvent{
		Type:       domain.PolygonCreated,
		Polygon:    domain.Polygon{ID: id},
		OccurredAt: time.Date(2024, time.July, 15, 12, 0, 0, 0, time.UTC),
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func runOutbox(t *testing.T, o *pipeline.Outbox) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return cancel
}

// --- tests ---

func TestOutbox_DeliversInOrder(t *testing.T) {
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	o := pipeline.NewOutbox(ldr, discardLogger(), metrics, 16, 10, 20*time.Millisecond)
	runOutbox(t, o)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, o.Publish(context.Background(), event(id)))
	}

	require.Eventually(t, func() bool { return len(ldr.ids()) == 3 }, time.Second, 5*time.Millisecond)
	if diff := cmp.Diff([]string{"a", "b", "c"}, ldr.ids()); diff != "" {
		t.Fatalf("delivery order mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 3.0, counterValue(t, metrics.EventsDelivered), 0)
}

func TestOutbox_BatchesUpToBatchSize(t *testing.T) {
	ldr := &mockLoader{}
	o := pipeline.NewOutbox(ldr, discardLogger(), observability.NewMetricsForTesting(), 16, 2, time.Hour)

	// Queue before running so the first collect sees all five.
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, o.Publish(context.Background(), event(id)))
	}
	cancel := runOutbox(t, o)

	require.Eventually(t, func() bool { return len(ldr.ids()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{2, 2}, ldr.batchSizes())

	// The fifth waits on the hour-long flush interval until shutdown drains it.
	cancel()
	require.Eventually(t, func() bool { return len(ldr.ids()) == 5 }, time.Second, 5*time.Millisecond)
}

func TestOutbox_RetriesFailedBatch(t *testing.T) {
	ldr := &mockLoader{failures: 2}
	metrics := observability.NewMetricsForTesting()
	o := pipeline.NewOutbox(ldr, discardLogger(), metrics, 16, 10, 10*time.Millisecond)
	runOutbox(t, o)

	require.NoError(t, o.Publish(context.Background(), event("retry")))

	// 200ms + 400ms of backoff before the third attempt.
	require.Eventually(t, func() bool { return len(ldr.ids()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, ldr.callCount())
	assert.InDelta(t, 2.0, counterValue(t, metrics.PublishErrors), 0)
}

func TestOutbox_FullQueueDropsEvent(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	o := pipeline.NewOutbox(&mockLoader{}, discardLogger(), metrics, 1, 10, time.Second)

	require.NoError(t, o.Publish(context.Background(), event("kept")))
	err := o.Publish(context.Background(), event("dropped"))

	require.ErrorIs(t, err, pipeline.ErrOutboxFull)
	assert.InDelta(t, 1.0, counterValue(t, metrics.EventsDropped), 0)
}

func TestOutbox_PublishIgnoresCancelledContext(t *testing.T) {
	o := pipeline.NewOutbox(&mockLoader{}, discardLogger(), observability.NewMetricsForTesting(), 1, 10, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, o.Publish(ctx, event("late")))
}

func TestOutbox_ShutdownFlushesQueue(t *testing.T) {
	ldr := &mockLoader{}
	o := pipeline.NewOutbox(ldr, discardLogger(), observability.NewMetricsForTesting(), 16, 10, time.Second)

	for _, id := range []string{"x", "y"} {
		require.NoError(t, o.Publish(context.Background(), event(id)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, o.Run(ctx))
	assert.Equal(t, []string{"x", "y"}, ldr.ids())
}

func TestOutbox_RunWithEmptyQueueStops(t *testing.T) {
	ldr := &mockLoader{}
	o := pipeline.NewOutbox(ldr, discardLogger(), observability.NewMetricsForTesting(), 4, 10, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, o.Run(ctx))
	assert.Zero(t, ldr.callCount())
}
