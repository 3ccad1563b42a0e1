package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cassiomorais/pixgateway/internal/domain/pix"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/observability"
	"github.com/cassiomorais/pixgateway/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func testEvent(id string) pix.WebhookEvent {
	return pix.WebhookEvent{TransactionID: id, Status: pix.StatusPaid, ReceivedAt: time.Now().UTC()}
}

func startDispatcher(t *testing.T, d *WebhookDispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	a := testutil.NewRecordingSink("a")
	b := testutil.NewRecordingSink("b")
	d := NewWebhookDispatcher(DispatcherConfig{Workers: 2}, zerolog.Nop(), metrics, a, b)
	startDispatcher(t, d)

	require.True(t, d.Dispatch(testEvent("tx_1")))
	require.True(t, d.Dispatch(testEvent("tx_2")))

	require.True(t, a.WaitFor(2, time.Second))
	require.True(t, b.WaitFor(2, time.Second))
	for _, evt := range a.Events() {
		assert.NotEmpty(t, evt.DeliveryID)
	}
	assert.Equal(t, []string{"a", "b"}, d.Sinks())
}

func TestDispatcher_SinkFailureIsolated(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	failing := testutil.NewRecordingSink("failing")
	failing.Err = errors.New("boom")
	healthy := testutil.NewRecordingSink("healthy")

	d := NewWebhookDispatcher(DispatcherConfig{Workers: 1}, zerolog.Nop(), metrics, failing, healthy)
	startDispatcher(t, d)

	d.Dispatch(testEvent("tx_1"))

	require.True(t, healthy.WaitFor(1, time.Second))
	assert.Len(t, failing.Events(), 1)
	assert.Equal(t, float64(1), counterValue(t, metrics.WebhookDeliveriesTotal.WithLabelValues("failing", "error")))
	assert.Equal(t, float64(1), counterValue(t, metrics.WebhookDeliveriesTotal.WithLabelValues("healthy", "ok")))
}

func TestDispatcher_BreakerSkipsFailingSink(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	failing := testutil.NewRecordingSink("failing")
	failing.Err = errors.New("down")
	healthy := testutil.NewRecordingSink("healthy")

	d := NewWebhookDispatcher(DispatcherConfig{
		Workers:          1,
		BreakerThreshold: 2,
		BreakerTimeout:   time.Minute,
	}, zerolog.Nop(), metrics, failing, healthy)
	startDispatcher(t, d)

	for i := 0; i < 5; i++ {
		d.Dispatch(testEvent("tx"))
	}

	require.True(t, healthy.WaitFor(5, time.Second))
	// after two consecutive failures the breaker opens and the sink is no longer called
	assert.Len(t, failing.Events(), 2)
	assert.Equal(t, float64(3), counterValue(t, metrics.WebhookDeliveriesTotal.WithLabelValues("failing", "skipped")))
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	d := NewWebhookDispatcher(DispatcherConfig{QueueSize: 2}, zerolog.Nop(), metrics, testutil.NewRecordingSink("a"))

	// no workers running
	assert.True(t, d.Dispatch(testEvent("1")))
	assert.True(t, d.Dispatch(testEvent("2")))
	assert.False(t, d.Dispatch(testEvent("3")))
	assert.Equal(t, float64(1), counterValue(t, metrics.WebhookEventsTotal.WithLabelValues("dropped")))
}

func TestDispatcher_DispatchDoesNotWaitForSinks(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	slow := testutil.NewRecordingSink("slow")
	slow.Delay = 200 * time.Millisecond

	d := NewWebhookDispatcher(DispatcherConfig{Workers: 1}, zerolog.Nop(), metrics, slow)
	startDispatcher(t, d)

	start := time.Now()
	d.Dispatch(testEvent("tx_1"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	require.True(t, slow.WaitFor(1, time.Second))
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	sink := testutil.NewRecordingSink("a")
	d := NewWebhookDispatcher(DispatcherConfig{Workers: 1, QueueSize: 10}, zerolog.Nop(), metrics, sink)

	for i := 0; i < 3; i++ {
		d.Dispatch(testEvent("tx"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Len(t, sink.Events(), 3)
}

type countingSink struct{ calls atomic.Int32 }

func (s *countingSink) Name() string { return "counting" }
func (s *countingSink) Deliver(context.Context, pix.WebhookEvent) error {
	s.calls.Add(1)
	return nil
}

func TestDispatcher_AtMostOncePerSink(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	sink := &countingSink{}
	d := NewWebhookDispatcher(DispatcherConfig{Workers: 4, QueueSize: 100}, zerolog.Nop(), metrics, sink)

	for i := 0; i < 50; i++ {
		d.Dispatch(testEvent("tx"))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, int32(50), sink.calls.Load())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))
	amount := int64(12345)
	evt := testEvent("tx_1")
	evt.AmountCents = &amount

	assert.Equal(t, "log", sink.Name())
	require.NoError(t, sink.Deliver(context.Background(), evt))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tx_1", entry["transaction_id"])
	assert.Equal(t, "123.45", entry["amount"])
	assert.Contains(t, entry["message"], "Webhook: tx tx_1 ->")
	assert.Equal(t, true, entry["final"])
}

func TestLogSink_PendingIsNotFinal(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))
	evt := testEvent("tx_2")
	evt.Status = pix.StatusWaitingPayment

	require.NoError(t, sink.Deliver(context.Background(), evt))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, false, entry["final"])
	assert.Equal(t, true, entry["known_status"])
}
