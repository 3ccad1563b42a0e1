package service

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/pixgateway/internal/domain/pix"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
)

// Sink receives webhook events after the provider has been acknowledged.
// A sink sees each dispatched event at most once.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt pix.WebhookEvent) error
}

type DispatcherConfig struct {
	QueueSize        int
	Workers          int
	DeliveryTimeout  time.Duration
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 5 * time.Second
	}
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

type guardedSink struct {
	sink    Sink
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// WebhookDispatcher fans webhook events out to sinks from a bounded queue.
// Dispatch never blocks the request that received the event.
type WebhookDispatcher struct {
	cfg     DispatcherConfig
	queue   chan pix.WebhookEvent
	sinks   []guardedSink
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewWebhookDispatcher(cfg DispatcherConfig, logger zerolog.Logger, metrics *observability.Metrics, sinks ...Sink) *WebhookDispatcher {
	cfg = cfg.withDefaults()
	d := &WebhookDispatcher{
		cfg:     cfg,
		queue:   make(chan pix.WebhookEvent, cfg.QueueSize),
		logger:  logger,
		metrics: metrics,
	}
	for _, s := range sinks {
		d.sinks = append(d.sinks, guardedSink{sink: s, breaker: d.newBreaker(s.Name())})
	}
	return d
}

func (d *WebhookDispatcher) newBreaker(name string) *gobreaker.CircuitBreaker[struct{}] {
	threshold := d.cfg.BreakerThreshold
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "sink:" + name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     d.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Sink circuit breaker state changed")
			d.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// Sinks returns the names of the installed sinks in delivery order.
func (d *WebhookDispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.sink.Name())
	}
	return names
}

// Dispatch enqueues evt and reports whether it was accepted. A full queue
// drops the event.
func (d *WebhookDispatcher) Dispatch(evt pix.WebhookEvent) bool {
	if evt.DeliveryID == "" {
		evt.DeliveryID = newDeliveryID()
	}
	select {
	case d.queue <- evt:
		d.metrics.WebhookQueueDepth.Inc()
		d.metrics.WebhookEventsTotal.WithLabelValues("queued").Inc()
		return true
	default:
		d.metrics.WebhookEventsTotal.WithLabelValues("dropped").Inc()
		d.logger.Warn().
			Str("transaction_id", evt.TransactionID).
			Str("status", string(evt.Status)).
			Int("queue_size", d.cfg.QueueSize).
			Msg("Webhook queue full, event dropped")
		return false
	}
}

// Run starts the worker pool and blocks until ctx is cancelled. Events still
// buffered at shutdown are delivered before Run returns.
func (d *WebhookDispatcher) Run(ctx context.Context) error {
	d.logger.Info().
		Int("workers", d.cfg.Workers).
		Strs("sinks", d.Sinks()).
		Msg("Webhook dispatcher started")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	err := g.Wait()
	d.logger.Info().Msg("Webhook dispatcher stopped")
	return err
}

func (d *WebhookDispatcher) work(ctx context.Context) {
	for {
		select {
		case evt := <-d.queue:
			d.deliver(evt)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

func (d *WebhookDispatcher) drain() {
	for {
		select {
		case evt := <-d.queue:
			d.deliver(evt)
		default:
			return
		}
	}
}

func (d *WebhookDispatcher) deliver(evt pix.WebhookEvent) {
	d.metrics.WebhookQueueDepth.Dec()
	for _, gs := range d.sinks {
		d.deliverTo(gs, evt)
	}
}

func (d *WebhookDispatcher) deliverTo(gs guardedSink, evt pix.WebhookEvent) {
	name := gs.sink.Name()
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliveryTimeout)
	defer cancel()

	start := time.Now()
	_, err := gs.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, gs.sink.Deliver(ctx, evt)
	})
	d.metrics.WebhookDeliveryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		d.metrics.WebhookDeliveriesTotal.WithLabelValues(name, "ok").Inc()
		d.metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		d.metrics.WebhookDeliveriesTotal.WithLabelValues(name, "skipped").Inc()
		d.metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
		d.logger.Debug().Str("sink", name).Str("delivery_id", evt.DeliveryID).Msg("Sink breaker open, event skipped")
	default:
		d.metrics.WebhookDeliveriesTotal.WithLabelValues(name, "error").Inc()
		d.metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
		d.logger.Error().
			Err(err).
			Str("sink", name).
			Str("delivery_id", evt.DeliveryID).
			Str("transaction_id", evt.TransactionID).
			Msg("Webhook delivery failed")
	}
}

func newDeliveryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// LogSink writes one log line per webhook event.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, evt pix.WebhookEvent) error {
	e := s.logger.Info().
		Str("delivery_id", evt.DeliveryID).
		Str("transaction_id", evt.TransactionID).
		Str("status", string(evt.Status)).
		Bool("known_status", evt.Status.Known()).
		Bool("final", evt.Status.IsFinal())
	if evt.AmountCents != nil {
		e = e.Int64("amount_cents", *evt.AmountCents).
			Str("amount", pix.FromCents(*evt.AmountCents).StringFixed(2))
	}
	e.Msgf("Webhook: tx %s -> %s", evt.TransactionID, evt.Status)
	return nil
}
