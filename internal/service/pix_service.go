package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
	"github.com/cassiomorais/pixgateway/internal/domain/pix"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/observability"
	"github.com/cassiomorais/pixgateway/internal/providers"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/cassiomorais/pixgateway/internal/service")

// ErrWebhookQueueFull is returned by HandleWebhook when an event was dropped.
var ErrWebhookQueueFull = errors.New("webhook queue full")

// EventDispatcher hands webhook events to asynchronous delivery.
type EventDispatcher interface {
	Dispatch(evt pix.WebhookEvent) bool
}

// PixService drives the create, status and webhook flows against one gateway.
type PixService struct {
	gateway    providers.Gateway
	headers    *providers.HeaderBuilder
	mapper     *pix.Mapper
	schemas    *pix.SchemaValidator
	dispatcher EventDispatcher
	logger     zerolog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewPixService creates a new PixService.
func NewPixService(
	gateway providers.Gateway,
	headers *providers.HeaderBuilder,
	mapper *pix.Mapper,
	schemas *pix.SchemaValidator,
	dispatcher EventDispatcher,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *PixService {
	return &PixService{
		gateway:    gateway,
		headers:    headers,
		mapper:     mapper,
		schemas:    schemas,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// CreateTransaction validates and maps a raw order body, then submits it.
func (s *PixService) CreateTransaction(ctx context.Context, body []byte) (*pix.TransactionResult, error) {
	ctx, span := tracer.Start(ctx, "PixService.CreateTransaction",
		trace.WithAttributes(attribute.String("provider", s.gateway.Name())))
	defer span.End()

	order, err := pix.ParseOrderRequest(body)
	if err != nil {
		return nil, spanError(span, err)
	}
	if err := s.schemas.ValidateOrder(order); err != nil {
		return nil, spanError(span, err)
	}

	payload, err := s.mapper.Map(order)
	if err != nil {
		return nil, spanError(span, err)
	}
	if payload.Amount != nil {
		span.SetAttributes(attribute.Int64("pix.amount_cents", *payload.Amount))
	}
	s.logger.Debug().Stringer("payload", payload).Msg("Mapped order to provider payload")

	result, err := s.gateway.CreateTransaction(ctx, payload, s.headers.Build())
	if err != nil {
		s.logProviderError(err, providers.OperationCreate)
		return nil, spanError(span, err)
	}

	span.SetAttributes(attribute.String("pix.transaction_id", result.TransactionID))
	return result, nil
}

// GetStatus returns the provider's transaction document unchanged.
func (s *PixService) GetStatus(ctx context.Context, id string) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "PixService.GetStatus",
		trace.WithAttributes(attribute.String("pix.transaction_id", id)))
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, spanError(span, domainErrors.NewValidationError("id", "transaction id is required"))
	}

	doc, err := s.gateway.GetTransaction(ctx, id, s.headers.Build())
	if err != nil {
		s.logProviderError(err, providers.OperationStatus)
		return nil, spanError(span, err)
	}
	return doc, nil
}

// HandleWebhook parses a provider notification and queues it for the sinks.
// The returned error only describes why nothing was queued; the provider is
// acknowledged either way.
func (s *PixService) HandleWebhook(ctx context.Context, body []byte) error {
	_, span := tracer.Start(ctx, "PixService.HandleWebhook")
	defer span.End()

	evt, doc, err := pix.ParseWebhookEvent(body, s.now())
	if err == nil {
		err = s.schemas.ValidateWebhook(doc)
	}
	if err != nil {
		s.metrics.WebhookEventsTotal.WithLabelValues("malformed").Inc()
		s.logger.Warn().Err(err).Bytes("body", truncate(body, 512)).Msg("Malformed webhook acknowledged")
		return spanError(span, err)
	}

	span.SetAttributes(
		attribute.String("pix.transaction_id", evt.TransactionID),
		attribute.String("pix.status", string(evt.Status)),
	)
	if !s.dispatcher.Dispatch(evt) {
		return spanError(span, ErrWebhookQueueFull)
	}
	return nil
}

func (s *PixService) logProviderError(err error, op string) {
	var upstream *domainErrors.UpstreamError
	if errors.As(err, &upstream) {
		s.logger.Warn().
			Str("operation", op).
			Int("status", upstream.StatusCode).
			Bytes("body", truncate(upstream.Body, 2048)).
			Msg("Provider returned an error response")
		return
	}
	s.logger.Error().Err(err).Str("operation", op).Msg("Provider call failed")
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
