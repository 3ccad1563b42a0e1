package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cassiomorais/pixgateway/internal/domain/pix"
	"github.com/redis/go-redis/v9"
)

const DefaultWebhookStream = "webhooks:pix"

// StreamSink appends webhook events to a Redis stream so other services can
// consume them with a consumer group.
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamSink(client *redis.Client, stream string, maxLen int64) *StreamSink {
	if stream == "" {
		stream = DefaultWebhookStream
	}
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Name() string { return "redis" }

func (s *StreamSink) Deliver(ctx context.Context, evt pix.WebhookEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"delivery_id":    evt.DeliveryID,
			"transaction_id": evt.TransactionID,
			"status":         string(evt.Status),
			"payload":        string(payload),
			"received_at":    evt.ReceivedAt.UnixMilli(),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if _, err := s.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish webhook event: %w", err)
	}
	return nil
}
