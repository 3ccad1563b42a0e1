package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/pixgateway/internal/domain/pix"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes webhook events keyed by transaction id, so every
// transition of one transaction lands on the same partition.
type Producer struct {
	w messageWriter
}

func NewProducer(brokers []string, topic string, batchTimeout time.Duration) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           batchTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Producer) Name() string { return "kafka" }

func (p *Producer) Deliver(ctx context.Context, evt pix.WebhookEvent) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.TransactionID),
		Value: b,
		Time:  evt.ReceivedAt,
		Headers: []kafka.Header{
			{Key: "delivery-id", Value: []byte(evt.DeliveryID)},
			{Key: "status", Value: []byte(evt.Status)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish webhook event: %w", err)
	}
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }
