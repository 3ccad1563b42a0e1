package pix

import (
	"encoding/json"
	"time"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
)

// ParseWebhookEvent reads a provider notification of the form
// {"data": {"id": ..., "status": ..., ...}}. The whole data object is kept in
// Payload for downstream sinks.
func ParseWebhookEvent(body []byte, receivedAt time.Time) (WebhookEvent, map[string]any, error) {
	doc, err := decodeObject(body)
	if err != nil {
		return WebhookEvent{}, nil, err
	}

	data, ok := doc["data"].(map[string]any)
	if !ok {
		return WebhookEvent{}, doc, domainErrors.WrapValidationError("data", "must be an object", domainErrors.ErrInvalidInput)
	}
	id, ok := scalarString(data["id"])
	if !ok {
		return WebhookEvent{}, doc, domainErrors.WrapValidationError("data.id", "is required", domainErrors.ErrInvalidInput)
	}
	status, _ := data["status"].(string)
	if status == "" {
		return WebhookEvent{}, doc, domainErrors.WrapValidationError("data.status", "is required", domainErrors.ErrInvalidInput)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return WebhookEvent{}, doc, domainErrors.WrapValidationError("data", err.Error(), domainErrors.ErrInvalidInput)
	}

	evt := WebhookEvent{
		TransactionID: id,
		Status:        Status(status),
		Payload:       payload,
		ReceivedAt:    receivedAt.UTC(),
	}
	if n, ok := data["amount"].(json.Number); ok {
		if cents, err := n.Int64(); err == nil {
			evt.AmountCents = &cents
		}
	}
	return evt, doc, nil
}
