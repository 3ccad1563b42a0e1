// Package pix holds the provider-facing transaction model and the mapping from
// loosely shaped caller orders into it.
package pix

import (
	"encoding/json"
	"time"
)

const (
	CurrencyBRL      = "BRL"
	PaymentMethodPIX = "PIX"

	// WebhookPath is where the provider posts status changes on this service.
	WebhookPath = "/api/webhook/pix"
)

// Status is a transaction status from the provider's vocabulary.
type Status string

const (
	StatusWaitingPayment Status = "waiting_payment"
	StatusPending        Status = "pending"
	StatusInAnalysis     Status = "in_analysis"
	StatusPaid           Status = "paid"
	StatusRefused        Status = "refused"
	StatusCanceled       Status = "canceled"
	StatusRefunded       Status = "refunded"
	StatusChargedback    Status = "chargedback"
	StatusFailed         Status = "failed"
	StatusExpired        Status = "expired"
)

var knownStatuses = map[Status]bool{
	StatusWaitingPayment: true,
	StatusPending:        true,
	StatusInAnalysis:     true,
	StatusPaid:           true,
	StatusRefused:        true,
	StatusCanceled:       true,
	StatusRefunded:       true,
	StatusChargedback:    true,
	StatusFailed:         true,
	StatusExpired:        true,
}

// Known reports whether s belongs to the documented provider vocabulary.
// Unknown statuses are still carried verbatim.
func (s Status) Known() bool {
	return knownStatuses[s]
}

// IsFinal reports whether no further transitions are expected for s.
func (s Status) IsFinal() bool {
	switch s {
	case StatusPaid, StatusRefused, StatusCanceled, StatusRefunded, StatusChargedback, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// LineItem is a normalized order line. UnitPriceCents is in minor units.
type LineItem struct {
	Title          string `json:"title"`
	UnitPriceCents int64  `json:"unitPrice"`
	Quantity       int64  `json:"quantity"`
	ExternalRef    string `json:"externalRef,omitempty"`
}

// Total returns the line total in minor units. It fails instead of wrapping
// when the product does not fit in int64.
func (i LineItem) Total() (int64, error) {
	return MulCents(i.UnitPriceCents, i.Quantity)
}

// Split is a percentage payout to a secondary recipient.
type Split struct {
	RecipientID string  `json:"recipientId" validate:"required"`
	Percentage  float64 `json:"percentage" validate:"gte=0,lte=100"`
}

// TransactionCreatePayload is the provider's transaction-creation body.
// Exactly one of Items or ForwardedItems is set when the order carries lines.
type TransactionCreatePayload struct {
	Currency       string
	PaymentMethod  string
	Amount         *int64
	Items          []LineItem
	ForwardedItems []any
	Customer       map[string]any
	Description    string
	Splits         []Split
	Metadata       map[string]any
	PostbackURL    string

	// Extra holds caller fields the mapper does not interpret. They are sent
	// as-is but never override the fields above.
	Extra map[string]any
}

// MarshalJSON flattens Extra into the body underneath the mapped fields.
func (p TransactionCreatePayload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+10)
	for k, v := range p.Extra {
		out[k] = v
	}

	out["currency"] = p.Currency
	out["paymentMethod"] = p.PaymentMethod
	out["description"] = p.Description
	if p.Amount != nil {
		out["amount"] = *p.Amount
	}
	switch {
	case p.ForwardedItems != nil:
		out["items"] = p.ForwardedItems
	case p.Items != nil:
		out["items"] = p.Items
	}
	if p.Customer != nil {
		out["customer"] = p.Customer
	}
	if len(p.Splits) > 0 {
		out["splits"] = p.Splits
	}
	if p.Metadata != nil {
		out["metadata"] = p.Metadata
	}
	if p.PostbackURL != "" {
		out["postbackUrl"] = p.PostbackURL
	}

	return json.Marshal(out)
}

// TransactionResult is what a caller gets back after a successful create.
type TransactionResult struct {
	TransactionID string          `json:"transactionId"`
	QRURL         string          `json:"qrUrl,omitempty"`
	PaymentURL    string          `json:"paymentUrl,omitempty"`
	Pix           json.RawMessage `json:"pix,omitempty"`
}

// WebhookEvent is one provider-side status transition.
type WebhookEvent struct {
	DeliveryID    string          `json:"deliveryId"`
	TransactionID string          `json:"transactionId"`
	Status        Status          `json:"status"`
	AmountCents   *int64          `json:"amount,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	ReceivedAt    time.Time       `json:"receivedAt"`
}
