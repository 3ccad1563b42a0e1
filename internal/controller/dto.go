package controller

import (
	"encoding/json"

	"github.com/cassiomorais/pixgateway/internal/domain/pix"
)

// --- Response DTOs ---

// StatusResponse is returned by the liveness routes.
type StatusResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ErrorResponse is the body produced for failures that did not come from the
// provider. Provider error bodies are relayed as they are.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

// CreateTransactionResponse is returned after a transaction is created.
type CreateTransactionResponse struct {
	TransactionID string          `json:"transactionId"`
	QRURL         string          `json:"qrUrl,omitempty"`
	PaymentURL    string          `json:"paymentUrl,omitempty"`
	Pix           json.RawMessage `json:"pix,omitempty"`
}

// --- Converters ---

func toCreateTransactionResponse(r *pix.TransactionResult) CreateTransactionResponse {
	return CreateTransactionResponse{
		TransactionID: r.TransactionID,
		QRURL:         r.QRURL,
		PaymentURL:    r.PaymentURL,
		Pix:           r.Pix,
	}
}
