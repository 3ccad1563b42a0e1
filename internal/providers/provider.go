package providers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cassiomorais/pixgateway/internal/domain/pix"
)

const (
	OperationCreate = "create_transaction"
	OperationStatus = "get_transaction"
)

// Gateway is the transaction API of a PIX processor. Each call is a single
// round-trip; callers supply the headers built for that request.
type Gateway interface {
	// Name returns the provider name.
	Name() string
	// CreateTransaction submits a mapped order and returns the payment handles.
	CreateTransaction(ctx context.Context, payload *pix.TransactionCreatePayload, headers http.Header) (*pix.TransactionResult, error)
	// GetTransaction returns the provider's transaction document unchanged.
	GetTransaction(ctx context.Context, id string, headers http.Header) (json.RawMessage, error)
}
