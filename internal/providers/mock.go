package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
	"github.com/cassiomorais/pixgateway/internal/domain/pix"
	"github.com/google/uuid"
)

// MockGateway is an in-memory sandbox processor used for local runs and
// tests. Created transactions stay in waiting_payment.
type MockGateway struct {
	name        string
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	timeoutRate float64 // 0.0 to 1.0

	mu           sync.Mutex
	transactions map[string]mockTransaction
}

type mockTransaction struct {
	ID          string          `json:"id"`
	Status      pix.Status      `json:"status"`
	Amount      *int64          `json:"amount,omitempty"`
	Description string          `json:"description"`
	Pix         json.RawMessage `json:"pix"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type MockGatewayOption func(*MockGateway)

func WithFailureRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.failureRate = rate }
}

func WithLatency(d time.Duration) MockGatewayOption {
	return func(g *MockGateway) { g.latency = d }
}

func WithTimeoutRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.timeoutRate = rate }
}

func NewMockGateway(name string, opts ...MockGatewayOption) *MockGateway {
	g := &MockGateway{
		name:         name,
		latency:      100 * time.Millisecond,
		transactions: make(map[string]mockTransaction),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *MockGateway) Name() string { return g.name }

func (g *MockGateway) CreateTransaction(_ context.Context, payload *pix.TransactionCreatePayload, headers http.Header) (*pix.TransactionResult, error) {
	if err := g.simulate(OperationCreate, headers); err != nil {
		return nil, err
	}

	id := fmt.Sprintf("%s_txn_%s", g.name, uuid.New().String()[:8])
	pixDoc, _ := json.Marshal(map[string]any{
		"qrcode":         "https://sandbox.invalid/qr/" + id,
		"expirationDate": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	})

	tx := mockTransaction{
		ID:          id,
		Status:      pix.StatusWaitingPayment,
		Amount:      payload.Amount,
		Description: payload.Description,
		Pix:         pixDoc,
		CreatedAt:   time.Now().UTC(),
	}
	g.mu.Lock()
	g.transactions[id] = tx
	g.mu.Unlock()

	return &pix.TransactionResult{
		TransactionID: id,
		QRURL:         "https://sandbox.invalid/qr/" + id,
		PaymentURL:    "https://sandbox.invalid/pay/" + id,
		Pix:           pixDoc,
	}, nil
}

func (g *MockGateway) GetTransaction(_ context.Context, id string, headers http.Header) (json.RawMessage, error) {
	if err := g.simulate(OperationStatus, headers); err != nil {
		return nil, err
	}

	g.mu.Lock()
	tx, ok := g.transactions[id]
	g.mu.Unlock()
	if !ok {
		return nil, &domainErrors.UpstreamError{
			Operation:  OperationStatus,
			StatusCode: http.StatusNotFound,
			Body:       []byte(`{"message":"transaction not found"}`),
		}
	}
	return json.Marshal(tx)
}

// simulate takes no context: like FairClient, a sandbox call runs to
// completion even when the caller goes away.
func (g *MockGateway) simulate(op string, headers http.Header) error {
	// Simulate latency
	time.Sleep(g.latency)

	if headers.Get("Authorization") == "" {
		return &domainErrors.UpstreamError{
			Operation:  op,
			StatusCode: http.StatusUnauthorized,
			Body:       []byte(`{"message":"missing credentials"}`),
		}
	}

	// Simulate timeout
	if rand.Float64() < g.timeoutRate {
		return &domainErrors.TransportError{Operation: op, Err: fmt.Errorf("%s: simulated timeout", g.name)}
	}

	// Simulate failure
	if rand.Float64() < g.failureRate {
		return &domainErrors.UpstreamError{
			Operation:  op,
			StatusCode: http.StatusPaymentRequired,
			Body:       []byte(fmt.Sprintf(`{"message":"%s: simulated refusal"}`, g.name)),
		}
	}
	return nil
}
