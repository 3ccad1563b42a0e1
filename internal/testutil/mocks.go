package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cassiomorais/pixgateway/internal/domain/pix"
)

// --- Gateway Mock ---

// MockGateway records provider calls and answers from the configured funcs.
type MockGateway struct {
	mu       sync.Mutex
	payloads []*pix.TransactionCreatePayload
	headers  []http.Header
	ids      []string

	CreateFunc func(ctx context.Context, payload *pix.TransactionCreatePayload) (*pix.TransactionResult, error)
	GetFunc    func(ctx context.Context, id string) (json.RawMessage, error)
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateTransaction(ctx context.Context, payload *pix.TransactionCreatePayload, headers http.Header) (*pix.TransactionResult, error) {
	m.mu.Lock()
	m.payloads = append(m.payloads, payload)
	m.headers = append(m.headers, headers)
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, payload)
	}
	return &pix.TransactionResult{TransactionID: "tx_mock"}, nil
}

func (m *MockGateway) GetTransaction(ctx context.Context, id string, headers http.Header) (json.RawMessage, error) {
	m.mu.Lock()
	m.ids = append(m.ids, id)
	m.headers = append(m.headers, headers)
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return json.RawMessage(`{"id":"` + id + `","status":"waiting_payment"}`), nil
}

// Payloads returns every payload passed to CreateTransaction.
func (m *MockGateway) Payloads() []*pix.TransactionCreatePayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*pix.TransactionCreatePayload(nil), m.payloads...)
}

// Headers returns the header set of every call, in call order.
func (m *MockGateway) Headers() []http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]http.Header(nil), m.headers...)
}

// StatusIDs returns every id passed to GetTransaction.
func (m *MockGateway) StatusIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...)
}

// --- Sink Mock ---

// RecordingSink stores delivered events. Err, when set, is returned from
// every delivery after the event is recorded.
type RecordingSink struct {
	SinkName string
	Err      error
	Delay    time.Duration

	mu     sync.Mutex
	events []pix.WebhookEvent
	notify chan struct{}
}

func NewRecordingSink(name string) *RecordingSink {
	return &RecordingSink{SinkName: name, notify: make(chan struct{}, 1024)}
}

func (s *RecordingSink) Name() string { return s.SinkName }

func (s *RecordingSink) Deliver(ctx context.Context, evt pix.WebhookEvent) error {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return s.Err
}

func (s *RecordingSink) Events() []pix.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pix.WebhookEvent(nil), s.events...)
}

// WaitFor blocks until at least n events were delivered or timeout elapses.
func (s *RecordingSink) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if len(s.Events()) >= n {
			return true
		}
		select {
		case <-s.notify:
		case <-deadline:
			return len(s.Events()) >= n
		}
	}
}

// --- Dispatcher Mock ---

// MockDispatcher collects dispatched events synchronously.
type MockDispatcher struct {
	mu     sync.Mutex
	events []pix.WebhookEvent
	Reject bool
}

func (d *MockDispatcher) Dispatch(evt pix.WebhookEvent) bool {
	if d.Reject {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	return true
}

func (d *MockDispatcher) Events() []pix.WebhookEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]pix.WebhookEvent(nil), d.events...)
}
