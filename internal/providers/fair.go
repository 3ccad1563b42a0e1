package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
	"github.com/cassiomorais/pixgateway/internal/domain/pix"
	"github.com/cassiomorais/pixgateway/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultFairBaseURL = "https://api.fairpayments.com.br/functions/v1"

// FairClient talks to the FairPayments transactions API.
type FairClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
	metrics *observability.Metrics
}

type FairClientOption func(*FairClient)

// WithHTTPClient replaces the default client. The default has no timeout.
func WithHTTPClient(c *http.Client) FairClientOption {
	return func(f *FairClient) { f.client = c }
}

func WithLogger(l zerolog.Logger) FairClientOption {
	return func(f *FairClient) { f.logger = l }
}

func WithMetrics(m *observability.Metrics) FairClientOption {
	return func(f *FairClient) { f.metrics = m }
}

func NewFairClient(baseURL string, opts ...FairClientOption) *FairClient {
	if baseURL == "" {
		baseURL = DefaultFairBaseURL
	}
	f := &FairClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *FairClient) Name() string { return "fairpayments" }

func (f *FairClient) CreateTransaction(ctx context.Context, payload *pix.TransactionCreatePayload, headers http.Header) (*pix.TransactionResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode transaction payload: %w", err)
	}

	f.logger.Debug().RawJSON("payload", body).Msg("Creating provider transaction")

	respBody, err := f.do(ctx, OperationCreate, http.MethodPost, f.baseURL+"/transactions", body, headers)
	if err != nil {
		return nil, err
	}

	result, err := parseCreateResponse(respBody)
	if err != nil {
		return nil, err
	}
	f.logger.Info().Str("transaction_id", result.TransactionID).Msg("Provider transaction created")
	return result, nil
}

func (f *FairClient) GetTransaction(ctx context.Context, id string, headers http.Header) (json.RawMessage, error) {
	endpoint := f.baseURL + "/transactions/" + url.PathEscape(id)
	respBody, err := f.do(ctx, OperationStatus, http.MethodGet, endpoint, nil, headers)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(respBody), nil
}

// do performs exactly one round-trip. Caller cancellation is not propagated:
// a call that reached the provider runs to completion.
func (f *FairClient) do(ctx context.Context, op, method, endpoint string, body []byte, headers http.Header) ([]byte, error) {
	ctx = context.WithoutCancel(ctx)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &domainErrors.TransportError{Operation: op, Err: err}
	}
	req.Header = headers.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.observe(op, "transport_error", start)
		f.logger.Error().Err(err).Str("operation", op).Msg("Provider unreachable")
		return nil, &domainErrors.TransportError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		f.observe(op, "transport_error", start)
		return nil, &domainErrors.TransportError{Operation: op, Err: fmt.Errorf("read response body: %w", err)}
	}
	f.observe(op, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn().
			Str("operation", op).
			Int("status", resp.StatusCode).
			Bytes("body", respBody).
			Msg("Provider rejected request")
		return nil, &domainErrors.UpstreamError{Operation: op, StatusCode: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

func (f *FairClient) observe(op, status string, start time.Time) {
	if f.metrics == nil {
		return
	}
	f.metrics.ProviderRequestsTotal.WithLabelValues(op, status).Inc()
	f.metrics.ProviderRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

type createResponse struct {
	ID            json.RawMessage `json:"id"`
	Pix           json.RawMessage `json:"pix"`
	PaymentURL    string          `json:"payment_url"`
	PaymentURLAlt string          `json:"paymentUrl"`
}

func parseCreateResponse(body []byte) (*pix.TransactionResult, error) {
	var doc createResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, domainErrors.NewDomainError("invalid_provider_body", "could not decode provider response",
			fmt.Errorf("%w: %v", domainErrors.ErrInvalidProviderBody, err))
	}

	result := &pix.TransactionResult{
		TransactionID: rawID(doc.ID),
		PaymentURL:    doc.PaymentURL,
	}
	if result.PaymentURL == "" {
		result.PaymentURL = doc.PaymentURLAlt
	}

	if len(doc.Pix) > 0 && !bytes.Equal(doc.Pix, []byte("null")) {
		result.Pix = doc.Pix
		var p struct {
			QRCode string `json:"qrcode"`
		}
		if err := json.Unmarshal(doc.Pix, &p); err == nil {
			result.QRURL = p.QRCode
		}
	}
	return result, nil
}

// rawID accepts ids the provider sends as strings or as numbers.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
